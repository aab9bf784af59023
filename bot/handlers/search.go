package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/discovery"
	"github.com/m3rciful/magbot/bot/session"
	tghelpers "github.com/m3rciful/magbot/core/telegram/helpers"
	"github.com/m3rciful/magbot/core/telegram/keyboard"
)

const (
	callbackDownloadKey = "dl"
	displayTitleWidth   = 48
)

// pickKey is the ephemeral key for a remembered search result.
func pickKey(rank int) string {
	return "search-result-" + strconv.Itoa(rank)
}

func (h *handlers) cmdSearch(c tele.Context) error {
	query := strings.TrimSpace(c.Message().Payload)

	results, _, err := h.Engine.Search(tghelpers.BuildContext(c), query)
	if err != nil {
		if errors.Is(err, discovery.ErrNoResults) {
			return tghelpers.SendText(c, "Nothing found. Try different words.")
		}
		switch apperr.KindOf(err) {
		case apperr.KindUsage:
			return tghelpers.SendText(c, err.Error())
		case apperr.KindTransport:
			return tghelpers.SendText(c, "Search is unavailable right now: "+err.Error())
		default:
			return tghelpers.SendText(c, "Search failed: "+err.Error())
		}
	}

	// Remember each row under its rank so the button press can find it
	// without a second query.
	userID := c.Sender().ID
	if _, err := h.Store.Update(userID, c.Chat().ID, func(s *session.Session) {
		for _, r := range results {
			s.Remember(pickKey(r.Rank), session.Pick{
				Title:  r.RawTitle,
				Size:   r.Size,
				Magnet: r.Magnet,
			})
		}
	}); err != nil {
		return err
	}

	var b strings.Builder
	buttons := make([]keyboard.InlineBtn, 0, len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n", r.Rank, discovery.TruncateTitle(r.Title, displayTitleWidth), r.Size)
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   "⬇️ " + strconv.Itoa(r.Rank),
			Unique: callbackDownloadKey,
			Data:   strconv.Itoa(r.Rank),
		})
	}
	b.WriteString("\nTap a number to download.")

	markup := keyboard.InlineButtonsNPerRow(buttons, len(buttons))
	return tghelpers.SendText(c, b.String(), &tele.SendOptions{ReplyMarkup: markup})
}
