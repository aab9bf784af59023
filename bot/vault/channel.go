package vault

import (
	"context"
	"fmt"
	"strconv"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/session"
)

// Poster sends a plain text message to a chat id. The Telegram layer
// provides the implementation so this package stays transport-free.
type Poster interface {
	Post(chatID int64, text string) error
}

// Channel re-posts resolved links into a Telegram channel the user captured
// during setup by forwarding a message from it. No pre-check is possible
// without posting, so Channel registers no Validator.
type Channel struct {
	poster Poster
}

// NewChannel builds a Channel uploader.
func NewChannel(poster Poster) *Channel {
	return &Channel{poster: poster}
}

// SaveLink posts the link with its name into the captured channel.
func (c *Channel) SaveLink(_ context.Context, creds map[string]string, link, name string) error {
	raw := creds[session.FieldChannelID]
	if raw == "" {
		return apperr.NotConfigured()
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return apperr.Validation("stored channel id is not usable", err)
	}
	if c.poster == nil {
		return apperr.Transport("channel transport unavailable", nil)
	}
	if err := c.poster.Post(chatID, fmt.Sprintf("%s\n%s", name, link)); err != nil {
		return apperr.Transport("posting to the channel failed", err)
	}
	return nil
}
