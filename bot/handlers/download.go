package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/scheduler"
	"github.com/m3rciful/magbot/bot/seedr"
	"github.com/m3rciful/magbot/bot/session"
	"github.com/m3rciful/magbot/core/logger"
	"github.com/m3rciful/magbot/core/telegram/callbacks"
	"github.com/m3rciful/magbot/core/telegram/format"
	tghelpers "github.com/m3rciful/magbot/core/telegram/helpers"
	"log/slog"
)

// handleDownload reacts to a result button. The poll loop takes seconds, so
// the actual resolution runs in its own goroutine and reports by editing the
// status message in place; the handler itself returns immediately and other
// users' updates keep flowing.
func (h *handlers) handleDownload(c tele.Context) error {
	rank, err := callbacks.PayloadInt(c)
	if err != nil {
		return tghelpers.SendText(c, "I can't tell which result you meant. Search again.")
	}

	userID := c.Sender().ID
	sess, ok := h.Store.Get(userID)
	if !ok || !sess.Configured {
		return tghelpers.SendText(c, apperr.NotConfigured().Message())
	}

	pick, ok := sess.Recall(pickKey(rank))
	if !ok {
		return tghelpers.SendText(c, "That result is gone. Run /search again.")
	}

	creds, ok := h.conversionCredentials(sess)
	if !ok {
		return tghelpers.SendText(c, apperr.NotConfigured().Message())
	}

	if err := c.Edit("⏳ Sending to the converter…"); err != nil {
		// Fall back to a fresh message when the original cannot be edited.
		_ = tghelpers.SendText(c, "⏳ Sending to the converter…")
	}

	go h.resolveAndDeliver(c, sess, creds, pick)
	return nil
}

// conversionCredentials picks what authenticates against the conversion
// service: the user's own Seedr credentials for seedr-backed providers,
// otherwise the bot-level service account.
func (h *handlers) conversionCredentials(sess *session.Session) (seedr.Credentials, bool) {
	switch sess.Provider {
	case session.ProviderSeedrLocal, session.ProviderSeedrCloud:
		creds := seedr.Credentials{
			Email:    sess.Credential(session.FieldEmail),
			Password: sess.Credential(session.FieldPassword),
			Token:    sess.Credential(session.FieldToken),
		}
		return creds, !creds.Empty()
	default:
		return h.ServiceAccount, !h.ServiceAccount.Empty()
	}
}

func (h *handlers) resolveAndDeliver(c tele.Context, sess *session.Session, creds seedr.Credentials, pick session.Pick) {
	ctx, cancel := context.WithTimeout(context.Background(),
		resolveBudget(h.Resolver.Attempts(), h.Resolver.Interval()))
	defer cancel()

	progress := func(attempt, attempts int) {
		if attempt == 1 {
			return
		}
		_ = c.Edit(fmt.Sprintf("⏳ Converting… attempt %d/%d", attempt, attempts))
	}

	res, err := h.Resolver.Resolve(ctx, creds, pick.Magnet, progress)
	if err != nil {
		_ = c.Edit(resolveFailureText(err))
		return
	}

	// Cache the token so the next resolve skips the login exchange.
	if creds.Token == "" && res.Token != "" && sess.ProviderUsesOwnSeedr() {
		if _, err := h.Store.Update(sess.UserID, sess.ChatID, func(s *session.Session) {
			s.SetCredential(session.FieldToken, res.Token)
		}); err != nil {
			logger.RES.Warn("token cache failed",
				slog.String("event", "resolve.token_cache"),
				slog.Int64("user_id", sess.UserID),
				slog.String("err", err.Error()),
			)
		}
	}

	h.deliver(c, sess, res, pick)
}

func (h *handlers) deliver(c tele.Context, sess *session.Session, res *seedr.Resolution, pick session.Pick) {
	switch sess.Provider {
	case session.ProviderLocal, session.ProviderSeedrLocal:
		if name, err := format.EscapeMarkdown(res.Name, format.MarkdownV1, ""); err == nil {
			_ = c.Edit(fmt.Sprintf("✅ Ready: *%s*\n%s", name, res.Link), tele.ModeMarkdown)
		} else {
			_ = c.Edit(fmt.Sprintf("✅ Ready: %s\n%s", res.Name, res.Link))
		}
	case session.ProviderSeedrCloud:
		_ = c.Edit(fmt.Sprintf("✅ %s is in your Seedr cloud.", res.Name))
	default:
		uploader, ok := h.Uploaders[sess.Provider]
		if !ok {
			_ = c.Edit("✅ Ready: " + res.Link)
			return
		}
		_ = c.Edit(fmt.Sprintf("📤 Uploading %s to %s…", res.Name, sess.Provider))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := uploader.SaveLink(ctx, sess.Credentials, res.Link, res.Name); err != nil {
			_ = c.Edit(fmt.Sprintf("Upload to %s failed: %s", sess.Provider, err.Error()))
			return
		}
		_ = c.Edit(fmt.Sprintf("✅ %s saved to %s.", res.Name, sess.Provider))
		h.notifyDone(sess, res.Name)
	}
}

// notifyDone schedules a one-shot completion notice through the generic
// scheduler, the same primitive the expiry wipe uses.
func (h *handlers) notifyDone(sess *session.Session, name string) {
	if h.Scheduler == nil {
		return
	}
	_, err := h.Scheduler.Schedule(time.Second, scheduler.Task{
		UserID:  sess.UserID,
		ChatID:  sess.ChatID,
		Kind:    TaskKindNotify,
		Payload: fmt.Sprintf("Done: %s is in your %s storage.", name, sess.Provider),
	})
	if err != nil && !errors.Is(err, scheduler.ErrClosed) {
		logger.SCHED.Warn("completion notice not scheduled",
			slog.String("event", "task.schedule"),
			slog.Int64("user_id", sess.UserID),
			slog.String("err", err.Error()),
		)
	}
}

// resolveBudget sizes the deadline around the resolver's own knobs: the
// full poll schedule, doubled for network latency, plus slack for the
// login and submit exchanges. It must never undercut attempts × interval.
func resolveBudget(attempts int, interval time.Duration) time.Duration {
	return time.Duration(attempts)*interval*2 + 30*time.Second
}

func resolveFailureText(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindTimeout:
		return "The conversion stalled. Storage might be full; try again later."
	case apperr.KindValidation:
		return "The converter rejected the credentials: " + err.Error()
	case apperr.KindNotConfigured:
		return apperr.NotConfigured().Message()
	case apperr.KindTransport:
		return "The converter is unreachable: " + err.Error()
	default:
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "The conversion was cancelled."
		}
		return "Resolution failed: " + err.Error()
	}
}
