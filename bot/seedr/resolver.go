package seedr

import (
	"context"
	"strconv"
	"time"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/core/logger"
	"log/slog"
)

const (
	// DefaultPollAttempts bounds the listing poll loop.
	DefaultPollAttempts = 8
	// DefaultPollInterval separates consecutive poll attempts.
	DefaultPollInterval = 2 * time.Second
)

// Progress is invoked before each poll attempt so callers can edit an
// in-place status message. May be nil.
type Progress func(attempt, total int)

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	// Link is the direct-download URL of the materialised file.
	Link string
	// Name is the file name inside Seedr.
	Name string
	// Token is the access token actually used, so callers can cache it and
	// skip the login exchange next time.
	Token string
}

// Resolver submits a magnet to the conversion service and polls the listing
// until a file appears or the attempt budget runs out.
type Resolver struct {
	client   *Client
	attempts int
	interval time.Duration
}

// NewResolver builds a Resolver; non-positive knobs fall back to defaults.
func NewResolver(client *Client, attempts int, interval time.Duration) *Resolver {
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Resolver{client: client, attempts: attempts, interval: interval}
}

// Attempts returns the configured poll budget.
func (r *Resolver) Attempts() int { return r.attempts }

// Interval returns the configured delay between poll attempts.
func (r *Resolver) Interval() time.Duration { return r.interval }

// Resolve turns a magnet reference into a direct link. Preconditions are
// checked before any network call; the whole loop respects ctx cancellation.
// A transient listing failure consumes its attempt rather than aborting the
// resolve. Worst case it blocks for roughly attempts × interval.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials, magnet string, progress Progress) (*Resolution, error) {
	if creds.Empty() {
		return nil, apperr.NotConfigured()
	}

	token := creds.Token
	if token == "" {
		t, err := r.client.Login(ctx, creds.Email, creds.Password)
		if err != nil {
			return nil, err
		}
		token = t
	}

	// Submission failures are not immediately fatal: the reference may have
	// been accepted anyway, and the poll loop is the source of truth.
	if err := r.client.AddMagnet(ctx, token, magnet); err != nil {
		logger.RES.Warn("magnet submit failed, polling regardless",
			slog.String("event", "resolve.submit"),
			slog.String("err", err.Error()),
		)
	}

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if progress != nil {
			progress(attempt, r.attempts)
		}
		file, ok, err := r.findFile(ctx, token)
		switch {
		case err != nil && (apperr.IsKind(err, apperr.KindValidation) || ctx.Err() != nil):
			// A rejected token never recovers by polling again.
			return nil, err
		case err != nil:
			// A flaky listing consumes the attempt; the next poll decides.
			logger.RES.Warn("poll attempt failed",
				slog.String("event", "resolve.poll"),
				slog.Int("attempt", attempt),
				slog.String("err", err.Error()),
			)
		case ok:
			logger.RES.Info("reference resolved",
				slog.String("event", "resolve"),
				slog.String("status", "ok"),
				slog.Int("attempt", attempt),
			)
			return &Resolution{Link: file.URL, Name: file.Name, Token: token}, nil
		}

		if attempt == r.attempts {
			break
		}
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	logger.RES.Warn("poll budget exhausted",
		slog.String("event", "resolve"),
		slog.String("status", "fail"),
		slog.Int("attempts", r.attempts),
	)
	return nil, apperr.Timeout("conversion did not finish in time: storage might be full or the transfer stalled")
}

// findFile checks the root listing for a file, descending one level into
// sub-folders when the torrent materialised as a folder.
func (r *Resolver) findFile(ctx context.Context, token string) (File, bool, error) {
	listing, err := r.client.ListFolder(ctx, token, RootFolder)
	if err != nil {
		return File{}, false, err
	}
	if len(listing.Files) > 0 {
		return listing.Files[0], true, nil
	}
	for _, folder := range listing.Folders {
		sub, err := r.client.ListFolder(ctx, token, strconv.FormatInt(folder.ID, 10))
		if err != nil {
			return File{}, false, err
		}
		if len(sub.Files) > 0 {
			return sub.Files[0], true, nil
		}
	}
	return File{}, false, nil
}
