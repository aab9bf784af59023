package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/seedr"
	"github.com/m3rciful/magbot/bot/session"
)

func TestResolveFailureText(t *testing.T) {
	assert.Contains(t, resolveFailureText(apperr.Timeout("x")), "stalled")
	assert.Contains(t, resolveFailureText(apperr.Validation("bad token", nil)), "rejected")
	assert.Equal(t, apperr.NotConfigured().Message(), resolveFailureText(apperr.NotConfigured()))
	assert.Contains(t, resolveFailureText(apperr.Transport("down", nil)), "unreachable")
	assert.Contains(t, resolveFailureText(context.Canceled), "cancelled")
}

func TestConversionCredentialsSelection(t *testing.T) {
	h := &handlers{Deps: Deps{
		ServiceAccount: seedr.Credentials{Email: "svc@example.org", Password: "pw"},
	}}

	own := session.NewSession(1, 100)
	own.Provider = session.ProviderSeedrLocal
	own.SetCredential(session.FieldEmail, "me@example.org")
	own.SetCredential(session.FieldPassword, "secret")

	creds, ok := h.conversionCredentials(own)
	assert.True(t, ok)
	assert.Equal(t, "me@example.org", creds.Email)

	other := session.NewSession(2, 200)
	other.Provider = session.ProviderDropbox
	creds, ok = h.conversionCredentials(other)
	assert.True(t, ok)
	assert.Equal(t, "svc@example.org", creds.Email)

	// Seedr provider with no collected credentials cannot convert.
	bare := session.NewSession(3, 300)
	bare.Provider = session.ProviderSeedrCloud
	_, ok = h.conversionCredentials(bare)
	assert.False(t, ok)

	// Non-seedr provider with no service account configured cannot convert.
	h2 := &handlers{}
	_, ok = h2.conversionCredentials(other)
	assert.False(t, ok)
}

func TestResolveBudgetCoversConfiguredSchedule(t *testing.T) {
	// The deadline follows the configured interval, not the default: a
	// slow schedule must still fit every attempt.
	for _, tc := range []struct {
		attempts int
		interval time.Duration
	}{
		{8, 2 * time.Second},
		{8, 20 * time.Second},
		{20, 10 * time.Second},
	} {
		need := time.Duration(tc.attempts) * tc.interval
		got := resolveBudget(tc.attempts, tc.interval)
		assert.Greater(t, got, need,
			"budget %v cannot cover %d×%v", got, tc.attempts, tc.interval)
	}
}

func TestPickKey(t *testing.T) {
	assert.Equal(t, "search-result-3", pickKey(3))
}
