package setup

import (
	"context"
	"errors"
	"strings"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/session"
	"github.com/m3rciful/magbot/bot/vault"
	"github.com/m3rciful/magbot/core/logger"
	"github.com/m3rciful/magbot/core/telegram/state"
	"log/slog"
)

// Reply is what the dialogue wants said to the user after a transition.
type Reply struct {
	Text string
	// ShowProviders asks the transport layer to attach the provider menu.
	ShowProviders bool
	// Done marks a terminal transition: the dialogue is over.
	Done bool
}

// Machine advances the onboarding dialogue one input at a time. It owns no
// transport: handlers feed it inputs and render its replies.
type Machine struct {
	store      session.Store
	lifecycle  *session.Lifecycle
	validators map[session.Provider]vault.Validator
}

// NewMachine wires the dialogue engine. validators may omit providers that
// have no synchronous pre-check.
func NewMachine(store session.Store, lifecycle *session.Lifecycle, validators map[session.Provider]vault.Validator) *Machine {
	if validators == nil {
		validators = make(map[session.Provider]vault.Validator)
	}
	return &Machine{store: store, lifecycle: lifecycle, validators: validators}
}

// Start is the dialogue entry point, also reachable as a restart from any
// state. A configured user short-circuits: configuration is single-shot.
func (m *Machine) Start(_ context.Context, userID, chatID int64) (state.State, Reply) {
	if sess, ok := m.store.Get(userID); ok && sess.Configured {
		return state.StateIdle, Reply{
			Text: "You are already set up with " + string(sess.Provider) + ". Your session will be wiped automatically when it expires.",
			Done: true,
		}
	}
	_ = chatID
	return StateProviderSelect, Reply{
		Text:          "Where should I put what you download? Pick a storage:",
		ShowProviders: true,
	}
}

// ChooseProvider consumes the provider-menu pick. An unknown choice
// re-prompts without changing state. Choosing a provider discards any
// partially collected credentials from an earlier attempt. A configured
// user short-circuits the same way Start does: menu buttons outlive the
// dialogue, and a press on a stale menu must not wipe a live session.
func (m *Machine) ChooseProvider(ctx context.Context, userID, chatID int64, choice string) (state.State, Reply, error) {
	if sess, ok := m.store.Get(userID); ok && sess.Configured {
		return state.StateIdle, Reply{
			Text: "You are already set up with " + string(sess.Provider) + ". Your session will be wiped automatically when it expires.",
			Done: true,
		}, nil
	}

	provider, ok := parseProvider(strings.TrimSpace(choice))
	if !ok {
		return StateProviderSelect, Reply{
			Text:          "I don't know that one. Pick a storage from the menu:",
			ShowProviders: true,
		}, nil
	}

	if _, err := m.store.Update(userID, chatID, func(s *session.Session) {
		s.ResetProvider(provider)
	}); err != nil {
		return StateProviderSelect, Reply{}, err
	}

	flow := flowFor(provider)
	if len(flow) == 0 {
		// Nothing to collect: finalise right away.
		reply, err := m.finalize(ctx, userID, chatID, provider)
		return state.StateIdle, reply, err
	}

	logger.SES.Debug("provider chosen",
		slog.String("event", "setup.provider"),
		slog.Int64("user_id", userID),
		slog.String("provider", string(provider)),
	)
	return flow[0].state, Reply{Text: flow[0].prompt}, nil
}

// Advance consumes one free-text input for the given credential state. The
// last field of a flow triggers validation when the provider supports it; a
// rejected credential re-prompts the same field, never the whole flow.
func (m *Machine) Advance(ctx context.Context, userID, chatID int64, st state.State, input string) (state.State, Reply, error) {
	input = strings.TrimSpace(input)
	sess, ok := m.store.Get(userID)
	if !ok || sess.Provider == session.ProviderNone {
		// Dialogue state without a provider means the session was wiped
		// underneath us; restart cleanly.
		next, reply := m.Start(ctx, userID, chatID)
		return next, reply, nil
	}

	idx, ok := stepIndex(sess.Provider, st)
	if !ok {
		next, reply := m.Start(ctx, userID, chatID)
		return next, reply, nil
	}
	flow := flowFor(sess.Provider)
	current := flow[idx]

	if input == "" {
		return st, Reply{Text: "That looks empty. " + current.prompt}, nil
	}

	updated, err := m.store.Update(userID, chatID, func(s *session.Session) {
		s.SetCredential(current.field, input)
	})
	if err != nil {
		return st, Reply{}, err
	}

	if idx+1 < len(flow) {
		return flow[idx+1].state, Reply{Text: flow[idx+1].prompt}, nil
	}

	// Last field: validate when the provider supports a synchronous check.
	if validator, ok := m.validators[updated.Provider]; ok {
		if err := validator.Validate(ctx, updated.Credentials); err != nil {
			logger.SES.Info("credential rejected",
				slog.String("event", "setup.validate"),
				slog.String("status", "fail"),
				slog.Int64("user_id", userID),
				slog.String("provider", string(updated.Provider)),
				slog.String("err", err.Error()),
			)
			text := "That didn't work: " + userMessage(err) + "\n" + current.prompt
			return st, Reply{Text: text}, nil
		}
	}

	reply, err := m.finalize(ctx, userID, chatID, updated.Provider)
	return state.StateIdle, reply, err
}

// finalize marks the session configured and arms (or re-arms) the expiry.
func (m *Machine) finalize(_ context.Context, userID, chatID int64, provider session.Provider) (Reply, error) {
	if _, err := m.store.Update(userID, chatID, func(s *session.Session) {
		s.Configured = true
	}); err != nil {
		return Reply{}, err
	}
	m.lifecycle.Arm(userID, chatID)

	logger.SES.Info("setup complete",
		slog.String("event", "setup.done"),
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("provider", string(provider)),
	)
	text := "✅ Setup complete! Storage: " + string(provider) + "."
	if m.lifecycle.CanSchedule() {
		text += " Credentials are wiped automatically after " + m.lifecycle.TTL().String() + "."
	}
	return Reply{Text: text, Done: true}, nil
}

// Abort discards the in-progress dialogue and any partial credentials.
func (m *Machine) Abort(userID, chatID int64) (Reply, error) {
	if _, err := m.store.Update(userID, chatID, func(s *session.Session) {
		if !s.Configured {
			s.ResetProvider(session.ProviderNone)
		}
	}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Setup cancelled.", Done: true}, nil
}

// userMessage extracts the presentable part of an error. Validation causes
// are untrusted text to display, never to parse.
func userMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message()
	}
	return err.Error()
}
