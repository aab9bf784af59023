package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/magbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

type fakeFSM struct {
	inProgress bool
	handled    int
}

func (f *fakeFSM) InProgress(int64) bool { return f.inProgress }

func (f *fakeFSM) ManagerHandler(tele.Context) error {
	f.handled++
	return nil
}

// stubContext implements just enough of tele.Context for route handlers;
// any method outside that set panics via the embedded nil interface.
type stubContext struct {
	tele.Context
	text  string
	store map[string]any
}

func newStubContext(text string) *stubContext {
	return &stubContext{text: text, store: make(map[string]any)}
}

func (s *stubContext) Update() tele.Update    { return tele.Update{ID: 1} }
func (s *stubContext) Sender() *tele.User     { return &tele.User{ID: 7} }
func (s *stubContext) Chat() *tele.Chat       { return &tele.Chat{ID: 7} }
func (s *stubContext) Message() *tele.Message { return &tele.Message{Text: s.text} }
func (s *stubContext) Text() string           { return s.text }
func (s *stubContext) Set(k string, v any)    { s.store[k] = v }
func (s *stubContext) Get(k string) any       { return s.store[k] }

func routeFor(t *testing.T, routes []tg.Route, endpoint string) tg.Route {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r
		}
	}
	t.Fatalf("no route for endpoint %q", endpoint)
	return tg.Route{}
}

func TestTextRoutesCoverMediaEndpoints(t *testing.T) {
	routes := TextRoutes(&fakeFSM{}, nil, TextOptions{})
	routeFor(t, routes, tele.OnText)
	routeFor(t, routes, tele.OnDocument)
	routeFor(t, routes, tele.OnMedia)
}

func TestMediaDispatchesToDialogueInProgress(t *testing.T) {
	fsm := &fakeFSM{inProgress: true}
	routes := TextRoutes(fsm, nil, TextOptions{})

	// A forwarded channel photo carries no text; the dialogue must still
	// receive the update.
	media := routeFor(t, routes, tele.OnMedia)
	require.NoError(t, media.Handler(newStubContext("")))
	assert.Equal(t, 1, fsm.handled)

	doc := routeFor(t, routes, tele.OnDocument)
	require.NoError(t, doc.Handler(newStubContext("")))
	assert.Equal(t, 2, fsm.handled)
}

func TestMediaOutsideDialogueFallsBack(t *testing.T) {
	fsm := &fakeFSM{inProgress: false}
	fallbacks := 0
	routes := TextRoutes(fsm, nil, TextOptions{
		UnknownDocument: func(tele.Context) error { fallbacks++; return nil },
	})

	media := routeFor(t, routes, tele.OnMedia)
	require.NoError(t, media.Handler(newStubContext("")))
	assert.Zero(t, fsm.handled)
	assert.Equal(t, 1, fallbacks)
}
