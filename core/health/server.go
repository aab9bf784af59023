package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/m3rciful/magbot/core/logger"

	"log/slog"
)

// Server is a minimal liveness endpoint: every request gets 200 so an
// external uptime pinger can keep the bot from being idled by its host.
type Server struct {
	srv *http.Server
}

// New builds a liveness server bound to the given port.
func New(port int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("I am alive!"))
	})
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Warn("health server stopped",
				slog.String("component", "health"),
				slog.String("event", "serve"),
				slog.String("err", err.Error()),
			)
		}
	}()
	logger.L.Info("health server listening",
		slog.String("component", "health"),
		slog.String("event", "listen"),
		slog.String("listen", s.srv.Addr),
	)
}

// Stop shuts the server down, waiting up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
