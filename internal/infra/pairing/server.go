// internal/infra/pairing/server.go
package pairing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Server exposes the pairing artifact over HTTP so a phone can scan it.
// It runs on its own goroutine and has read-only access to shared state.
type Server struct {
	srv *http.Server
	log *logrus.Entry
}

func NewServer(addr string, board *Board, log *logrus.Entry) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/pairing.png", handlePairingImage(board))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

func handlePairingImage(board *Board) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		png, updatedAt, ok := board.Current()
		if !ok {
			http.Error(w, "no pairing code available", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
		w.Write(png)
	}
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.log.Infof("Pairing status server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Pairing status server stopped unexpectedly.")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
