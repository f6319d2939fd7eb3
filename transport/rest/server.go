package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rocketscienceinc/atrapa-milio/internal/event"
)

const shutdownWait = 5 * time.Second

type roomSource interface {
	Room(ctx context.Context, code string) (event.RoomView, error)
}

type Server struct {
	logger    *slog.Logger
	rooms     roomSource
	publicURL string
}

// New - creates the HTTP server; publicURL is the base of the join links encoded in QR codes.
func New(logger *slog.Logger, rooms roomSource, publicURL string) *Server {
	return &Server{
		logger:    logger.With("component", "rest"),
		rooms:     rooms,
		publicURL: publicURL,
	}
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", pingHandler)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /rooms/{code}/qr.png", that.qrHandler)

	return mux
}

// Start - starts HTTP server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown http server", "error", err)
		}
	}()

	that.logger.Info("http server listening", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
