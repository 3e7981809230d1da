package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP routing tree: the WebSocket endpoint, the
// command API, and screenshot serving. The WebSocket route sits outside the
// timeout middleware since its lifetime is the connection's.
func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON(api.logger))
	r.Use(RequestLogger(api.logger))

	r.Get("/healthz", api.health)
	r.Get("/ws", api.handleWS)
	r.Get("/live-screenshots/{name}", api.serveScreenshot)

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(middleware.Timeout(20 * time.Second))

		apiRouter.Get("/devices", api.listDevices)
		apiRouter.Post("/device/command", api.sendCommand)
		apiRouter.Get("/device/live-status", api.liveStatus)
		apiRouter.Get("/device/emergency-pin/{deviceId}", api.getEmergencyPin)
		apiRouter.Post("/device/emergency-pin/{deviceId}", api.setEmergencyPin)
	})

	return r
}

// RunServer starts and gracefully stops the HTTP server with context
// cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
