// Package app hosts the HTTP side of a worker process: health probes,
// Prometheus metrics and the inspection API.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/contracts"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

var probePaths = []string{"/health", "/ready", "/metrics"}

type Application struct {
	cfg    *config.Config
	server *http.Server
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp mounts every handler on one router behind the recovery, logging and
// timeout middleware.
func (a *Application) SetApp(handlers ...contracts.Handler) {
	router := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(router)
	}

	var handler http.Handler = router
	handler = middleware.RequestTimeout(a.cfg.ReadTimeout)(handler)
	handler = middleware.RequestLogging(a.cfg.Log, probePaths...)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      handler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}
	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Start listens in the background. The returned channel receives the error
// the server stopped with, if any, and is closed afterwards.
func (a *Application) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return nil, err
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		a.cfg.Log.Info("Starting HTTP server", "address", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	return errs, nil
}

func (a *Application) Shutdown(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
			return
		}
	}
	a.cfg.Log.Info("HTTP server stopped")
}
