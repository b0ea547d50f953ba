package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// StartServer creates the HTTP server and starts it in the background.
// Request contexts derive from a base context that is cancelled when
// shutdown begins, so open event streams end instead of holding it up.
func StartServer(handler http.Handler, addr string, log logrus.FieldLogger) *http.Server {
	baseCtx, cancelBase := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	go func() {
		log.WithField("addr", addr).Info("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	return srv
}

// GracefulShutdown stops the server, then releases the dependencies.
func GracefulShutdown(srv *http.Server, deps *Dependencies, timeout time.Duration, log logrus.FieldLogger) {
	log.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	deps.Close()

	log.Info("Server stopped")
}
