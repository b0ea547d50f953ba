package main

import (
	"net/http"

	"github.com/sirupsen/logrus"

	httphandlers "gastos/internal/interfaces/http"
	"gastos/internal/shared/config"
	"gastos/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", httphandlers.HandleHealth)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)
	h := deps.ExpenseHandler

	mux.Handle("GET /api/expenses/{$}", authMiddleware(http.HandlerFunc(h.HandleList)))
	mux.Handle("POST /api/expenses/{$}", authMiddleware(http.HandlerFunc(h.HandleAdd)))
	mux.Handle("POST /api/expenses/refresh", authMiddleware(http.HandlerFunc(h.HandleRefresh)))
	mux.Handle("GET /api/expenses/summary", authMiddleware(http.HandlerFunc(h.HandleSummary)))
	mux.Handle("GET /api/expenses/stream", authMiddleware(http.HandlerFunc(h.HandleStream)))
	mux.Handle("DELETE /api/expenses/{id}", authMiddleware(http.HandlerFunc(h.HandleDelete)))
	mux.Handle("POST /api/signout", authMiddleware(http.HandlerFunc(h.HandleSignOut)))

	mux.Handle("GET /api/profile", authMiddleware(http.HandlerFunc(deps.ProfileHandler.HandleGet)))
	mux.Handle("PUT /api/profile", authMiddleware(http.HandlerFunc(deps.ProfileHandler.HandlePut)))

	// Apply global middleware
	handler := middleware.Tracing(middleware.SecurityHeaders(mux))
	handler = middleware.Logging(log)(middleware.CORS(cfg.Server.AllowedOrigins)(handler))

	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}

	return handler
}
