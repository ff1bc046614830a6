// Package pushrelay assembles the relay service: HTTP surface, auth,
// metrics, and the notification dispatcher.
package pushrelay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/xamcat/pushrelay/internal/api"
	"github.com/xamcat/pushrelay/internal/metrics"
	"github.com/xamcat/pushrelay/pkg/hub"
	"github.com/xamcat/pushrelay/pushrelay/config"
)

type Wrapper struct {
	*microservice.BaseServer
	logger *slog.Logger
}

// New assembles the service around an installation store and a dispatcher.
func New(
	cfg *config.Config,
	store hub.InstallationStore,
	dispatcher api.Dispatcher,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. APIs
	installationAPI := api.NewInstallationAPI(store, logger)
	notificationAPI := api.NewNotificationAPI(dispatcher, logger)

	// 3. Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)
	authMiddleware := api.NewAPIKeyMiddleware(cfg.APIKey, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(metrics.Middleware(handlerFunc))))
	}

	handle("PUT /api/notifications/installations", installationAPI.UpsertInstallation)
	handle("DELETE /api/notifications/installations/{installationId}", installationAPI.DeleteInstallation)
	handle("POST /api/notifications", notificationAPI.RequestNotification)

	mux.Handle("GET /metrics", promhttp.Handler())

	// CORS preflight for the API namespace
	mux.Handle("OPTIONS /api/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer: baseServer,
		logger:     logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service...")
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	w.logger.Info("Service shutdown complete.")
	return nil
}
