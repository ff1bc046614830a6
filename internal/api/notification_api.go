package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/xamcat/pushrelay/pkg/push"
)

// Dispatcher is the fan-out entry point the notification handler delegates to.
type Dispatcher interface {
	Dispatch(ctx context.Context, req push.NotificationRequest) error
}

// NotificationAPI serves notification send requests.
type NotificationAPI struct {
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

func NewNotificationAPI(dispatcher Dispatcher, logger *slog.Logger) *NotificationAPI {
	return &NotificationAPI{
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// RequestNotification handles POST /api/notifications. Validation failures
// come back as 400; delivery failures as 500, since by then some chunks may
// already have been delivered and the caller needs to know the fan-out was
// incomplete.
func (api *NotificationAPI) RequestNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req push.NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid notification json")
		return
	}

	if err := api.Dispatcher.Dispatch(ctx, req); err != nil {
		if errors.Is(err, push.ErrInvalid) {
			api.Logger.Warn("Rejected notification request", "reason", err)
			response.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.Logger.Error("Notification dispatch failed", "tags", len(req.Tags), "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "delivery failed")
		return
	}

	api.Logger.Info("Notification dispatched", "tags", len(req.Tags), "silent", req.Silent)
	w.WriteHeader(http.StatusOK)
}
