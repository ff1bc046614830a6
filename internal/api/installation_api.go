// Package api contains the HTTP handlers fronting the installation store and
// the notification dispatcher.
package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/xamcat/pushrelay/internal/metrics"
	"github.com/xamcat/pushrelay/pkg/hub"
	"github.com/xamcat/pushrelay/pkg/push"
)

// InstallationAPI serves installation upserts and deletes.
type InstallationAPI struct {
	Store  hub.InstallationStore
	Logger *slog.Logger
}

func NewInstallationAPI(store hub.InstallationStore, logger *slog.Logger) *InstallationAPI {
	return &InstallationAPI{
		Store:  store,
		Logger: logger,
	}
}

// UpsertInstallation handles PUT /api/notifications/installations.
// The body is a full DeviceInstallation; validation happens here so a
// malformed record never reaches the store.
func (api *InstallationAPI) UpsertInstallation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var inst push.DeviceInstallation
	if err := json.NewDecoder(r.Body).Decode(&inst); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid installation json")
		return
	}

	if err := inst.Validate(); err != nil {
		api.Logger.Warn("Rejected installation", "reason", err)
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	inst.Normalize()

	if err := api.Store.Upsert(ctx, inst); err != nil {
		metrics.Installations.WithLabelValues("upsert", "failure").Inc()
		api.Logger.Error("Installation upsert failed", "installation_id", inst.InstallationID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	metrics.Installations.WithLabelValues("upsert", "success").Inc()
	api.Logger.Info("Installation upserted",
		"installation_id", inst.InstallationID, "platform", inst.Platform, "tags", len(inst.Tags))

	w.WriteHeader(http.StatusOK)
}

// DeleteInstallation handles DELETE /api/notifications/installations/{installationId}.
// Deleting an unknown id still reports success; deregistration is idempotent.
func (api *InstallationAPI) DeleteInstallation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	installationID := r.PathValue("installationId")
	if installationID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing installation id")
		return
	}

	if err := api.Store.Delete(ctx, installationID); err != nil {
		metrics.Installations.WithLabelValues("delete", "failure").Inc()
		api.Logger.Error("Installation delete failed", "installation_id", installationID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	metrics.Installations.WithLabelValues("delete", "success").Inc()
	api.Logger.Info("Installation deleted", "installation_id", installationID)

	w.WriteHeader(http.StatusOK)
}
