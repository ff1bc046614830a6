// Package hub contains the public contracts between the relay's HTTP surface,
// the installation registry, and the notification fan-out.
package hub

import (
	"context"

	"github.com/xamcat/pushrelay/pkg/push"
)

// InstallationStore is the durable registry of device installations.
type InstallationStore interface {
	// Upsert creates or fully replaces the record keyed by its installation
	// id. Calling it repeatedly with the same payload is a no-op.
	Upsert(ctx context.Context, installation push.DeviceInstallation) error

	// Delete removes the record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, installationID string) error
}

// InstallationSource resolves a tag group to the installations it targets.
type InstallationSource interface {
	// ListByTags returns every installation matching at least one of the
	// given tags (OR semantics). An empty tag list returns all installations.
	ListByTags(ctx context.Context, tags []string) ([]push.DeviceInstallation, error)
}

// TemplateSender is the provider boundary: one template notification sent to
// one tag group. The sender substitutes params into each matching
// installation's stored templates; the caller never renders payloads itself.
// An empty tag list requests a broadcast.
type TemplateSender interface {
	SendTemplate(ctx context.Context, params map[string]string, tags []string) error
}

// PayloadSender delivers an already-rendered provider payload to a batch of
// push channels on one platform.
type PayloadSender interface {
	// SendPayload returns the channels the provider reported as dead so the
	// caller can prune their installations, plus any delivery error.
	SendPayload(ctx context.Context, channels []string, payload []byte) ([]string, error)
}
