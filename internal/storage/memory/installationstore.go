// Package memory provides an in-process InstallationStore. It backs unit
// tests and single-node deployments that do not need durable storage.
package memory

import (
	"context"
	"sync"

	"github.com/xamcat/pushrelay/pkg/push"
)

// Store keeps installations in a map keyed by installation id.
type Store struct {
	mu            sync.RWMutex
	installations map[string]push.DeviceInstallation
}

func NewStore() *Store {
	return &Store{installations: make(map[string]push.DeviceInstallation)}
}

// Upsert fully replaces the record for the installation's id.
func (s *Store) Upsert(_ context.Context, installation push.DeviceInstallation) error {
	installation.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installations[installation.InstallationID] = installation
	return nil
}

// Delete removes the record. Unknown ids are a no-op.
func (s *Store) Delete(_ context.Context, installationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.installations, installationID)
	return nil
}

// ListByTags returns installations matching any of the tags; an empty tag
// list returns every installation.
func (s *Store) ListByTags(_ context.Context, tags []string) ([]push.DeviceInstallation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		wanted[t] = struct{}{}
	}

	out := make([]push.DeviceInstallation, 0, len(s.installations))
	for _, inst := range s.installations {
		if len(wanted) == 0 || matchesAny(inst.Tags, wanted) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func matchesAny(tags []string, wanted map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := wanted[t]; ok {
			return true
		}
	}
	return false
}
