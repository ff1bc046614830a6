// Package cache adds a Redis read-aside layer over an installation store.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xamcat/pushrelay/pkg/hub"
	"github.com/xamcat/pushrelay/pkg/push"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Incr increments an integer key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
}

// InstallationStore is the combined store+source contract the decorator wraps.
type InstallationStore interface {
	hub.InstallationStore
	hub.InstallationSource
}

// CachedStore decorates any InstallationStore with read-aside caching of tag
// lookups. Writes bump a generation counter instead of enumerating list keys:
// every cached lookup embeds the generation in its key, so one INCR
// invalidates all of them and the stale entries age out via TTL.
type CachedStore struct {
	realStore InstallationStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedStore(realStore InstallationStore, cache CacheClient, ttl time.Duration) *CachedStore {
	return &CachedStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

const generationKey = "pushrelay:installations:gen"

// --- READ PATH (Read-Aside) ---

func (s *CachedStore) ListByTags(ctx context.Context, tags []string) ([]push.DeviceInstallation, error) {
	key := s.listKey(ctx, tags)

	var cached []push.DeviceInstallation
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.ListByTags(ctx, tags)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization, not a transaction. If Redis is down we
	// just serve from the real store.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedStore) Upsert(ctx context.Context, installation push.DeviceInstallation) error {
	if err := s.realStore.Upsert(ctx, installation); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// Delete must invalidate even though the id alone tells us nothing about
// which tag lookups held the installation; bumping the generation clears
// them all so a deregistered device stops receiving immediately.
func (s *CachedStore) Delete(ctx context.Context, installationID string) error {
	if err := s.realStore.Delete(ctx, installationID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// --- Helpers ---

func (s *CachedStore) invalidate(ctx context.Context) error {
	_, err := s.cache.Incr(ctx, generationKey)
	return err
}

func (s *CachedStore) listKey(ctx context.Context, tags []string) string {
	var gen int64
	_ = s.cache.Get(ctx, generationKey, &gen)

	tagKey := "all"
	if len(tags) > 0 {
		sorted := append([]string(nil), tags...)
		sort.Strings(sorted)
		tagKey = strings.Join(sorted, ",")
	}
	return fmt.Sprintf("pushrelay:installations:%d:%s", gen, tagKey)
}
