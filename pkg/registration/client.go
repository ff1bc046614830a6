// Package registration is the device-side client for the relay: it builds a
// DeviceInstallation from platform facts, keeps the backend's record in sync
// across token refreshes, and remembers the last registered tag set locally.
package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xamcat/pushrelay/pkg/push"
)

const installationsPath = "/api/notifications/installations"

// Client drives the registration lifecycle against the relay backend.
//
// A single mutex serializes Register, Deregister, and Refresh: a manual
// registration and a token-refresh callback arriving together collapse into
// sequential upserts instead of racing with different tag sets.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	device     DeviceProvider
	cache      TagCache
	logger     *slog.Logger

	mu sync.Mutex
}

// ClientConfig collects the collaborators for NewClient. HTTPClient is
// optional; the default carries a 30s timeout so a dead backend reports
// failure instead of hanging the caller.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Device     DeviceProvider
	Cache      TagCache
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		device:     cfg.Device,
		cache:      cfg.Cache,
		logger:     logger.With("component", "RegistrationClient"),
	}
}

// Register builds an installation from the device's current id/token/platform,
// PUTs it to the backend, and on success caches the normalized tag set. A
// failed call leaves the cached tags untouched so a later refresh replays the
// last acknowledged state.
func (c *Client) Register(ctx context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(ctx, tags)
}

// Deregister DELETEs this device's installation and then clears the cached
// tags. Deregistering an already-unregistered device succeeds.
func (c *Client) Deregister(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deviceID, err := c.device.DeviceID()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	if err := c.send(ctx, http.MethodDelete, installationsPath+"/"+deviceID, nil); err != nil {
		return err
	}

	if err := c.cache.Clear(); err != nil {
		c.logger.Warn("Deregistered but failed to clear cached tags", "err", err)
	}
	c.logger.Info("Device deregistered", "installation_id", deviceID)
	return nil
}

// Refresh replays the last successful registration with the device's current
// token. If no tags are cached the device was never registered and Refresh
// does nothing, issuing zero HTTP calls.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tags, err := c.cache.Load()
	if err != nil {
		return err
	}
	if tags == nil {
		c.logger.Debug("No cached tags; nothing to refresh")
		return nil
	}

	return c.register(ctx, tags)
}

func (c *Client) register(ctx context.Context, tags []string) error {
	installation, err := c.buildInstallation(tags)
	if err != nil {
		return err
	}

	body, err := json.Marshal(installation)
	if err != nil {
		return err
	}
	if err := c.send(ctx, http.MethodPut, installationsPath, body); err != nil {
		return err
	}

	// A zero-tag registration must stay distinguishable from an unregistered
	// device, so the cached set is never nil.
	cachedTags := append([]string{}, installation.Tags...)
	if err := c.cache.Store(cachedTags); err != nil {
		return fmt.Errorf("registered but failed to cache tags: %w", err)
	}
	c.logger.Info("Device registered",
		"installation_id", installation.InstallationID, "tags", len(installation.Tags))
	return nil
}

func (c *Client) buildInstallation(tags []string) (*push.DeviceInstallation, error) {
	deviceID, err := c.device.DeviceID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	token, err := c.device.DeviceToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}
	if token == "" {
		return nil, ErrTokenUnavailable
	}

	platform := c.device.Platform()
	installation := &push.DeviceInstallation{
		InstallationID: deviceID,
		Platform:       platform,
		PushChannel:    token,
		Tags:           push.NormalizeTags(tags),
		Templates:      push.DefaultTemplates(platform),
	}
	if err := installation.Validate(); err != nil {
		return nil, err
	}
	return installation, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	return nil
}
