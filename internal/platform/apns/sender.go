// Package apns provides the client for the Apple Push Notification Service.
package apns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/token"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Sender delivers rendered template payloads over the APNs HTTP/2 API.
type Sender struct {
	client APNSClient
	topic  string // the app bundle id
	logger *slog.Logger
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
}

// NewSender creates a configured APNs sender. It parses the P8 key
// immediately to fail fast on startup if credentials are bad.
func NewSender(cfg Config, logger *slog.Logger) (*Sender, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	return &Sender{
		client: apns2.NewTokenClient(tokenSource),
		topic:  cfg.BundleID,
		logger: logger.With("component", "APNSSender"),
	}, nil
}

// SendPayload pushes the rendered payload to each channel. The APNs HTTP/2
// API is unary, so channels are sent one request at a time; the Dispatcher's
// chunking above us already bounds how many arrive per call.
//
// Tokens APNs reports as dead are returned for cleanup. Transport failures
// make the whole call fail so the dispatch is reported as a delivery error.
func (s *Sender) SendPayload(ctx context.Context, channels []string, payload []byte) ([]string, error) {
	if len(channels) == 0 {
		return nil, nil
	}

	var deadChannels []string
	successCount := 0
	transportErrors := 0

	for _, channel := range channels {
		if err := ctx.Err(); err != nil {
			return deadChannels, err
		}

		res, err := s.client.Push(&apns2.Notification{
			DeviceToken: channel,
			Topic:       s.topic,
			Payload:     payload,
		})
		if err != nil {
			s.logger.Error("APNs transport failed", "token", channel, "err", err)
			transportErrors++
			continue
		}

		if res.Sent() {
			successCount++
			continue
		}

		switch res.Reason {
		case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
			// Token is dead. Add to cleanup list.
			deadChannels = append(deadChannels, channel)
		default:
			// Other rejections (TopicDisallowed, PayloadEmpty) are logged but
			// not treated as dead tokens: the token may be fine and our
			// configuration wrong.
			s.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
			transportErrors++
		}
	}

	s.logger.Debug("APNs batch complete",
		"success", successCount, "dead", len(deadChannels), "failed", transportErrors)

	if transportErrors > 0 {
		return deadChannels, fmt.Errorf("apns delivery failed for %d of %d tokens", transportErrors, len(channels))
	}
	return deadChannels, nil
}
