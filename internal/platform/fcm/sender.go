// Package fcm provides the client for Firebase Cloud Messaging.
package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Sender delivers rendered template payloads via FCM multicast.
type Sender struct {
	client MessagingClient
	logger *slog.Logger
}

// NewSender accepts the concrete client but stores it as the interface.
// *messaging.Client satisfies MessagingClient directly.
func NewSender(client MessagingClient, logger *slog.Logger) *Sender {
	return &Sender{
		client: client,
		logger: logger.With("component", "FCMSender"),
	}
}

// fcmEnvelope is the shape of a rendered FCM template body: the stock
// templates carry either a data map, a notification block, or both.
type fcmEnvelope struct {
	Notification *messaging.Notification `json:"notification"`
	Data         map[string]string       `json:"data"`
}

// maxTokensPerMulticast is FCM's ceiling on tokens per SendEachForMulticast
// call; larger batches are rejected outright.
const maxTokensPerMulticast = 500

// SendPayload decodes the rendered template body and multicasts it to the
// channel batch, splitting batches above the provider's per-call token cap.
// Channels FCM reports as unregistered or invalid are returned for cleanup;
// transport failures fail the call, after every sub-batch has been attempted.
func (s *Sender) SendPayload(ctx context.Context, channels []string, payload []byte) ([]string, error) {
	if len(channels) == 0 {
		return nil, nil
	}

	var envelope fcmEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("fcm template body is not valid JSON: %w", err)
	}

	var deadChannels []string
	var errs []error
	successCount := 0
	retryableErrors := 0

	for start := 0; start < len(channels); start += maxTokensPerMulticast {
		end := min(start+maxTokensPerMulticast, len(channels))
		batch := channels[start:end]

		msg := &messaging.MulticastMessage{
			Tokens:       batch,
			Data:         envelope.Data,
			Notification: envelope.Notification,
		}

		br, err := s.client.SendEachForMulticast(ctx, msg)
		if err != nil {
			if messaging.IsInvalidArgument(err) {
				// The payload itself was rejected as malformed. Every
				// sub-batch carries the same payload, so retrying the rest
				// cannot succeed.
				return deadChannels, fmt.Errorf("fcm rejected batch as invalid argument: %w", err)
			}
			errs = append(errs, fmt.Errorf("fcm transport failed: %w", err))
			continue
		}

		successCount += br.SuccessCount
		if br.FailureCount > 0 {
			for idx, resp := range br.Responses {
				if resp.Success {
					continue
				}
				if messaging.IsInvalidArgument(resp.Error) || messaging.IsRegistrationTokenNotRegistered(resp.Error) {
					deadChannels = append(deadChannels, batch[idx])
					continue
				}
				retryableErrors++
			}
		}
	}

	s.logger.Debug("FCM batch complete",
		"success", successCount, "dead", len(deadChannels), "failed", retryableErrors)

	if retryableErrors > 0 {
		errs = append(errs, fmt.Errorf("fcm batch had %d undelivered tokens", retryableErrors))
	}
	return deadChannels, errors.Join(errs...)
}
