package fcm_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xamcat/pushrelay/internal/platform/fcm"
)

// MockClient satisfies the MessagingClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.BatchResponse), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendPayload(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()
	payload := []byte(`{"data":{"message":"Hi","action":"open"}}`)

	t.Run("Happy Path - All Success", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, logger)
		tokens := []string{"token-1", "token-2"}

		mockResponse := &messaging.BatchResponse{
			SuccessCount: 2,
			FailureCount: 0,
			Responses: []*messaging.SendResponse{
				{Success: true, MessageID: "msg-1"},
				{Success: true, MessageID: "msg-2"},
			},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.MatchedBy(func(msg *messaging.MulticastMessage) bool {
			return len(msg.Tokens) == 2 && msg.Data["message"] == "Hi"
		})).Return(mockResponse, nil)

		dead, err := sender.SendPayload(ctx, tokens, payload)

		require.NoError(t, err)
		assert.Empty(t, dead)
		mockClient.AssertExpectations(t)
	})

	t.Run("Transport Failure (Retryable)", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, logger)

		// Whole batch fails (e.g. DNS error)
		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(nil, errors.New("network down"))

		_, err := sender.SendPayload(ctx, []string{"token-1"}, payload)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport failed")
	})

	t.Run("Partial failure fails the batch", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, logger)

		// A plain per-token error is neither invalid-argument nor
		// unregistered, so it counts as undelivered.
		mockResponse := &messaging.BatchResponse{
			SuccessCount: 1,
			FailureCount: 1,
			Responses: []*messaging.SendResponse{
				{Success: true, MessageID: "msg-1"},
				{Success: false, Error: errors.New("internal")},
			},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(mockResponse, nil)

		_, err := sender.SendPayload(ctx, []string{"token-1", "token-2"}, payload)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "undelivered")
	})

	t.Run("Batches above the multicast cap split into multiple calls", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, logger)

		tokens := make([]string, 501)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("token-%03d", i)
		}

		mockClient.On("SendEachForMulticast", ctx, mock.MatchedBy(func(msg *messaging.MulticastMessage) bool {
			return len(msg.Tokens) == 500
		})).Return(&messaging.BatchResponse{SuccessCount: 500}, nil).Once()
		mockClient.On("SendEachForMulticast", ctx, mock.MatchedBy(func(msg *messaging.MulticastMessage) bool {
			return len(msg.Tokens) == 1 && msg.Tokens[0] == "token-500"
		})).Return(&messaging.BatchResponse{SuccessCount: 1}, nil).Once()

		dead, err := sender.SendPayload(ctx, tokens, payload)

		require.NoError(t, err)
		assert.Empty(t, dead)
		mockClient.AssertExpectations(t)
	})

	t.Run("Sub-batch transport failure still attempts the rest", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, logger)

		tokens := make([]string, 501)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("token-%03d", i)
		}

		mockClient.On("SendEachForMulticast", ctx, mock.MatchedBy(func(msg *messaging.MulticastMessage) bool {
			return len(msg.Tokens) == 500
		})).Return(nil, errors.New("network down")).Once()
		mockClient.On("SendEachForMulticast", ctx, mock.MatchedBy(func(msg *messaging.MulticastMessage) bool {
			return len(msg.Tokens) == 1
		})).Return(&messaging.BatchResponse{SuccessCount: 1}, nil).Once()

		_, err := sender.SendPayload(ctx, tokens, payload)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport failed")
		mockClient.AssertExpectations(t)
	})

	t.Run("Malformed payload rejected before transport", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, logger)

		_, err := sender.SendPayload(ctx, []string{"token-1"}, []byte("not json"))

		require.Error(t, err)
		mockClient.AssertNotCalled(t, "SendEachForMulticast")
	})

	t.Run("Empty batch is a no-op", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, logger)

		dead, err := sender.SendPayload(ctx, nil, payload)

		require.NoError(t, err)
		assert.Empty(t, dead)
		mockClient.AssertNotCalled(t, "SendEachForMulticast")
	})

	// Note: we rely on the integration test to verify the specific parsing of
	// IsRegistrationTokenNotRegistered errors, as mocking the internal error
	// types of the Firebase SDK is brittle.
}
