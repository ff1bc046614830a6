package hub_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xamcat/pushrelay/internal/hub"
	"github.com/xamcat/pushrelay/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSender captures SendTemplate calls; chunked sends arrive
// concurrently, so access is mutex-guarded.
type recordingSender struct {
	mu     sync.Mutex
	calls  [][]string
	params []map[string]string
	// failOn makes the call carrying the given first tag fail.
	failOn string
}

func (s *recordingSender) SendTemplate(_ context.Context, params map[string]string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, tags)
	s.params = append(s.params, params)
	if s.failOn != "" && len(tags) > 0 && tags[0] == s.failOn {
		return errors.New("provider unavailable")
	}
	return nil
}

func (s *recordingSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func makeTags(n int) []string {
	tags := make([]string, n)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag-%02d", i)
	}
	return tags
}

func TestDispatch(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()

	t.Run("Broadcast - empty tags issue one call", func(t *testing.T) {
		sender := &recordingSender{}
		d := hub.NewDispatcher(sender, logger)

		req := push.NotificationRequest{Text: "Hi", Action: "open"}
		require.NoError(t, d.Dispatch(ctx, req))

		require.Equal(t, 1, sender.callCount())
		assert.Empty(t, sender.calls[0])
	})

	t.Run("Small tag set - single call with all tags", func(t *testing.T) {
		sender := &recordingSender{}
		d := hub.NewDispatcher(sender, logger)

		req := push.NotificationRequest{Text: "Hi", Action: "open", Tags: makeTags(20)}
		require.NoError(t, d.Dispatch(ctx, req))

		require.Equal(t, 1, sender.callCount())
		assert.Len(t, sender.calls[0], 20)
	})

	t.Run("Chunking law - 45 tags split 20/20/5", func(t *testing.T) {
		sender := &recordingSender{}
		d := hub.NewDispatcher(sender, logger)

		req := push.NotificationRequest{Text: "Hi", Action: "open", Tags: makeTags(45)}
		require.NoError(t, d.Dispatch(ctx, req))

		require.Equal(t, 3, sender.callCount())
		sizes := []int{len(sender.calls[0]), len(sender.calls[1]), len(sender.calls[2])}
		sort.Ints(sizes)
		assert.Equal(t, []int{5, 20, 20}, sizes)

		// Order within the partition is preserved: reassembling the chunks
		// by their first tag yields the original sequence.
		var all []string
		sort.Slice(sender.calls, func(i, j int) bool {
			return sender.calls[i][0] < sender.calls[j][0]
		})
		for _, chunk := range sender.calls {
			all = append(all, chunk...)
		}
		assert.Equal(t, makeTags(45), all)
	})

	t.Run("Partial failure - all chunks sent, overall failure", func(t *testing.T) {
		sender := &recordingSender{failOn: "tag-20"} // second chunk starts here
		d := hub.NewDispatcher(sender, logger)

		req := push.NotificationRequest{Text: "Hi", Action: "open", Tags: makeTags(45)}
		err := d.Dispatch(ctx, req)

		require.Error(t, err)
		// The failing chunk did not stop its siblings.
		assert.Equal(t, 3, sender.callCount())
	})

	t.Run("Invalid request - rejected before any provider call", func(t *testing.T) {
		sender := &recordingSender{}
		d := hub.NewDispatcher(sender, logger)

		req := push.NotificationRequest{Silent: false, Text: "", Action: "x"}
		err := d.Dispatch(ctx, req)

		require.Error(t, err)
		assert.True(t, errors.Is(err, push.ErrInvalid))
		assert.Equal(t, 0, sender.callCount())
	})

	t.Run("Parameter set follows silent flag", func(t *testing.T) {
		sender := &recordingSender{}
		d := hub.NewDispatcher(sender, logger)

		require.NoError(t, d.Dispatch(ctx, push.NotificationRequest{Silent: true, Action: "refresh"}))
		assert.Equal(t, map[string]string{"silentMessage": "", "silentAction": "refresh"}, sender.params[0])

		require.NoError(t, d.Dispatch(ctx, push.NotificationRequest{Text: "Hi", Action: "open"}))
		assert.Equal(t, map[string]string{"alertMessage": "Hi", "alertAction": "open"}, sender.params[1])
	})
}
