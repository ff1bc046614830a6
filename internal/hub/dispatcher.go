// Package hub implements the notification fan-out: request validation,
// tag-group chunking within the provider batch limit, and the in-process
// template registry that routes rendered payloads to platform senders.
package hub

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/xamcat/pushrelay/internal/metrics"
	"github.com/xamcat/pushrelay/pkg/hub"
	"github.com/xamcat/pushrelay/pkg/push"
)

// MaxTagsPerCall is the provider's ceiling on tag expressions per send call.
const MaxTagsPerCall = 20

// Dispatcher fans one notification request out to its tag audience.
type Dispatcher struct {
	sender hub.TemplateSender
	logger *slog.Logger
}

func NewDispatcher(sender hub.TemplateSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logger: logger.With("component", "Dispatcher"),
	}
}

// Dispatch validates the request, selects the template parameter set, and
// sends to the tag audience. Tag sets above MaxTagsPerCall are partitioned
// into order-preserving chunks sent concurrently; the call succeeds only if
// every chunk succeeds. Chunks that were already delivered when another chunk
// fails are not retried or rolled back: push delivery has no undo, so partial
// delivery is a documented outcome of a failed dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, req push.NotificationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	params := req.TemplateParams()

	// Single call covers both broadcast (no tags) and small tag sets.
	if len(req.Tags) <= MaxTagsPerCall {
		if err := d.sender.SendTemplate(ctx, params, req.Tags); err != nil {
			metrics.DispatchChunks.WithLabelValues("failure").Inc()
			d.logger.Error("Template send failed", "tags", len(req.Tags), "err", err)
			return fmt.Errorf("template send failed: %w", err)
		}
		metrics.DispatchChunks.WithLabelValues("success").Inc()
		return nil
	}

	chunks := chunkTags(req.Tags, MaxTagsPerCall)
	d.logger.Info("Fanning out over tag chunks", "tags", len(req.Tags), "chunks", len(chunks))

	// Plain errgroup, deliberately without WithContext: a failed chunk must
	// not cancel its siblings mid-flight. Wait reports the first failure.
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := d.sender.SendTemplate(ctx, params, chunk); err != nil {
				metrics.DispatchChunks.WithLabelValues("failure").Inc()
				d.logger.Error("Tag chunk send failed",
					"chunk", i+1, "of", len(chunks), "size", len(chunk), "err", err)
				return fmt.Errorf("tag chunk %d/%d failed: %w", i+1, len(chunks), err)
			}
			metrics.DispatchChunks.WithLabelValues("success").Inc()
			return nil
		})
	}
	return g.Wait()
}

// chunkTags partitions tags into groups of at most size, preserving order.
func chunkTags(tags []string, size int) [][]string {
	chunks := make([][]string, 0, (len(tags)+size-1)/size)
	for start := 0; start < len(tags); start += size {
		end := min(start+size, len(tags))
		chunks = append(chunks, tags[start:end])
	}
	return chunks
}
