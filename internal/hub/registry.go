package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xamcat/pushrelay/pkg/hub"
	"github.com/xamcat/pushrelay/pkg/push"
)

// Registry is an in-process TemplateSender. It resolves a tag group to the
// stored installations, renders each installation's templates with the
// supplied parameters, and hands the rendered payloads to per-platform
// senders. Identical payloads on the same platform are batched into one
// provider call.
type Registry struct {
	source  hub.InstallationSource
	senders map[push.Platform]hub.PayloadSender
	store   hub.InstallationStore // optional: prunes installations with dead channels
	logger  *slog.Logger
}

func NewRegistry(
	source hub.InstallationSource,
	senders map[push.Platform]hub.PayloadSender,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		source:  source,
		senders: senders,
		logger:  logger.With("component", "Registry"),
	}
}

// EnableCleanup makes the registry delete installations whose push channels
// the provider reports as dead.
func (r *Registry) EnableCleanup(store hub.InstallationStore) {
	r.store = store
}

type payloadBatch struct {
	platform push.Platform
	payload  string
	channels []string
}

// SendTemplate implements hub.TemplateSender. An empty tag list broadcasts to
// every installation.
func (r *Registry) SendTemplate(ctx context.Context, params map[string]string, tags []string) error {
	installations, err := r.source.ListByTags(ctx, tags)
	if err != nil {
		return fmt.Errorf("installation lookup failed: %w", err)
	}
	if len(installations) == 0 {
		r.logger.Info("No installations match tag group; nothing to send", "tags", len(tags))
		return nil
	}

	batches, channelOwner := r.renderBatches(installations, params)

	var errs []error
	for _, batch := range batches {
		sender, ok := r.senders[batch.platform]
		if !ok {
			r.logger.Warn("No sender configured for platform; skipping",
				"platform", batch.platform, "channels", len(batch.channels))
			continue
		}

		dead, err := sender.SendPayload(ctx, batch.channels, []byte(batch.payload))
		r.cleanupDeadChannels(ctx, dead, channelOwner)
		if err != nil {
			r.logger.Error("Payload delivery failed",
				"platform", batch.platform, "channels", len(batch.channels), "err", err)
			errs = append(errs, fmt.Errorf("%s delivery: %w", batch.platform, err))
		}
	}
	return errors.Join(errs...)
}

// renderBatches renders every template of every installation and groups the
// results by platform and rendered body, so installations sharing the stock
// templates collapse into a single multicast call. It also returns the
// channel -> installation id mapping used for dead-channel cleanup.
func (r *Registry) renderBatches(
	installations []push.DeviceInstallation,
	params map[string]string,
) ([]*payloadBatch, map[string]string) {
	batches := make([]*payloadBatch, 0, len(installations))
	index := make(map[string]*payloadBatch)
	channelOwner := make(map[string]string, len(installations))

	for _, inst := range installations {
		channelOwner[inst.PushChannel] = inst.InstallationID
		for _, tpl := range inst.Templates {
			if !push.TemplateUsesParams(tpl.Body, params) {
				continue
			}
			rendered := push.RenderTemplate(tpl.Body, params)
			key := string(inst.Platform) + "\x00" + rendered
			batch, ok := index[key]
			if !ok {
				batch = &payloadBatch{platform: inst.Platform, payload: rendered}
				index[key] = batch
				batches = append(batches, batch)
			}
			batch.channels = append(batch.channels, inst.PushChannel)
		}
	}
	return batches, channelOwner
}

func (r *Registry) cleanupDeadChannels(ctx context.Context, dead []string, channelOwner map[string]string) {
	if r.store == nil || len(dead) == 0 {
		return
	}
	r.logger.Info("Cleaning up installations with dead channels", "count", len(dead))
	for _, channel := range dead {
		id, ok := channelOwner[channel]
		if !ok {
			continue
		}
		if err := r.store.Delete(ctx, id); err != nil {
			r.logger.Warn("Failed to delete installation for dead channel",
				"installation_id", id, "err", err)
		}
	}
}
