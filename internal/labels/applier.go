// Package labels attaches provider labels to messages and threads.
package labels

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/cache"
	"github.com/spec-kit/sector-mail-desk/internal/mail"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
)

// Applier resolves label names to ids through a cache. The processed label
// is created on demand; resolution labels are only looked up.
type Applier struct {
	client  mail.Client
	cache   cache.LabelCache
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewApplier builds an applier. A nil cache falls back to process memory.
func NewApplier(client mail.Client, labelCache cache.LabelCache, metrics *observability.Metrics, logger *zap.Logger) *Applier {
	if labelCache == nil {
		labelCache = cache.NewMemoryLabelCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{client: client, cache: labelCache, metrics: metrics, logger: logger}
}

// Apply attaches an existing label to a thread. A label that does not exist
// is logged and skipped without error.
func (a *Applier) Apply(ctx context.Context, threadID, name string) error {
	id, ok, err := a.lookup(ctx, name, true)
	if err != nil {
		return fmt.Errorf("resolve label %q: %w", name, err)
	}
	if !ok {
		a.logger.Warn("resolution label not found, skipping",
			zap.String("label", name), zap.String("thread_id", threadID))
		a.metrics.LabelMissing(name)
		return nil
	}

	err = a.client.ApplyLabelToThread(ctx, threadID, id)
	if mail.IsNotFound(err) {
		a.evict(ctx, name)
		id, ok, err = a.lookup(ctx, name, false)
		if err != nil {
			return fmt.Errorf("resolve label %q: %w", name, err)
		}
		if !ok {
			a.logger.Warn("resolution label disappeared, skipping", zap.String("label", name))
			a.metrics.LabelMissing(name)
			return nil
		}
		err = a.client.ApplyLabelToThread(ctx, threadID, id)
	}
	if err != nil {
		return err
	}
	a.metrics.LabelApplied(name)
	return nil
}

// MarkProcessed attaches the processed label to a message, creating the
// label when absent.
func (a *Applier) MarkProcessed(ctx context.Context, messageID, name string) error {
	id, ok := a.cached(ctx, name)
	if !ok {
		var err error
		id, err = a.client.EnsureLabel(ctx, name)
		if err != nil {
			return fmt.Errorf("ensure label %q: %w", name, err)
		}
		a.store(ctx, name, id)
	}

	err := a.client.ApplyLabelToMessage(ctx, messageID, id)
	if mail.IsNotFound(err) {
		a.evict(ctx, name)
		if id, err = a.client.EnsureLabel(ctx, name); err != nil {
			return fmt.Errorf("ensure label %q: %w", name, err)
		}
		a.store(ctx, name, id)
		err = a.client.ApplyLabelToMessage(ctx, messageID, id)
	}
	if err != nil {
		return err
	}
	a.metrics.LabelApplied(name)
	return nil
}

func (a *Applier) lookup(ctx context.Context, name string, useCache bool) (string, bool, error) {
	if useCache {
		if id, ok := a.cached(ctx, name); ok {
			return id, true, nil
		}
	}
	id, ok, err := a.client.FindLabelID(ctx, name)
	if err != nil || !ok {
		return "", ok, err
	}
	a.store(ctx, name, id)
	return id, true, nil
}

func (a *Applier) cached(ctx context.Context, name string) (string, bool) {
	id, ok, err := a.cache.Get(ctx, name)
	if err != nil {
		a.logger.Warn("label cache read failed", zap.String("label", name), zap.Error(err))
		return "", false
	}
	return id, ok
}

func (a *Applier) store(ctx context.Context, name, id string) {
	if err := a.cache.Set(ctx, name, id); err != nil {
		a.logger.Warn("label cache write failed", zap.String("label", name), zap.Error(err))
	}
}

func (a *Applier) evict(ctx context.Context, name string) {
	if err := a.cache.Delete(ctx, name); err != nil {
		a.logger.Warn("label cache evict failed", zap.String("label", name), zap.Error(err))
	}
}
