package order

import (
	"context"
	"fmt"

	"agency/internal/checkout"
	"agency/pkg/logger"
)

type Store interface {
	Insert(ctx context.Context, o checkout.Order) error
}

type EventPublisher interface {
	PublishConfirmed(ctx context.Context, ev ConfirmedEvent) error
}

// Recorder persists a confirmed order and then announces it. Publishing is
// best effort: the order row is the record of truth.
type Recorder struct {
	Store     Store
	Publisher EventPublisher // optional
}

func (r *Recorder) Record(ctx context.Context, o checkout.Order) error {
	if err := r.Store.Insert(ctx, o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	logger.Info(ctx, "order recorded", "reference", o.Reference, "items", len(o.Items), "total", o.Total.StringFixed(2))

	if r.Publisher == nil {
		return nil
	}
	if err := r.Publisher.PublishConfirmed(ctx, NewConfirmedEvent(o)); err != nil {
		logger.Warn(ctx, "order event publish failed", "reference", o.Reference, "err", err)
	}
	return nil
}
