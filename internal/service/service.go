package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// SearchIndex is the optional full text index of the catalog.
type SearchIndex interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, from, size int) (int64, []uuid.UUID, error)
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}

// publish sends a notification event. Failures are logged and dropped.
func publish(ctx context.Context, p events.Publisher, topic, key, eventType string, at time.Time, data any) {
	if p == nil {
		return
	}
	err := p.Publish(ctx, topic, key, events.Event{Type: eventType, OccurredAt: at, Data: data})
	if err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", topic, "event_type", eventType, "error", err)
	}
}
