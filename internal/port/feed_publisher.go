package port

import (
	"context"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// FeedPublisher receives change log entries observed by the poller.
type FeedPublisher interface {
	Publish(ctx context.Context, entries []domain.ChangeLogEntry) error
	Close() error
}
