package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// LogPublisher only logs what the poller observed.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, entries []domain.ChangeLogEntry) error {
	for _, e := range entries {
		p.logger.Debug("change observed",
			zap.Int64("position", e.Position),
			zap.Stringer("operation_id", e.Operation.OperationID),
			zap.String("type", string(e.Operation.Type)),
			zap.Int64("sku", e.Operation.Sku),
			zap.Int("delta", e.Operation.Delta))
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
