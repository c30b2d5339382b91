package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/oplog"
	"github.com/rl1809/inventory-sync/internal/port"
)

const oplogWindow = oplog.DefaultPageSize

// FeedPoller re-reads the change log on a timer and hands new entries to a
// publisher. It never mutates article or log state.
type FeedPoller struct {
	log       *oplog.Log
	publisher port.FeedPublisher
	logger    *zap.Logger
	interval  time.Duration
	pageSize  int
	position  atomic.Int64
}

func NewFeedPoller(log *oplog.Log, publisher port.FeedPublisher, logger *zap.Logger, interval time.Duration, pageSize int) *FeedPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedPoller{
		log:       log,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		pageSize:  pageSize,
	}
}

// Seek moves the cursor, e.g. to resume from a stored position.
func (p *FeedPoller) Seek(position int64) {
	p.position.Store(position)
}

func (p *FeedPoller) Position() int64 {
	return p.position.Load()
}

// Run polls until ctx is cancelled.
func (p *FeedPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("feed poll failed", zap.Int64("position", p.Position()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll drains every page after the cursor. The cursor only advances past
// entries the publisher accepted.
func (p *FeedPoller) Poll(ctx context.Context) (int, error) {
	observed := 0
	for {
		next, entries, err := p.log.Read(ctx, p.Position(), p.pageSize)
		if err != nil {
			return observed, err
		}
		if len(entries) == 0 {
			return observed, nil
		}

		if p.publisher != nil {
			if err := p.publisher.Publish(ctx, entries); err != nil {
				return observed, err
			}
		}

		p.position.Store(next)
		observed += len(entries)
		p.logger.Info("feed poller observed operations", zap.Int("count", len(entries)), zap.Int64("next_position", next))
	}
}
