// Package oplog is the idempotent, append-only operation log. Positions and
// the membership index live in memory; every entry is persisted through a
// port.ChangeLogRepository before it becomes visible to Contains.
package oplog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/port"
)

const (
	DefaultPageSize = 200
	MaxPageSize     = 1000
)

var ErrCorruptLog = errors.New("corrupt change log")

type Log struct {
	mu     sync.Mutex
	repo   port.ChangeLogRepository
	logger *zap.Logger
	seen   map[uuid.UUID]int64
	last   int64
}

// Open replays every stored entry to rebuild the last position and the
// membership index. It fails on a gap or a repeated operation id.
func Open(ctx context.Context, repo port.ChangeLogRepository, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		repo:   repo,
		logger: logger,
		seen:   make(map[uuid.UUID]int64),
	}

	err := repo.ScanEntries(ctx, func(e domain.ChangeLogEntry) error {
		if e.Position != l.last+1 {
			return fmt.Errorf("%w: position %d follows %d", ErrCorruptLog, e.Position, l.last)
		}
		if prev, ok := l.seen[e.Operation.OperationID]; ok {
			return fmt.Errorf("%w: operation %s recorded at %d and %d", ErrCorruptLog, e.Operation.OperationID, prev, e.Position)
		}
		l.seen[e.Operation.OperationID] = e.Position
		l.last = e.Position
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay change log: %w", err)
	}

	logger.Info("change log recovered", zap.Int64("last_position", l.last), zap.Int("operations", len(l.seen)))
	return l, nil
}

// Append records op once. A previously recorded id writes nothing and returns
// the current highest position with inserted=false; PositionOf reports where
// it was recorded.
func (l *Log) Append(ctx context.Context, op domain.Operation) (position int64, inserted bool, err error) {
	if op.OperationID == uuid.Nil {
		return 0, false, domain.Errorf(domain.KindInvalidArgument, "operation id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[op.OperationID]; ok {
		return l.last, false, nil
	}

	entry := domain.ChangeLogEntry{Position: l.last + 1, Operation: op}
	if err := l.repo.AppendEntry(ctx, entry); err != nil {
		return 0, false, fmt.Errorf("append operation %s: %w", op.OperationID, err)
	}

	l.last = entry.Position
	l.seen[op.OperationID] = entry.Position
	return entry.Position, true, nil
}

// Read returns entries after from. next is the last returned position, or
// from itself when the caller is caught up.
func (l *Log) Read(ctx context.Context, from int64, pageSize int) (next int64, entries []domain.ChangeLogEntry, err error) {
	if from < 0 {
		from = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	entries, err = l.repo.ReadEntries(ctx, from, pageSize)
	if err != nil {
		return from, nil, fmt.Errorf("read change log from %d: %w", from, err)
	}
	if len(entries) == 0 {
		return from, []domain.ChangeLogEntry{}, nil
	}
	return entries[len(entries)-1].Position, entries, nil
}

func (l *Log) Contains(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok
}

// PositionOf returns where id was recorded.
func (l *Log) PositionOf(id uuid.UUID) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.seen[id]
	return pos, ok
}

func (l *Log) LastPosition() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
