package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/oplog"
	"github.com/rl1809/inventory-sync/internal/core/store"
	"github.com/rl1809/inventory-sync/internal/port"
)

const batchAdjustReason = "sync"

// errAlreadyRecorded aborts a mutation whose operation id reached the log
// after the fast-path check.
var errAlreadyRecorded = errors.New("operation already recorded")

type AdjustRequest struct {
	Sku             int64
	Delta           int
	Reason          string
	ExpectedVersion int
	StoreID         string
	OperationID     uuid.UUID
	SubmittedAt     time.Time
}

type ReserveRequest struct {
	Sku             int64
	Amount          int
	ExpectedVersion int
	StoreID         string
	OperationID     uuid.UUID
	SubmittedAt     time.Time
}

type Option func(*InventoryService)

func WithBatchPolicy(policy domain.BatchPolicy) Option {
	return func(s *InventoryService) {
		if policy == domain.BatchContinueOnError {
			s.policy = policy
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) {
		s.now = now
	}
}

// InventoryService is the only writer of article state and the only producer
// into the change log.
type InventoryService struct {
	articles *store.ArticleStore
	log      *oplog.Log
	logger   *zap.Logger
	policy   domain.BatchPolicy
	now      func() time.Time
}

func NewInventoryService(articles *store.ArticleStore, log *oplog.Log, logger *zap.Logger, opts ...Option) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InventoryService{
		articles: articles,
		log:      log,
		logger:   logger,
		policy:   domain.BatchStopOnError,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InventoryService) Policy() domain.BatchPolicy {
	return s.policy
}

// Lookup returns nil, nil when the SKU does not exist.
func (s *InventoryService) Lookup(ctx context.Context, sku int64) (*domain.Article, error) {
	return s.articles.Get(ctx, sku)
}

func (s *InventoryService) LookupAll(ctx context.Context) ([]domain.Article, error) {
	return s.articles.List(ctx)
}

func (s *InventoryService) Create(ctx context.Context, name string, initialQuantity int) (domain.Article, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Article{}, domain.Errorf(domain.KindInvalidArgument, "name is required")
	}
	if initialQuantity < 0 {
		return domain.Article{}, domain.Errorf(domain.KindInvalidArgument, "initial quantity %d is negative", initialQuantity)
	}

	created, err := s.articles.MutateOne(ctx, store.Mutation{
		Read: func(ctx context.Context, repo port.ArticleRepository) (*domain.Article, error) {
			return repo.FindArticleByName(ctx, name)
		},
		Compute: func(existing *domain.Article) (domain.Article, error) {
			if existing != nil {
				return domain.Article{}, domain.Errorf(domain.KindAlreadyExists,
					"article %q is already registered as sku %d", existing.Name, existing.Sku)
			}
			return domain.Article{
				Name:      name,
				Quantity:  initialQuantity,
				Reserved:  0,
				Version:   1,
				UpdatedAt: s.timestamp(),
			}, nil
		},
	})
	if err != nil {
		return domain.Article{}, err
	}

	s.logger.Info("article created", zap.Int64("sku", created.Sku), zap.String("name", created.Name), zap.Int("quantity", created.Quantity))
	return created, nil
}

func (s *InventoryService) Adjust(ctx context.Context, req AdjustRequest) (domain.MutationResult, error) {
	if req.Delta == 0 {
		return domain.MutationResult{}, domain.Errorf(domain.KindInvalidArgument, "delta must be non-zero")
	}
	if req.OperationID == uuid.Nil {
		return domain.MutationResult{}, domain.Errorf(domain.KindInvalidArgument, "operation id is required")
	}

	op := domain.Operation{
		OperationID:     req.OperationID,
		Sku:             req.Sku,
		Delta:           req.Delta,
		Type:            domain.OperationAdjustment,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
		StoreID:         req.StoreID,
		SubmittedAt:     s.submittedAt(req.SubmittedAt),
	}

	return s.apply(ctx, op, func(current domain.Article) (domain.Article, error) {
		quantity := current.Quantity + req.Delta
		if quantity < current.Reserved {
			return domain.Article{}, domain.Errorf(domain.KindInvalidState,
				"quantity %d would drop below reserved %d", quantity, current.Reserved)
		}
		current.Quantity = quantity
		return current, nil
	})
}

func (s *InventoryService) Reserve(ctx context.Context, req ReserveRequest) (domain.MutationResult, error) {
	if req.Amount <= 0 {
		return domain.MutationResult{}, domain.Errorf(domain.KindInvalidArgument, "amount must be positive")
	}
	if req.OperationID == uuid.Nil {
		return domain.MutationResult{}, domain.Errorf(domain.KindInvalidArgument, "operation id is required")
	}

	op := domain.Operation{
		OperationID:     req.OperationID,
		Sku:             req.Sku,
		Delta:           req.Amount,
		Type:            domain.OperationReservation,
		ExpectedVersion: req.ExpectedVersion,
		StoreID:         req.StoreID,
		SubmittedAt:     s.submittedAt(req.SubmittedAt),
	}

	return s.apply(ctx, op, func(current domain.Article) (domain.Article, error) {
		if current.Available() < req.Amount {
			return domain.Article{}, domain.Errorf(domain.KindInsufficientStock,
				"available %d is less than requested %d", current.Available(), req.Amount)
		}
		current.Reserved += req.Amount
		return current, nil
	})
}

// apply runs the version-checked mutation and records op in the log while the
// store lock is still held. Log membership is checked twice: once as a fast
// path and again inside the critical section, so a racing retry of the same
// id can never apply twice.
func (s *InventoryService) apply(ctx context.Context, op domain.Operation, change func(domain.Article) (domain.Article, error)) (domain.MutationResult, error) {
	if s.log.Contains(op.OperationID) {
		return s.duplicate(ctx, op)
	}

	var position int64
	committed, err := s.articles.MutateOne(ctx, store.Mutation{
		Read: func(ctx context.Context, repo port.ArticleRepository) (*domain.Article, error) {
			return repo.GetArticle(ctx, op.Sku)
		},
		Compute: func(current *domain.Article) (domain.Article, error) {
			if s.log.Contains(op.OperationID) {
				return domain.Article{}, errAlreadyRecorded
			}
			if current == nil {
				return domain.Article{}, domain.Errorf(domain.KindNotFound, "article %d not found", op.Sku)
			}
			if current.Version != op.ExpectedVersion {
				return domain.Article{}, domain.Conflict(*current)
			}
			next, err := change(*current)
			if err != nil {
				return domain.Article{}, err
			}
			next.Version = current.Version + 1
			next.UpdatedAt = s.timestamp()
			return next, nil
		},
		OnCommit: func(ctx context.Context, _ domain.Article) error {
			pos, inserted, err := s.log.Append(ctx, op)
			if err != nil {
				return err
			}
			if !inserted {
				return errAlreadyRecorded
			}
			position = pos
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, errAlreadyRecorded) {
			return s.duplicate(ctx, op)
		}
		var derr *domain.Error
		if errors.As(err, &derr) && derr.Kind == domain.KindVersionConflict {
			s.logger.Info("version conflict",
				zap.Int64("sku", op.Sku),
				zap.Int("expected_version", op.ExpectedVersion),
				zap.Int("current_version", derr.Current.Version),
				zap.String("store_id", op.StoreID))
			return domain.MutationResult{Outcome: domain.OutcomeVersionConflict, Article: derr.Current}, nil
		}
		return domain.MutationResult{}, err
	}

	s.logger.Debug("operation applied",
		zap.Stringer("operation_id", op.OperationID),
		zap.String("type", string(op.Type)),
		zap.Int64("sku", op.Sku),
		zap.Int("delta", op.Delta),
		zap.Int("version", committed.Version),
		zap.Int64("position", position))
	return domain.MutationResult{Outcome: domain.OutcomeApplied, Article: &committed, Position: position}, nil
}

func (s *InventoryService) duplicate(ctx context.Context, op domain.Operation) (domain.MutationResult, error) {
	position, _ := s.log.PositionOf(op.OperationID)
	current, err := s.articles.Get(ctx, op.Sku)
	if err != nil {
		return domain.MutationResult{}, err
	}
	s.logger.Info("duplicate operation ignored",
		zap.Stringer("operation_id", op.OperationID),
		zap.Int64("position", position),
		zap.String("store_id", op.StoreID))
	return domain.MutationResult{Outcome: domain.OutcomeDuplicate, Article: current, Position: position}, nil
}

// ProcessBatch applies ops strictly in order on the calling goroutine. Work
// already committed is never rolled back. Under the stop policy the first
// failure ends the batch and is returned alongside the counts so far.
func (s *InventoryService) ProcessBatch(ctx context.Context, ops []domain.Operation) (domain.BatchSyncResult, error) {
	var result domain.BatchSyncResult

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !op.Type.Known() {
			result.Skipped++
			s.logger.Debug("skipping unrecognized operation type", zap.Int("index", i), zap.String("type", string(op.Type)))
			continue
		}

		var (
			res domain.MutationResult
			err error
		)
		switch op.Type {
		case domain.OperationAdjustment:
			reason := op.Reason
			if reason == "" {
				reason = batchAdjustReason
			}
			res, err = s.Adjust(ctx, AdjustRequest{
				Sku:             op.Sku,
				Delta:           op.Delta,
				Reason:          reason,
				ExpectedVersion: op.ExpectedVersion,
				StoreID:         op.StoreID,
				OperationID:     op.OperationID,
				SubmittedAt:     op.SubmittedAt,
			})
		case domain.OperationReservation:
			res, err = s.Reserve(ctx, ReserveRequest{
				Sku:             op.Sku,
				Amount:          op.Delta,
				ExpectedVersion: op.ExpectedVersion,
				StoreID:         op.StoreID,
				OperationID:     op.OperationID,
				SubmittedAt:     op.SubmittedAt,
			})
		}

		if err == nil && res.Outcome == domain.OutcomeVersionConflict {
			err = domain.Conflict(*res.Article)
		}
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, batchFailure(i, op, err))
			if s.policy == domain.BatchStopOnError || domain.KindOf(err) == "" {
				s.logger.Warn("batch stopped",
					zap.Int("index", i),
					zap.Int("applied", result.Applied),
					zap.Stringer("operation_id", op.OperationID),
					zap.Error(err))
				return result, fmt.Errorf("batch operation %d: %w", i, err)
			}
			continue
		}

		switch res.Outcome {
		case domain.OutcomeApplied:
			result.Applied++
		case domain.OutcomeDuplicate:
			result.Duplicates++
		}
	}

	return result, nil
}

func batchFailure(index int, op domain.Operation, err error) domain.BatchFailure {
	failure := domain.BatchFailure{
		Index:       index,
		OperationID: op.OperationID.String(),
		Kind:        domain.KindOf(err),
		Message:     err.Error(),
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		failure.Current = derr.Current
	}
	return failure
}

func (s *InventoryService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *InventoryService) submittedAt(t time.Time) time.Time {
	if t.IsZero() {
		return s.timestamp()
	}
	return t.UTC().Truncate(time.Microsecond)
}
