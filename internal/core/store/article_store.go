// Package store serialises every article mutation through one critical
// section. The store owns atomicity of compute-then-persist; callers own the
// business rules through the closures of a Mutation.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/port"
)

// Mutation is one read-modify-write step. Read and Compute both run while the
// store lock is held, so the value Read returns is the latest committed one.
type Mutation struct {
	// Read loads the record Compute validates against. Optional.
	Read func(ctx context.Context, repo port.ArticleRepository) (*domain.Article, error)

	// Compute returns the record to persist or a typed error that aborts the
	// mutation with no state change. A zero Sku asks the store for a new one.
	Compute func(current *domain.Article) (domain.Article, error)

	// OnCommit runs after the record is persisted, still under the lock. An
	// error restores the previous record.
	OnCommit func(ctx context.Context, committed domain.Article) error
}

// rollbackTimeout bounds the restore write, which must outlive a cancelled
// request context.
const rollbackTimeout = 5 * time.Second

type ArticleStore struct {
	mu      sync.Mutex
	repo    port.ArticleRepository
	cache   port.ArticleCache
	logger  *zap.Logger
	lastSku int64
}

// New seeds the SKU counter from the highest persisted SKU. Articles are never
// deleted, so that value only grows. cache may be nil.
func New(ctx context.Context, repo port.ArticleRepository, cache port.ArticleCache, logger *zap.Logger) (*ArticleStore, error) {
	maxSku, err := repo.MaxSku(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sku counter: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleStore{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		lastSku: maxSku,
	}, nil
}

// Get reads the latest committed article. A cache hit skips the mutation
// lock. A miss reads the repository under the lock so an uncommitted record
// is never written back to the cache.
func (s *ArticleStore) Get(ctx context.Context, sku int64) (*domain.Article, error) {
	if s.cache == nil {
		article, err := s.repo.GetArticle(ctx, sku)
		if err != nil {
			return nil, fmt.Errorf("get article %d: %w", sku, err)
		}
		return article, nil
	}

	cached, err := s.cache.GetArticle(ctx, sku)
	if err != nil {
		s.logger.Warn("article cache read failed", zap.Int64("sku", sku), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	article, err := s.repo.GetArticle(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", sku, err)
	}
	if article != nil {
		s.fillCache(ctx, *article)
	}
	return article, nil
}

func (s *ArticleStore) List(ctx context.Context) ([]domain.Article, error) {
	articles, err := s.repo.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// MutateOne applies m atomically and returns the committed record.
func (s *ArticleStore) MutateOne(ctx context.Context, m Mutation) (domain.Article, error) {
	committed, err := s.mutateLocked(ctx, m)
	if err != nil {
		return domain.Article{}, err
	}
	s.fillCache(ctx, committed)
	return committed, nil
}

func (s *ArticleStore) mutateLocked(ctx context.Context, m Mutation) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *domain.Article
	if m.Read != nil {
		var err error
		current, err = m.Read(ctx, s.repo)
		if err != nil {
			return domain.Article{}, err
		}
	}

	next, err := m.Compute(current)
	if err != nil {
		return domain.Article{}, err
	}

	var previous *domain.Article
	if next.Sku == 0 {
		next.Sku = s.lastSku + 1
	} else {
		previous, err = s.repo.GetArticle(ctx, next.Sku)
		if err != nil {
			return domain.Article{}, fmt.Errorf("load article %d: %w", next.Sku, err)
		}
	}

	if !next.Valid() {
		return domain.Article{}, domain.Errorf(domain.KindInvalidState,
			"article %d would hold reserved %d of quantity %d", next.Sku, next.Reserved, next.Quantity)
	}

	if err := s.repo.UpsertArticle(ctx, next); err != nil {
		return domain.Article{}, fmt.Errorf("upsert article %d: %w", next.Sku, err)
	}

	if m.OnCommit != nil {
		if err := m.OnCommit(ctx, next); err != nil {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
			defer cancel()
			s.rollback(rctx, next.Sku, previous)
			return domain.Article{}, fmt.Errorf("commit article %d: %w", next.Sku, err)
		}
	}

	if next.Sku > s.lastSku {
		s.lastSku = next.Sku
	}
	return next, nil
}

func (s *ArticleStore) rollback(ctx context.Context, sku int64, previous *domain.Article) {
	var err error
	if previous == nil {
		err = s.repo.DeleteArticle(ctx, sku)
	} else {
		err = s.repo.UpsertArticle(ctx, *previous)
	}
	if err != nil {
		s.logger.Error("CRITICAL rollback failed", zap.Int64("sku", sku), zap.Error(err))
	} else {
		s.logger.Warn("rolled back article after failed commit", zap.Int64("sku", sku))
	}

	if s.cache != nil {
		if cerr := s.cache.Invalidate(ctx, sku); cerr != nil {
			s.logger.Warn("article cache invalidate failed", zap.Int64("sku", sku), zap.Error(cerr))
		}
	}
}

func (s *ArticleStore) fillCache(ctx context.Context, article domain.Article) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutArticle(ctx, article); err != nil {
		s.logger.Warn("article cache write failed", zap.Int64("sku", article.Sku), zap.Error(err))
	}
}
