package port

import (
	"context"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

type ArticleRepository interface {
	// GetArticle returns nil, nil when the SKU is absent
	GetArticle(ctx context.Context, sku int64) (*domain.Article, error)

	// FindArticleByName matches names case-insensitively, nil when absent
	FindArticleByName(ctx context.Context, name string) (*domain.Article, error)

	// ListArticles returns every article ordered by SKU
	ListArticles(ctx context.Context) ([]domain.Article, error)

	// UpsertArticle inserts or replaces the article keyed by SKU
	UpsertArticle(ctx context.Context, article domain.Article) error

	// DeleteArticle undoes an insert whose commit hook failed
	DeleteArticle(ctx context.Context, sku int64) error

	// MaxSku returns the highest persisted SKU, 0 for an empty catalog
	MaxSku(ctx context.Context) (int64, error)
}

type ChangeLogRepository interface {
	// AppendEntry durably persists one entry; positions are assigned by the caller
	AppendEntry(ctx context.Context, entry domain.ChangeLogEntry) error

	// ReadEntries returns up to limit entries with position > from, ascending
	ReadEntries(ctx context.Context, from int64, limit int) ([]domain.ChangeLogEntry, error)

	// ScanEntries visits every stored entry in ascending position order
	ScanEntries(ctx context.Context, fn func(domain.ChangeLogEntry) error) error
}
