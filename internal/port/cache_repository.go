package port

import (
	"context"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

type ArticleCache interface {
	// GetArticle returns nil, nil on a cache miss
	GetArticle(ctx context.Context, sku int64) (*domain.Article, error)

	// PutArticle stores the article unless a newer version is already cached
	PutArticle(ctx context.Context, article domain.Article) error

	// Invalidate drops the cached article
	Invalidate(ctx context.Context, sku int64) error
}
