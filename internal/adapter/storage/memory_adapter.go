package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// MemoryAdapter keeps articles and the change log in process memory. Nothing
// survives a restart; use it for tests and throwaway runs.
type MemoryAdapter struct {
	mu       sync.RWMutex
	articles map[int64]domain.Article
	entries  []domain.ChangeLogEntry
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{articles: make(map[int64]domain.Article)}
}

func (m *MemoryAdapter) GetArticle(ctx context.Context, sku int64) (*domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	art, ok := m.articles[sku]
	if !ok {
		return nil, nil
	}
	return &art, nil
}

func (m *MemoryAdapter) FindArticleByName(ctx context.Context, name string) (*domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := domain.NameKey(name)
	for _, art := range m.articles {
		if domain.NameKey(art.Name) == key {
			found := art
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryAdapter) ListArticles(ctx context.Context) ([]domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	articles := make([]domain.Article, 0, len(m.articles))
	for _, art := range m.articles {
		articles = append(articles, art)
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].Sku < articles[j].Sku })
	return articles, nil
}

func (m *MemoryAdapter) UpsertArticle(ctx context.Context, art domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[art.Sku] = art
	return nil
}

func (m *MemoryAdapter) DeleteArticle(ctx context.Context, sku int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.articles, sku)
	return nil
}

func (m *MemoryAdapter) MaxSku(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var max int64
	for sku := range m.articles {
		if sku > max {
			max = sku
		}
	}
	return max, nil
}

func (m *MemoryAdapter) AppendEntry(ctx context.Context, e domain.ChangeLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryAdapter) ReadEntries(ctx context.Context, from int64, limit int) ([]domain.ChangeLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Position > from })
	end := start + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}

	page := make([]domain.ChangeLogEntry, end-start)
	copy(page, m.entries[start:end])
	return page, nil
}

func (m *MemoryAdapter) ScanEntries(ctx context.Context, fn func(domain.ChangeLogEntry) error) error {
	m.mu.RLock()
	snapshot := make([]domain.ChangeLogEntry, len(m.entries))
	copy(snapshot, m.entries)
	m.mu.RUnlock()

	for _, e := range snapshot {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
