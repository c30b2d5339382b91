package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

type repository interface {
	GetArticle(ctx context.Context, sku int64) (*domain.Article, error)
	FindArticleByName(ctx context.Context, name string) (*domain.Article, error)
	ListArticles(ctx context.Context) ([]domain.Article, error)
	UpsertArticle(ctx context.Context, art domain.Article) error
	DeleteArticle(ctx context.Context, sku int64) error
	MaxSku(ctx context.Context) (int64, error)
	AppendEntry(ctx context.Context, e domain.ChangeLogEntry) error
	ReadEntries(ctx context.Context, from int64, limit int) ([]domain.ChangeLogEntry, error)
	ScanEntries(ctx context.Context, fn func(domain.ChangeLogEntry) error) error
}

var testTime = time.Date(2024, 5, 17, 9, 30, 0, 123456000, time.UTC)

func testEntry(position, sku int64) domain.ChangeLogEntry {
	return domain.ChangeLogEntry{
		Position: position,
		Operation: domain.Operation{
			OperationID:     uuid.New(),
			Sku:             sku,
			Delta:           -2,
			Type:            domain.OperationAdjustment,
			Reason:          "damaged",
			ExpectedVersion: 3,
			StoreID:         "store-9",
			SubmittedAt:     testTime,
		},
	}
}

func assertSameArticle(t *testing.T, want domain.Article, got *domain.Article) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at: want %v, got %v", want.UpdatedAt, got.UpdatedAt)
	want.UpdatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, want, *got)
}

func testRepositoryContract(t *testing.T, repo repository) {
	ctx := context.Background()

	t.Run("articles", func(t *testing.T) {
		missing, err := repo.GetArticle(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, missing)

		maxSku, err := repo.MaxSku(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), maxSku)

		widget := domain.Article{Sku: 1, Name: "Widget", Quantity: 10, Version: 1, UpdatedAt: testTime}
		gadget := domain.Article{Sku: 2, Name: "Gadget", Quantity: 4, Reserved: 1, Version: 3, UpdatedAt: testTime}
		require.NoError(t, repo.UpsertArticle(ctx, gadget))
		require.NoError(t, repo.UpsertArticle(ctx, widget))

		got, err := repo.GetArticle(ctx, 1)
		require.NoError(t, err)
		assertSameArticle(t, widget, got)

		byName, err := repo.FindArticleByName(ctx, "  WIDGET")
		require.NoError(t, err)
		assertSameArticle(t, widget, byName)

		none, err := repo.FindArticleByName(ctx, "Sprocket")
		require.NoError(t, err)
		assert.Nil(t, none)

		widget.Quantity = 15
		widget.Version = 2
		require.NoError(t, repo.UpsertArticle(ctx, widget))
		got, err = repo.GetArticle(ctx, 1)
		require.NoError(t, err)
		assertSameArticle(t, widget, got)

		all, err := repo.ListArticles(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, int64(1), all[0].Sku)
		assert.Equal(t, int64(2), all[1].Sku)

		maxSku, err = repo.MaxSku(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), maxSku)

		require.NoError(t, repo.DeleteArticle(ctx, 2))
		got, err = repo.GetArticle(ctx, 2)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("change log", func(t *testing.T) {
		entries := []domain.ChangeLogEntry{testEntry(1, 1), testEntry(2, 1), testEntry(3, 2)}
		for _, e := range entries {
			require.NoError(t, repo.AppendEntry(ctx, e))
		}

		page, err := repo.ReadEntries(ctx, 0, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, entries[0].Operation.OperationID, page[0].Operation.OperationID)
		assert.Equal(t, "damaged", page[0].Operation.Reason)
		assert.Equal(t, "store-9", page[0].Operation.StoreID)
		assert.Equal(t, domain.OperationAdjustment, page[0].Operation.Type)
		assert.Equal(t, -2, page[0].Operation.Delta)
		assert.Equal(t, 3, page[0].Operation.ExpectedVersion)
		assert.True(t, testTime.Equal(page[0].Operation.SubmittedAt))

		page, err = repo.ReadEntries(ctx, 2, 10)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, int64(3), page[0].Position)

		page, err = repo.ReadEntries(ctx, 3, 10)
		require.NoError(t, err)
		assert.Empty(t, page)

		var scanned []int64
		err = repo.ScanEntries(ctx, func(e domain.ChangeLogEntry) error {
			scanned = append(scanned, e.Position)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, scanned)
	})
}

func TestMemoryAdapter_Contract(t *testing.T) {
	testRepositoryContract(t, NewMemoryAdapter())
}

func TestMemoryAdapter_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAdapter()
	require.NoError(t, repo.AppendEntry(ctx, testEntry(1, 1)))

	page, err := repo.ReadEntries(ctx, 0, 10)
	require.NoError(t, err)
	page[0].Position = 99

	again, err := repo.ReadEntries(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again[0].Position)
}
