package oplog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-sync/internal/adapter/storage"
	"github.com/rl1809/inventory-sync/internal/core/domain"
)

type failingRepo struct {
	*storage.MemoryAdapter
	appendErr error
}

func (f *failingRepo) AppendEntry(ctx context.Context, e domain.ChangeLogEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryAdapter.AppendEntry(ctx, e)
}

func adjustment(sku int64, delta int) domain.Operation {
	return domain.Operation{
		OperationID: uuid.New(),
		Sku:         sku,
		Delta:       delta,
		Type:        domain.OperationAdjustment,
		StoreID:     "store-1",
	}
}

func openLog(t *testing.T, repo *storage.MemoryAdapter) *Log {
	t.Helper()
	l, err := Open(context.Background(), repo, nil)
	require.NoError(t, err)
	return l
}

func TestAppend_AssignsConsecutivePositions(t *testing.T) {
	l := openLog(t, storage.NewMemoryAdapter())
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		pos, inserted, err := l.Append(ctx, adjustment(1, 1))
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, want, pos)
	}
	assert.Equal(t, int64(3), l.LastPosition())
	assert.Equal(t, 3, l.Len())
}

func TestAppend_DuplicateReturnsHighestPosition(t *testing.T) {
	l := openLog(t, storage.NewMemoryAdapter())
	ctx := context.Background()

	op := adjustment(1, 5)
	first, inserted, err := l.Append(ctx, op)
	require.NoError(t, err)
	require.True(t, inserted)

	_, _, err = l.Append(ctx, adjustment(1, 2))
	require.NoError(t, err)

	again, inserted, err := l.Append(ctx, op)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(2), again)
	assert.Equal(t, 2, l.Len())

	recorded, ok := l.PositionOf(op.OperationID)
	require.True(t, ok)
	assert.Equal(t, first, recorded)
}

func TestAppend_RejectsNilOperationID(t *testing.T) {
	l := openLog(t, storage.NewMemoryAdapter())

	_, _, err := l.Append(context.Background(), domain.Operation{Sku: 1, Delta: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 0, l.Len())
}

func TestAppend_StorageFailureLeavesLogUnchanged(t *testing.T) {
	repo := &failingRepo{MemoryAdapter: storage.NewMemoryAdapter(), appendErr: errors.New("disk full")}
	l, err := Open(context.Background(), repo, nil)
	require.NoError(t, err)

	op := adjustment(1, 1)
	_, _, err = l.Append(context.Background(), op)
	require.Error(t, err)
	assert.False(t, l.Contains(op.OperationID))
	assert.Equal(t, int64(0), l.LastPosition())

	repo.appendErr = nil
	pos, inserted, err := l.Append(context.Background(), op)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(1), pos)
}

func TestAppend_ConcurrentSameID(t *testing.T) {
	l := openLog(t, storage.NewMemoryAdapter())
	op := adjustment(1, 1)

	var inserted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pos, ok, err := l.Append(context.Background(), op)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if pos != 1 {
				t.Errorf("expected position 1, got %d", pos)
			}
			if ok {
				inserted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	assert.Equal(t, 1, l.Len())
}

func TestRead_Paging(t *testing.T) {
	l := openLog(t, storage.NewMemoryAdapter())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, err := l.Append(ctx, adjustment(1, i+1))
		require.NoError(t, err)
	}

	next, page, err := l.Read(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Position)
	assert.Equal(t, int64(2), next)

	var seen []int64
	from := int64(0)
	for {
		n, entries, err := l.Read(ctx, from, 2)
		require.NoError(t, err)
		if len(entries) == 0 {
			assert.Equal(t, from, n)
			break
		}
		for _, e := range entries {
			seen = append(seen, e.Position)
		}
		from = n
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestRead_Defaults(t *testing.T) {
	l := openLog(t, storage.NewMemoryAdapter())
	ctx := context.Background()

	next, entries, err := l.Read(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Equal(t, int64(0), next)

	_, _, err = l.Append(ctx, adjustment(1, 1))
	require.NoError(t, err)

	next, entries, err = l.Read(ctx, -10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1), next)

	next, entries, err = l.Read(ctx, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, int64(50), next)
}

func TestRead_CapsPageSize(t *testing.T) {
	repo := storage.NewMemoryAdapter()
	ctx := context.Background()
	for i := 1; i <= MaxPageSize+5; i++ {
		require.NoError(t, repo.AppendEntry(ctx, domain.ChangeLogEntry{Position: int64(i), Operation: adjustment(1, 1)}))
	}
	l := openLog(t, repo)

	_, entries, err := l.Read(ctx, 0, MaxPageSize*10)
	require.NoError(t, err)
	assert.Len(t, entries, MaxPageSize)

	_, entries, err = l.Read(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultPageSize)
}

func TestOpen_RecoversState(t *testing.T) {
	repo := storage.NewMemoryAdapter()
	ctx := context.Background()

	l := openLog(t, repo)
	a, b := adjustment(1, 1), adjustment(2, -1)
	_, _, err := l.Append(ctx, a)
	require.NoError(t, err)
	_, _, err = l.Append(ctx, b)
	require.NoError(t, err)

	reopened := openLog(t, repo)
	assert.Equal(t, int64(2), reopened.LastPosition())
	assert.True(t, reopened.Contains(a.OperationID))
	pos, ok := reopened.PositionOf(b.OperationID)
	assert.True(t, ok)
	assert.Equal(t, int64(2), pos)

	pos, inserted, err := reopened.Append(ctx, a)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(2), pos)

	pos, inserted, err = reopened.Append(ctx, adjustment(3, 1))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(3), pos)
}

func TestOpen_DetectsCorruption(t *testing.T) {
	ctx := context.Background()

	t.Run("gap", func(t *testing.T) {
		repo := storage.NewMemoryAdapter()
		require.NoError(t, repo.AppendEntry(ctx, domain.ChangeLogEntry{Position: 1, Operation: adjustment(1, 1)}))
		require.NoError(t, repo.AppendEntry(ctx, domain.ChangeLogEntry{Position: 3, Operation: adjustment(1, 1)}))

		_, err := Open(ctx, repo, nil)
		assert.ErrorIs(t, err, ErrCorruptLog)
	})

	t.Run("repeated id", func(t *testing.T) {
		repo := storage.NewMemoryAdapter()
		op := adjustment(1, 1)
		require.NoError(t, repo.AppendEntry(ctx, domain.ChangeLogEntry{Position: 1, Operation: op}))
		require.NoError(t, repo.AppendEntry(ctx, domain.ChangeLogEntry{Position: 2, Operation: op}))

		_, err := Open(ctx, repo, nil)
		assert.ErrorIs(t, err, ErrCorruptLog)
	})
}
