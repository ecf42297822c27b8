package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StandardsCrawler/internal/domain"
)

func TestMemoryCategoryUpsertKeepsIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.UpsertCategories(ctx, []domain.Category{{Code: "AQ", Title: "安全生产", StandardCount: 1}})
	require.NoError(t, err)

	again, err := store.UpsertCategories(ctx, []domain.Category{{Code: "AQ", Title: "安全生产", StandardCount: 2}})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, again[0].ID)

	all, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].StandardCount)
}

func TestMemoryDetailWorklistIsSetDifference(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertStandards(ctx, []domain.Standard{{PK: "P3"}, {PK: "P1"}, {PK: "P2"}, {PK: "P1"}})
	require.NoError(t, err)
	_, err = store.UpsertDetailInfos(ctx, []domain.DetailInfo{{PK: "P2"}})
	require.NoError(t, err)

	q := domain.WorklistQuery{Kind: domain.WorklistDetail}
	pks, err := store.PendingPKs(ctx, q, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P3"}, pks)

	count, err := store.CountPending(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = store.UpsertDetailInfos(ctx, []domain.DetailInfo{{PK: "P1"}, {PK: "P3"}})
	require.NoError(t, err)

	pks, err = store.PendingPKs(ctx, q, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, pks)
}

func TestMemoryRetryWorklistBound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.SaveAttempt(ctx, domain.DownloadRecord{PK: "F1", Status: domain.DownloadFailed})
	require.NoError(t, err)
	_, err = store.SaveAttempt(ctx, domain.DownloadRecord{PK: "S1", Status: domain.DownloadSuccess})
	require.NoError(t, err)
	_, err = store.SaveAttempt(ctx, domain.DownloadRecord{PK: "P1", Status: domain.DownloadPending})
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, store.IncrementRetry(ctx, "F1", 3))
	}
	rec, err := store.GetDownload(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.RetryCount)

	saved, err := store.SaveAttempt(ctx, domain.DownloadRecord{PK: "F1", Status: domain.DownloadFailed})
	require.NoError(t, err)
	assert.Equal(t, 3, saved.RetryCount, "saving an attempt must not reset the counter")

	pks, err := store.PendingPKs(ctx, domain.WorklistQuery{Kind: domain.WorklistRetry, MaxRetries: 3}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, pks)
}

func TestMemoryWorklistCursor(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertStandards(ctx, []domain.Standard{{PK: "A"}, {PK: "B"}, {PK: "C"}, {PK: "D"}})
	require.NoError(t, err)

	q := domain.WorklistQuery{Kind: domain.WorklistDownload}
	page, err := store.PendingPKs(ctx, q, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, page)

	page, err = store.PendingPKs(ctx, q.Resume("B"), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, page)

	page, err = store.PendingPKs(ctx, q.Resume("BB"), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, page)

	count, err := store.CountPending(ctx, q.Resume("C"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestMemoryLookupsReportNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetStandard(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetDetailInfo(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetDownload(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
