package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StandardsCrawler/internal/config"
	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/infrastructure/storage"
	"StandardsCrawler/internal/usecase"
)

// scriptedAcquirer persists a terminal record per pk without touching the retry counter.
type scriptedAcquirer struct {
	store *storage.MemoryStore
	fail  map[string]bool
	seen  []string
}

func (a *scriptedAcquirer) AcquireWithRetry(ctx context.Context, std domain.Standard, _ int) (domain.DownloadRecord, error) {
	a.seen = append(a.seen, std.PK)

	record := domain.DownloadRecord{PK: std.PK, Status: domain.DownloadSuccess}
	if a.fail[std.PK] {
		record.Status = domain.DownloadFailed
	}
	saved, err := a.store.SaveAttempt(ctx, record)
	if err != nil {
		return saved, err
	}
	if a.fail[std.PK] {
		return saved, domain.ErrExhausted
	}
	return saved, nil
}

func seedStandards(t *testing.T, store *storage.MemoryStore, pks ...string) {
	t.Helper()

	standards := make([]domain.Standard, 0, len(pks))
	for _, pk := range pks {
		standards = append(standards, domain.Standard{PK: pk, Code: "C-" + pk})
	}
	_, err := store.UpsertStandards(context.Background(), standards)
	require.NoError(t, err)
}

func downloadConfig() config.DownloadConfig {
	return config.DownloadConfig{
		BatchSize:  2,
		MaxRetries: 3,
		ItemDelay:  2 * time.Second,
		BatchDelay: 5 * time.Second,
	}
}

func TestDownloadAllProcessesEveryPendingOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	seedStandards(t, store, "P1", "P2", "P3", "P4", "P5")

	acquirer := &scriptedAcquirer{store: store, fail: map[string]bool{"P2": true}}
	pauses := &recordingPause{}
	orchestrator := usecase.NewOrchestrator(store, acquirer, downloadConfig(), pauses.Func, nil)

	stats, err := orchestrator.DownloadAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"P1", "P2", "P3", "P4", "P5"}, acquirer.seen)
	assert.Equal(t, domain.RunStats{Total: 5, Processed: 5, Succeeded: 4, Failed: 1}, stats)
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		5 * time.Second, 2 * time.Second,
		5 * time.Second,
	}, pauses.delays)

	count, err := store.CountPending(context.Background(), domain.WorklistQuery{Kind: domain.WorklistDownload})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRetryFailedVisitsEachPKOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	seedStandards(t, store, "P1", "P2", "P3")
	ctx := context.Background()
	for _, pk := range []string{"P1", "P2", "P3"} {
		_, err := store.SaveAttempt(ctx, domain.DownloadRecord{PK: pk, Status: domain.DownloadFailed})
		require.NoError(t, err)
	}

	acquirer := &scriptedAcquirer{store: store, fail: map[string]bool{"P1": true, "P2": true, "P3": true}}
	orchestrator := usecase.NewOrchestrator(store, acquirer, downloadConfig(), (&recordingPause{}).Func, nil)

	stats, err := orchestrator.RetryFailed(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"P1", "P2", "P3"}, acquirer.seen)
	assert.Equal(t, 3, stats.Failed)
	assert.False(t, stats.Interrupted)
}

func TestRetryFailedCountsMissingStandardAsFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.SaveAttempt(context.Background(), domain.DownloadRecord{PK: "ghost", Status: domain.DownloadFailed})
	require.NoError(t, err)

	acquirer := &scriptedAcquirer{store: store}
	orchestrator := usecase.NewOrchestrator(store, acquirer, downloadConfig(), (&recordingPause{}).Func, nil)

	stats, err := orchestrator.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStats{Total: 1, Processed: 1, Failed: 1}, stats)
	assert.Empty(t, acquirer.seen)
}

func TestDownloadAllStopsOnInterruptedDelay(t *testing.T) {
	store := storage.NewMemoryStore()
	seedStandards(t, store, "P1", "P2", "P3")

	acquirer := &scriptedAcquirer{store: store}
	pauses := &recordingPause{err: context.Canceled}
	orchestrator := usecase.NewOrchestrator(store, acquirer, downloadConfig(), pauses.Func, nil)

	stats, err := orchestrator.DownloadAll(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Interrupted)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, []string{"P1"}, acquirer.seen)
	assert.Contains(t, stats.String(), "interrupted")
}

type brokenWorklist struct {
	*storage.MemoryStore
}

func (brokenWorklist) CountPending(context.Context, domain.WorklistQuery) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestDownloadAllFailsWhenWorklistUnavailable(t *testing.T) {
	store := brokenWorklist{MemoryStore: storage.NewMemoryStore()}
	orchestrator := usecase.NewOrchestrator(store, &scriptedAcquirer{store: store.MemoryStore}, downloadConfig(), nil, nil)

	_, err := orchestrator.DownloadAll(context.Background())
	require.ErrorContains(t, err, "connection refused")
}
