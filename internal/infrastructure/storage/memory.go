package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/ports"
)

type categoryKey struct {
	code  string
	title string
}

// MemoryStore keeps crawl state in process memory. It backs the memory
// database driver and the use case tests.
type MemoryStore struct {
	mu         sync.Mutex
	nextID     int64
	categories map[categoryKey]domain.Category
	standards  map[string]domain.Standard
	details    map[string]domain.DetailInfo
	downloads  map[string]domain.DownloadRecord
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: map[categoryKey]domain.Category{},
		standards:  map[string]domain.Standard{},
		details:    map[string]domain.DetailInfo{},
		downloads:  map[string]domain.DownloadRecord{},
	}
}

func (m *MemoryStore) UpsertCategories(_ context.Context, categories []domain.Category) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		key := categoryKey{code: c.Code, title: c.Title}
		if existing, ok := m.categories[key]; ok {
			c.ID = existing.ID
		} else {
			m.nextID++
			c.ID = m.nextID
		}
		m.categories[key] = c
		saved = append(saved, c)
	}
	return saved, nil
}

func (m *MemoryStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *MemoryStore) UpsertStandards(_ context.Context, standards []domain.Standard) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unique := dedupe(standards, func(s domain.Standard) string { return s.PK })
	for _, s := range unique {
		m.standards[s.PK] = s
	}
	return len(unique), nil
}

func (m *MemoryStore) GetStandard(_ context.Context, pk string) (domain.Standard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.standards[pk]
	if !ok {
		return domain.Standard{}, fmt.Errorf("standard %s: %w", pk, domain.ErrNotFound)
	}
	return s, nil
}

func (m *MemoryStore) UpsertDetailInfos(_ context.Context, infos []domain.DetailInfo) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unique := dedupe(infos, func(d domain.DetailInfo) string { return d.PK })
	for _, d := range unique {
		m.details[d.PK] = d
	}
	return len(unique), nil
}

func (m *MemoryStore) GetDetailInfo(_ context.Context, pk string) (domain.DetailInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.details[pk]
	if !ok {
		return domain.DetailInfo{}, fmt.Errorf("detail info %s: %w", pk, domain.ErrNotFound)
	}
	return d, nil
}

func (m *MemoryStore) GetDownload(_ context.Context, pk string) (domain.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.downloads[pk]
	if !ok {
		return domain.DownloadRecord{}, fmt.Errorf("download %s: %w", pk, domain.ErrNotFound)
	}
	return d, nil
}

func (m *MemoryStore) SaveAttempt(_ context.Context, record domain.DownloadRecord) (domain.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.RetryCount = m.downloads[record.PK].RetryCount
	m.downloads[record.PK] = record
	return record, nil
}

func (m *MemoryStore) IncrementRetry(_ context.Context, pk string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.downloads[pk]
	if !ok || d.RetryCount >= limit {
		return nil
	}
	d.RetryCount++
	m.downloads[pk] = d
	return nil
}

func (m *MemoryStore) PendingPKs(_ context.Context, q domain.WorklistQuery, offset, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pks, err := m.pending(q)
	if err != nil {
		return nil, err
	}

	offset = max(offset, 0)
	if offset >= len(pks) || limit <= 0 {
		return nil, nil
	}
	end := min(offset+limit, len(pks))
	return slices.Clone(pks[offset:end]), nil
}

func (m *MemoryStore) CountPending(_ context.Context, q domain.WorklistQuery) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q.After = ""
	pks, err := m.pending(q)
	if err != nil {
		return 0, err
	}
	return int64(len(pks)), nil
}

// pending evaluates the worklist predicate; callers hold the lock.
func (m *MemoryStore) pending(q domain.WorklistQuery) ([]string, error) {
	var pks []string

	switch q.Kind {
	case domain.WorklistDetail:
		for pk := range m.standards {
			if _, done := m.details[pk]; !done {
				pks = append(pks, pk)
			}
		}
	case domain.WorklistDownload:
		for pk := range m.standards {
			if _, seen := m.downloads[pk]; !seen {
				pks = append(pks, pk)
			}
		}
	case domain.WorklistRetry:
		for pk, d := range m.downloads {
			unfinished := d.Status == domain.DownloadFailed || d.Status == domain.DownloadPending
			if unfinished && d.RetryCount < q.MaxRetries {
				pks = append(pks, pk)
			}
		}
	default:
		return nil, fmt.Errorf("unknown worklist %q", q.Kind)
	}

	slices.Sort(pks)
	if q.After != "" {
		idx, found := slices.BinarySearch(pks, q.After)
		if found {
			idx++
		}
		pks = pks[idx:]
	}
	return pks, nil
}
