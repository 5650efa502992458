package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

// DefaultMemoryLimit bounds the in-process store when no limit is given.
const DefaultMemoryLimit = 1000

// Memory keeps the most recent records in process, evicting the oldest once
// full. It backs the audit endpoint when no external store is configured.
type Memory struct {
	mu      sync.RWMutex
	records []core.DecisionRecord // ring of cap limit
	next    int                   // slot the next write lands in
	full    bool
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{records: make([]core.DecisionRecord, 0, limit)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Write(ctx context.Context, rec core.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		m.records = append(m.records, rec)
		m.full = len(m.records) == cap(m.records)
		m.next = len(m.records) % cap(m.records)
		return nil
	}
	m.records[m.next] = rec
	m.next = (m.next + 1) % len(m.records)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Limit is the number of records kept.
func (m *Memory) Limit() int { return cap(m.records) }

// Records returns a copy in write order, oldest first.
func (m *Memory) Records() []core.DecisionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.DecisionRecord, 0, len(m.records))
	if m.full {
		out = append(out, m.records[m.next:]...)
		return append(out, m.records[:m.next]...)
	}
	return append(out, m.records...)
}

// List returns matching records newest first.
func (m *Memory) List(ctx context.Context, filter core.AuditFilter) (*core.PaginatedDecisions, error) {
	var matched []core.DecisionRecord
	for _, rec := range m.Records() {
		if Matches(filter, rec) {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	page, limit := NormalizePage(filter.Page, filter.Limit)
	total := int64(len(matched))
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	out := &core.PaginatedDecisions{Data: append([]core.DecisionRecord{}, matched[start:end]...)}
	out.Pagination.CurrentPage = page
	out.Pagination.TotalPages = TotalPages(total, limit)
	out.Pagination.TotalItems = total
	out.Pagination.PerPage = limit
	return out, nil
}

// Matches reports whether rec satisfies every set field of filter.
func Matches(filter core.AuditFilter, rec core.DecisionRecord) bool {
	if filter.DatasetID != "" && rec.DatasetID != filter.DatasetID {
		return false
	}
	if filter.ModelID != "" && rec.ModelID != filter.ModelID {
		return false
	}
	if filter.Verdict != "" && rec.CombinedVerdict != filter.Verdict {
		return false
	}
	return true
}

// NormalizePage applies the default page (1) and page size (20).
func NormalizePage(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return page, limit
}

func TotalPages(total, limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
