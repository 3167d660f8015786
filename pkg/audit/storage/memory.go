package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"mercator-hq/rulesengine/pkg/audit"
)

// MemoryStorage implements audit.Storage with an in-memory map.
type MemoryStorage struct {
	records map[string]*audit.Record
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audit.NewStorageError("memory", "store", errClosed)
	}
	s.records[record.ID] = copyRecord(record)
	return nil
}

// Query returns copies of the matching records, sorted and paginated.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	q, err := prepare(query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, audit.NewStorageError("memory", "query", errClosed)
	}

	results := []*audit.Record{}
	for _, record := range s.records {
		if q.Matches(record) {
			results = append(results, copyRecord(record))
		}
	}

	sortRecords(results, q.SortOrder)

	if q.Offset >= len(results) {
		return []*audit.Record{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(results) {
		end = len(results)
	}
	return results[q.Offset:end], nil
}

// Count returns the number of records matching the filters.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, audit.NewStorageError("memory", "count", errClosed)
	}
	if query == nil {
		query = &audit.Query{}
	}

	var count int64
	for _, record := range s.records {
		if query.Matches(record) {
			count++
		}
	}
	return count, nil
}

// Delete removes the records matching the filters. Pagination is ignored.
func (s *MemoryStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, audit.NewStorageError("memory", "delete", errClosed)
	}
	if query == nil {
		query = &audit.Query{}
	}

	var deleted int64
	for id, record := range s.records {
		if query.Matches(record) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ping reports an error once the store is closed.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return audit.NewStorageError("memory", "ping", errClosed)
	}
	return nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*audit.Record)
	s.closed = true
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

var errClosed = errors.New("storage closed")

// prepare validates query and returns a copy with defaults applied.
func prepare(query *audit.Query) (*audit.Query, error) {
	q := audit.Query{}
	if query != nil {
		q = *query
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.ApplyDefaults()
	return &q, nil
}

func sortRecords(records []*audit.Record, order string) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if order == "asc" {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.Timestamp.After(b.Timestamp)
		}
		if order == "asc" {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

func copyRecord(r *audit.Record) *audit.Record {
	c := *r
	c.Before = append([]byte(nil), r.Before...)
	c.After = append([]byte(nil), r.After...)
	return &c
}
