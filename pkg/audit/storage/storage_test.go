package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/rulesengine/pkg/audit"
)

var (
	_ audit.Storage = (*MemoryStorage)(nil)
	_ audit.Storage = (*SQLiteStorage)(nil)
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newRecord(i int, action, entityID string) *audit.Record {
	return &audit.Record{
		ID:          fmt.Sprintf("rec-%02d", i),
		Timestamp:   baseTime.Add(time.Duration(i) * time.Minute),
		TenantID:    "tenant-a",
		Actor:       "alice",
		Action:      action,
		EntityType:  audit.EntityRule,
		EntityID:    entityID,
		After:       []byte(`{"id":"` + entityID + `"}`),
		ContentHash: "hash",
	}
}

// seed stores 6 records: r1 create/update/rollback, r2 create/update, group g1 create.
func seed(t *testing.T, s audit.Storage) {
	t.Helper()
	records := []*audit.Record{
		newRecord(1, audit.ActionCreate, "r1"),
		newRecord(2, audit.ActionUpdate, "r1"),
		newRecord(3, audit.ActionCreate, "r2"),
		newRecord(4, audit.ActionRollback, "r1"),
		newRecord(5, audit.ActionUpdate, "r2"),
		{
			ID: "rec-06", Timestamp: baseTime.Add(6 * time.Minute), TenantID: "tenant-b", Actor: "bob",
			Action: audit.ActionGroupCreate, EntityType: audit.EntityGroup, EntityID: "g1",
			Reason: "initial", ContentHash: "hash",
		},
	}
	for _, r := range records {
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store(%s) error = %v", r.ID, err)
		}
	}
}

func ids(records []*audit.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func runStorageTests(t *testing.T, newStorage func(t *testing.T) audit.Storage) {
	ctx := context.Background()

	t.Run("query filters", func(t *testing.T) {
		s := newStorage(t)
		seed(t, s)

		start := baseTime.Add(2 * time.Minute)
		end := baseTime.Add(4 * time.Minute)

		tests := []struct {
			name  string
			query audit.Query
			want  []string
		}{
			{"all newest first", audit.Query{}, []string{"rec-06", "rec-05", "rec-04", "rec-03", "rec-02", "rec-01"}},
			{"ascending", audit.Query{SortOrder: "asc", Limit: 2}, []string{"rec-01", "rec-02"}},
			{"entity", audit.Query{EntityID: "r1"}, []string{"rec-04", "rec-02", "rec-01"}},
			{"action", audit.Query{Action: audit.ActionUpdate}, []string{"rec-05", "rec-02"}},
			{"actor", audit.Query{Actor: "bob"}, []string{"rec-06"}},
			{"tenant", audit.Query{TenantID: "tenant-a", EntityType: audit.EntityGroup}, []string{}},
			{"time range inclusive", audit.Query{StartTime: &start, EndTime: &end}, []string{"rec-04", "rec-03", "rec-02"}},
			{"offset", audit.Query{Limit: 2, Offset: 1}, []string{"rec-05", "rec-04"}},
			{"offset past end", audit.Query{Offset: 10}, []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				q := tt.query
				got, err := s.Query(ctx, &q)
				if err != nil {
					t.Fatalf("Query() error = %v", err)
				}
				gotIDs := ids(got)
				if fmt.Sprint(gotIDs) != fmt.Sprint(tt.want) {
					t.Errorf("Query() = %v, want %v", gotIDs, tt.want)
				}
			})
		}
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStorage(t)
		seed(t, s)

		got, err := s.Query(ctx, &audit.Query{EntityID: "g1"})
		if err != nil || len(got) != 1 {
			t.Fatalf("Query() = %v, %v", got, err)
		}
		r := got[0]
		if r.Reason != "initial" || r.TenantID != "tenant-b" || r.EntityType != audit.EntityGroup {
			t.Errorf("record = %+v", r)
		}
		if !r.Timestamp.Equal(baseTime.Add(6 * time.Minute)) {
			t.Errorf("Timestamp = %v", r.Timestamp)
		}
		if r.Before != nil || r.After != nil {
			t.Errorf("Before = %q, After = %q, want nil", r.Before, r.After)
		}

		got, err = s.Query(ctx, &audit.Query{EntityID: "r2", SortOrder: "asc", Limit: 1})
		if err != nil || len(got) != 1 {
			t.Fatalf("Query() = %v, %v", got, err)
		}
		if string(got[0].After) != `{"id":"r2"}` {
			t.Errorf("After = %s", got[0].After)
		}
	})

	t.Run("invalid query", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Query(ctx, &audit.Query{SortOrder: "sideways"})
		var qerr *audit.QueryError
		if !errors.As(err, &qerr) {
			t.Errorf("Query() error = %v, want QueryError", err)
		}
	})

	t.Run("count and delete", func(t *testing.T) {
		s := newStorage(t)
		seed(t, s)

		count, err := s.Count(ctx, &audit.Query{TenantID: "tenant-a"})
		if err != nil || count != 5 {
			t.Fatalf("Count() = %d, %v, want 5", count, err)
		}

		cutoff := baseTime.Add(3 * time.Minute)
		deleted, err := s.Delete(ctx, &audit.Query{EndTime: &cutoff})
		if err != nil || deleted != 3 {
			t.Fatalf("Delete() = %d, %v, want 3", deleted, err)
		}

		count, err = s.Count(ctx, &audit.Query{})
		if err != nil || count != 3 {
			t.Errorf("Count() after delete = %d, %v, want 3", count, err)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := newStorage(t)
		if err := s.Store(ctx, newRecord(1, audit.ActionCreate, "r1")); err != nil {
			t.Fatal(err)
		}
		err := s.Store(ctx, newRecord(1, audit.ActionCreate, "r1"))
		if _, isMemory := s.(*MemoryStorage); isMemory {
			// Memory storage overwrites by id.
			return
		}
		var serr *audit.StorageError
		if !errors.As(err, &serr) {
			t.Errorf("Store() duplicate error = %v, want StorageError", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStorage(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func TestMemoryStorage(t *testing.T) {
	runStorageTests(t, func(t *testing.T) audit.Storage {
		return NewMemoryStorage()
	})
}

func TestMemoryStorage_Closed(t *testing.T) {
	s := NewMemoryStorage()
	seed(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var serr *audit.StorageError
	if err := s.Store(ctx, newRecord(9, audit.ActionCreate, "r9")); !errors.As(err, &serr) {
		t.Errorf("Store() after Close error = %v, want StorageError", err)
	}
	if _, err := s.Query(ctx, &audit.Query{}); !errors.As(err, &serr) {
		t.Errorf("Query() after Close error = %v, want StorageError", err)
	}
	if err := s.Ping(ctx); err == nil {
		t.Error("Ping() after Close expected error")
	}
	if s.Size() != 0 {
		t.Errorf("Size() = %d, want 0", s.Size())
	}
}

func TestMemoryStorage_CopiesRecords(t *testing.T) {
	s := NewMemoryStorage()
	r := newRecord(1, audit.ActionCreate, "r1")
	if err := s.Store(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	r.Actor = "mallory"
	r.After[0] = 'X'

	got, err := s.Query(context.Background(), &audit.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Actor != "alice" || got[0].After[0] != '{' {
		t.Errorf("stored record was modified through the caller's pointer: %+v", got[0])
	}
}

func TestSQLiteStorage(t *testing.T) {
	for _, driver := range []string{"sqlite3", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			runStorageTests(t, func(t *testing.T) audit.Storage {
				cfg := DefaultSQLiteConfig()
				cfg.Path = filepath.Join(t.TempDir(), "audit.db")
				cfg.Driver = driver
				s, err := NewSQLiteStorage(cfg)
				if err != nil {
					t.Fatalf("NewSQLiteStorage() error = %v", err)
				}
				t.Cleanup(func() { s.Close() })
				return s
			})
		})
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "audit.db")

	s, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatal(err)
	}
	seed(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	count, err := s.Count(context.Background(), &audit.Query{})
	if err != nil || count != 6 {
		t.Errorf("Count() after reopen = %d, %v, want 6", count, err)
	}
}

func TestNewSQLiteStorage_UnknownDriver(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "audit.db")
	cfg.Driver = "oracle"

	_, err := NewSQLiteStorage(cfg)
	var serr *audit.StorageError
	if !errors.As(err, &serr) {
		t.Errorf("NewSQLiteStorage() error = %v, want StorageError", err)
	}
}
