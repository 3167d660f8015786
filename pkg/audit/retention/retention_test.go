package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/audit/storage"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// seedDays stores one record per age in days.
func seedDays(t *testing.T, s audit.Storage, ages ...int) {
	t.Helper()
	for i, age := range ages {
		err := s.Store(context.Background(), &audit.Record{
			ID:          fmt.Sprintf("rec-%02d", i),
			Timestamp:   now.AddDate(0, 0, -age),
			TenantID:    "tenant-a",
			Actor:       "alice",
			Action:      audit.ActionUpdate,
			EntityType:  audit.EntityRule,
			EntityID:    "r1",
			ContentHash: "h",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newTestPruner(s audit.Storage, cfg *Config) *Pruner {
	p := NewPruner(s, cfg)
	p.now = func() time.Time { return now }
	return p
}

func TestPruner_Prune(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		ages        []int
		wantDeleted int64
		wantLeft    int
	}{
		{"no limits", Config{}, []int{1, 100, 400}, 0, 3},
		{"by age", Config{RetentionDays: 30}, []int{1, 10, 31, 90}, 2, 2},
		{"by count", Config{MaxRecords: 2}, []int{1, 2, 3, 4, 5}, 3, 2},
		{"count within limit", Config{MaxRecords: 10}, []int{1, 2}, 0, 2},
		{"age then count", Config{RetentionDays: 30, MaxRecords: 1}, []int{1, 5, 60}, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			seedDays(t, s, tt.ages...)
			cfg := tt.config

			deleted, err := newTestPruner(s, &cfg).Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", deleted, tt.wantDeleted)
			}
			if s.Size() != tt.wantLeft {
				t.Errorf("remaining = %d, want %d", s.Size(), tt.wantLeft)
			}
		})
	}
}

func TestPruner_CountKeepsNewest(t *testing.T) {
	s := storage.NewMemoryStorage()
	seedDays(t, s, 5, 1, 3)

	if _, err := newTestPruner(s, &Config{MaxRecords: 1}).Prune(context.Background()); err != nil {
		t.Fatal(err)
	}

	left, err := s.Query(context.Background(), &audit.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].ID != "rec-01" {
		t.Errorf("remaining = %v, want only the newest record rec-01", left)
	}
}

func TestPruner_ArchiveBeforeDelete(t *testing.T) {
	s := storage.NewMemoryStorage()
	seedDays(t, s, 1, 40, 50)
	dir := filepath.Join(t.TempDir(), "archives")

	p := newTestPruner(s, &Config{RetentionDays: 30, ArchiveBeforeDelete: true, ArchivePath: dir})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	files, err := filepath.Glob(filepath.Join(dir, "audit-age-*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("archive files = %v, %v", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	var archived []audit.Record
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatal(err)
	}
	if len(archived) != 2 {
		t.Errorf("archived %d records, want 2", len(archived))
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", "0 3 * * *", true, false},
		{"valid hourly schedule", "0 * * * *", true, false},
		{"empty schedule", "", false, false},
		{"invalid schedule", "every tuesday", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: tt.schedule, RetentionDays: 90})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := p.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if p.scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", p.scheduler.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := p.NextPruning()
				if next == nil || !next.After(time.Now()) {
					t.Errorf("NextPruning() = %v, want a future time", next)
				}
				p.Stop()
				if p.scheduler.IsRunning() {
					t.Error("scheduler still running after Stop()")
				}
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "0 3 * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start() expected error")
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for p.scheduler.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type pruneMetrics struct {
	runs    int
	deleted int64
	err     error
}

func (m *pruneMetrics) RecordAuditPrune(deleted int64, err error) {
	m.runs++
	m.deleted += deleted
	m.err = err
}

func TestPruner_Metrics(t *testing.T) {
	s := storage.NewMemoryStorage()
	seedDays(t, s, 1, 40, 50)

	m := &pruneMetrics{}
	p := newTestPruner(s, &Config{RetentionDays: 30})
	p.SetMetrics(m)

	if _, err := p.Prune(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.runs != 1 || m.deleted != 2 || m.err != nil {
		t.Errorf("metrics = %+v, want 1 run deleting 2", m)
	}
}
