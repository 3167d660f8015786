package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/audit/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep audit records.
	// 0 keeps records forever.
	RetentionDays int

	// PruneSchedule is a cron expression, e.g. "0 3 * * *".
	// Empty disables scheduled pruning.
	PruneSchedule string

	// ArchiveBeforeDelete writes pruned records to ArchivePath first.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory for archive files.
	ArchivePath string

	// MaxRecords caps the number of stored records. 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 365,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/audit-archives/",
	}
}

// Metrics receives the outcome of each prune run.
type Metrics interface {
	RecordAuditPrune(deleted int64, err error)
}

// Pruner deletes audit records that fall outside the retention limits.
type Pruner struct {
	storage   audit.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	metrics   Metrics
	now       func() time.Time
}

// NewPruner creates a pruner for storage.
func NewPruner(storage audit.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// SetMetrics attaches a metrics sink. It must be called before Start.
func (p *Pruner) SetMetrics(m Metrics) {
	p.metrics = m
}

// Prune applies the age limit, then the count limit, and returns the
// number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (total int64, err error) {
	if p.metrics != nil {
		defer func() { p.metrics.RecordAuditPrune(total, err) }()
	}

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, audit.NewRetentionError(p.config.RetentionDays, fmt.Errorf("prune by age: %w", err))
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, audit.NewRetentionError(p.config.RetentionDays, fmt.Errorf("prune by count: %w", err))
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no audit records pruned")
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	query := &audit.Query{EndTime: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archiveQuery(ctx, query, "age"); err != nil {
			return 0, err
		}
	}

	return p.storage.Delete(ctx, query)
}

// pruneByCount deletes the oldest records beyond MaxRecords in batches of
// at most audit.MaxLimit. Records sharing the cutoff timestamp are deleted
// together, so slightly more than the excess may be removed.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	var deleted int64
	for excess := count - p.config.MaxRecords; excess > 0; {
		batch := excess
		if batch > audit.MaxLimit {
			batch = audit.MaxLimit
		}

		oldest, err := p.storage.Query(ctx, &audit.Query{SortOrder: "asc", Limit: int(batch)})
		if err != nil {
			return deleted, fmt.Errorf("failed to query oldest records: %w", err)
		}
		if len(oldest) == 0 {
			break
		}

		if p.config.ArchiveBeforeDelete {
			if err := p.archive(ctx, oldest, "count"); err != nil {
				return deleted, err
			}
		}

		cutoff := oldest[len(oldest)-1].Timestamp
		n, err := p.storage.Delete(ctx, &audit.Query{EndTime: &cutoff})
		if err != nil {
			return deleted, fmt.Errorf("delete failed: %w", err)
		}
		if n == 0 {
			break
		}
		deleted += n
		excess -= n
	}

	if deleted > 0 {
		p.logger.Info("pruned audit records by count",
			"deleted_count", deleted,
			"max_records", p.config.MaxRecords,
		)
	}
	return deleted, nil
}

func (p *Pruner) archiveQuery(ctx context.Context, query *audit.Query, kind string) error {
	count, err := p.storage.Count(ctx, query)
	if err != nil || count == 0 {
		return err
	}

	var records []*audit.Record
	for offset := 0; int64(offset) < count; offset += audit.MaxLimit {
		q := *query
		q.SortOrder = "asc"
		q.Limit = audit.MaxLimit
		q.Offset = offset
		page, err := p.storage.Query(ctx, &q)
		if err != nil {
			return fmt.Errorf("failed to query records for archiving: %w", err)
		}
		records = append(records, page...)
	}
	return p.archive(ctx, records, kind)
}

// archive writes records to a timestamped JSON file under ArchivePath.
func (p *Pruner) archive(ctx context.Context, records []*audit.Record, kind string) error {
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("audit-%s-%s.json", kind, p.now().UTC().Format("20060102-150405.000000000"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	p.logger.Info("audit records archived",
		"archive_file", path,
		"record_count", len(records),
	)
	return nil
}

// Start starts scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled run, or nil when not scheduled.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
