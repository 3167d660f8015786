package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Audit actions recorded by the rule store and engine.
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionRollback    = "rollback"
	ActionActivate    = "activate"
	ActionDeactivate  = "deactivate"
	ActionClone       = "clone"
	ActionGroupCreate = "group_create"
	ActionGroupModify = "group_modify"
)

// Entity types recorded in the audit trail.
const (
	EntityRule  = "rule"
	EntityGroup = "group"
)

// Entry is a mutation reported to a Sink.
type Entry struct {
	// TenantID scopes the entry.
	TenantID string

	// Actor is who performed the mutation. Empty means "system".
	Actor string

	// Action is the mutation name (create, update, rollback, ...).
	Action string

	// EntityType is "rule" or "group".
	EntityType string

	// EntityID identifies the mutated entity.
	EntityID string

	// Before is the entity state before the mutation, if any.
	Before interface{}

	// After is the entity state after the mutation, if any.
	After interface{}

	// Reason is the optional change reason.
	Reason string
}

// Sink receives audit entries after every successful mutation.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Record accepts an entry. It returns an error when the entry could not
	// be accepted; the mutation itself has already been persisted.
	Record(ctx context.Context, entry *Entry) error
}

// NopSink discards every entry.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(ctx context.Context, entry *Entry) error {
	return nil
}

// Record is a persisted audit trail entry.
type Record struct {
	// Identity
	ID        string    `json:"id"`        // UUID v4
	Timestamp time.Time `json:"timestamp"` // When the mutation was recorded

	// Scope
	TenantID string `json:"tenant_id"`
	Actor    string `json:"actor"`

	// Mutation
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Reason     string `json:"reason,omitempty"`

	// State snapshots (JSON encoded)
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`

	// ContentHash is the SHA-256 of Before and After, hex encoded.
	ContentHash string `json:"content_hash"`
}

// Query defines filter parameters for audit records.
type Query struct {
	// Time range
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	TenantID   string `json:"tenant_id,omitempty"`
	Actor      string `json:"actor,omitempty"`
	Action     string `json:"action,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return
	Offset int `json:"offset,omitempty"` // Skip N records

	// Sorting
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc" by timestamp
}

const (
	// DefaultLimit is the number of records returned when Limit is zero.
	DefaultLimit = 100

	// MaxLimit is the maximum number of records returned by one query.
	MaxLimit = 10000
)

// Validate checks query parameters.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	return nil
}

// ApplyDefaults fills in the default limit and sort order.
func (q *Query) ApplyDefaults() {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// Matches reports whether a record passes the query filters.
// Pagination is not considered.
func (q *Query) Matches(r *Record) bool {
	if q.StartTime != nil && r.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.Timestamp.After(*q.EndTime) {
		return false
	}
	if q.TenantID != "" && r.TenantID != q.TenantID {
		return false
	}
	if q.Actor != "" && r.Actor != q.Actor {
		return false
	}
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	if q.EntityType != "" && r.EntityType != q.EntityType {
		return false
	}
	if q.EntityID != "" && r.EntityID != q.EntityID {
		return false
	}
	return true
}

// Storage defines the interface for audit storage backends.
// Implementations must be thread-safe and support concurrent access.
type Storage interface {
	// Store persists an audit record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the query filters.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the query filters and returns the
	// number of records deleted. Used for retention enforcement.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the storage backend.
	Close() error
}

// Exporter writes audit records in a serialization format.
type Exporter interface {
	// Export writes records to w.
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
