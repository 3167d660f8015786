package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"mercator-hq/rulesengine/pkg/audit"
)

// New returns the exporter for format ("json" or "csv").
func New(format string) (audit.Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(true), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, audit.NewExportError(format, 0, fmt.Errorf("unsupported export format %q", format))
	}
}

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w.
func (e *JSONExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	if records == nil {
		records = []*audit.Record{}
	}

	encoder := json.NewEncoder(w)
	if e.Pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(records); err != nil {
		return audit.NewExportError("json", len(records), err)
	}
	return nil
}

// CSVExporter writes records as CSV rows.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header lists the CSV columns in order.
var Header = []string{
	"id", "timestamp", "tenant_id", "actor",
	"action", "entity_type", "entity_id", "reason",
	"before", "after", "content_hash",
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	for i, record := range records {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return audit.NewExportError("csv", len(records), err)
			}
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordToRow(r *audit.Record) []string {
	return []string{
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.TenantID,
		r.Actor,
		r.Action,
		r.EntityType,
		r.EntityID,
		r.Reason,
		string(r.Before),
		string(r.After),
		r.ContentHash,
	}
}
