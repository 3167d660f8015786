package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/rulesengine/pkg/audit"
)

var (
	_ audit.Exporter = (*JSONExporter)(nil)
	_ audit.Exporter = (*CSVExporter)(nil)
)

func sampleRecords() []*audit.Record {
	ts := time.Date(2024, 2, 10, 14, 30, 0, 0, time.UTC)
	return []*audit.Record{
		{
			ID: "a1", Timestamp: ts, TenantID: "tenant-a", Actor: "alice",
			Action: audit.ActionCreate, EntityType: audit.EntityRule, EntityID: "r1",
			After: json.RawMessage(`{"name":"High, value"}`), ContentHash: "h1",
		},
		{
			ID: "a2", Timestamp: ts.Add(time.Hour), TenantID: "tenant-a", Actor: "bob",
			Action: audit.ActionRollback, EntityType: audit.EntityRule, EntityID: "r1",
			Reason: "rollback to version 1", ContentHash: "h2",
		},
	}
}

func TestJSONExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		records []*audit.Record
		want    int
	}{
		{"empty", nil, 0},
		{"single record is still an array", sampleRecords()[:1], 1},
		{"many", sampleRecords(), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewJSONExporter(false).Export(context.Background(), tt.records, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			var decoded []audit.Record
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
			}
			if len(decoded) != tt.want {
				t.Errorf("decoded %d records, want %d", len(decoded), tt.want)
			}
		})
	}
}

func TestJSONExporter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(true).Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("pretty output is not indented:\n%s", buf.String())
	}
}

func TestCSVExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "a1" || rows[1][1] != "2024-02-10T14:30:00Z" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[1][9] != `{"name":"High, value"}` {
		t.Errorf("after column = %q", rows[1][9])
	}
	if rows[2][7] != "rollback to version 1" || rows[2][8] != "" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), sampleRecords()[:1], &buf); err != nil {
		t.Fatal(err)
	}
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 1 || rows[0][0] != "a1" {
		t.Errorf("rows = %v", rows)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExporters_WriterError(t *testing.T) {
	for _, format := range []string{"json", "csv"} {
		t.Run(format, func(t *testing.T) {
			exporter, err := New(format)
			if err != nil {
				t.Fatal(err)
			}
			err = exporter.Export(context.Background(), sampleRecords(), failingWriter{})
			var eerr *audit.ExportError
			if !errors.As(err, &eerr) || eerr.Format != format {
				t.Errorf("Export() error = %v, want ExportError for %s", err, format)
			}
		})
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New("xml"); err == nil {
		t.Error("New(xml) expected error")
	}
}
