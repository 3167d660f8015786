// Package export writes audit records as JSON or CSV.
//
// Both exporters implement audit.Exporter:
//
//	exporter, err := export.New("csv")
//	if err != nil {
//	    return err
//	}
//	err = exporter.Export(ctx, records, os.Stdout)
//
// JSON output is always an array. CSV output has one row per record with
// the before/after snapshots as raw JSON strings.
package export
