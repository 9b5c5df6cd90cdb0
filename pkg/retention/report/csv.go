package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// CSVExporter writes one row per candidate revision.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes the candidates of r to w. The policy is not part of the
// output.
func (e *CSVExporter) Export(ctx context.Context, r *Report, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return NewExportError("csv", 0, err)
		}
	}

	for i, row := range r.Candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(toRow(row)); err != nil {
			return NewExportError("csv", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return NewExportError("csv", len(r.Candidates), err)
	}
	return nil
}

func headerRow() []string {
	return []string{
		"content_type", "record_id", "title", "owner", "status", "changed",
		"revision_id", "revision_count",
	}
}

func toRow(row Row) []string {
	changed := ""
	if !row.Changed.IsZero() {
		changed = row.Changed.Format(time.RFC3339)
	}
	return []string{
		row.ContentType,
		strconv.FormatInt(row.RecordID, 10),
		row.Title,
		row.Owner,
		row.Status,
		changed,
		strconv.FormatInt(row.RevisionID, 10),
		strconv.Itoa(row.RevisionCount),
	}
}
