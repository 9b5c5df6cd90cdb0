package report

import (
	"context"
	"encoding/json"
	"io"
)

// JSONExporter writes a report as one JSON document.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes r to w.
func (e *JSONExporter) Export(ctx context.Context, r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r); err != nil {
		return NewExportError("json", len(r.Candidates), err)
	}
	return nil
}
