package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"mercator-hq/revkeep/pkg/retention"
	"mercator-hq/revkeep/pkg/retention/selector"
)

// Row is one candidate revision with the metadata of its record.
type Row struct {
	ContentType   string    `json:"content_type" yaml:"content_type"`
	RecordID      int64     `json:"record_id" yaml:"record_id"`
	Title         string    `json:"title" yaml:"title"`
	Owner         string    `json:"owner" yaml:"owner"`
	Status        string    `json:"status" yaml:"status"`
	Changed       time.Time `json:"changed" yaml:"changed"`
	RevisionID    int64     `json:"revision_id" yaml:"revision_id"`
	RevisionCount int       `json:"revision_count" yaml:"revision_count"` // revisions of the record before pruning
}

// Report is the dry-run preview of a pruning run.
type Report struct {
	ContentType string            `json:"content_type" yaml:"content_type"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Policy      *retention.Policy `json:"policy" yaml:"policy"`
	Records     int               `json:"records" yaml:"records"`
	Total       int               `json:"total" yaml:"total"`
	Candidates  []Row             `json:"candidates" yaml:"candidates"`
}

// New builds a report from the grouped candidates of policy.
func New(policy *retention.Policy, groups []selector.RecordCandidates, generatedAt time.Time) *Report {
	r := &Report{
		ContentType: policy.ContentType,
		GeneratedAt: generatedAt.UTC(),
		Policy:      policy,
		Records:     len(groups),
		Candidates:  []Row{},
	}
	for _, g := range groups {
		for _, id := range g.Revisions {
			r.Candidates = append(r.Candidates, Row{
				ContentType:   g.Record.Type,
				RecordID:      g.Record.ID,
				Title:         g.Record.Title,
				Owner:         g.Record.Owner,
				Status:        string(g.Record.Status),
				Changed:       g.Record.Changed.UTC(),
				RevisionID:    id,
				RevisionCount: g.Total,
			})
		}
	}
	r.Total = len(r.Candidates)
	return r
}

// Exporter writes a report in one format.
type Exporter interface {
	Export(ctx context.Context, r *Report, w io.Writer) error
}

// Format names an export format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// NewExporter returns the exporter of a format.
func NewExporter(format Format) (Exporter, error) {
	switch format {
	case FormatJSON, "":
		return NewJSONExporter(true), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	}
	return nil, fmt.Errorf("unsupported report format %q (expected json or csv)", format)
}

// ExportError represents a failure while writing a report.
type ExportError struct {
	Format string
	Rows   int
	Cause  error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("report export failed [format=%s, rows=%d]: %v", e.Format, e.Rows, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(format string, rows int, cause error) *ExportError {
	return &ExportError{Format: format, Rows: rows, Cause: cause}
}
