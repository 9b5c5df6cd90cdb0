package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mercator-hq/revkeep/pkg/retention"
	"mercator-hq/revkeep/pkg/retention/selector"
	"mercator-hq/revkeep/pkg/revision"
)

func sampleReport() *Report {
	changed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	policy := &retention.Policy{ContentType: "article", MinimumRevisionsToKeep: 3}
	groups := []selector.RecordCandidates{
		{
			Record: &revision.Record{
				ID: 1, Type: "article", Title: "Hello, world", Owner: "alice",
				Status: revision.StatusPublished, Changed: changed, CurrentRevisionID: 15,
			},
			Revisions: []int64{10, 11},
			Total:     6,
		},
		{
			Record: &revision.Record{
				ID: 2, Type: "article", Title: "Second", Owner: "bob",
				Status: revision.StatusUnpublished, Changed: changed, CurrentRevisionID: 25,
			},
			Revisions: []int64{20},
			Total:     4,
		},
	}
	return New(policy, groups, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
}

func TestNew(t *testing.T) {
	r := sampleReport()
	if r.Records != 2 || r.Total != 3 {
		t.Errorf("Records, Total = %d, %d, want 2, 3", r.Records, r.Total)
	}
	if r.Candidates[2].RecordID != 2 || r.Candidates[2].RevisionID != 20 {
		t.Errorf("last row = %+v, want record 2 revision 20", r.Candidates[2])
	}
	if r.Candidates[0].RevisionCount != 6 {
		t.Errorf("RevisionCount = %d, want 6", r.Candidates[0].RevisionCount)
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), sampleReport(), &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var got Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.ContentType != "article" || got.Total != 3 || len(got.Candidates) != 3 {
		t.Errorf("decoded = %+v", got)
	}
	if got.Policy == nil || got.Policy.MinimumRevisionsToKeep != 3 {
		t.Errorf("Policy = %+v, want keep 3", got.Policy)
	}
}

func TestJSONExporter_Empty(t *testing.T) {
	r := New(&retention.Policy{ContentType: "page"}, nil, time.Now())

	var buf bytes.Buffer
	if err := NewJSONExporter(true).Export(context.Background(), r, &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"candidates": []`)) {
		t.Errorf("output = %s, want empty candidates array", buf.String())
	}
}

func TestCSVExporter(t *testing.T) {
	tests := []struct {
		name          string
		includeHeader bool
		wantRows      int
	}{
		{"with header", true, 4},
		{"without header", false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewCSVExporter(tt.includeHeader).Export(context.Background(), sampleReport(), &buf); err != nil {
				t.Fatalf("Export() failed: %v", err)
			}

			rows, err := csv.NewReader(&buf).ReadAll()
			if err != nil {
				t.Fatalf("invalid CSV: %v", err)
			}
			if len(rows) != tt.wantRows {
				t.Fatalf("rows = %d, want %d", len(rows), tt.wantRows)
			}

			first := rows[0]
			if tt.includeHeader {
				if first[0] != "content_type" {
					t.Errorf("header = %v", first)
				}
				first = rows[1]
			}
			want := []string{"article", "1", "Hello, world", "alice", "published", "2024-01-02T03:04:05Z", "10", "6"}
			for i := range want {
				if first[i] != want[i] {
					t.Errorf("column %d = %q, want %q", i, first[i], want[i])
				}
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExport_WriteError(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatCSV} {
		exp, err := NewExporter(format)
		if err != nil {
			t.Fatalf("NewExporter(%s) failed: %v", format, err)
		}
		err = exp.Export(context.Background(), sampleReport(), failingWriter{})
		var exportErr *ExportError
		if !errors.As(err, &exportErr) {
			t.Errorf("%s: error = %v, want ExportError", format, err)
		}
	}
}

func TestNewExporter_Unknown(t *testing.T) {
	if _, err := NewExporter("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
