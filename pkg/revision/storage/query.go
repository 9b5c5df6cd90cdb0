package storage

import (
	"fmt"
	"strings"

	"mercator-hq/revkeep/pkg/revision"
)

// placeholderFunc renders the n-th (1-based) bind parameter of a dialect.
type placeholderFunc func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// buildQualifyingQuery renders the candidate-records query: records of a
// content type whose revision count strictly exceeds the minimum, narrowed by
// the optional filters of the query.
func buildQualifyingQuery(q *revision.RecordQuery, ph placeholderFunc) (string, []any) {
	var (
		sb    strings.Builder
		args  []any
		where []string
	)

	bind := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	sb.WriteString("SELECT n.id FROM records n JOIN revisions r ON r.record_id = n.id")

	if q.ContentType != "" {
		where = append(where, "n.type = "+bind(q.ContentType))
	}
	if len(q.Statuses) > 0 {
		in := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			in[i] = bind(string(s))
		}
		where = append(where, "n.status IN ("+strings.Join(in, ", ")+")")
	}
	if len(q.Owners) > 0 {
		in := make([]string, len(q.Owners))
		for i, o := range q.Owners {
			in[i] = bind(o)
		}
		where = append(where, "n.owner IN ("+strings.Join(in, ", ")+")")
	}
	if len(q.IncludeIDs) > 0 {
		in := make([]string, len(q.IncludeIDs))
		for i, id := range q.IncludeIDs {
			in[i] = bind(id)
		}
		where = append(where, "n.id IN ("+strings.Join(in, ", ")+")")
	}
	if len(q.ExcludeIDs) > 0 {
		in := make([]string, len(q.ExcludeIDs))
		for i, id := range q.ExcludeIDs {
			in[i] = bind(id)
		}
		where = append(where, "n.id NOT IN ("+strings.Join(in, ", ")+")")
	}

	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	sb.WriteString(" GROUP BY n.id HAVING COUNT(*) > ")
	sb.WriteString(bind(q.MinimumRevisions))
	sb.WriteString(" ORDER BY n.id ASC")

	return sb.String(), args
}
