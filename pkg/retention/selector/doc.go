// Package selector computes deletion candidates from a retention policy.
//
// Selection is a pure read over the content store: given the same store
// contents, clock and policy it returns the same ordered sequence. For each
// qualifying record the current revision is set aside, the newest
// max(k-1, 0) remaining revisions are kept, and the rest are candidates
// subject to the optional age and inactivity criteria.
//
// Callers may narrow the candidate-records query with hooks registered on
// the "revision_prune_candidates" tag or on its per-type variant
// "revision_prune_candidates_<type>":
//
//	sel.RegisterHook("revision_prune_candidates_article", func(ctx context.Context, q *revision.RecordQuery) error {
//		q.Statuses = []revision.Status{revision.StatusPublished}
//		return nil
//	})
package selector
