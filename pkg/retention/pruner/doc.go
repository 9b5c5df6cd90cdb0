// Package pruner runs retention policies against a revision store.
//
// A Pruner combines the candidate selector, the deletion executor and the
// settings manager. It offers manual runs per content type or per record
// list, prior-revision deletion for one record, and the scheduled pass that
// is gated by the configured frequency and capped at the per-run quantity.
//
// # Scheduled runs
//
//	p := pruner.New(store, mgr, &pruner.Config{Schedule: "@every 1h", ChunkSize: 50})
//	s := pruner.NewScheduler(p)
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Each tick calls RunScheduled, which returns ErrNotDue while the frequency
// gate is closed. Overlapping ticks are skipped.
//
// # Bookkeeping
//
// The last execute time is written after every non-dry run that completes,
// manual or scheduled. Dry runs, failed runs and cancelled runs leave it
// untouched.
package pruner
