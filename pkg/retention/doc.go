// Package retention holds the retention policy model shared by the selector,
// executor, settings and pruner packages.
//
// A Policy applies to one content type and combines three criteria:
//
//   - MinimumRevisionsToKeep: the floor. At least max(k, 1) revisions,
//     including the current one, always survive.
//   - MinimumAgeToDelete: a revision must be at least this old.
//   - WhenToDelete: the record must have been inactive this long.
//
// An Age with amount 0 disables its criterion. Enabled criteria are combined
// with the floor; they never bypass it.
//
// The package also owns the frequency table that gates scheduled runs
// (Eligible, FrequencyThreshold) and the human strings for ages
// (UnitString, AgeString).
package retention
