// Package report exports the candidates of a dry run as JSON or CSV, so an
// operator can review what a policy would delete before running it.
package report
