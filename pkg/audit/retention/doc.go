// Package retention deletes old audit runs.
//
// Pruner removes runs older than RetentionDays, then the oldest runs beyond
// MaxRuns. Verdicts are deleted with their run. Scheduler runs a Pruner on a
// cron expression such as "0 3 * * *" (daily at 3 AM).
package retention
