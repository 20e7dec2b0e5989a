// Package recorder writes audit records for pipeline runs.
//
// Recorder implements engine.Observer. Verdicts are converted to
// audit.VerdictRecord values and handed to a background worker over a
// buffered channel, so a slow database never stalls the read loop. Close
// drains the channel before returning.
package recorder
