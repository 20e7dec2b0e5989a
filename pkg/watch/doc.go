// Package watch re-runs a callback when pipeline files change on disk.
//
// Files are watched through their parent directory so editors that save by
// renaming a temporary file over the original keep triggering events.
// Bursts of events are collapsed by a Debouncer.
package watch
