// Package match provides the sequence matching primitives used by pipeline
// steps: Hamming-family distance metrics, windowed ("wobble") search,
// whitelist membership and compiled pattern search.
//
// All functions in this package are pure and safe for concurrent use.
// Distances are only defined for equal-length operands; a length difference
// is reported as a *LengthMismatchError rather than silently truncated.
package match
