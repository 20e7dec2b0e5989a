// Package expr implements the templated expression language used in
// pipeline step fields.
//
// A template is literal text with embedded {{ expression }} segments:
//
//	"{{ s1_start + params.LINKER_LEN }}"
//	"{{ umi | length == 8 and bc_ok }}"
//	"{{ seq[0:4] ~ '_' ~ read_id }}"
//
// Expressions support integer, float, string and boolean literals,
// arithmetic (+ - * / // %), string concatenation (~), comparisons,
// boolean connectives (and, or, not), membership (in), string indexing and
// slicing, a fixed set of filters (x | length) and functions (len(x)).
//
// Identifiers resolve against a three-layer Scope: per-read context
// variables shadow run-level params, which shadow globals. The params and
// globals namespaces can be addressed explicitly as params.NAME and
// globals.NAME.
//
// Templates are compiled once per distinct source string through a Cache,
// which is safe for concurrent use.
package expr
