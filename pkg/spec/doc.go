// Package spec decodes and validates pipeline definitions.
//
// A pipeline file is YAML with three top-level sections:
//
//	params:                 # run-level constants, literals or templates
//	  LINKER: GGGTAC
//	  LINKER_LEN: "{{ params.LINKER | length }}"
//	globals:                # named resources and static values
//	  barcode_whitelists:
//	    bc1: whitelists/bc1.txt
//	  regex_patterns:
//	    adapter: {type: full_or_tail, sequence: AGATCGGAAG, min_tail: 5}
//	pipeline:               # ordered steps
//	  - id: anchor
//	    op: match
//	    read: 1
//	    ref: "{{ params.LINKER }}"
//	    max_wobble: 3
//	    max_mismatch: 1
//	    store_pos_as: s1_start
//	    must_pass: true
//
// barcode_whitelists and regex_patterns may also be placed under params,
// which is folded into globals at parse time.
//
// Parsing preserves YAML line numbers so that structural and semantic
// errors point at the offending step and field. LoadGlobals reads the
// whitelist files and compiles patterns into a Globals table ready for the
// engine.
package spec
