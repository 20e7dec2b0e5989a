// Package runner connects the pipeline engine to files on disk.
//
// It adapts fastq.PairedReader to engine.PairSource, writes clipped reads
// for passing pairs (ClipSink), writes per-pair JSON Lines reports
// (ReportSink) and runs fixture suites that pin a pipeline's verdicts for
// hand-written read pairs.
package runner
