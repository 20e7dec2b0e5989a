// readbreak breaks paired short reads into their structural components.
//
// A YAML pipeline declares named steps that locate anchors, extract barcodes
// and UMIs, check distances and compute clip coordinates. readbreak runs the
// pipeline on every read pair of two FASTQ files, writes the clipped reads
// of the passing pairs and reports which step rejected the others.
//
// Usage:
//
//	# Clip a pair of FASTQ files
//	readbreak run --pipeline umi.yaml --r1 sample_R1.fastq.gz --r2 sample_R2.fastq.gz --out clipped/
//
//	# Validate pipeline files
//	readbreak lint umi.yaml
//
//	# Describe a pipeline and show which fields are frozen
//	readbreak show umi.yaml
//
//	# Run fixture read pairs against a pipeline
//	readbreak test umi_test.yaml
//
//	# List recorded runs
//	readbreak audit list
//
//	# Show version information
//	readbreak version
package main

func main() {
	Execute()
}
