// Package fastq reads and writes paired-end FASTQ files.
//
// Input compression is detected from the stream's magic bytes, so plain,
// gzip and zstd files can be mixed freely. Output defaults to gzip at
// level 3 and is written as <prefix>.R1.fastq.gz and <prefix>.R2.fastq.gz.
package fastq
