package fastq

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// PairedReader reads read 1 and read 2 files in lockstep.
type PairedReader struct {
	r1, r2   *Reader
	closers  []io.Closer
	trimTail bool
}

// ReaderOption configures a PairedReader.
type ReaderOption func(*PairedReader)

// WithTrimTail truncates read identifiers at the first whitespace, which
// drops Illumina comment fields such as "1:N:0:ACGT".
func WithTrimTail(trim bool) ReaderOption {
	return func(p *PairedReader) { p.trimTail = trim }
}

// OpenPaired opens a pair of (optionally compressed) FASTQ files.
func OpenPaired(path1, path2 string, opts ...ReaderOption) (*PairedReader, error) {
	f1, err := Open(path1)
	if err != nil {
		return nil, err
	}
	f2, err := Open(path2)
	if err != nil {
		f1.Close()
		return nil, err
	}
	p := NewPairedReader(NewReader(f1, path1), NewReader(f2, path2), opts...)
	p.closers = []io.Closer{f1, f2}
	return p, nil
}

// NewPairedReader pairs two record readers.
func NewPairedReader(r1, r2 *Reader, opts ...ReaderOption) *PairedReader {
	p := &PairedReader{r1: r1, r2: r2}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next returns the next pair, or io.EOF when both files are exhausted.
// The pair identifier is taken from read 1.
func (p *PairedReader) Next() (Pair, error) {
	rec1, err1 := p.r1.Next()
	rec2, err2 := p.r2.Next()
	switch {
	case err1 == io.EOF && err2 == io.EOF:
		return Pair{}, io.EOF
	case err1 == io.EOF || err2 == io.EOF:
		return Pair{}, ErrUnpaired
	case err1 != nil:
		return Pair{}, err1
	case err2 != nil:
		return Pair{}, err2
	}

	id := rec1.ID
	if p.trimTail {
		if i := strings.IndexAny(id, " \t"); i >= 0 {
			id = id[:i]
		}
	}
	return Pair{ID: id, R1: rec1, R2: rec2}, nil
}

// Close closes the underlying files.
func (p *PairedReader) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// PairedWriter writes read 1 and read 2 records to separate files.
type PairedWriter struct {
	w1, w2  *Writer
	closers []io.Closer
	Path1   string
	Path2   string
	written int64
}

// OutputPaths returns the read 1 and read 2 paths for a prefix.
func OutputPaths(dir, prefix string, c Compression) (string, string) {
	ext := ".fastq" + c.Extension()
	return filepath.Join(dir, prefix+".R1"+ext), filepath.Join(dir, prefix+".R2"+ext)
}

// CreatePaired creates <dir>/<prefix>.R1.fastq.gz and the R2 counterpart
// (suffix depends on the codec).
func CreatePaired(dir, prefix string, c Compression, level int) (*PairedWriter, error) {
	p1, p2 := OutputPaths(dir, prefix, c)
	f1, err := Create(p1, c, level)
	if err != nil {
		return nil, err
	}
	f2, err := Create(p2, c, level)
	if err != nil {
		f1.Close()
		return nil, err
	}
	pw := NewPairedWriter(f1, f2)
	pw.closers = []io.Closer{f1, f2}
	pw.Path1, pw.Path2 = p1, p2
	return pw, nil
}

// NewPairedWriter writes pairs to two streams.
func NewPairedWriter(w1, w2 io.Writer) *PairedWriter {
	return &PairedWriter{w1: NewWriter(w1), w2: NewWriter(w2)}
}

// Write writes both records of a pair under the pair identifier.
func (p *PairedWriter) Write(pair Pair) error {
	r1, r2 := pair.R1, pair.R2
	r1.ID, r2.ID = pair.ID, pair.ID
	if err := p.w1.Write(r1); err != nil {
		return fmt.Errorf("writing read 1: %w", err)
	}
	if err := p.w2.Write(r2); err != nil {
		return fmt.Errorf("writing read 2: %w", err)
	}
	p.written++
	return nil
}

// Written returns the number of pairs written.
func (p *PairedWriter) Written() int64 {
	return p.written
}

// Close flushes buffered output and closes the underlying files.
func (p *PairedWriter) Close() error {
	errs := []error{p.w1.Flush(), p.w2.Flush()}
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
