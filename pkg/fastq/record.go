package fastq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnpaired indicates the two files of a pair ended at different records.
var ErrUnpaired = errors.New("paired files have different record counts")

// Record is one FASTQ entry.
type Record struct {
	ID   string
	Seq  string
	Qual string
}

// Pair is a read 1 / read 2 record pair sharing one read identifier.
type Pair struct {
	ID string
	R1 Record
	R2 Record
}

// FormatError reports malformed FASTQ input.
type FormatError struct {
	Name    string
	Line    int
	Message string
}

// Error returns the error message.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Name, e.Line, e.Message)
}

// Reader reads records from a single FASTQ stream.
type Reader struct {
	name string
	br   *bufio.Reader
	line int
}

// NewReader reads FASTQ records from r. name labels errors.
func NewReader(r io.Reader, name string) *Reader {
	return &Reader{name: name, br: bufio.NewReaderSize(r, 256*1024)}
}

func (r *Reader) readLine() (string, error) {
	s, err := r.br.ReadString('\n')
	if err == io.EOF && s != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	r.line++
	return strings.TrimRight(s, "\r\n"), nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var header string
	for {
		h, err := r.readLine()
		if err != nil {
			return Record{}, err
		}
		if h != "" {
			header = h
			break
		}
	}
	start := r.line
	if header[0] != '@' {
		return Record{}, &FormatError{Name: r.name, Line: start, Message: "header line must start with '@'"}
	}

	seq, err := r.readLine()
	if err != nil {
		return Record{}, r.truncated(start, err)
	}
	plus, err := r.readLine()
	if err != nil {
		return Record{}, r.truncated(start, err)
	}
	if !strings.HasPrefix(plus, "+") {
		return Record{}, &FormatError{Name: r.name, Line: r.line, Message: "separator line must start with '+'"}
	}
	qual, err := r.readLine()
	if err != nil {
		return Record{}, r.truncated(start, err)
	}
	if len(qual) != len(seq) {
		return Record{}, &FormatError{
			Name:    r.name,
			Line:    r.line,
			Message: fmt.Sprintf("quality length %d does not match sequence length %d", len(qual), len(seq)),
		}
	}
	return Record{ID: header[1:], Seq: seq, Qual: qual}, nil
}

func (r *Reader) truncated(start int, err error) error {
	if err == io.EOF {
		return &FormatError{Name: r.name, Line: start, Message: "truncated record"}
	}
	return err
}

// Writer writes FASTQ records.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter writes FASTQ records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 256*1024)}
}

// Write writes one record.
func (w *Writer) Write(rec Record) error {
	_, err := fmt.Fprintf(w.bw, "@%s\n%s\n+\n%s\n", rec.ID, rec.Seq, rec.Qual)
	return err
}

// Flush flushes buffered output.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}
