package runner

import (
	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/fastq"
)

// Context variables read by ClipSink.
const (
	KeyStartR1 = "start_r1"
	KeyEndR1   = "end_r1"
	KeyStartR2 = "start_r2"
	KeyEndR2   = "end_r2"
	KeyReadTag = "read_tag"
)

// ToEnd as an end coordinate keeps the read up to its last base.
const ToEnd = -1

// ClipDefaults are the clip coordinates used when a pipeline does not
// store the corresponding variable.
type ClipDefaults struct {
	StartR1 int
	EndR1   int
	StartR2 int
	EndR2   int
	ReadTag string
}

// DefaultClip keeps both reads whole and adds no tag.
func DefaultClip() ClipDefaults {
	return ClipDefaults{EndR1: ToEnd, EndR2: ToEnd}
}

// PairWriter consumes FASTQ pairs. *fastq.PairedWriter implements it.
type PairWriter interface {
	Write(fastq.Pair) error
}

// ClipSink trims passing pairs to the coordinates their pipeline stored and
// writes them out. Failing pairs are dropped. Coordinates outside the read
// are clamped to it.
type ClipSink struct {
	w        PairWriter
	defaults ClipDefaults
	written  int64
	dropped  int64
}

// NewClipSink returns a sink writing to w.
func NewClipSink(w PairWriter, defaults ClipDefaults) *ClipSink {
	return &ClipSink{w: w, defaults: defaults}
}

// Write implements engine.Sink.
func (s *ClipSink) Write(v *engine.Verdict) error {
	if !v.Passed || v.Context == nil {
		s.dropped++
		return nil
	}
	c := v.Context
	d := s.defaults

	out := Clip(c.Pair,
		intVar(c, KeyStartR1, d.StartR1), intVar(c, KeyEndR1, d.EndR1),
		intVar(c, KeyStartR2, d.StartR2), intVar(c, KeyEndR2, d.EndR2),
		tagVar(c, d.ReadTag))
	if err := s.w.Write(out); err != nil {
		return err
	}
	s.written++
	return nil
}

// Written returns the number of pairs written.
func (s *ClipSink) Written() int64 { return s.written }

// Dropped returns the number of failing pairs skipped.
func (s *ClipSink) Dropped() int64 { return s.dropped }

// Clip trims both reads of p and tags the pair id as "<id>/1" or
// "<id>/1_<tag>".
func Clip(p engine.ReadPair, s1, e1, s2, e2 int, tag string) fastq.Pair {
	id := p.ID + "/1"
	if tag != "" {
		id += "_" + tag
	}
	return fastq.Pair{
		ID: id,
		R1: clipRead(p.R1, s1, e1),
		R2: clipRead(p.R2, s2, e2),
	}
}

func clipRead(r engine.Read, start, end int) fastq.Record {
	return fastq.Record{
		ID:   r.ID,
		Seq:  clamp(r.Seq, start, end),
		Qual: clamp(r.Qual, start, end),
	}
}

// clamp slices s. Negative coordinates other than ToEnd count from the end
// of the read.
func clamp(s string, start, end int) string {
	switch {
	case end == ToEnd || end > len(s):
		end = len(s)
	case end < 0:
		end = max(len(s)+end, 0)
	}
	if start < 0 {
		start = max(len(s)+start, 0)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}

func intVar(c *engine.Context, name string, def int) int {
	if n, ok := c.Int(name); ok {
		return n
	}
	return def
}

func tagVar(c *engine.Context, def string) string {
	v, ok := c.Get(KeyReadTag)
	if !ok {
		return def
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	return v.String()
}
