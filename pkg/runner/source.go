package runner

import (
	"sync/atomic"

	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/fastq"
)

// PairReader yields FASTQ record pairs. *fastq.PairedReader implements it.
type PairReader interface {
	Next() (fastq.Pair, error)
}

// FastqSource adapts a PairReader to engine.PairSource.
type FastqSource struct {
	r    PairReader
	read atomic.Int64
}

// NewFastqSource wraps r.
func NewFastqSource(r PairReader) *FastqSource {
	return &FastqSource{r: r}
}

// Next returns the next read pair, or io.EOF.
func (s *FastqSource) Next() (engine.ReadPair, error) {
	p, err := s.r.Next()
	if err != nil {
		return engine.ReadPair{}, err
	}
	s.read.Add(1)
	return ToReadPair(p), nil
}

// Count returns the number of pairs read so far. Safe to call while
// another goroutine reads.
func (s *FastqSource) Count() int64 {
	return s.read.Load()
}

// ToReadPair converts a FASTQ pair to the engine representation.
func ToReadPair(p fastq.Pair) engine.ReadPair {
	return engine.ReadPair{
		ID: p.ID,
		R1: engine.Read{ID: p.R1.ID, Seq: p.R1.Seq, Qual: p.R1.Qual},
		R2: engine.Read{ID: p.R2.ID, Seq: p.R2.Seq, Qual: p.R2.Qual},
	}
}
