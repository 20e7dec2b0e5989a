package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"go.uber.org/goleak"
)

func manyPairs(n int) []ReadPair {
	pairs := make([]ReadPair, 0, n)
	for i := 0; i < n; i++ {
		r1 := "NNNNNNNN"
		if i%3 != 0 {
			r1 = "NNCATGAC"
		}
		pairs = append(pairs, pair(fmt.Sprintf("read%d", i), r1, "ACGT"))
	}
	return pairs
}

func TestProcessSerialPreservesOrder(t *testing.T) {
	e := newEngine(t, anchorPipeline, nil, nil)

	var ids []string
	sink := SinkFunc(func(v *Verdict) error {
		ids = append(ids, v.ReadID)
		return nil
	})
	if err := e.Process(context.Background(), NewSliceSource(manyPairs(5)...), sink, 1); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for i, id := range ids {
		if want := fmt.Sprintf("read%d", i); id != want {
			t.Errorf("ids[%d] = %s, want %s", i, id, want)
		}
	}
}

func TestProcessConcurrentConservesStats(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEngine(t, anchorPipeline, nil, nil)
	const n = 300

	written := 0
	sink := SinkFunc(func(*Verdict) error {
		written++
		return nil
	})
	if err := e.Process(context.Background(), NewSliceSource(manyPairs(n)...), sink, 8); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	log := e.Stats().Snapshot()
	if written != n {
		t.Errorf("sink saw %d verdicts, want %d", written, n)
	}
	if log.TotalReads != n {
		t.Errorf("TotalReads = %d, want %d", log.TotalReads, n)
	}
	if log.SuccessfulReads+log.FailedReads != log.TotalReads {
		t.Errorf("successful %d + failed %d != total %d", log.SuccessfulReads, log.FailedReads, log.TotalReads)
	}
	var charged int64
	for _, c := range log.FailuresByStep {
		charged += c
	}
	if charged != log.FailedReads {
		t.Errorf("sum(FailuresByStep) = %d, want %d", charged, log.FailedReads)
	}
	if log.FailuresByStep["anchor"] != n/3 {
		t.Errorf("anchor failures = %d, want %d", log.FailuresByStep["anchor"], n/3)
	}
}

type failingSource struct{ err error }

func (s failingSource) Next() (ReadPair, error) { return ReadPair{}, s.err }

func TestProcessSourceError(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEngine(t, anchorPipeline, nil, nil)
	boom := errors.New("boom")
	for _, workers := range []int{1, 4} {
		if err := e.Process(context.Background(), failingSource{boom}, nil, workers); !errors.Is(err, boom) {
			t.Errorf("workers=%d: Process() error = %v, want boom", workers, err)
		}
	}
}

func TestProcessSinkError(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newEngine(t, anchorPipeline, nil, nil)
	full := errors.New("disk full")
	sink := SinkFunc(func(*Verdict) error { return full })
	if err := e.Process(context.Background(), NewSliceSource(manyPairs(50)...), sink, 4); !errors.Is(err, full) {
		t.Errorf("Process() error = %v, want disk full", err)
	}
}

func TestProcessCancelled(t *testing.T) {
	e := newEngine(t, anchorPipeline, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Process(ctx, NewSliceSource(manyPairs(5)...), nil, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
	if log := e.Stats().Snapshot(); log.TotalReads != 0 {
		t.Errorf("TotalReads = %d, want 0", log.TotalReads)
	}
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource(pair("a", "", ""))
	if p, err := src.Next(); err != nil || p.ID != "a" {
		t.Fatalf("Next() = %v, %v", p, err)
	}
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}
