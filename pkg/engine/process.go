package engine

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PairSource yields read pairs. Next returns io.EOF when exhausted.
type PairSource interface {
	Next() (ReadPair, error)
}

// Sink consumes verdicts. Process serializes calls to Write.
type Sink interface {
	Write(v *Verdict) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(v *Verdict) error

// Write calls f.
func (f SinkFunc) Write(v *Verdict) error {
	return f(v)
}

// Process runs every pair from src through the pipeline and hands each
// verdict to sink, which may be nil. With one worker pairs are processed
// strictly in input order. With more workers pairs are sharded across
// goroutines sharing the run state, and verdicts reach sink in completion
// order. Cancellation of ctx is honoured between pairs.
func (e *Engine) Process(ctx context.Context, src PairSource, sink Sink, workers int) error {
	if workers <= 0 {
		workers = e.config.Workers
	}
	if workers <= 1 {
		return e.processSerial(ctx, src, sink)
	}

	g, ctx := errgroup.WithContext(ctx)
	pairs := make(chan ReadPair, workers*2)

	g.Go(func() error {
		defer close(pairs)
		for {
			pair, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case pairs <- pair:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for pair := range pairs {
				if err := ctx.Err(); err != nil {
					return err
				}
				v, err := e.Run(ctx, pair)
				if err != nil {
					return err
				}
				if sink == nil {
					continue
				}
				mu.Lock()
				err = sink.Write(v)
				mu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func (e *Engine) processSerial(ctx context.Context, src PairSource, sink Sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pair, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := e.Run(ctx, pair)
		if err != nil {
			return err
		}
		if sink != nil {
			if err := sink.Write(v); err != nil {
				return err
			}
		}
	}
}

// SliceSource is a PairSource over an in-memory slice.
type SliceSource struct {
	pairs []ReadPair
	next  int
}

// NewSliceSource returns a PairSource yielding pairs in order.
func NewSliceSource(pairs ...ReadPair) *SliceSource {
	return &SliceSource{pairs: pairs}
}

// Next returns the next pair or io.EOF.
func (s *SliceSource) Next() (ReadPair, error) {
	if s.next >= len(s.pairs) {
		return ReadPair{}, io.EOF
	}
	p := s.pairs[s.next]
	s.next++
	return p, nil
}
