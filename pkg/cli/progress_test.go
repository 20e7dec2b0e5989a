package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/readbreak/pkg/engine"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestSimpleProgressBar(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgressReporter(buf).(*SimpleProgress)
	p.now = fixedClock(time.Unix(0, 0), time.Second)

	p.Start(100)
	p.Update(50)
	p.Finish()

	output := buf.String()
	if !strings.Contains(output, "Progress:") {
		t.Errorf("missing progress bar:\n%s", output)
	}
	if !strings.Contains(output, "(50/100)") || !strings.Contains(output, "(100/100)") {
		t.Errorf("missing counts:\n%s", output)
	}
}

func TestSimpleProgressUnknownTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgressReporter(buf).(*SimpleProgress)
	p.now = fixedClock(time.Unix(0, 0), time.Second)

	p.Start(0)
	p.Update(2000)
	p.Finish()

	output := buf.String()
	if !strings.Contains(output, "Processed: 2000 pairs") {
		t.Errorf("missing counter:\n%s", output)
	}
	if strings.Contains(output, "Progress:") {
		t.Error("unknown total should not draw a bar")
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf)

	progress.Start(100)
	progress.Error(fmt.Errorf("truncated record"))

	if !strings.Contains(buf.String(), "Error: truncated record") {
		t.Errorf("missing error:\n%s", buf.String())
	}
}

func TestPoll(t *testing.T) {
	buf := &lockedBuffer{}
	p := NewProgressReporter(buf)
	p.Start(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Poll(ctx, p, 5*time.Millisecond, func() engine.ParseLog {
			return engine.ParseLog{TotalReads: 42}
		})
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !strings.Contains(buf.String(), "Processed: 42 pairs") {
		select {
		case <-deadline:
			t.Fatal("Poll() never updated the reporter")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
