package engine

import "testing"

func TestStatsSnapshot(t *testing.T) {
	s := NewStats("a", "b")
	s.record(&Verdict{Passed: true})
	s.record(&Verdict{Passed: true})
	s.record(&Verdict{Passed: false, FailedStep: "b"})

	log := s.Snapshot()
	if log.TotalReads != 3 || log.SuccessfulReads != 2 || log.FailedReads != 1 {
		t.Errorf("counters = %+v", log)
	}
	if log.FailuresByStep["a"] != 0 || log.FailuresByStep["b"] != 1 {
		t.Errorf("FailuresByStep = %v", log.FailuresByStep)
	}
	if _, ok := log.FailuresByStep["a"]; !ok {
		t.Error("step a missing from FailuresByStep")
	}
	if log.SuccessRate != 66.67 {
		t.Errorf("SuccessRate = %v, want 66.67", log.SuccessRate)
	}
}

func TestStatsEmptySuccessRate(t *testing.T) {
	if rate := NewStats("a").Snapshot().SuccessRate; rate != 0 {
		t.Errorf("SuccessRate = %v, want 0", rate)
	}
}

func TestStatsSoftFailures(t *testing.T) {
	s := NewStats("hard", "soft")
	s.record(&Verdict{
		Passed: true,
		Context: &Context{Outcomes: []StepOutcome{
			{StepID: "soft", State: StateFailed},
			{StepID: "hard", State: StatePassed, MustPass: true},
		}},
	})

	log := s.Snapshot()
	if log.SoftFailuresByStep["soft"] != 1 {
		t.Errorf("SoftFailuresByStep = %v", log.SoftFailuresByStep)
	}
	if log.FailuresByStep["soft"] != 0 {
		t.Errorf("FailuresByStep = %v", log.FailuresByStep)
	}
}

func TestStepStateString(t *testing.T) {
	tests := map[StepState]string{
		StatePending:         "PENDING",
		StateResolvingFields: "RESOLVING_FIELDS",
		StateDispatched:      "DISPATCHED",
		StatePassed:          "PASSED",
		StateFailed:          "FAILED",
		StepState(42):        "UNKNOWN",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
