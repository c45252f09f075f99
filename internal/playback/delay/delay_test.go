package delay

import (
	"context"
	"testing"
	"time"
)

func TestCalculatePrefersStepOverride(t *testing.T) {
	m := New(DefaultConfig())
	override := 5000
	plan := m.Calculate(&override, 0)
	if plan.Source != SourceStep || plan.Duration != 5*time.Second {
		t.Fatalf("expected step override to win, got %+v", plan)
	}
}

func TestCalculateFallsBackToGlobal(t *testing.T) {
	m := New(DefaultConfig())
	plan := m.Calculate(nil, 0)
	if plan.Source != SourceGlobal {
		t.Fatalf("expected global source, got %+v", plan)
	}
}

func TestCalculateUsesDynamicHintWhenLarger(t *testing.T) {
	m := New(DefaultConfig())
	plan := m.Calculate(nil, 2*time.Second)
	if plan.Source != SourceDynamic || plan.Duration != 2*time.Second {
		t.Fatalf("expected dynamic hint to win, got %+v", plan)
	}
}

func TestCalculateClampsToMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDelay = time.Second
	m := New(cfg)
	override := 5000
	plan := m.Calculate(&override, 0)
	if plan.Duration != time.Second {
		t.Fatalf("expected clamp to MaxDelay, got %v", plan.Duration)
	}
}

func TestSkipCurrentDelayInterruptsExecute(t *testing.T) {
	m := New(DefaultConfig())
	done := make(chan struct{})
	go func() {
		m.Execute(context.Background(), Plan{Duration: time.Hour})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	m.SkipCurrentDelay()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected SkipCurrentDelay to interrupt Execute")
	}
}
