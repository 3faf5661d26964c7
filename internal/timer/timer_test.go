package timer

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"positive", 5, 5},
		{"zero", 0, 0},
		{"negative", -1, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"neg inf", math.Inf(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetPositionSanitizes(t *testing.T) {
	for _, in := range []float64{math.NaN(), math.Inf(1), -3} {
		tm := NewWithClock(newFakeClock().now)
		tm.SetPosition(in)
		if tm.Anchor() != 0 {
			t.Errorf("SetPosition(%v) anchor = %v, want 0", in, tm.Anchor())
		}
	}
}

func TestResetClearsInstant(t *testing.T) {
	clock := newFakeClock()
	tm := NewWithClock(clock.now)
	tm.Reset(10)
	clock.advance(5 * time.Second)

	if got := tm.Estimate(true); got != 10 {
		t.Fatalf("estimate after reset = %v, want 10", got)
	}
}

func TestEstimateAdvancesWhilePlaying(t *testing.T) {
	clock := newFakeClock()
	tm := NewWithClock(clock.now)
	tm.SetPosition(10)
	tm.MarkPlaying()

	clock.advance(1500 * time.Millisecond)
	first := tm.Estimate(true)
	if first != 11.5 {
		t.Fatalf("estimate = %v, want 11.5", first)
	}

	clock.advance(time.Second)
	second := tm.Estimate(true)
	if second < first {
		t.Fatalf("estimate went backwards: %v then %v", first, second)
	}

	if got := tm.Estimate(false); got != 10 {
		t.Fatalf("paused estimate = %v, want anchor 10", got)
	}
}

func TestMarkPausedFreezes(t *testing.T) {
	clock := newFakeClock()
	tm := NewWithClock(clock.now)
	tm.SetPosition(20)
	tm.MarkPlaying()
	clock.advance(3 * time.Second)
	tm.MarkPaused()
	clock.advance(3 * time.Second)

	if got := tm.Estimate(true); got != 20 {
		t.Fatalf("estimate after pause = %v, want 20", got)
	}
}

func TestReanchorDoesNotDoubleCount(t *testing.T) {
	clock := newFakeClock()
	tm := NewWithClock(clock.now)
	tm.SetPosition(0)
	tm.MarkPlaying()

	clock.advance(time.Second)
	tm.SetPosition(tm.Estimate(true))
	clock.advance(time.Second)

	if got := tm.Estimate(true); got != 2 {
		t.Fatalf("estimate = %v, want 2", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(250, 200); got != 200 {
		t.Errorf("Clamp over length = %v, want 200", got)
	}
	if got := Clamp(250, 0); got != 250 {
		t.Errorf("Clamp unknown length = %v, want 250", got)
	}
	if got := Clamp(-1, 200); got != 0 {
		t.Errorf("Clamp negative = %v, want 0", got)
	}
}
