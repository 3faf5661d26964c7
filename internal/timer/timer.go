// Package timer estimates the playback position between sparse player
// notifications.
package timer

import (
	"math"
	"time"
)

// Timer holds an anchor position and the instant it was observed. The
// instant is only meaningful while playing; it is cleared on pause and reset.
type Timer struct {
	anchor  float64
	instant time.Time
	now     func() time.Time
}

// NewWithClock reads time from now; nil means time.Now.
func NewWithClock(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Sanitize maps NaN, infinities and negative positions to 0.
func Sanitize(position float64) float64 {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return 0
	}
	return position
}

// Clamp limits an estimate to [0, length] when the track length is known.
func Clamp(position float64, length float64) float64 {
	if length > 0 && position > length {
		return length
	}
	if position < 0 {
		return 0
	}
	return position
}

func (t *Timer) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

// Reset sets the anchor and forgets the instant until playback is marked.
func (t *Timer) Reset(position float64) {
	t.anchor = Sanitize(position)
	t.instant = time.Time{}
}

// SetPosition sets the anchor and refreshes the instant, so sampling the
// estimate and writing it back does not count elapsed time twice.
func (t *Timer) SetPosition(position float64) {
	t.anchor = Sanitize(position)
	t.instant = t.clock()
}

func (t *Timer) MarkPlaying() {
	t.instant = t.clock()
}

func (t *Timer) MarkPaused() {
	t.instant = time.Time{}
}

func (t *Timer) Anchor() float64 {
	return t.anchor
}

// Estimate returns the anchor plus the wall-clock time since the instant
// when playing, and the bare anchor otherwise.
func (t *Timer) Estimate(playing bool) float64 {
	if !playing || t.instant.IsZero() {
		return t.anchor
	}

	estimated := t.anchor + t.clock().Sub(t.instant).Seconds()
	if math.IsNaN(estimated) || math.IsInf(estimated, 0) {
		return t.anchor
	}
	return estimated
}
