// Package progression estimates the playback position between snapshots
// on the consumer side and decides when the display must be refreshed next.
package progression

import (
	"math"
	"time"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/state"
	"karolbroda.com/lyrisync/internal/timer"
)

const MinWake = 10 * time.Millisecond

// Tracker remembers the last snapshot and the instant it arrived.
type Tracker struct {
	snap     state.Snapshot
	received time.Time
	loaded   bool
	offset   float64
	now      func() time.Time
}

// New returns a tracker shifting every position by offset seconds.
func New(offset float64) *Tracker {
	return NewWithClock(offset, time.Now)
}

func NewWithClock(offset float64, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{offset: offset, now: now}
}

func (t *Tracker) Update(snap state.Snapshot) {
	t.snap = snap
	t.received = t.now()
	t.loaded = true
}

func (t *Tracker) Offset() float64 {
	return t.offset
}

// SetOffset changes the sync offset applied to Position.
func (t *Tracker) SetOffset(offset float64) {
	t.offset = offset
}

func (t *Tracker) Snapshot() (state.Snapshot, bool) {
	return t.snap, t.loaded
}

// Position is the snapshot position advanced by the time since it arrived
// while playing.
func (t *Tracker) Position() float64 {
	if !t.loaded {
		return 0
	}

	position := t.snap.Position
	if t.snap.Playing {
		position += t.now().Sub(t.received).Seconds()
	}
	position = timer.Clamp(position, t.snap.Duration)

	return timer.Sanitize(position + t.offset)
}

// Index is the active line at Position, or -1.
func (t *Tracker) Index() int {
	if !t.loaded {
		return -1
	}
	index, ok := lyrics.IndexFor(t.snap.Lines, t.Position())
	if !ok {
		return -1
	}
	return index
}

func (t *Tracker) WordLevel(karaoke bool) bool {
	return karaoke && t.snap.Source == lyrics.SourceRichsync && lyrics.HasWordTimings(t.snap.Lines)
}

// NextWake is the delay until the display changes next. it reports false
// when paused or when nothing lies ahead.
func (t *Tracker) NextWake(karaoke bool) (time.Duration, bool) {
	if !t.loaded || !t.snap.Playing || len(t.snap.Lines) == 0 {
		return 0, false
	}

	position := t.Position()
	boundary, ok := NextBoundary(t.snap.Lines, t.Index(), position, t.WordLevel(karaoke))
	if !ok {
		return 0, false
	}

	delay := time.Duration(math.Round((boundary - position) * float64(time.Second)))
	if delay < MinWake {
		delay = MinWake
	}
	return delay, true
}

// NextBoundary finds the earliest instant after position where the active
// line or, with wordLevel, the highlighted part of a word changes.
func NextBoundary(lines []lyrics.Line, index int, position float64, wordLevel bool) (float64, bool) {
	if len(lines) == 0 {
		return 0, false
	}

	best := math.Inf(1)
	consider := func(at float64) {
		if at > position && at < best {
			best = at
		}
	}

	start := index
	if start < 0 {
		start = 0
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]
		if line.TimeSeconds > best {
			break
		}
		if i > index {
			consider(line.TimeSeconds)
		}
		if !wordLevel {
			continue
		}
		for _, word := range line.Words {
			consider(word.Start)
			consider(word.End)
			for _, at := range graphemeBoundaries(word) {
				consider(at)
			}
		}
	}

	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}

// graphemeBoundaries splits a word's interval uniformly by grapheme.
func graphemeBoundaries(word lyrics.Word) []float64 {
	count := word.GraphemeCount()
	if count < 2 || word.End <= word.Start {
		return nil
	}

	span := word.End - word.Start
	out := make([]float64, 0, count-1)
	for k := 1; k < count; k++ {
		out = append(out, word.Start+float64(k)/float64(count)*span)
	}
	return out
}
