// Package pipe prints the active lyric line to a writer as plain text,
// one line per change, for use in scripts and status bars.
package pipe

import (
	"context"
	"fmt"
	"io"
	"time"

	"karolbroda.com/lyrisync/internal/progression"
	"karolbroda.com/lyrisync/internal/state"
)

type Printer struct {
	w       io.Writer
	tracker *progression.Tracker

	last      state.Snapshot
	hasTrack  bool
	lastIndex int
	hadLyrics bool
}

func NewPrinter(w io.Writer, tracker *progression.Tracker) *Printer {
	return &Printer{w: w, tracker: tracker, lastIndex: -1}
}

// Apply takes a new snapshot. a track change after printed lyrics emits a
// blank separator line.
func (p *Printer) Apply(snap state.Snapshot) error {
	if !p.hasTrack || !snap.SameTrack(p.last) {
		if p.hadLyrics {
			if _, err := fmt.Fprintln(p.w); err != nil {
				return err
			}
		}
		p.hadLyrics = false
		p.lastIndex = -1
	}

	p.last = snap
	p.hasTrack = true
	p.tracker.Update(snap)

	return p.Refresh()
}

// Refresh prints the active line if it changed since the last print.
func (p *Printer) Refresh() error {
	index := p.tracker.Index()
	if index == p.lastIndex {
		return nil
	}
	p.lastIndex = index

	if index < 0 || index >= len(p.last.Lines) {
		return nil
	}

	if _, err := fmt.Fprintln(p.w, p.last.Lines[index].Text); err != nil {
		return err
	}
	p.hadLyrics = true
	return nil
}

// NextWake is when the active line may change next.
func (p *Printer) NextWake() (time.Duration, bool) {
	return p.tracker.NextWake(false)
}

// Run prints until snapshots is closed or ctx is done.
func Run(ctx context.Context, w io.Writer, snapshots <-chan state.Snapshot, offset float64) error {
	p := NewPrinter(w, progression.New(offset))

	wake := time.NewTimer(time.Hour)
	wake.Stop()
	defer wake.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := p.Apply(snap); err != nil {
				return err
			}
		case <-wake.C:
			if err := p.Refresh(); err != nil {
				return err
			}
		}

		if delay, ok := p.NextWake(); ok {
			wake.Reset(delay)
		} else {
			wake.Stop()
		}
	}
}
