// Package state holds the authoritative player and lyric model owned by
// the event loop.
package state

import (
	"math"
	"time"

	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/timer"
	"karolbroda.com/lyrisync/internal/track"
)

// SeekThreshold is how far a new anchor must differ from the running
// estimate before SetPosition counts it as an observable change.
const SeekThreshold = 0.5

// Bundle is mutated only from the event loop goroutine. every mutator that
// changes something observable bumps Version.
type Bundle struct {
	track   track.Info
	service string
	playing bool
	err     string
	loading bool

	timer *timer.Timer

	lines  []lyrics.Line
	index  int
	source lyrics.Source

	version uint64
}

func NewBundleWithClock(now func() time.Time) *Bundle {
	return &Bundle{
		timer: timer.NewWithClock(now),
		index: -1,
	}
}

func (b *Bundle) bump() {
	b.version++
}

func (b *Bundle) Version() uint64 {
	return b.version
}

func (b *Bundle) Track() track.Info {
	return b.track
}

func (b *Bundle) Service() string {
	return b.service
}

func (b *Bundle) Playing() bool {
	return b.playing
}

func (b *Bundle) Err() string {
	return b.err
}

// Loading is true while lyrics for the current track are being fetched.
func (b *Bundle) Loading() bool {
	return b.loading
}

func (b *Bundle) SetLoading(loading bool) {
	if b.loading != loading {
		b.loading = loading
		b.bump()
	}
}

func (b *Bundle) Lines() []lyrics.Line {
	return b.lines
}

// Index is -1 when no line is active.
func (b *Bundle) Index() int {
	return b.index
}

func (b *Bundle) Source() lyrics.Source {
	return b.source
}

// HasChanged compares every identity field of the current track.
func (b *Bundle) HasChanged(info track.Info) bool {
	return !b.track.IsSameTrack(info)
}

func (b *Bundle) SetService(service string) {
	if b.service != service {
		b.service = service
		b.bump()
	}
}

// SetArtwork updates presentation-only metadata of the current track.
func (b *Bundle) SetArtwork(url string) {
	if b.track.ArtworkURL != url {
		b.track.ArtworkURL = url
		b.bump()
	}
}

func (b *Bundle) ClearLyrics() {
	b.lines = nil
	b.index = -1
	b.source = lyrics.SourceNone
	b.loading = false
	b.bump()
}

// UpdateLyrics installs lines for info. the timer restarts at zero until
// the caller re-anchors it from the player.
func (b *Bundle) UpdateLyrics(lines []lyrics.Line, info track.Info, err string, source lyrics.Source) {
	b.lines = lyrics.Sanitize(lines)
	b.index = -1
	b.source = source
	b.track = info
	b.err = err
	b.loading = false
	b.timer.Reset(0)
	b.bump()
}

// ResetPlayer forgets the track, e.g. when the player stops or vanishes.
func (b *Bundle) ResetPlayer() {
	b.track = track.Info{}
	b.service = ""
	b.playing = false
	b.err = ""
	b.loading = false
	b.timer.Reset(0)
	b.bump()
}

func (b *Bundle) UpdatePlayback(playing bool, position float64) {
	b.timer.SetPosition(position)
	b.playing = playing
	if playing {
		b.timer.MarkPlaying()
	} else {
		b.timer.MarkPaused()
	}
	b.bump()
}

// SetPosition re-anchors the timer. it reports a change, and bumps the
// version, only when the new anchor departs from the running estimate.
func (b *Bundle) SetPosition(position float64) bool {
	before := b.Estimate()
	b.timer.SetPosition(position)
	if math.Abs(b.timer.Anchor()-before) < SeekThreshold {
		return false
	}
	b.bump()
	return true
}

func (b *Bundle) SetError(err string) {
	if b.err != err {
		b.err = err
		b.bump()
	}
}

// Estimate is the timer estimate clamped to the known track length.
func (b *Bundle) Estimate() float64 {
	return timer.Clamp(b.timer.Estimate(b.playing), b.track.DurationSecs)
}

func (b *Bundle) UpdateIndex(position float64) bool {
	next, ok := lyrics.IndexFor(b.lines, position)
	if !ok {
		next = -1
	}
	if next == b.index {
		return false
	}
	b.index = next
	b.bump()
	return true
}

func (b *Bundle) Snapshot() Snapshot {
	return Snapshot{
		Lines:      b.lines,
		Index:      b.index,
		Position:   b.Estimate(),
		Err:        b.err,
		Version:    b.version,
		Playing:    b.playing,
		Loading:    b.loading,
		Artist:     b.track.Artist,
		Title:      b.track.Title,
		Album:      b.track.Album,
		Duration:   b.track.DurationSecs,
		ArtworkURL: b.track.ArtworkURL,
		Service:    b.service,
		Source:     b.source,
	}
}
