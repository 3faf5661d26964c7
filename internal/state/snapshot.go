package state

import (
	"context"
	"log/slog"
	"sync"

	"karolbroda.com/lyrisync/internal/lyrics"
)

// Snapshot is an immutable view of a Bundle. Lines is shared and must not
// be modified by consumers.
type Snapshot struct {
	Lines      []lyrics.Line
	Index      int
	Position   float64
	Err        string
	Version    uint64
	Playing    bool
	Loading    bool
	Artist     string
	Title      string
	Album      string
	Duration   float64
	ArtworkURL string
	Service    string
	Source     lyrics.Source
}

func (s Snapshot) HasIndex() bool {
	return s.Index >= 0 && s.Index < len(s.Lines)
}

func (s Snapshot) HasLyrics() bool {
	return len(s.Lines) > 0
}

func (s Snapshot) CurrentLine() (lyrics.Line, bool) {
	if !s.HasIndex() {
		return lyrics.Line{}, false
	}
	return s.Lines[s.Index], true
}

// SameTrack compares the identity the consumers can see.
func (s Snapshot) SameTrack(other Snapshot) bool {
	return s.Artist == other.Artist &&
		s.Title == other.Title &&
		s.Album == other.Album &&
		s.Duration == other.Duration
}

const SinkCapacity = 16

// Publisher delivers snapshots to a consumer channel, dropping repeats of
// the same (version, playing) pair unless forced.
type Publisher struct {
	mu      sync.Mutex
	sink    chan<- Snapshot
	lastKey uint64
	sent    bool
}

func NewPublisher(sink chan<- Snapshot) *Publisher {
	return &Publisher{sink: sink}
}

func dedupKey(version uint64, playing bool) uint64 {
	key := version << 1
	if playing {
		key |= 1
	}
	return key
}

// Send publishes b's snapshot. regular sends never block and are dropped
// when the consumer lags; forced sends block until the consumer takes the
// snapshot or ctx is done. it reports whether the snapshot was delivered.
func (p *Publisher) Send(ctx context.Context, b *Bundle, force bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := dedupKey(b.Version(), b.Playing())
	if !force && p.sent && key == p.lastKey {
		return false
	}

	snap := b.Snapshot()

	if force {
		if !p.deliver(ctx, snap) {
			slog.Debug("forced snapshot dropped, shutting down", "version", snap.Version)
			return false
		}
	} else {
		select {
		case p.sink <- snap:
		default:
			slog.Debug("snapshot dropped, sink full", "version", snap.Version)
			return false
		}
	}

	p.lastKey = key
	p.sent = true
	return true
}

// deliver prefers room in the sink over a done ctx, so the last snapshot
// still goes out on shutdown when the consumer has kept up.
func (p *Publisher) deliver(ctx context.Context, snap Snapshot) bool {
	select {
	case p.sink <- snap:
		return true
	default:
	}

	select {
	case p.sink <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
