// Package engine runs the event loop that owns the lyrics state: it applies
// player events, drives lyric fetches on track changes, advances the
// position estimate and publishes snapshots.
package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/player"
	"karolbroda.com/lyrisync/internal/providers"
	"karolbroda.com/lyrisync/internal/state"
	"karolbroda.com/lyrisync/internal/track"
)

const DefaultTickInterval = time.Second

// Bus is the part of the player bus the loop reads from.
type Bus interface {
	ActivePlayers() ([]string, error)
	Metadata(service string) (track.Info, error)
	Position(service string) (float64, error)
	PlaybackStatus(service string) (string, error)
}

// Store persists provider payloads between runs. *cache.Database satisfies it.
type Store interface {
	Lookup(info track.Info) (*cache.Entry, error)
	Store(info track.Info, source lyrics.Source, raw string) error
}

type Options struct {
	Providers    []providers.Provider
	Block        []string
	Store        Store
	TickInterval time.Duration
	Now          func() time.Time
}

type fetchResult struct {
	generation uint64
	info       track.Info
	service    string
	lines      []lyrics.Line
	source     lyrics.Source
	provider   string
	err        error
}

type Engine struct {
	bus       Bus
	providers []providers.Provider
	block     []string
	store     Store
	tick      time.Duration

	bundle    *state.Bundle
	publisher *state.Publisher
	sink      chan state.Snapshot
	results   chan fetchResult

	parent      context.Context
	generation  uint64
	cancelFetch context.CancelFunc
}

func New(bus Bus, opts Options) *Engine {
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}

	sink := make(chan state.Snapshot, state.SinkCapacity)

	return &Engine{
		bus:       bus,
		providers: opts.Providers,
		block:     opts.Block,
		store:     opts.Store,
		tick:      tick,
		bundle:    state.NewBundleWithClock(opts.Now),
		publisher: state.NewPublisher(sink),
		sink:      sink,
		results:   make(chan fetchResult, 8),
		parent:    context.Background(),
	}
}

// Snapshots is closed when Run returns.
func (e *Engine) Snapshots() <-chan state.Snapshot {
	return e.sink
}

// Run processes events until ctx is done or events is closed, then
// publishes one final snapshot.
func (e *Engine) Run(ctx context.Context, events <-chan player.Event) error {
	defer close(e.sink)

	e.parent = ctx
	defer e.stopFetch()

	e.init()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.publish(true)
			return nil
		case ev, ok := <-events:
			if !ok {
				e.publish(true)
				return nil
			}
			e.handleEvent(ev)
		case res := <-e.results:
			e.applyFetch(res)
		case <-ticker.C:
			e.onTick()
		}
	}
}

func (e *Engine) publish(force bool) {
	e.publisher.Send(e.parent, e.bundle, force)
}

func (e *Engine) init() {
	names, err := e.bus.ActivePlayers()
	if err != nil {
		slog.Debug("failed to list players", "error", err)
	}

	service := player.SelectActive(names, e.block)
	if service == "" {
		e.publish(true)
		return
	}

	info, err := e.bus.Metadata(service)
	if err != nil {
		slog.Debug("failed to read metadata", "service", service, "error", err)
		e.publish(true)
		return
	}

	position, err := e.bus.Position(service)
	if err != nil {
		position = 0
	}

	e.handlePlayerUpdate(player.Event{
		Kind:     player.EventPlayerUpdate,
		Track:    info,
		Position: position,
		Service:  service,
	})
}

func (e *Engine) handleEvent(ev player.Event) {
	switch ev.Kind {
	case player.EventPlayerUpdate:
		e.handlePlayerUpdate(ev)
	case player.EventSeeked:
		e.handleSeeked(ev)
	}
}

func (e *Engine) clear() {
	e.stopFetch()
	e.generation++
	e.bundle.ClearLyrics()
	e.bundle.ResetPlayer()
	e.publish(true)
}

func (e *Engine) status(service string) string {
	status, err := e.bus.PlaybackStatus(service)
	if err != nil {
		slog.Debug("failed to read playback status", "service", service, "error", err)
		return ""
	}
	return status
}

// playingFor keeps the previous flag when the status could not be read.
func (e *Engine) playingFor(status string) bool {
	if status == "" {
		return e.bundle.Playing()
	}
	return status == player.StatusPlaying
}

func (e *Engine) handlePlayerUpdate(ev player.Event) {
	if ev.Service == "" {
		slog.Debug("player gone, clearing state")
		e.clear()
		return
	}

	status := e.status(ev.Service)
	if status == player.StatusStopped {
		slog.Debug("player stopped, clearing state", "service", ev.Service)
		e.clear()
		return
	}

	e.bundle.SetService(ev.Service)

	if e.bundle.HasChanged(ev.Track) {
		slog.Info("track changed", "artist", ev.Track.Artist, "title", ev.Track.Title, "service", ev.Service)

		e.bundle.UpdateLyrics(nil, ev.Track, "", lyrics.SourceNone)
		e.bundle.UpdatePlayback(e.playingFor(status), ev.Position)
		e.bundle.SetLoading(ev.Track.IsValid())
		e.publish(true)
		if ev.Track.IsValid() {
			e.startFetch(ev.Track, ev.Service)
		} else {
			e.stopFetch()
			e.generation++
		}
		return
	}

	e.bundle.SetArtwork(ev.Track.ArtworkURL)
	e.applyPlayback(e.playingFor(status), ev.Position, false)
}

func (e *Engine) handleSeeked(ev player.Event) {
	if ev.Service != "" && ev.Service != e.bundle.Service() {
		return
	}
	e.applyPlayback(e.bundle.Playing(), ev.Position, true)
}

// applyPlayback publishes when the playing flag toggled or the active line
// moved. a seek also publishes when it moved the position materially, so
// consumers estimating locally pick up the jump.
func (e *Engine) applyPlayback(playing bool, position float64, seek bool) {
	wasPlaying := e.bundle.Playing()
	before := e.bundle.Estimate()

	e.bundle.UpdatePlayback(playing, position)
	indexChanged := e.bundle.UpdateIndex(e.bundle.Estimate())

	jumped := seek && math.Abs(e.bundle.Estimate()-before) >= state.SeekThreshold

	if playing != wasPlaying || indexChanged || jumped {
		e.publish(false)
	}
}

func (e *Engine) onTick() {
	if e.bundle.Playing() {
		estimate := e.bundle.Estimate()
		changed := e.bundle.SetPosition(estimate)
		if e.bundle.UpdateIndex(estimate) {
			changed = true
		}
		if changed {
			e.publish(false)
			return
		}
	}

	if e.bundle.Err() != "" {
		e.publish(false)
	}
}

func (e *Engine) stopFetch() {
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
}

// startFetch abandons any fetch in flight and runs a new one. its result
// comes back through e.results tagged with the current generation.
func (e *Engine) startFetch(info track.Info, service string) {
	e.stopFetch()
	e.generation++
	generation := e.generation

	ctx, cancel := context.WithCancel(e.parent)
	e.cancelFetch = cancel

	go func() {
		res := e.fetch(ctx, info)
		res.generation = generation
		res.info = info
		res.service = service

		select {
		case e.results <- res:
		case <-ctx.Done():
		}
	}()
}

// fetch consults the database, then the provider chain. it runs off the
// loop and must not touch the bundle.
func (e *Engine) fetch(ctx context.Context, info track.Info) fetchResult {
	if e.store != nil {
		if entry, err := e.store.Lookup(info); err == nil {
			lines, err := entry.Lines()
			if err == nil && len(lines) > 0 {
				slog.Debug("lyrics loaded from database", "artist", info.Artist, "title", info.Title, "format", entry.Format)
				return fetchResult{lines: lines, source: entry.Format.Source(), provider: "database"}
			}
			slog.Debug("database entry unusable", "key", entry.Key(), "error", err)
		}
	}

	res, provider, err := providers.Chain(ctx, e.providers, providers.RequestFor(info))
	if err != nil {
		slog.Debug("fetch failed", "provider", provider, "error", err)
		return fetchResult{provider: provider, err: err}
	}

	if res.Empty() {
		slog.Debug("no lyrics found", "artist", info.Artist, "title", info.Title)
		return fetchResult{}
	}

	if e.store != nil && res.Raw != "" {
		if err := e.store.Store(info, res.Source, res.Raw); err != nil {
			slog.Warn("failed to store lyrics", "artist", info.Artist, "title", info.Title, "error", err)
		}
	}

	return fetchResult{lines: res.Lines, source: res.Source, provider: provider}
}

func (e *Engine) applyFetch(res fetchResult) {
	if res.generation != e.generation || e.bundle.HasChanged(res.info) {
		slog.Debug("discarding stale fetch", "title", res.info.Title, "generation", res.generation)
		return
	}

	e.stopFetch()

	fallback := e.bundle.Estimate()

	info := res.info
	info.ArtworkURL = e.bundle.Track().ArtworkURL

	if res.err != nil {
		e.bundle.UpdateLyrics(nil, info, res.err.Error(), lyrics.SourceNone)
	} else {
		e.bundle.UpdateLyrics(res.lines, info, "", res.source)
		if len(res.lines) > 0 {
			slog.Info("lyrics loaded", "provider", res.provider, "source", res.source.String(), "lines", len(res.lines))
		}
	}

	position, err := e.bus.Position(res.service)
	if err != nil {
		slog.Debug("failed to re-sample position", "service", res.service, "error", err)
		position = fallback
	}

	e.bundle.UpdateIndex(position)
	e.bundle.SetPosition(position)
	e.publish(true)
}
