package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"karolbroda.com/lyrisync/internal/cache"
	"karolbroda.com/lyrisync/internal/config"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/player"
	"karolbroda.com/lyrisync/internal/providers"
	"karolbroda.com/lyrisync/internal/state"
	"karolbroda.com/lyrisync/internal/track"
)

const service = "org.mpris.MediaPlayer2.spotify"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeBus struct {
	players  []string
	tracks   map[string]track.Info
	status   map[string]string
	position float64
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		tracks: make(map[string]track.Info),
		status: map[string]string{service: player.StatusPlaying},
	}
}

func (b *fakeBus) ActivePlayers() ([]string, error) {
	return b.players, nil
}

func (b *fakeBus) Metadata(service string) (track.Info, error) {
	info, ok := b.tracks[service]
	if !ok {
		return track.Info{}, player.ErrNoPlayer
	}
	return info, nil
}

func (b *fakeBus) Position(service string) (float64, error) {
	if service == "" {
		return 0, player.ErrNoPlayer
	}
	return b.position, nil
}

func (b *fakeBus) PlaybackStatus(service string) (string, error) {
	status, ok := b.status[service]
	if !ok {
		return "", player.ErrBus
	}
	return status, nil
}

type fakeProvider struct {
	name  string
	fetch func(ctx context.Context, req providers.Request) (providers.Result, error)

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, req providers.Request) (providers.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fetch(ctx, req)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func linesResult(source lyrics.Source, texts ...string) providers.Result {
	lines := make([]lyrics.Line, len(texts))
	for i, text := range texts {
		lines[i] = lyrics.Line{TimeSeconds: float64(i * 5), Text: text}
	}
	return providers.Result{Lines: lines, Source: source}
}

func newTestEngine(bus Bus, opts Options) (*Engine, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	opts.Now = clock.now
	opts.TickInterval = time.Hour
	return New(bus, opts), clock
}

func drain(e *Engine) []state.Snapshot {
	var out []state.Snapshot
	for {
		select {
		case snap := <-e.sink:
			out = append(out, snap)
		default:
			return out
		}
	}
}

func waitResult(t *testing.T, e *Engine) fetchResult {
	t.Helper()
	select {
	case res := <-e.results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch result")
		return fetchResult{}
	}
}

func update(info track.Info, position float64) player.Event {
	return player.Event{Kind: player.EventPlayerUpdate, Track: info, Position: position, Service: service}
}

var songA = track.Info{Title: "A", Artist: "X", DurationSecs: 200}

func TestProviderFallback(t *testing.T) {
	transport := &fakeProvider{name: "flaky", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return providers.Result{}, &providers.Error{Provider: "flaky", Kind: providers.Transport, Err: errors.New("connection reset")}
	}}
	subtitles := &fakeProvider{name: "subs", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return linesResult(lyrics.SourceSubtitles, "OK"), nil
	}}

	e, _ := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{transport, subtitles}})

	e.handleEvent(update(songA, 0))
	first := drain(e)
	if len(first) != 1 || first[0].HasLyrics() || first[0].Title != "A" {
		t.Fatalf("new track snapshots = %+v", first)
	}
	if !first[0].Loading {
		t.Errorf("new track snapshot should be loading")
	}

	e.applyFetch(waitResult(t, e))

	snaps := drain(e)
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots after fetch, want 1", len(snaps))
	}
	snap := snaps[0]
	if len(snap.Lines) != 1 || snap.Lines[0].Text != "OK" || snap.Lines[0].TimeSeconds != 0 {
		t.Errorf("lines = %+v", snap.Lines)
	}
	if snap.Err != "" {
		t.Errorf("err = %q, want none", snap.Err)
	}
	if snap.Source != lyrics.SourceSubtitles {
		t.Errorf("source = %q, want subtitles", snap.Source)
	}
	if snap.Index != 0 {
		t.Errorf("index = %d, want 0", snap.Index)
	}
	if snap.Loading {
		t.Errorf("still loading after fetch")
	}
	if transport.callCount() != 1 || subtitles.callCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", transport.callCount(), subtitles.callCount())
	}
}

func TestNonTransientErrorSurfaces(t *testing.T) {
	failing := &fakeProvider{name: "broken", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return providers.Result{}, &providers.Error{Provider: "broken", Kind: providers.API, Err: errors.New("status 500")}
	}}
	never := &fakeProvider{name: "never", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return linesResult(lyrics.SourceLrclib, "x"), nil
	}}

	e, _ := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{failing, never}})
	e.handleEvent(update(songA, 0))
	e.applyFetch(waitResult(t, e))

	snaps := drain(e)
	last := snaps[len(snaps)-1]
	if last.Err == "" || last.HasLyrics() {
		t.Errorf("snapshot = err %q lines %d, want error without lyrics", last.Err, len(last.Lines))
	}
	if never.callCount() != 0 {
		t.Errorf("chain continued past a non-transient error")
	}
}

func TestExhaustedChainHasNoError(t *testing.T) {
	empty := &fakeProvider{name: "empty", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return providers.Result{}, nil
	}}

	e, _ := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{empty}})
	e.handleEvent(update(songA, 0))
	e.applyFetch(waitResult(t, e))

	snaps := drain(e)
	last := snaps[len(snaps)-1]
	if last.Err != "" || last.HasLyrics() || last.Source != lyrics.SourceNone {
		t.Errorf("snapshot = %+v, want empty lyrics without error", last)
	}
}

func TestNewTrackRace(t *testing.T) {
	slow := &fakeProvider{name: "slow", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		if req.Title == "A" {
			<-ctx.Done()
			return linesResult(lyrics.SourceLrclib, "from A"), nil
		}
		return linesResult(lyrics.SourceLrclib, "from B"), nil
	}}

	e, _ := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{slow}})

	songB := track.Info{Title: "B", Artist: "Y"}
	e.handleEvent(update(songA, 0))
	staleGeneration := e.generation
	e.handleEvent(update(songB, 0))

	for {
		res := waitResult(t, e)
		e.applyFetch(res)
		if res.info.Title == "B" {
			break
		}
	}

	e.applyFetch(fetchResult{
		generation: staleGeneration,
		info:       songA,
		service:    service,
		lines:      []lyrics.Line{{TimeSeconds: 0, Text: "from A"}},
		source:     lyrics.SourceLrclib,
	})

	snaps := drain(e)
	last := snaps[len(snaps)-1]
	if last.Title != "B" {
		t.Fatalf("title = %q, want B", last.Title)
	}
	if len(last.Lines) != 1 || last.Lines[0].Text != "from B" {
		t.Errorf("lines = %+v, want B's lyrics", last.Lines)
	}
	if got := e.bundle.Lines(); len(got) != 1 || got[0].Text != "from B" {
		t.Errorf("stale result was applied: %+v", got)
	}
}

func TestRepeatedPlayerUpdateIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(newFakeBus(), Options{})

	e.handleEvent(update(songA, 10))
	if got := len(drain(e)); got != 1 {
		t.Fatalf("first update published %d snapshots, want 1", got)
	}

	e.handleEvent(update(songA, 10))
	if got := len(drain(e)); got > 1 {
		t.Errorf("repeated update published %d snapshots, want at most 1", got)
	}

	e.handleEvent(update(songA, 10))
	if got := len(drain(e)); got != 0 {
		t.Errorf("third identical update published %d snapshots, want 0", got)
	}
}

func TestPlayingToggleIsPublished(t *testing.T) {
	bus := newFakeBus()
	e, _ := newTestEngine(bus, Options{})
	e.handleEvent(update(songA, 10))
	drain(e)

	bus.status[service] = player.StatusPaused
	e.handleEvent(update(songA, 10))

	snaps := drain(e)
	if len(snaps) != 1 || snaps[0].Playing {
		t.Fatalf("pause snapshots = %+v", snaps)
	}
}

func TestUnreadableStatusKeepsPlayingFlag(t *testing.T) {
	bus := newFakeBus()
	e, _ := newTestEngine(bus, Options{})
	e.handleEvent(update(songA, 0))
	drain(e)

	delete(bus.status, service)
	e.handleEvent(update(track.Info{Title: "C", Artist: "Z"}, 0))

	snaps := drain(e)
	if len(snaps) == 0 || !snaps[0].Playing {
		t.Errorf("playing flag lost on unreadable status: %+v", snaps)
	}
}

func TestStoppedClearsState(t *testing.T) {
	bus := newFakeBus()
	lrc := &fakeProvider{name: "lrc", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return linesResult(lyrics.SourceLrclib, "a", "b"), nil
	}}
	e, _ := newTestEngine(bus, Options{Providers: []providers.Provider{lrc}})

	e.handleEvent(update(songA, 0))
	e.applyFetch(waitResult(t, e))
	drain(e)

	bus.status[service] = player.StatusStopped
	e.handleEvent(update(songA, 0))

	snaps := drain(e)
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	snap := snaps[0]
	if snap.HasLyrics() || snap.Title != "" || snap.Playing || snap.Service != "" || snap.Index != -1 {
		t.Errorf("stopped snapshot = %+v", snap)
	}
}

func TestPlayerGoneClearsState(t *testing.T) {
	e, _ := newTestEngine(newFakeBus(), Options{})
	e.handleEvent(update(songA, 0))
	drain(e)

	e.handleEvent(player.Event{Kind: player.EventPlayerUpdate})

	snaps := drain(e)
	if len(snaps) != 1 || snaps[0].Title != "" || snaps[0].Service != "" {
		t.Errorf("snapshots = %+v, want one empty snapshot", snaps)
	}
}

func TestInitWithoutPlayer(t *testing.T) {
	e, _ := newTestEngine(newFakeBus(), Options{})
	e.init()

	snaps := drain(e)
	if len(snaps) != 1 || snaps[0].Service != "" || snaps[0].HasLyrics() {
		t.Errorf("init snapshots = %+v", snaps)
	}
}

func TestInitSkipsBlockedPlayers(t *testing.T) {
	bus := newFakeBus()
	bus.players = []string{"org.mpris.MediaPlayer2.firefox", service}
	bus.tracks[service] = songA
	bus.tracks["org.mpris.MediaPlayer2.firefox"] = track.Info{Title: "video", Artist: "web"}

	e, _ := newTestEngine(bus, Options{Block: []string{"firefox"}})
	e.init()

	snaps := drain(e)
	if len(snaps) != 1 || snaps[0].Service != service || snaps[0].Title != "A" {
		t.Errorf("init snapshots = %+v", snaps)
	}
}

func loadLyrics(t *testing.T, e *Engine) {
	t.Helper()
	e.handleEvent(update(songA, 0))
	e.applyFetch(waitResult(t, e))
	drain(e)
}

func TestTickAdvancesIndex(t *testing.T) {
	lrc := &fakeProvider{name: "lrc", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return linesResult(lyrics.SourceLrclib, "first", "second"), nil
	}}
	e, clock := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{lrc}})
	loadLyrics(t, e)

	clock.advance(6 * time.Second)
	e.onTick()

	snaps := drain(e)
	if len(snaps) != 1 || snaps[0].Index != 1 {
		t.Fatalf("tick snapshots = %+v, want index 1", snaps)
	}
	if snaps[0].Position < 6 {
		t.Errorf("position = %v, want >= 6", snaps[0].Position)
	}

	e.onTick()
	if got := drain(e); len(got) != 0 {
		t.Errorf("idle tick published %d snapshots", len(got))
	}
}

func TestSeekPublishesJump(t *testing.T) {
	lrc := &fakeProvider{name: "lrc", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return linesResult(lyrics.SourceLrclib, "first", "second"), nil
	}}
	e, _ := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{lrc}})
	loadLyrics(t, e)

	seek := player.Event{Kind: player.EventSeeked, Position: 3, Service: service}
	e.handleEvent(seek)
	snaps := drain(e)
	if len(snaps) != 1 || snaps[0].Position != 3 || snaps[0].Index != 0 {
		t.Fatalf("seek snapshots = %+v", snaps)
	}

	e.handleEvent(seek)
	if got := drain(e); len(got) != 0 {
		t.Errorf("repeated seek published %d snapshots", len(got))
	}

	e.handleEvent(player.Event{Kind: player.EventSeeked, Position: 7, Service: service})
	snaps = drain(e)
	if len(snaps) != 1 || snaps[0].Index != 1 {
		t.Errorf("seek across lines = %+v", snaps)
	}
}

func TestDatabaseHitSkipsProviders(t *testing.T) {
	db, err := cache.Open(filepath.Join(t.TempDir(), "lyrics.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Store(songA, lyrics.SourceLrclib, "[00:00.00]cached"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	never := &fakeProvider{name: "never", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		return linesResult(lyrics.SourceLrclib, "network"), nil
	}}
	e, _ := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{never}, Store: db})

	e.handleEvent(update(songA, 0))
	e.applyFetch(waitResult(t, e))

	snaps := drain(e)
	last := snaps[len(snaps)-1]
	if len(last.Lines) != 1 || last.Lines[0].Text != "cached" {
		t.Errorf("lines = %+v, want cached", last.Lines)
	}
	if never.callCount() != 0 {
		t.Errorf("provider called despite database hit")
	}
}

func TestProviderPayloadIsStored(t *testing.T) {
	db, err := cache.Open(filepath.Join(t.TempDir(), "lyrics.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	lrc := &fakeProvider{name: "lrc", fetch: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		res := linesResult(lyrics.SourceLrclib, "fresh")
		res.Raw = "[00:00.00]fresh"
		return res, nil
	}}
	e, _ := newTestEngine(newFakeBus(), Options{Providers: []providers.Provider{lrc}, Store: db})

	e.handleEvent(update(songA, 0))
	e.applyFetch(waitResult(t, e))

	entry, err := db.Lookup(songA)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry.RawLyrics != "[00:00.00]fresh" || entry.Format != cache.FormatLRC {
		t.Errorf("stored entry = %+v", entry)
	}
}

func TestRunPublishesFinalSnapshotAndCloses(t *testing.T) {
	e, _ := newTestEngine(newFakeBus(), Options{})
	events := make(chan player.Event)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, events)
	}()

	select {
	case <-e.Snapshots():
	case <-time.After(2 * time.Second):
		t.Fatalf("no initial snapshot")
	}

	cancel()

	count := 0
	timeout := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-e.Snapshots():
			if !ok {
				if count == 0 {
					t.Errorf("no final snapshot before close")
				}
				if err := <-done; err != nil {
					t.Errorf("Run() error = %v", err)
				}
				return
			}
			count++
		case <-timeout:
			t.Fatalf("snapshot channel not closed")
		}
	}
}

func TestTickInterval(t *testing.T) {
	if got := New(newFakeBus(), Options{}).tick; got != DefaultTickInterval {
		t.Errorf("default tick = %v, want %v", got, DefaultTickInterval)
	}
	if got := New(newFakeBus(), Options{TickInterval: config.PollInterval}).tick; got != config.PollInterval {
		t.Errorf("configured tick = %v, want %v", got, config.PollInterval)
	}
}
