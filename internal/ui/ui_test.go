package ui

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyrisync/internal/artwork"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/progression"
	"karolbroda.com/lyrisync/internal/state"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func plain(s string) string {
	return ansi.ReplaceAllString(s, "")
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestModel(karaoke bool) (Model, *fakeClock) {
	return newListeningModel(karaoke, nil)
}

// newListeningModel reads snapshots from the given channel.
func newListeningModel(karaoke bool, snapshots <-chan state.Snapshot) (Model, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewModel(ModelConfig{Snapshots: snapshots, Karaoke: karaoke, Now: clock.now})
	m.width, m.height = 80, 24
	return m, clock
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out, cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func plainSnapshot(position float64, playing bool) state.Snapshot {
	return state.Snapshot{
		Lines: []lyrics.Line{
			{TimeSeconds: 0, Text: "first"},
			{TimeSeconds: 5, Text: "second"},
			{TimeSeconds: 10, Text: "third"},
		},
		Position: position,
		Playing:  playing,
		Artist:   "Band",
		Title:    "Song",
		Duration: 200,
		Service:  "org.mpris.MediaPlayer2.test",
		Source:   lyrics.SourceLrclib,
		Version:  1,
	}
}

func richsyncSnapshot(position float64) state.Snapshot {
	snap := plainSnapshot(position, false)
	snap.Source = lyrics.SourceRichsync
	snap.Lines = []lyrics.Line{
		{TimeSeconds: 0, Text: "intro"},
		{
			TimeSeconds: 10,
			Text:        "hello world",
			Words:       []lyrics.Word{lyrics.NewWord(10, 10.5, "hello"), lyrics.NewWord(10.5, 11, "world")},
		},
	}
	return snap
}

func TestKaraokeText(t *testing.T) {
	tests := []struct {
		name     string
		segments []progression.Segment
		text     string
		sung     int
	}{
		{
			name: "mid first word",
			segments: []progression.Segment{
				{State: progression.WordActive, Sung: "he", Pending: "llo"},
				{State: progression.WordPending, Pending: "world"},
			},
			text: "hello world",
			sung: 2,
		},
		{
			name: "into second word",
			segments: []progression.Segment{
				{State: progression.WordSung, Sung: "hi"},
				{State: progression.WordActive, Sung: "u", Pending: "!"},
			},
			text: "hi u!",
			sung: 4,
		},
		{
			name: "nothing sung",
			segments: []progression.Segment{
				{State: progression.WordPending, Pending: "a"},
				{State: progression.WordPending, Pending: "b"},
			},
			text: "a b",
			sung: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, sung := karaokeText(tt.segments)
			if text != tt.text || sung != tt.sung {
				t.Errorf("karaokeText() = (%q, %d), want (%q, %d)", text, sung, tt.text, tt.sung)
			}
		})
	}
}

func TestWrapKeepsRuneOffsets(t *testing.T) {
	// (44-8)/6 leaves room for six glyphs per row
	r := NewTextRenderer(artwork.DefaultPalette(), &AnimState{}, 44)

	rows := r.wrap("ab cd efghij")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if string(rows[0].runes) != "AB CD" || rows[0].start != 0 {
		t.Errorf("row 0 = (%q, %d)", string(rows[0].runes), rows[0].start)
	}
	if string(rows[1].runes) != "EFGHIJ" || rows[1].start != 6 {
		t.Errorf("row 1 = (%q, %d)", string(rows[1].runes), rows[1].start)
	}

	long := r.wrap("abcdefghij")
	if len(long) != 1 || string(long[0].runes) != "ABCDEF" {
		t.Errorf("long word = %+v", long)
	}

	if got := r.wrap(""); got != nil {
		t.Errorf("empty text = %+v", got)
	}
}

func TestRenderFocusRowCount(t *testing.T) {
	anim := &AnimState{Progress: 1, Reveal: 1}
	r := NewTextRenderer(artwork.DefaultPalette(), anim, 44)

	if got := len(r.RenderFocus("ab cd efghij", 3)); got != 6 {
		t.Errorf("two wrapped rows rendered %d terminal lines, want 6", got)
	}
	if got := len(r.RenderContext("ab", 0.5)); got != 3 {
		t.Errorf("context rendered %d terminal lines, want 3", got)
	}
}

func TestSnapshotSetsIndex(t *testing.T) {
	snapshots := make(chan state.Snapshot, 1)
	m, _ := newListeningModel(true, snapshots)

	m, cmd := step(t, m, SnapshotMsg(plainSnapshot(6, false)))
	if m.Index() != 1 {
		t.Fatalf("Index() = %d, want 1", m.Index())
	}
	if cmd == nil {
		t.Fatalf("snapshot must keep listening")
	}

	snapshots <- plainSnapshot(11, false)
	next, ok := cmd().(SnapshotMsg)
	if !ok || state.Snapshot(next).Position != 11 {
		t.Fatalf("listener did not deliver the next snapshot")
	}
}

func TestLocalClockAdvancesIndex(t *testing.T) {
	m, clock := newTestModel(false)
	m, _ = step(t, m, SnapshotMsg(plainSnapshot(4, true)))
	if m.Index() != 0 {
		t.Fatalf("Index() = %d, want 0", m.Index())
	}

	clock.t = clock.t.Add(1500 * time.Millisecond)
	m, cmd := step(t, m, WakeMsg{seq: m.wakeSeq})
	if m.Index() != 1 {
		t.Errorf("Index() after wake = %d, want 1", m.Index())
	}
	if cmd == nil {
		t.Errorf("wake while playing must schedule the next one")
	}
}

func TestStaleWakeIgnored(t *testing.T) {
	m, clock := newTestModel(false)
	m, _ = step(t, m, SnapshotMsg(plainSnapshot(4, true)))

	clock.t = clock.t.Add(1500 * time.Millisecond)
	m, cmd := step(t, m, WakeMsg{seq: m.wakeSeq - 1})
	if cmd != nil {
		t.Errorf("stale wake scheduled another")
	}
	if m.Index() != 0 {
		t.Errorf("stale wake moved the index to %d", m.Index())
	}
}

func TestOffsetKeys(t *testing.T) {
	m, _ := newTestModel(false)
	m, _ = step(t, m, SnapshotMsg(plainSnapshot(4.6, false)))
	if m.Index() != 0 {
		t.Fatalf("Index() = %d, want 0", m.Index())
	}

	m, _ = step(t, m, key("right"))
	if m.SyncOffset() != 0.5 {
		t.Fatalf("SyncOffset() = %v, want 0.5", m.SyncOffset())
	}
	if m.Index() != 1 {
		t.Errorf("Index() after offset = %d, want 1", m.Index())
	}

	m, _ = step(t, m, key("0"))
	if m.SyncOffset() != 0 || m.Index() != 0 {
		t.Errorf("reset = offset %v index %d", m.SyncOffset(), m.Index())
	}
}

func TestToggleKeys(t *testing.T) {
	m, _ := newTestModel(true)

	m, _ = step(t, m, key("w"))
	if m.Karaoke() {
		t.Errorf("w did not disable karaoke")
	}
	m, _ = step(t, m, key("c"))
	if !m.Compact() {
		t.Errorf("c did not enable compact mode")
	}
	m, _ = step(t, m, key("tab"))
	if !m.HideHeader() {
		t.Errorf("tab did not hide the header")
	}

	m, cmd := step(t, m, key("q"))
	if !m.IsQuitting() || cmd == nil {
		t.Errorf("q did not quit")
	}
}

func TestSnapshotsClosedQuits(t *testing.T) {
	m, _ := newTestModel(false)
	m, cmd := step(t, m, snapshotsClosedMsg{})
	if !m.IsQuitting() || cmd == nil {
		t.Errorf("closed channel did not quit")
	}
	if m.View() != "" {
		t.Errorf("quitting view is not empty")
	}
}

func TestArtworkFollowsSnapshot(t *testing.T) {
	m, _ := newTestModel(false)

	snap := plainSnapshot(0, false)
	snap.ArtworkURL = "file:///nonexistent/cover.png"
	m, _ = step(t, m, SnapshotMsg(snap))
	if !m.IsLoadingArtwork() {
		t.Fatalf("artwork not requested")
	}

	m, _ = step(t, m, ArtworkFetchedMsg{URL: "file:///other.png", Err: errors.New("stale")})
	if !m.IsLoadingArtwork() {
		t.Fatalf("stale artwork result was applied")
	}

	palette := &artwork.Palette{Primary: "#112233", Secondary: "#445566", Accent: "#778899", Dim: "#101010"}
	m, _ = step(t, m, ArtworkFetchedMsg{URL: snap.ArtworkURL, Palette: palette})
	if m.IsLoadingArtwork() || m.Palette().Primary != "#112233" {
		t.Errorf("artwork result not applied: loading=%v palette=%+v", m.IsLoadingArtwork(), m.Palette())
	}

	snap.ArtworkURL = ""
	m, _ = step(t, m, SnapshotMsg(snap))
	if m.IsLoadingArtwork() || m.Palette().Primary != artwork.DefaultPalette().Primary {
		t.Errorf("palette not reset when artwork went away")
	}
}

func TestViewIdle(t *testing.T) {
	m, _ := newTestModel(false)
	view := plain(m.View())
	if !strings.Contains(view, "awaiting music") {
		t.Errorf("idle view missing prompt:\n%s", view)
	}
	if got := len(strings.Split(view, "\n")); got != 24 {
		t.Errorf("idle view has %d lines, want 24", got)
	}
}

func TestViewStates(t *testing.T) {
	tests := []struct {
		name string
		edit func(*state.Snapshot)
		want string
	}{
		{"loading", func(s *state.Snapshot) { s.Lines = nil; s.Loading = true }, "loading"},
		{"no lyrics", func(s *state.Snapshot) { s.Lines = nil }, "no synced lyrics"},
		{"error", func(s *state.Snapshot) { s.Lines = nil; s.Err = "lrclib: status 500" }, "lrclib: status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(false)
			snap := plainSnapshot(0, false)
			tt.edit(&snap)
			m, _ = step(t, m, SnapshotMsg(snap))

			view := plain(m.View())
			if !strings.Contains(view, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, view)
			}
			if !strings.Contains(view, "Song") {
				t.Errorf("header missing title")
			}
		})
	}
}

func TestCompactViewKaraoke(t *testing.T) {
	m, _ := newTestModel(true)
	m.compact = true
	m, _ = step(t, m, SnapshotMsg(richsyncSnapshot(10.25)))

	if m.Index() != 1 {
		t.Fatalf("Index() = %d, want 1", m.Index())
	}

	text, sung, segments := m.focusText(richsyncSnapshot(0).Lines[1])
	if text != "hello world" || sung != 2 || len(segments) != 2 {
		t.Errorf("focusText() = (%q, %d, %d segments)", text, sung, len(segments))
	}

	view := plain(m.View())
	if !strings.Contains(view, "hello world") || !strings.Contains(view, "intro") {
		t.Errorf("compact view missing lines:\n%s", view)
	}

	m, _ = step(t, m, key("w"))
	if _, sung, _ := m.focusText(richsyncSnapshot(0).Lines[1]); sung != -1 {
		t.Errorf("karaoke off still splits, sung = %d", sung)
	}
}
