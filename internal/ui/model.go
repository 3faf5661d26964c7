// Package ui is the terminal consumer: a bubbletea program that renders
// engine snapshots and advances the highlight between them on its own clock.
package ui

import (
	"context"
	"image"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyrisync/internal/artwork"
	"karolbroda.com/lyrisync/internal/progression"
	"karolbroda.com/lyrisync/internal/state"
	"karolbroda.com/lyrisync/internal/terminal"
)

const (
	frameInterval  = 100 * time.Millisecond
	artworkTimeout = 5 * time.Second
)

type TickMsg time.Time

type SnapshotMsg state.Snapshot

type snapshotsClosedMsg struct{}

// WakeMsg fires at the next instant the highlight changes. only the most
// recently scheduled one is honoured.
type WakeMsg struct {
	seq int
}

type ArtworkFetchedMsg struct {
	URL     string
	Image   image.Image
	Palette *artwork.Palette
	Err     error
}

type Model struct {
	snapshots  <-chan state.Snapshot
	tracker    *progression.Tracker
	client     *http.Client
	karaoke    bool
	compact    bool
	hideHeader bool
	termCaps   *terminal.Capabilities

	index      int
	artURL     string
	image      image.Image
	palette    *artwork.Palette
	loadingArt bool
	wakeSeq    int

	quitting  bool
	width     int
	height    int
	frame     int
	animState AnimState
}

type ModelConfig struct {
	Snapshots  <-chan state.Snapshot
	SyncOffset float64
	Karaoke    bool
	Compact    bool
	HideHeader bool
	TermCaps   *terminal.Capabilities
	Client     *http.Client
	Now        func() time.Time
}

func NewModel(cfg ModelConfig) Model {
	caps := cfg.TermCaps
	if caps == nil {
		caps = &terminal.Capabilities{}
	}

	return Model{
		snapshots:  cfg.Snapshots,
		tracker:    progression.NewWithClock(cfg.SyncOffset, cfg.Now),
		client:     cfg.Client,
		karaoke:    cfg.Karaoke,
		compact:    cfg.Compact,
		hideHeader: cfg.HideHeader,
		termCaps:   caps,
		index:      -1,
		palette:    artwork.DefaultPalette(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.listenForSnapshots(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) listenForSnapshots() tea.Cmd {
	if m.snapshots == nil {
		return nil
	}

	ch := m.snapshots
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return snapshotsClosedMsg{}
		}
		return SnapshotMsg(snap)
	}
}

// scheduleWake invalidates any pending wake and arms a new one for the
// next highlight change.
func (m *Model) scheduleWake() tea.Cmd {
	m.wakeSeq++
	seq := m.wakeSeq

	delay, ok := m.tracker.NextWake(m.karaoke)
	if !ok {
		return nil
	}

	return tea.Tick(delay, func(time.Time) tea.Msg {
		return WakeMsg{seq: seq}
	})
}

func fetchArtworkCmd(client *http.Client, artURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), artworkTimeout)
		defer cancel()

		img, err := artwork.Fetch(ctx, client, artURL)
		if err != nil {
			return ArtworkFetchedMsg{URL: artURL, Err: err}
		}
		return ArtworkFetchedMsg{URL: artURL, Image: img, Palette: artwork.ExtractPalette(img)}
	}
}

// refreshIndex re-derives the active line from the local position and
// starts the transition when it moved.
func (m *Model) refreshIndex() bool {
	index := m.tracker.Index()
	if index == m.index {
		return false
	}
	m.index = index
	m.animState.Start()
	return true
}

func (m *Model) resetForNewTrack() {
	m.index = -1
	m.animState.Reset()
}

func (m Model) snapshot() (state.Snapshot, bool) {
	return m.tracker.Snapshot()
}

func (m Model) Width() int                { return m.width }
func (m Model) Height() int               { return m.height }
func (m Model) Index() int                { return m.index }
func (m Model) SyncOffset() float64       { return m.tracker.Offset() }
func (m Model) Karaoke() bool             { return m.karaoke }
func (m Model) Compact() bool             { return m.compact }
func (m Model) HideHeader() bool          { return m.hideHeader }
func (m Model) Palette() *artwork.Palette { return m.palette }
func (m Model) IsQuitting() bool          { return m.quitting }
func (m Model) IsLoadingArtwork() bool    { return m.loadingArt }
