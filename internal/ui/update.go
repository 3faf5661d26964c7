package ui

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyrisync/internal/artwork"
	"karolbroda.com/lyrisync/internal/state"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case SnapshotMsg:
		return m.handleSnapshot(state.Snapshot(msg))

	case snapshotsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case WakeMsg:
		if msg.seq != m.wakeSeq {
			return m, nil
		}
		m.refreshIndex()
		return m, m.scheduleWake()

	case ArtworkFetchedMsg:
		return m.handleArtworkFetched(msg)

	case TickMsg:
		m.frame++
		m.animState.Step(m.frame)
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k", "+", "=":
		return m.shiftOffset(0.1)

	case "down", "j", "-":
		return m.shiftOffset(-0.1)

	case "left", "h":
		return m.shiftOffset(-0.5)

	case "right", "l":
		return m.shiftOffset(0.5)

	case "0":
		return m.shiftOffset(-m.tracker.Offset())

	case "tab", "i":
		m.hideHeader = !m.hideHeader
		return m, nil

	case "w":
		m.karaoke = !m.karaoke
		return m, m.scheduleWake()

	case "c":
		m.compact = !m.compact
		return m, nil
	}

	return m, nil
}

func (m Model) shiftOffset(delta float64) (tea.Model, tea.Cmd) {
	m.tracker.SetOffset(m.tracker.Offset() + delta)
	m.refreshIndex()
	return m, m.scheduleWake()
}

func (m Model) handleSnapshot(snap state.Snapshot) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.listenForSnapshots()}

	prev, had := m.snapshot()
	m.tracker.Update(snap)

	if !had || !prev.SameTrack(snap) || prev.Service != snap.Service {
		m.resetForNewTrack()
	}

	if snap.ArtworkURL != m.artURL {
		m.artURL = snap.ArtworkURL
		m.image = nil
		m.palette = artwork.DefaultPalette()
		m.loadingArt = snap.ArtworkURL != ""
		if m.loadingArt {
			cmds = append(cmds, fetchArtworkCmd(m.client, snap.ArtworkURL))
		}
	}

	m.refreshIndex()
	cmds = append(cmds, m.scheduleWake())

	return m, tea.Batch(cmds...)
}

func (m Model) handleArtworkFetched(msg ArtworkFetchedMsg) (tea.Model, tea.Cmd) {
	if msg.URL != m.artURL {
		return m, nil
	}
	m.loadingArt = false

	if msg.Err != nil {
		slog.Debug("artwork unavailable", "url", msg.URL, "error", msg.Err)
		return m, nil
	}

	m.image = msg.Image
	if msg.Palette != nil {
		m.palette = msg.Palette
	}
	return m, nil
}
