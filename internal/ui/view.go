package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"
	"github.com/mattn/go-runewidth"

	"karolbroda.com/lyrisync/internal/artwork"
	"karolbroda.com/lyrisync/internal/colors"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/progression"
	"karolbroda.com/lyrisync/internal/state"
	"karolbroda.com/lyrisync/internal/terminal"
)

const (
	bannerText = "lyrisync"
	errorColor = "#FF6B6B"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width, height := m.width, m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	palette := m.palette
	if palette == nil {
		palette = artwork.DefaultPalette()
	}

	snap, ok := m.snapshot()
	if !ok || (snap.Service == "" && snap.Title == "") {
		return m.renderIdleScreen(palette, width, height)
	}

	return m.renderMainScreen(snap, palette, width, height)
}

func (m Model) renderIdleScreen(palette *artwork.Palette, width int, height int) string {
	var block []string

	banner := figure.NewFigure(bannerText, "", true).Slicify()
	bannerWidth := 0
	for _, row := range banner {
		bannerWidth = max(bannerWidth, runewidth.StringWidth(row))
	}
	if bannerWidth <= width && len(banner)+3 <= height {
		for _, row := range banner {
			if strings.TrimSpace(row) == "" {
				continue
			}
			padded := row + strings.Repeat(" ", bannerWidth-runewidth.StringWidth(row))
			block = append(block, center(colors.GradientText(padded, palette.Gradient, true), padded, width))
		}
		block = append(block, "")
	}

	waitText := "awaiting music"
	waitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Italic(true)
	block = append(block, center(waitStyle.Render(waitText), waitText, width))

	pulse := []string{"·", "•", "●", "•"}[(m.frame/4)%4]
	pulseStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	block = append(block, center(pulseStyle.Render(pulse), pulse, width))

	top := max((height-len(block))/2, 0)
	lines := make([]string, 0, height)
	for range top {
		lines = append(lines, "")
	}
	lines = append(lines, block...)

	return strings.Join(fitHeight(lines, height), "\n")
}

func (m Model) renderMainScreen(snap state.Snapshot, palette *artwork.Palette, width int, height int) string {
	var lines []string

	if !m.hideHeader {
		lines = append(lines, m.renderHeader(snap, palette, width)...)
	}

	lyricsHeight := max(height-len(lines), 0)

	switch {
	case snap.Err != "":
		lines = append(lines, renderErrorSection(snap.Err, lyricsHeight, width)...)
	case m.index >= 0 && m.index < len(snap.Lines):
		if m.compact {
			lines = append(lines, m.renderCompactLyrics(snap, palette, lyricsHeight, width)...)
		} else {
			lines = append(lines, m.renderSlidingLyrics(snap, palette, lyricsHeight, width)...)
		}
	default:
		lines = append(lines, m.renderWaitingForLyrics(snap, palette, lyricsHeight, width)...)
	}

	return strings.Join(fitHeight(lines, height), "\n")
}

func fitHeight(lines []string, height int) []string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines[:height]
}

func (m Model) renderHeader(snap state.Snapshot, palette *artwork.Palette, width int) []string {
	lines := []string{""}

	artWidth, artHeight := 12, 6
	if width < 80 {
		artWidth, artHeight = 8, 4
	}
	if width < 50 || m.height < 25 || m.image == nil {
		artWidth, artHeight = 0, 0
	}

	info := renderTrackInfo(snap, palette, width)

	kitty := ""
	if artWidth > 0 && m.termCaps.KittyGraphics {
		kitty = terminal.EncodeImageForKitty(m.image, artWidth, artHeight)
	}

	if kitty != "" {
		lines = append(lines, "  "+kitty)
		for range artHeight - 1 {
			lines = append(lines, "  ")
		}
		for _, row := range info {
			lines = append(lines, "  "+row)
		}
	} else {
		art := artwork.RenderHalfBlockArt(m.image, artWidth, artHeight)
		rows := max(len(art), len(info))
		for i := range rows {
			var line strings.Builder
			if artWidth > 0 {
				if i < len(art) {
					line.WriteString("  " + art[i] + "  ")
				} else {
					line.WriteString(strings.Repeat(" ", artWidth+4))
				}
			}
			if i < len(info) {
				line.WriteString(info[i])
			}
			lines = append(lines, line.String())
		}
	}

	lines = append(lines, "")
	if snap.Duration > 0 {
		lines = append(lines, m.renderProgress(snap, palette, width))
	}
	lines = append(lines, "")

	return lines
}

func renderTrackInfo(snap state.Snapshot, palette *artwork.Palette, width int) []string {
	maxWidth := max(width-20, 20)

	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary)).Bold(true)
	artistStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	title := snap.Title
	if title == "" {
		title = "unknown title"
	}

	lines := []string{
		titleStyle.Render(truncate(title, maxWidth)),
		artistStyle.Render(truncate(snap.Artist, maxWidth)),
	}
	if snap.Album != "" {
		lines = append(lines, dimStyle.Render(truncate(snap.Album, maxWidth)))
	}
	if snap.Source != "" {
		lines = append(lines, dimStyle.Faint(true).Render("via "+snap.Source.String()))
	}

	return lines
}

func (m Model) renderProgress(snap state.Snapshot, palette *artwork.Palette, width int) string {
	barWidth := max(width-20, 20)

	position := m.tracker.Position()
	progress := clamp(position/snap.Duration, 0, 1)
	filled := int(float64(barWidth) * progress)

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Faint(true)
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	var bar strings.Builder
	for i := range barWidth {
		switch {
		case i < filled:
			bar.WriteString(filledStyle.Render("━"))
		case i == filled:
			bar.WriteString(filledStyle.Render("●"))
		default:
			bar.WriteString(emptyStyle.Render("─"))
		}
	}

	status := ""
	if !snap.Playing {
		status = timeStyle.Render("  ⏸")
	}

	return fmt.Sprintf("  %s  %s  %s%s",
		timeStyle.Render(colors.FormatTime(position)),
		bar.String(),
		timeStyle.Render(colors.FormatTime(snap.Duration)),
		status)
}

// focusText returns the active line's text and its sung rune count, or -1
// when the line is not highlighted per word.
func (m Model) focusText(line lyrics.Line) (string, int, []progression.Segment) {
	if !m.tracker.WordLevel(m.karaoke) || !line.HasWords() {
		return line.Text, -1, nil
	}
	segments := progression.Karaoke(line, m.tracker.Position())
	text, sung := karaokeText(segments)
	return text, sung, segments
}

type renderedLyric struct {
	lines  []string
	offset int
}

func (m Model) renderSlidingLyrics(snap state.Snapshot, palette *artwork.Palette, height int, width int) []string {
	renderer := NewTextRenderer(palette, &m.animState, width)
	slide := m.animState.SlideOffset()

	contextCount := 2
	if height < 20 {
		contextCount = 1
	}

	var stack []renderedLyric
	focus := 0

	for offset := -contextCount - 1; offset <= contextCount+1; offset++ {
		idx := m.index + offset
		if idx < 0 || idx >= len(snap.Lines) {
			continue
		}

		line := snap.Lines[idx]
		text := line.Text
		if strings.TrimSpace(text) == "" {
			text = "···"
		}

		var rendered []string
		if offset == 0 {
			lyric, sung, _ := m.focusText(line)
			if strings.TrimSpace(lyric) == "" {
				lyric = text
			}
			rendered = renderer.RenderFocus(lyric, sung)
			focus = len(stack)
		} else {
			rendered = renderer.RenderContext(text, contextBrightness(offset, slide))
		}

		stack = append(stack, renderedLyric{lines: rendered, offset: offset})
	}

	const spacing = 2
	focusHeight := len(stack[focus].lines)

	positions := make([]int, len(stack))
	positions[focus] = max((height-focusHeight)/2, 0)

	y := positions[focus]
	for i := focus - 1; i >= 0; i-- {
		y -= len(stack[i].lines) + spacing
		positions[i] = y
	}
	y = positions[focus] + focusHeight + spacing
	for i := focus + 1; i < len(stack); i++ {
		positions[i] = y
		y += len(stack[i].lines) + spacing
	}

	// the new line slides up from below while the transition runs
	shift := int((1 - slide) * float64(focusHeight+spacing))

	output := make([]string, height)
	place := func(l renderedLyric, top int) {
		for j, row := range l.lines {
			if r := top + j; r >= 0 && r < height && (output[r] == "" || l.offset == 0) {
				output[r] = row
			}
		}
	}
	for i, l := range stack {
		if i != focus {
			place(l, positions[i]+shift)
		}
	}
	place(stack[focus], positions[focus]+shift)

	return output
}

func contextBrightness(offset int, slide float64) float64 {
	switch {
	case offset == -1 && slide < 1:
		return lerp(0.7, 0.4, slide)
	case offset == 1 && slide < 1:
		return lerp(0.35, 0.5, slide)
	}

	dist := offset
	if dist < 0 {
		dist = -dist
	}
	return max(0.5-float64(dist-1)*0.1, 0.3)
}

// renderCompactLyrics draws plain text lines, for narrow terminals and
// scripts that capture the screen.
func (m Model) renderCompactLyrics(snap state.Snapshot, palette *artwork.Palette, height int, width int) []string {
	maxWidth := max(width-4, 10)

	focusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary)).Bold(true)
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Accent)).Bold(true)
	pendingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	output := make([]string, height)
	middle := height / 2

	for r := range output {
		idx := m.index + r - middle
		if idx < 0 || idx >= len(snap.Lines) {
			continue
		}

		line := snap.Lines[idx]
		if idx != m.index {
			grey := colors.RGB{R: 80, G: 80, B: 80}.Scale(contextBrightness(idx-m.index, 1) * 2).Hex()
			text := truncate(line.Text, maxWidth)
			output[r] = center(lipgloss.NewStyle().Foreground(lipgloss.Color(grey)).Render(text), text, width)
			continue
		}

		if _, _, segments := m.focusText(line); segments != nil {
			output[r] = renderKaraokeLine(segments, focusStyle, activeStyle, pendingStyle, maxWidth)
			output[r] = strings.Repeat(" ", (width-maxWidth)/2) + output[r]
			continue
		}

		text := truncate(line.Text, maxWidth)
		output[r] = center(focusStyle.Render(text), text, width)
	}

	return output
}

func renderErrorSection(message string, height int, width int) []string {
	lines := make([]string, 0, height)
	for range max(height/2-1, 0) {
		lines = append(lines, "")
	}

	text := truncate(message, max(width-4, 10))
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(errorColor))
	return append(lines, center(style.Render(text), text, width))
}

func (m Model) renderWaitingForLyrics(snap state.Snapshot, palette *artwork.Palette, height int, width int) []string {
	lines := make([]string, 0, height)
	for range max(height/2-1, 0) {
		lines = append(lines, "")
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	switch {
	case snap.Loading:
		frame := spinnerFrames[m.frame%len(spinnerFrames)]
		spinner := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary)).Render(frame)
		lines = append(lines, center(spinner+dim.Render(" loading"), frame+" loading", width))
	case !snap.HasLyrics():
		text := "no synced lyrics"
		lines = append(lines, center(dim.Italic(true).Render(text), text, width))
	default:
		lines = append(lines, center(dim.Render("♪"), "♪", width))
	}

	return lines
}
