package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"karolbroda.com/lyrisync/internal/progression"
)

// karaokeText joins the words of a line with single spaces and counts the
// runes sung so far.
func karaokeText(segments []progression.Segment) (string, int) {
	var b strings.Builder
	sung := 0
	singing := true

	for i, seg := range segments {
		if i > 0 {
			b.WriteByte(' ')
			if singing {
				sung++
			}
		}
		b.WriteString(seg.Sung)
		b.WriteString(seg.Pending)

		if singing {
			sung += utf8.RuneCountInString(seg.Sung)
		}
		if seg.State != progression.WordSung {
			singing = false
		}
	}

	return b.String(), sung
}

// renderKaraokeLine styles every word by its state and centers the result.
// the split inside the active word falls on a grapheme boundary.
func renderKaraokeLine(segments []progression.Segment, sung, active, pending lipgloss.Style, width int) string {
	var b strings.Builder
	var plain strings.Builder

	for i, seg := range segments {
		if i > 0 {
			b.WriteString(" ")
			plain.WriteString(" ")
		}
		plain.WriteString(seg.Sung + seg.Pending)

		switch seg.State {
		case progression.WordSung:
			b.WriteString(sung.Render(seg.Sung))
		case progression.WordPending:
			b.WriteString(pending.Render(seg.Pending))
		default:
			if seg.Sung != "" {
				b.WriteString(active.Render(seg.Sung))
			}
			if seg.Pending != "" {
				b.WriteString(pending.Render(seg.Pending))
			}
		}
	}

	if runewidth.StringWidth(plain.String()) > width {
		// too wide to split per word, fall back to the whole line
		return center(sung.Render(truncate(plain.String(), width)), truncate(plain.String(), width), width)
	}
	return center(b.String(), plain.String(), width)
}

// truncate cuts s to width display cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// center pads rendered so that plain, its unstyled text, sits in the middle
// of width cells.
func center(rendered string, plain string, width int) string {
	pad := (width - runewidth.StringWidth(plain)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + rendered
}
