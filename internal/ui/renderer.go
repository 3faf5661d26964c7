package ui

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyrisync/internal/artwork"
	"karolbroda.com/lyrisync/internal/colors"
)

const (
	glyphWidth  = 5
	glyphHeight = 5
	glyphGap    = 1

	// how far pending karaoke text is pulled toward the dim color
	pendingDim = 0.65
)

type cell struct {
	filled bool
	char   int
	x      int
}

// grid is one wrapped row of text as pixels. cell.char indexes the rune in
// the whole lyric, not in the row.
type grid [glyphHeight][]cell

func (g *grid) width() int {
	return len(g[0])
}

func layout(runes []rune, first int) *grid {
	g := &grid{}
	x := 0
	for i, r := range runes {
		bits := glyph(r)
		last := i == len(runes)-1

		for row := range glyphHeight {
			for col := range glyphWidth {
				lit := bits[row]>>(glyphWidth-1-col)&1 == 1
				g[row] = append(g[row], cell{filled: lit, char: first + i, x: x + col})
			}
			if last {
				continue
			}
			for gap := range glyphGap {
				g[row] = append(g[row], cell{char: first + i, x: x + glyphWidth + gap})
			}
		}

		x += glyphWidth + glyphGap
	}
	return g
}

// paint folds pixel rows pairwise into half-block cells, colored by the
// top pixel of each pair.
func paint(g *grid, pad int, color func(c cell) string) []string {
	rows := (glyphHeight + 1) / 2
	out := make([]string, rows)

	for r := range rows {
		top, bottom := r*2, r*2+1

		var line strings.Builder
		line.WriteString(strings.Repeat(" ", pad))

		for col := 0; col < g.width(); col++ {
			upper := g[top][col].filled
			lower := bottom < glyphHeight && g[bottom][col].filled

			if !upper && !lower {
				line.WriteString(" ")
				continue
			}

			style := lipgloss.NewStyle().Foreground(lipgloss.Color(color(g[top][col])))
			switch {
			case upper && lower:
				line.WriteString(style.Render("█"))
			case upper:
				line.WriteString(style.Render("▀"))
			default:
				line.WriteString(style.Render("▄"))
			}
		}

		out[r] = line.String()
	}

	return out
}

type wrapped struct {
	runes []rune
	start int
}

// TextRenderer draws lyric lines in the large pixel font.
type TextRenderer struct {
	palette *artwork.Palette
	anim    *AnimState
	width   int
}

func NewTextRenderer(palette *artwork.Palette, anim *AnimState, width int) *TextRenderer {
	return &TextRenderer{palette: palette, anim: anim, width: width}
}

// wrap breaks text at spaces so every row fits the screen, upper-casing it
// on the way. start is the rune offset of the row in text.
func (r *TextRenderer) wrap(text string) []wrapped {
	limit := max((r.width-8)/(glyphWidth+glyphGap), 5)

	var out []wrapped
	var current []rune
	currentStart := 0
	offset := 0

	for _, word := range strings.Split(text, " ") {
		start := offset
		offset += utf8.RuneCountInString(word) + 1
		if word == "" {
			continue
		}

		runes := []rune(strings.Map(unicode.ToUpper, word))
		switch {
		case current == nil:
			current, currentStart = runes, start
		case len(current)+1+len(runes) <= limit:
			current = append(append(current, ' '), runes...)
		default:
			out = append(out, wrapped{runes: current, start: currentStart})
			current, currentStart = runes, start
		}

		if len(current) > limit {
			current = current[:limit]
		}
	}

	if current != nil {
		out = append(out, wrapped{runes: current, start: currentStart})
	}
	return out
}

// RenderFocus draws the active line. sung is how many runes of text are
// already sung; a negative sung disables karaoke coloring.
func (r *TextRenderer) RenderFocus(text string, sung int) []string {
	total := utf8.RuneCountInString(text)

	var out []string
	for _, row := range r.wrap(text) {
		g := layout(row.runes, row.start)
		pad := max((r.width-g.width())/2, 0)
		span := g.width()
		out = append(out, paint(g, pad, func(c cell) string {
			return r.focusColor(c, span, total, sung)
		})...)
	}
	return out
}

func (r *TextRenderer) RenderContext(text string, brightness float64) []string {
	grey := colors.RGB{R: 80, G: 80, B: 80}.Scale(clamp(brightness, 25.0/80, 1)).Hex()

	var out []string
	for _, row := range r.wrap(text) {
		g := layout(row.runes, row.start)
		pad := max((r.width-g.width())/2, 0)
		out = append(out, paint(g, pad, func(cell) string { return grey })...)
	}
	return out
}

func (r *TextRenderer) focusColor(c cell, span int, total int, sung int) string {
	wave := 0.03
	if total > 20 {
		wave = 0.8 / float64(total)
	}
	reveal := 1.0
	if r.anim.Reveal < 1 {
		reveal = clamp(easeOutQuart(r.anim.Reveal)-float64(c.char)*wave, 0, 1)
	}

	t := 0.0
	if span > 1 {
		t = float64(c.x) / float64(span-1)
	}
	base := colors.Blend(r.palette.Primary, r.palette.Accent, t)

	if r.anim.Glow > 0.05 {
		base = colors.Glow(base, r.anim.Glow*0.5)
	}

	if shimmer := math.Sin(r.anim.Shimmer+float64(c.x)*0.05)*0.5 + 0.5; shimmer > 0.5 {
		base = colors.Glow(base, (shimmer-0.5)*0.25)
	}

	if sung >= 0 && c.char >= sung {
		base = colors.Blend(base, r.palette.Dim, pendingDim)
	}

	faded := colors.Parse(base).Scale(easeOutCubic(reveal))
	faded.R, faded.G, faded.B = max(faded.R, 15), max(faded.G, 15), max(faded.B, 15)
	return faded.Hex()
}
