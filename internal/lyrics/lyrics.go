package lyrics

import (
	"math"
	"sort"

	"github.com/rivo/uniseg"
)

const (
	RichsyncMarker   = ";;richsync=1"
	InstrumentalText = "♪ Instrumental ♪"
	placeholderText  = "♪"
)

// Source identifies where the loaded lyrics came from.
type Source string

const (
	SourceNone      Source = ""
	SourceLrclib    Source = "lrclib"
	SourceSubtitles Source = "subtitles"
	SourceRichsync  Source = "richsync"
)

func (s Source) String() string {
	if s == SourceNone {
		return "none"
	}
	return string(s)
}

type Line struct {
	TimeSeconds float64
	Text        string
	Words       []Word
}

func (l Line) HasWords() bool {
	return len(l.Words) > 0
}

// Word carries per-word timing and the grapheme breakdown of Text.
// Offsets[k] is the byte offset where Graphemes[k] starts.
type Word struct {
	Start     float64
	End       float64
	Text      string
	Graphemes []string
	Offsets   []int
}

func NewWord(start float64, end float64, text string) Word {
	if end < start {
		end = start
	}
	w := Word{Start: start, End: end, Text: text}
	w.Graphemes, w.Offsets = segment(text)
	return w
}

func (w Word) GraphemeCount() int {
	return len(w.Graphemes)
}

// SplitAt returns the text before and after grapheme k.
func (w Word) SplitAt(k int) (string, string) {
	if k <= 0 || len(w.Offsets) == 0 {
		return "", w.Text
	}
	if k >= len(w.Offsets) {
		return w.Text, ""
	}
	return w.Text[:w.Offsets[k]], w.Text[w.Offsets[k]:]
}

func segment(text string) ([]string, []int) {
	if text == "" {
		return nil, nil
	}

	var graphemes []string
	var offsets []int

	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		from, _ := gr.Positions()
		graphemes = append(graphemes, gr.Str())
		offsets = append(offsets, from)
	}

	return graphemes, offsets
}

// HasWordTimings reports whether any line carries per-word timing.
func HasWordTimings(lines []Line) bool {
	for _, line := range lines {
		if line.HasWords() {
			return true
		}
	}
	return false
}

// Sanitize drops lines with NaN time, clamps negative times to zero and
// orders the result by time, keeping the original order of equal times.
func Sanitize(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}

	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if math.IsNaN(line.TimeSeconds) || math.IsInf(line.TimeSeconds, 0) {
			continue
		}
		if line.TimeSeconds < 0 {
			line.TimeSeconds = 0
		}
		out = append(out, line)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeSeconds < out[j].TimeSeconds
	})

	return out
}
