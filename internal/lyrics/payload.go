package lyrics

import (
	"encoding/json"
	"fmt"
	"strings"
)

type subtitleEntry struct {
	Text *string `json:"text"`
	Time struct {
		Total float64 `json:"total"`
	} `json:"time"`
}

// ParseSubtitles decodes a musixmatch subtitle_body: a JSON array of
// {text, time: {total}} objects. missing text becomes a note glyph.
func ParseSubtitles(body string) ([]Line, error) {
	var entries []subtitleEntry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode subtitle body: %w", err)
	}

	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		text := placeholderText
		if e.Text != nil {
			text = *e.Text
		}
		lines = append(lines, Line{TimeSeconds: e.Time.Total, Text: text})
	}

	return lines, nil
}

type richsyncEntry struct {
	Start *float64        `json:"ts"`
	End   *float64        `json:"te"`
	X     *string         `json:"x"`
	Text  *string         `json:"text"`
	Words *[]richsyncWord `json:"words"`
	Chars *[]richsyncChar `json:"l"`
}

type richsyncWord struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  string   `json:"text"`
}

type richsyncChar struct {
	C string  `json:"c"`
	O float64 `json:"o"`
}

// ParseRichsync decodes a musixmatch richsync_body. word timings come from
// an explicit words array when present, otherwise from the character
// offsets in l, where whitespace characters close the current word.
func ParseRichsync(body string) ([]Line, error) {
	var entries []richsyncEntry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode richsync body: %w", err)
	}

	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		var ts float64
		if e.Start != nil {
			ts = *e.Start
		}
		te := ts + 3
		if e.End != nil {
			te = *e.End
		}

		text := placeholderText
		switch {
		case e.X != nil:
			text = *e.X
		case e.Text != nil:
			text = *e.Text
		}

		var words []Word
		switch {
		case e.Words != nil:
			words = explicitWords(*e.Words, ts)
		case e.Chars != nil:
			words = assembleWords(*e.Chars, ts, te)
		}

		lines = append(lines, Line{TimeSeconds: ts, Text: text, Words: words})
	}

	return lines, nil
}

func explicitWords(raw []richsyncWord, ts float64) []Word {
	if len(raw) == 0 {
		return nil
	}

	words := make([]Word, 0, len(raw))
	for _, w := range raw {
		start := ts
		if w.Start != nil {
			start = *w.Start
		}
		end := start
		if w.End != nil {
			end = *w.End
		}
		words = append(words, NewWord(start, end, w.Text))
	}
	return words
}

func assembleWords(chars []richsyncChar, ts float64, te float64) []Word {
	var words []Word
	var cur strings.Builder
	var curStart float64
	var lastOffset float64
	haveLast := false

	for _, ch := range chars {
		if strings.TrimSpace(ch.C) == "" {
			if cur.Len() > 0 {
				words = append(words, NewWord(ts+curStart, ts+ch.O, cur.String()))
				cur.Reset()
				haveLast = false
			}
			continue
		}
		if cur.Len() == 0 {
			curStart = ch.O
		}
		cur.WriteString(ch.C)
		lastOffset = ch.O
		haveLast = true
	}

	if cur.Len() > 0 {
		end := te
		if haveLast {
			end = ts + lastOffset
		}
		words = append(words, NewWord(ts+curStart, end, cur.String()))
	}

	return words
}

// RichsyncStored prefixes a raw richsync JSON body with the marker line.
func RichsyncStored(body string) string {
	return RichsyncMarker + "\n" + body
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "[{") || s == "[]"
}

// ParseStored turns a persisted payload back into lines. richsync payloads
// carry the marker line followed by either the JSON body or plain LRC.
func ParseStored(raw string, source Source) ([]Line, error) {
	switch source {
	case SourceRichsync:
		body := strings.TrimSpace(raw)
		body = strings.TrimPrefix(body, RichsyncMarker)
		if looksLikeJSON(body) {
			return ParseRichsync(body)
		}
		return ParseLRC(body), nil
	case SourceSubtitles:
		if looksLikeJSON(raw) {
			return ParseSubtitles(raw)
		}
		return ParseLRC(raw), nil
	default:
		return ParseLRC(raw), nil
	}
}
