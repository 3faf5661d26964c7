package progression

import (
	"math"

	"karolbroda.com/lyrisync/internal/lyrics"
)

type WordState int

const (
	WordPending WordState = iota
	WordActive
	WordSung
)

// Segment is one word split into its sung head and pending tail.
type Segment struct {
	State   WordState
	Sung    string
	Pending string
}

// Karaoke splits every word of line at position. a word in progress is cut
// at grapheme floor(progress * count).
func Karaoke(line lyrics.Line, position float64) []Segment {
	segments := make([]Segment, 0, len(line.Words))

	for _, word := range line.Words {
		switch {
		case position >= word.End:
			segments = append(segments, Segment{State: WordSung, Sung: word.Text})
		case position < word.Start:
			segments = append(segments, Segment{State: WordPending, Pending: word.Text})
		default:
			progress := (position - word.Start) / (word.End - word.Start)
			k := int(math.Floor(progress * float64(word.GraphemeCount())))
			head, tail := word.SplitAt(k)
			segments = append(segments, Segment{State: WordActive, Sung: head, Pending: tail})
		}
	}

	return segments
}
