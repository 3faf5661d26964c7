// Package similarity scores search candidates against the playing track.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const (
	ConfidenceThreshold = 0.60
	MinGap              = 0.08
	HighConfidence      = 0.75
)

var (
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	bracketPattern     = regexp.MustCompile(`\[[^\]]+\]`)
	durationParen      = regexp.MustCompile(`\(\d+(?::\d+(?:\.\d+)?)?\)`)
	parenPattern       = regexp.MustCompile(`\([^)]*\)`)
	dashSuffixPattern  = regexp.MustCompile(`\s-\s.*`)
	tagPattern         = regexp.MustCompile(`(?:[-(\[]|\s-\s)\s*(remix|live|acoustic|instrumental|radio\sedit|remastered|explicit|clean|unplugged|re-recorded|edit|version|mono|stereo|deluxe|anniversary|reprise|demo)(?:[^\p{L}\p{N}_]|$)`)
)

// Query describes the playing track. empty Album and zero Duration mean
// the player did not report them.
type Query struct {
	Title    string
	Artist   string
	Album    string
	Duration float64
}

type Score struct {
	Value    float64
	Title    float64
	Artist   float64
	Album    float64
	Duration float64
}

func normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = punctuationPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func bigrams(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	grams := make(map[string]struct{}, len(runes)-1)
	for i := 0; i+2 <= len(runes); i++ {
		grams[string(runes[i:i+2])] = struct{}{}
	}
	return grams
}

// Dice is the Sorensen-Dice coefficient over character bigram sets.
func Dice(a string, b string) float64 {
	ag := bigrams(a)
	bg := bigrams(b)

	if len(ag) == 0 && len(bg) == 0 {
		return 1
	}
	if len(ag) == 0 || len(bg) == 0 {
		return 0
	}

	common := 0
	for g := range ag {
		if _, ok := bg[g]; ok {
			common++
		}
	}
	return 2 * float64(common) / float64(len(ag)+len(bg))
}

// Levenshtein counts rune edits between a and b.
func Levenshtein(a string, b string) int {
	if a == b {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := range rb {
		curr[0] = j + 1
		for i := range ra {
			cost := 1
			if ra[i] == rb[j] {
				cost = 0
			}
			curr[i+1] = min(prev[i+1]+1, curr[i]+1, prev[i]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(ra)]
}

// analyzeTitle splits a title into its cleaned base and the set of version
// tags such as live or remix.
func analyzeTitle(title string) (string, []string) {
	lower := strings.ToLower(title)

	var tags []string
	for _, m := range tagPattern.FindAllStringSubmatch(lower, -1) {
		tags = append(tags, strings.ReplaceAll(m[1], " ", ""))
	}
	tags = lo.Uniq(tags)

	base := bracketPattern.ReplaceAllString(lower, "")
	base = durationParen.ReplaceAllString(base, "")
	base = parenPattern.ReplaceAllString(base, "")
	base = tagPattern.ReplaceAllString(base, " ")
	base = dashSuffixPattern.ReplaceAllString(base, "")

	return normalize(base), tags
}

func TitleScore(a string, b string) float64 {
	baseA, tagsA := analyzeTitle(a)
	baseB, tagsB := analyzeTitle(b)

	dice := Dice(baseA, baseB)
	lev := 1.0
	if maxLen := max(len([]rune(baseA)), len([]rune(baseB))); maxLen > 0 {
		lev = 1 - float64(Levenshtein(baseA, baseB))/float64(maxLen)
	}
	score := dice*0.6 + lev*0.4

	common := len(lo.Intersect(tagsA, tagsB))
	switch {
	case len(tagsA) == 0 && len(tagsB) == 0:
		score += 0.05
	case common == len(tagsA) && common == len(tagsB):
		score += 0.1
	case len(tagsA) > 0 && len(tagsB) > 0 && common == 0:
		score -= 0.25
	}

	return clamp01(score)
}

var artistNoise = map[string]bool{
	"the": true, "feat": true, "feat.": true, "ft": true, "ft.": true, "featuring": true,
}

func normalizeArtist(artist string) string {
	if artist == "" {
		return ""
	}
	s := strings.ToLower(artist)
	s = bracketPattern.ReplaceAllString(s, "")
	s = parenPattern.ReplaceAllString(s, "")

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == '&' || r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	tokens = lo.Filter(tokens, func(tok string, _ int) bool {
		return !artistNoise[tok]
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func ArtistScore(a string, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	na := normalizeArtist(a)
	nb := normalizeArtist(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	return Dice(na, nb)
}

func AlbumScore(a string, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return Dice(normalize(a), normalize(b))
}

// DurationScore bands the difference between two durations in seconds.
// zero means unknown.
func DurationScore(a float64, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}

	diff := math.Abs(a - b)
	pct := 0.0
	if avg := (a + b) / 2; avg > 0 {
		pct = diff / avg
	}

	switch {
	case diff == 0:
		return 1
	case diff <= 3 || pct <= 0.02:
		return 0.98
	case diff <= 5 || pct <= 0.05:
		return 0.95
	case diff <= 10 || pct <= 0.08:
		return 0.85
	case diff <= 15 || pct <= 0.12:
		return 0.70
	case diff <= 30 || pct <= 0.20:
		return 0.50
	default:
		return math.Max(math.Exp(-diff/60)*0.4, 0.04)
	}
}

func importance(score float64) float64 {
	d := math.Abs(score-0.5) * 2
	return d * d
}

// Compare scores a candidate against the query. each component is
// weighted by how far it sits from the uninformative 0.5.
func Compare(c Candidate, q Query) Score {
	s := Score{
		Title:    TitleScore(c.Title(), q.Title),
		Artist:   ArtistScore(c.Artist(), q.Artist),
		Duration: DurationScore(c.Duration(), q.Duration),
	}
	if q.Album != "" {
		s.Album = AlbumScore(c.Album(), q.Album)
	}

	wTitle := importance(s.Title)
	wArtist := importance(s.Artist)
	var wAlbum, wDuration float64
	if q.Album != "" {
		wAlbum = importance(s.Album)
	}
	if q.Duration > 0 {
		wDuration = importance(s.Duration)
	}

	total := wTitle + wArtist + wAlbum + wDuration
	if total == 0 {
		s.Value = 0.5
		return s
	}

	s.Value = clamp01((s.Title*wTitle + s.Artist*wArtist + s.Album*wAlbum + s.Duration*wDuration) / total)
	return s
}

type Match struct {
	Index int
	Score Score
}

// BestMatch returns the confident winner among candidates, if any.
func BestMatch(candidates []Candidate, q Query) (Match, bool) {
	if len(candidates) == 0 || q.Title == "" {
		return Match{}, false
	}

	var scored []Match
	for i, c := range candidates {
		if !c.HasTitle() || !c.HasArtist() {
			continue
		}
		scored = append(scored, Match{Index: i, Score: Compare(c, q)})
	}
	if len(scored) == 0 {
		return Match{}, false
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score.Value > scored[j].Score.Value
	})

	best := scored[0]
	if best.Score.Value < ConfidenceThreshold {
		return Match{}, false
	}
	if len(scored) > 1 {
		gap := best.Score.Value - scored[1].Score.Value
		if gap < MinGap && best.Score.Value < HighConfidence {
			return Match{}, false
		}
	}

	return best, true
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
