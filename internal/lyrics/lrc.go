package lyrics

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var timestampPattern = regexp.MustCompile(`\[(\d{1,2}):(\d{2})[.](\d{1,2})\]`)

// ParseLRC reads every [mm:ss.cc] tag of every line. a line with several
// tags yields one entry per tag sharing the same text. lines whose text is
// empty once the tags are removed are skipped, as are lines without tags.
func ParseLRC(raw string) []Line {
	if raw == "" {
		return nil
	}

	var result []Line

	for _, line := range strings.Split(raw, "\n") {
		matches := timestampPattern.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}

		text := strings.TrimSpace(timestampPattern.ReplaceAllString(line, ""))
		if text == "" {
			continue
		}

		for _, m := range matches {
			seconds, ok := parseTimestamp(m[1], m[2], m[3])
			if !ok {
				continue
			}
			result = append(result, Line{TimeSeconds: seconds, Text: text})
		}
	}

	return result
}

// centiseconds are read as hundredths regardless of digit count
func parseTimestamp(minutes string, seconds string, centis string) (float64, bool) {
	mm, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, false
	}
	ss, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, false
	}
	cc, err := strconv.Atoi(centis)
	if err != nil {
		return 0, false
	}
	return float64(mm)*60 + float64(ss) + float64(cc)/100, true
}

// FormatTimestamp renders seconds as an LRC tag, rounding to milliseconds
// before truncating to hundredths.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	minutes := ms / 60000
	secs := (ms % 60000) / 1000
	centis := (ms % 1000) / 10
	return fmt.Sprintf("[%02d:%02d.%02d]", minutes, secs, centis)
}

// FormatLRC emits one tagged line per entry.
func FormatLRC(lines []Line) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(FormatTimestamp(line.TimeSeconds))
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatRichsyncLRC is FormatLRC behind the richsync marker line.
func FormatRichsyncLRC(lines []Line) string {
	return RichsyncMarker + "\n" + FormatLRC(lines)
}

func IsRichsyncPayload(raw string) bool {
	return strings.HasPrefix(strings.TrimLeft(raw, " \t\r\n"), RichsyncMarker)
}
