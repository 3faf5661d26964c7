package lyrics

import (
	"math"
	"sort"
)

// IndexFor returns the greatest i with lines[i].TimeSeconds <= position.
// ok is false when lines is empty, position or any line time is NaN, or
// position falls before the first line. unsorted input never panics and
// resolves to 0.
func IndexFor(lines []Line, position float64) (int, bool) {
	if len(lines) == 0 || math.IsNaN(position) {
		return 0, false
	}

	sorted := true
	for i := range lines {
		if math.IsNaN(lines[i].TimeSeconds) {
			return 0, false
		}
		if i > 0 && lines[i].TimeSeconds < lines[i-1].TimeSeconds {
			sorted = false
		}
	}
	if !sorted {
		return 0, true
	}

	if position < lines[0].TimeSeconds {
		return 0, false
	}

	i := sort.Search(len(lines), func(i int) bool {
		return lines[i].TimeSeconds > position
	})

	return i - 1, true
}
