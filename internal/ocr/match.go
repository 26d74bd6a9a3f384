package ocr

import (
	"sort"
	"strings"
)

// Match is one template hit at a horizontal position.
type Match struct {
	Char  rune
	X     int
	Score float32
	Width int
	Font  string
}

// SuppressOverlaps keeps the best-scoring hit of each cluster. A hit is
// dropped when its x lies within ratio*max(width) of an already kept hit.
func SuppressOverlaps(matches []Match, ratio float64) []Match {
	sorted := append([]Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].X < sorted[j].X
	})

	kept := make([]Match, 0, len(sorted))
	for _, m := range sorted {
		overlap := false
		for _, k := range kept {
			w := max(m.Width, k.Width)
			if float64(abs(m.X-k.X)) < float64(w)*ratio {
				overlap = true
				break
			}
		}
		if !overlap {
			kept = append(kept, m)
		}
	}
	return kept
}

// Assemble concatenates hits left to right.
func Assemble(matches []Match) string {
	ordered := append([]Match(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].X < ordered[j].X })
	var b strings.Builder
	for _, m := range ordered {
		b.WriteRune(m.Char)
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
