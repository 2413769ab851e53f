package recommend

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortBy returns a new slice ordered by the given criterion. The input is
// never mutated. All comparators are stable, so equal keys keep their prior
// relative order and re-sorting an already-sorted slice is a no-op.
func SortBy(movies []EnrichedCandidate, criterion SortCriterion) []EnrichedCandidate {
	out := make([]EnrichedCandidate, len(movies))
	copy(out, movies)

	switch criterion {
	case SortAlphabetical:
		c := collate.New(language.English)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Title, out[j].Title) < 0
		})
	case SortYear:
		sort.SliceStable(out, func(i, j int) bool {
			return releaseYear(out[i].Details) > releaseYear(out[j].Details)
		})
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Details.Rating > out[j].Details.Rating
		})
	case SortPopularity:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Details.Popularity > out[j].Details.Popularity
		})
	case SortMatch:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Score > out[j].Score
		})
	}
	return out
}

// releaseYear treats the year as a 4-character string; a missing or short
// release date sorts lowest.
func releaseYear(d Details) string {
	if len(d.ReleaseDate) < 4 {
		return "0"
	}
	return d.ReleaseDate[:4]
}
