package recommend

// TMDB genre ids as returned by the movie search endpoint. Read-only,
// process-wide; never mutated after init.
var genreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
}

// GenreNames maps genre ids to display labels, skipping ids TMDB has added
// since this table was captured.
func GenreNames(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := genreNames[id]; ok {
			out = append(out, name)
		}
	}
	return out
}
