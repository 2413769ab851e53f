package recommend

import "time"

const (
	DefaultLLMModel = "claude-sonnet-4-5"

	// MaxInputChars bounds the user description sent to the generator.
	// Longer input is truncated, not rejected.
	MaxInputChars = 4000

	DefaultLookupWorkers = 8
	MaxLookupWorkers     = 32
)

type SortCriterion string

const (
	SortNone         SortCriterion = "none"
	SortAlphabetical SortCriterion = "alphabetical"
	SortYear         SortCriterion = "year"
	SortRating       SortCriterion = "rating"
	SortPopularity   SortCriterion = "popularity"
	SortMatch        SortCriterion = "match"
)

func ParseSortCriterion(s string) (SortCriterion, bool) {
	switch SortCriterion(s) {
	case SortNone, SortAlphabetical, SortYear, SortRating, SortPopularity, SortMatch:
		return SortCriterion(s), true
	case "":
		return SortNone, true
	default:
		return SortNone, false
	}
}

// Candidate is one parsed recommendation line: a movie title and the
// generator's match percentage. Title is always non-empty.
type Candidate struct {
	Title string `json:"title"`
	Score int    `json:"score"`
}

// Details carries the descriptive metadata fetched per title. Zero values
// mean the field was absent upstream.
type Details struct {
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	Rating      float64 `json:"rating"`
	Popularity  float64 `json:"popularity"`
	GenreIDs    []int   `json:"genre_ids,omitempty"`
	PosterURL   string  `json:"poster_url,omitempty"`
}

// EnrichedCandidate exists only for candidates whose lookup succeeded.
type EnrichedCandidate struct {
	Candidate
	Details Details `json:"details"`
}

type PipelineMetadata struct {
	RequestID       string    `json:"request_id"`
	Model           string    `json:"model"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationMS      int64     `json:"duration_ms"`
	InputTruncated  bool      `json:"input_truncated"`
	CandidatesRaw   int       `json:"candidates_parsed"`
	LookupsFailed   int       `json:"lookups_failed"`
	LookupCacheHits int       `json:"lookup_cache_hits,omitempty"`
	StagesExecuted  []string  `json:"stages_executed"`
}

// ResolutionResult is the ordered, enriched outcome of one resolution.
// Immutable once published; a new request builds an entirely new one.
type ResolutionResult struct {
	Movies     []EnrichedCandidate `json:"movies"`
	Store      map[string]Details  `json:"-"`
	Generation uint64              `json:"generation"`
	Metadata   PipelineMetadata    `json:"metadata"`
}

type RequestEnvelope struct {
	Input string `json:"input"`
}

type ResponseEnvelope struct {
	Movies         []EnrichedCandidate `json:"movies"`
	Metadata       PipelineMetadata    `json:"metadata"`
	ReportMarkdown string              `json:"report_markdown,omitempty"`
}
