package recommend

import (
	"strings"
	"testing"
)

func TestBuildReportMarkdownTableAndOverviews(t *testing.T) {
	result := ResolutionResult{
		Movies: []EnrichedCandidate{
			{
				Candidate: Candidate{Title: "Heat", Score: 88},
				Details: Details{
					Overview:    "A crew of thieves and the cop chasing them.",
					ReleaseDate: "1995-12-15",
					Rating:      8.3,
					Popularity:  40.1,
					GenreIDs:    []int{80, 18},
				},
			},
			{
				Candidate: Candidate{Title: "Pipes | Tubes", Score: 70},
				Details:   Details{},
			},
		},
		Metadata: PipelineMetadata{RequestID: "req-1", Model: "m", CandidatesRaw: 3, LookupsFailed: 1, DurationMS: 42},
	}

	report := BuildReportMarkdown(result)
	if !strings.Contains(report, "| Heat | 88% | 1995 | 8.3 | 40.1 | Crime, Drama |") {
		t.Fatalf("missing table row:\n%s", report)
	}
	if !strings.Contains(report, `Pipes \| Tubes`) {
		t.Fatalf("pipe characters must be escaped:\n%s", report)
	}
	if !strings.Contains(report, "A crew of thieves") {
		t.Fatalf("missing overview section:\n%s", report)
	}
	if !strings.Contains(report, "unavailable") {
		t.Fatalf("empty overview must render as unavailable:\n%s", report)
	}
	if !strings.Contains(report, "- Lookups failed: 1") {
		t.Fatalf("missing metadata section:\n%s", report)
	}
}

func TestBuildReportMarkdownEmptyResult(t *testing.T) {
	report := BuildReportMarkdown(ResolutionResult{Metadata: PipelineMetadata{RequestID: "req-2"}})
	if !strings.Contains(report, "No recommendations survived enrichment.") {
		t.Fatalf("missing empty-result notice:\n%s", report)
	}
}

func TestGenreNames(t *testing.T) {
	got := GenreNames([]int{28, 999999, 878})
	if len(got) != 2 || got[0] != "Action" || got[1] != "Science Fiction" {
		t.Fatalf("unexpected genre names: %v", got)
	}
	if out := GenreNames(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
}
