package recommend

import (
	"reflect"
	"testing"
)

func TestParseCandidatesNewlines(t *testing.T) {
	got := ParseCandidates("No Country for Old Men 90\nThe Master 95%\n")
	want := []Candidate{
		{Title: "No Country for Old Men", Score: 90},
		{Title: "The Master", Score: 95},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected candidates: %v", got)
	}
}

func TestParseCandidatesCommaSeparated(t *testing.T) {
	got := ParseCandidates("Inception 95%, The Matrix 90")
	want := []Candidate{
		{Title: "Inception", Score: 95},
		{Title: "The Matrix", Score: 90},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected candidates: %v", got)
	}
}

func TestParseCandidatesDropsMalformedSegments(t *testing.T) {
	got := ParseCandidates("Inception 95\njust some text\n\n  \nHeat 88%")
	want := []Candidate{
		{Title: "Inception", Score: 95},
		{Title: "Heat", Score: 88},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected candidates: %v", got)
	}
}

func TestParseCandidatesDropsEmptyTitle(t *testing.T) {
	got := ParseCandidates("95\n90%")
	if len(got) != 0 {
		t.Fatalf("expected no candidates for bare numbers, got %v", got)
	}
}

func TestParseCandidatesKeepsDuplicates(t *testing.T) {
	got := ParseCandidates("Inception 95\nInception 85")
	if len(got) != 2 {
		t.Fatalf("expected duplicates preserved, got %v", got)
	}
	if got[0].Score != 95 || got[1].Score != 85 {
		t.Fatalf("expected scores in input order, got %v", got)
	}
}

func TestParseCandidatesTitleWithTrailingNumberWord(t *testing.T) {
	// The trailing integer is the score; digits inside the title stay put.
	got := ParseCandidates("Blade Runner 2049 92")
	want := []Candidate{{Title: "Blade Runner 2049", Score: 92}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected candidates: %v", got)
	}
}

func TestParseCandidatesEmptyInput(t *testing.T) {
	if got := ParseCandidates(""); len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}
