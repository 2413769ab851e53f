package recommend

import (
	"fmt"
	"strings"
	"time"
)

// BuildReportMarkdown renders a resolution as a markdown report: one table
// row per surviving candidate, in result order.
func BuildReportMarkdown(result ResolutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Movie Recommendations\n\n")
	fmt.Fprintf(&b, "- Request ID: %s\n", result.Metadata.RequestID)
	fmt.Fprintf(&b, "- Date: %s\n\n", time.Now().Format(time.RFC3339))

	if len(result.Movies) == 0 {
		fmt.Fprintf(&b, "No recommendations survived enrichment.\n\n")
		buildReportMetadata(&b, result)
		return b.String()
	}

	fmt.Fprintf(&b, "| Title | Match | Year | Rating | Popularity | Genres |\n|---|---:|---|---:|---:|---|\n")
	for _, m := range result.Movies {
		fmt.Fprintf(&b, "| %s | %d%% | %s | %.1f | %.1f | %s |\n",
			reportSafe(m.Title),
			m.Score,
			reportSafe(releaseYearOrUnavailable(m.Details)),
			m.Details.Rating,
			m.Details.Popularity,
			reportSafe(strings.Join(GenreNames(m.Details.GenreIDs), ", ")),
		)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Overviews\n\n")
	for _, m := range result.Movies {
		overview := m.Details.Overview
		if strings.TrimSpace(overview) == "" {
			overview = "unavailable"
		}
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", reportSafe(m.Title), strings.TrimSpace(overview))
	}

	buildReportMetadata(&b, result)
	return b.String()
}

func buildReportMetadata(b *strings.Builder, result ResolutionResult) {
	fmt.Fprintf(b, "## Metadata\n\n")
	fmt.Fprintf(b, "- Runtime (ms): %d\n", result.Metadata.DurationMS)
	fmt.Fprintf(b, "- Model: %s\n", result.Metadata.Model)
	fmt.Fprintf(b, "- Candidates parsed: %d\n", result.Metadata.CandidatesRaw)
	fmt.Fprintf(b, "- Lookups failed: %d\n", result.Metadata.LookupsFailed)
	if result.Metadata.InputTruncated {
		fmt.Fprintf(b, "- Input truncated: true\n")
	}
	b.WriteString("\n")
}

func releaseYearOrUnavailable(d Details) string {
	if len(d.ReleaseDate) < 4 {
		return "unavailable"
	}
	return d.ReleaseDate[:4]
}

func reportSafe(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
