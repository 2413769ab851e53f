package recommend

import (
	"regexp"
	"strconv"
	"strings"
)

// A well-formed segment is arbitrary leading text followed by a trailing
// integer with an optional percent sign, e.g. "No Country for Old Men 90"
// or "The Master 95%".
var candidateRe = regexp.MustCompile(`^(.*?)(\d+)%?$`)

var segmentSplitRe = regexp.MustCompile(`[\n,]+`)

// ParseCandidates splits raw generator output into candidates. Segments are
// separated by newlines or commas; malformed segments are dropped silently.
// Order of appearance is preserved and repeated titles are NOT deduplicated
// here — a title the generator emits twice counts twice downstream.
func ParseCandidates(raw string) []Candidate {
	segments := segmentSplitRe.Split(raw, -1)
	out := make([]Candidate, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		m := candidateRe.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		score, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, Candidate{Title: title, Score: score})
	}
	return out
}
