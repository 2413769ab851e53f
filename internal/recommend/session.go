package recommend

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrSuperseded reports that a newer resolution started while this one was
// in flight. The superseded resolution's output is discarded, never
// published.
var ErrSuperseded = errors.New("resolution superseded by a newer request")

type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateResolving SessionState = "resolving"
	StatePublished SessionState = "published"
)

// Session serializes publish decisions across overlapping resolutions.
// Every resolution gets a monotonically increasing generation; only the
// resolution whose generation is still current may publish. Starting a new
// resolution immediately clears the published result and the sort
// criterion, so a caller never sees stale results next to an in-flight
// query. Published results are immutable and safe for concurrent readers.
type Session struct {
	pipeline *Pipeline

	mu         sync.Mutex
	generation uint64
	state      SessionState
	published  *ResolutionResult
	criterion  SortCriterion
}

func NewSession(pipeline *Pipeline) *Session {
	return &Session{pipeline: pipeline, state: StateIdle, criterion: SortNone}
}

// Resolve runs one end-to-end resolution. Concurrent calls are safe: the
// later call supersedes the earlier one, whose result is discarded when it
// eventually settles.
func (s *Session) Resolve(ctx context.Context, input string) (*ResolutionResult, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.published = nil
	s.criterion = SortNone
	s.state = StateResolving
	s.mu.Unlock()

	result, err := s.pipeline.Resolve(ctx, RequestEnvelope{Input: input})
	result.Generation = gen

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		log.Printf("moviefinder resolve_superseded generation=%d current=%d", gen, s.generation)
		return nil, ErrSuperseded
	}
	if err != nil {
		s.state = StateIdle
		return nil, err
	}
	s.published = &result
	s.state = StatePublished
	return &result, nil
}

// SetSortCriterion selects the ordering of the published result. It has no
// effect while nothing is published.
func (s *Session) SetSortCriterion(criterion SortCriterion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published == nil {
		return false
	}
	s.criterion = criterion
	return true
}

// Current returns the published result with its movies ordered by the
// selected criterion, or nil when nothing is published. The returned slice
// is a fresh copy; the published result itself is never reordered.
func (s *Session) Current() (*ResolutionResult, SortCriterion) {
	s.mu.Lock()
	published := s.published
	criterion := s.criterion
	s.mu.Unlock()

	if published == nil {
		return nil, criterion
	}
	view := *published
	view.Movies = SortBy(published.Movies, criterion)
	return &view, criterion
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
