package recommend

import (
	"context"
	"log"
	"sync"
)

// Enricher fans lookups out over a bounded worker pool and reassembles
// results in input order. One lookup is issued per distinct title; every
// surviving occurrence of a repeated title shares that title's record.
type Enricher struct {
	lookup  MovieLookup
	workers int
}

func NewEnricher(lookup MovieLookup, workers int) *Enricher {
	if workers <= 0 {
		workers = DefaultLookupWorkers
	}
	if workers > MaxLookupWorkers {
		workers = MaxLookupWorkers
	}
	return &Enricher{lookup: lookup, workers: workers}
}

type lookupOutcome struct {
	details Details
	ok      bool
}

// Enrich resolves metadata for every candidate and drops the ones whose
// lookup failed. It waits for all lookups to settle; a single failure never
// aborts the batch and is not reported to the caller. Returned order
// follows candidate order regardless of lookup completion order. The second
// return value is the per-title metadata store backing the batch, and the
// third is the number of distinct titles whose lookup failed.
func (e *Enricher) Enrich(ctx context.Context, candidates []Candidate) ([]EnrichedCandidate, map[string]Details, int) {
	if len(candidates) == 0 {
		return []EnrichedCandidate{}, map[string]Details{}, 0
	}

	titles := make([]string, 0, len(candidates))
	seen := map[string]struct{}{}
	for _, c := range candidates {
		if _, ok := seen[c.Title]; ok {
			continue
		}
		seen[c.Title] = struct{}{}
		titles = append(titles, c.Title)
	}

	// Indexed scatter-gather: each worker writes into its own slot, output
	// is assembled by walking slots in order after the pool drains.
	outcomes := make([]lookupOutcome, len(titles))
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for i, title := range titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			d, err := e.lookup.MovieDetails(ctx, title)
			if err != nil {
				log.Printf("moviefinder lookup_failed title=%q err=%q", title, err.Error())
				return
			}
			outcomes[i] = lookupOutcome{details: d, ok: true}
		}(i, title)
	}
	wg.Wait()

	store := make(map[string]Details, len(titles))
	failed := 0
	for i, title := range titles {
		if !outcomes[i].ok {
			failed++
			continue
		}
		store[title] = outcomes[i].details
	}

	out := make([]EnrichedCandidate, 0, len(candidates))
	for _, c := range candidates {
		d, ok := store[c.Title]
		if !ok {
			continue
		}
		out = append(out, EnrichedCandidate{Candidate: c, Details: d})
	}
	return out, store, failed
}
