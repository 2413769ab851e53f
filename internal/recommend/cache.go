package recommend

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"

	"github.com/joelkehle/moviefinder/internal/detailscache"
)

// CachedLookup wraps a MovieLookup with the SQLite details cache. Cache
// errors degrade to a live lookup; only successful lookups are written
// back, so a transient TMDB failure is retried on the next resolution.
type CachedLookup struct {
	inner MovieLookup
	cache *detailscache.Cache
	hits  atomic.Int64
}

func NewCachedLookup(inner MovieLookup, cache *detailscache.Cache) *CachedLookup {
	return &CachedLookup{inner: inner, cache: cache}
}

func (c *CachedLookup) MovieDetails(ctx context.Context, title string) (Details, error) {
	if payload, ok, err := c.cache.Get(title); err != nil {
		log.Printf("moviefinder details_cache_get_error title=%q err=%q", title, err.Error())
	} else if ok {
		var d Details
		if err := json.Unmarshal(payload, &d); err == nil {
			c.hits.Add(1)
			return d, nil
		}
	}

	d, err := c.inner.MovieDetails(ctx, title)
	if err != nil {
		return Details{}, err
	}
	if payload, err := json.Marshal(d); err == nil {
		if err := c.cache.Put(title, payload); err != nil {
			log.Printf("moviefinder details_cache_put_error title=%q err=%q", title, err.Error())
		}
	}
	return d, nil
}

// Hits reports cache hits since construction.
func (c *CachedLookup) Hits() int64 { return c.hits.Load() }
