package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	TMDBBaseURL               = "https://api.themoviedb.org/3"
	TMDBImageBaseURL          = "https://image.tmdb.org/t/p/w200"
	DefaultRateLimitPerMinute = 240
)

// ErrNoResults reports that TMDB returned no match for a title. It is a
// lookup failure like any other: the candidate is dropped, the batch
// continues.
var ErrNoResults = errors.New("no movies found for the given title")

// MovieLookup is the full-record lookup the enrichment orchestrator fans
// out over.
type MovieLookup interface {
	MovieDetails(ctx context.Context, title string) (Details, error)
}

// PosterLookup is the narrower poster-only capability. It has no data-flow
// dependency on the full-record variant.
type PosterLookup interface {
	PosterURL(ctx context.Context, title string) (string, error)
}

type LookupConfig struct {
	APIKey             string
	BaseURL            string
	ImageBaseURL       string
	RateLimitPerMinute int
	HTTPClient         *http.Client
}

// TMDBLookup resolves titles against the TMDB search API. Each call is one
// independent request; no retry beyond the transport policy below.
type TMDBLookup struct {
	cfg     LookupConfig
	limiter <-chan time.Time
}

func NewTMDBLookup(cfg LookupConfig) (*TMDBLookup, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("TMDB_API_KEY not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = TMDBBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = TMDBImageBaseURL
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	interval := time.Minute / time.Duration(cfg.RateLimitPerMinute)
	ticker := time.NewTicker(interval)
	return &TMDBLookup{cfg: cfg, limiter: ticker.C}, nil
}

type tmdbResult struct {
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
	GenreIDs    []int   `json:"genre_ids"`
	PosterPath  string  `json:"poster_path"`
}

type tmdbSearchResponse struct {
	Results []tmdbResult `json:"results"`
}

// MovieDetails fetches the full descriptive record for a title. TMDB
// returns matches ordered by relevance; the first result wins.
func (l *TMDBLookup) MovieDetails(ctx context.Context, title string) (Details, error) {
	res, err := l.search(ctx, title)
	if err != nil {
		return Details{}, err
	}
	d := Details{
		Title:       strings.TrimSpace(res.Title),
		Overview:    strings.TrimSpace(res.Overview),
		ReleaseDate: strings.TrimSpace(res.ReleaseDate),
		Rating:      res.VoteAverage,
		Popularity:  res.Popularity,
		GenreIDs:    res.GenreIDs,
	}
	if res.PosterPath != "" {
		d.PosterURL = l.cfg.ImageBaseURL + res.PosterPath
	}
	return d, nil
}

func (l *TMDBLookup) PosterURL(ctx context.Context, title string) (string, error) {
	res, err := l.search(ctx, title)
	if err != nil {
		return "", err
	}
	if res.PosterPath == "" {
		return "", ErrNoResults
	}
	return l.cfg.ImageBaseURL + res.PosterPath, nil
}

func (l *TMDBLookup) search(ctx context.Context, title string) (tmdbResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return tmdbResult{}, errors.New("title must not be empty")
	}
	if err := l.waitRateLimit(ctx); err != nil {
		return tmdbResult{}, err
	}
	resp, err := l.executeWithRetry(ctx, title)
	if err != nil {
		return tmdbResult{}, err
	}
	if len(resp.Results) == 0 {
		return tmdbResult{}, ErrNoResults
	}
	return resp.Results[0], nil
}

func (l *TMDBLookup) waitRateLimit(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.limiter:
		return nil
	}
}

func (l *TMDBLookup) executeWithRetry(ctx context.Context, title string) (tmdbSearchResponse, error) {
	var lastErr error
	timeoutRetried := false
	for attempt := 1; attempt <= 3; attempt++ {
		resp, code, retryAfter, err := l.executeOnce(ctx, title)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return tmdbSearchResponse{}, err
		}
		if code == http.StatusTooManyRequests {
			if attempt == 3 {
				break
			}
			sleep := retryAfter
			if sleep <= 0 {
				sleep = backoffDelay(attempt)
			}
			if err := sleepCtx(ctx, sleep); err != nil {
				return tmdbSearchResponse{}, err
			}
			continue
		}
		if code >= 500 || errors.Is(err, context.DeadlineExceeded) {
			if isTimeoutError(err) {
				if timeoutRetried {
					break
				}
				timeoutRetried = true
			}
			if attempt == 3 {
				break
			}
			if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
				return tmdbSearchResponse{}, err
			}
			continue
		}
		return tmdbSearchResponse{}, err
	}
	return tmdbSearchResponse{}, lastErr
}

func (l *TMDBLookup) executeOnce(ctx context.Context, title string) (tmdbSearchResponse, int, time.Duration, error) {
	endpoint := strings.TrimRight(l.cfg.BaseURL, "/") + "/search/movie"
	params := url.Values{}
	params.Set("api_key", l.cfg.APIKey)
	params.Set("query", title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return tmdbSearchResponse{}, 0, 0, err
	}

	res, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		return tmdbSearchResponse{}, 0, 0, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))

	retryAfter := parseRetryAfter(res.Header.Get("Retry-After"))
	if res.StatusCode != http.StatusOK {
		return tmdbSearchResponse{}, res.StatusCode, retryAfter, fmt.Errorf("tmdb search status code: %d", res.StatusCode)
	}

	var parsed tmdbSearchResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return tmdbSearchResponse{}, res.StatusCode, retryAfter, fmt.Errorf("decode tmdb response: %w", err)
	}
	return parsed, res.StatusCode, retryAfter, nil
}

func parseRetryAfter(v string) time.Duration {
	if strings.TrimSpace(v) == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	type timeout interface{ Timeout() bool }
	var te timeout
	return errors.As(err, &te) && te.Timeout()
}
