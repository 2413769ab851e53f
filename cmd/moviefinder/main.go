package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joelkehle/moviefinder/internal/detailscache"
	"github.com/joelkehle/moviefinder/internal/recommend"
)

func main() {
	sortFlag := flag.String("sort", "", "Sort criterion: alphabetical, year, rating, popularity, match")
	flag.Parse()

	criterion, ok := recommend.ParseSortCriterion(*sortFlag)
	if !ok {
		log.Fatalf("unknown sort criterion %q", *sortFlag)
	}

	input := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if input == "" {
		blob, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal(err)
		}
		input = strings.TrimSpace(string(blob))
	}
	if input == "" {
		log.Fatal("describe the kind of movie you want, as arguments or on stdin")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	caller, err := recommend.NewAnthropicCallerFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	tmdb, err := recommend.NewTMDBLookup(recommend.LookupConfig{
		APIKey:             requiredEnv("TMDB_API_KEY"),
		RateLimitPerMinute: envInt("MOVIEFINDER_TMDB_RATE_LIMIT", recommend.DefaultRateLimitPerMinute),
	})
	if err != nil {
		log.Fatal(err)
	}

	var lookup recommend.MovieLookup = tmdb
	var cached *recommend.CachedLookup
	if path := strings.TrimSpace(os.Getenv("MOVIEFINDER_CACHE_PATH")); path != "" {
		cache, err := detailscache.Open(path, detailscache.DefaultTTL)
		if err != nil {
			log.Fatal(err)
		}
		defer cache.Close()
		cached = recommend.NewCachedLookup(tmdb, cache)
		lookup = cached
	}

	enricher := recommend.NewEnricher(lookup, envInt("MOVIEFINDER_LOOKUP_WORKERS", recommend.DefaultLookupWorkers))
	pipeline := recommend.NewPipeline(recommend.NewGenerator(caller), enricher)
	if cached != nil {
		pipeline = pipeline.WithCacheMetrics(cached)
	}

	result, err := pipeline.Resolve(ctx, recommend.RequestEnvelope{Input: input})
	if err != nil {
		log.Fatal(err)
	}

	movies := recommend.SortBy(result.Movies, criterion)
	if len(movies) == 0 {
		fmt.Println("No recommendations survived enrichment.")
		return
	}

	rows := make([][]string, 0, len(movies))
	for _, m := range movies {
		year := "n/a"
		if len(m.Details.ReleaseDate) >= 4 {
			year = m.Details.ReleaseDate[:4]
		}
		rows = append(rows, []string{
			m.Title,
			fmt.Sprintf("%d%%", m.Score),
			year,
			fmt.Sprintf("%.1f", m.Details.Rating),
			fmt.Sprintf("%.1f", m.Details.Popularity),
			strings.Join(recommend.GenreNames(m.Details.GenreIDs), ", "),
		})
	}
	fmt.Println(renderTable(
		[]string{"Title", "Match", "Year", "Rating", "Popularity", "Genres"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
	))
	fmt.Printf("\n%d recommendations (%d parsed, %d lookups failed, %dms)\n",
		len(movies),
		result.Metadata.CandidatesRaw,
		result.Metadata.LookupsFailed,
		result.Metadata.DurationMS,
	)
}

func requiredEnv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		log.Fatalf("missing required env var %s", key)
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	return n
}
