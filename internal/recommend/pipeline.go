package recommend

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/joelkehle/moviefinder/internal/recommend")

// Pipeline runs one resolution end to end: validate, screen, generate,
// parse, enrich. It is stateless; the Session owns publish semantics.
type Pipeline struct {
	generator *Generator
	enricher  *Enricher
	cached    *CachedLookup
}

func NewPipeline(generator *Generator, enricher *Enricher) *Pipeline {
	return &Pipeline{generator: generator, enricher: enricher}
}

// WithCacheMetrics lets the pipeline report cache hits in result metadata
// when the enricher's lookup is the cached decorator.
func (p *Pipeline) WithCacheMetrics(cached *CachedLookup) *Pipeline {
	p.cached = cached
	return p
}

func (p *Pipeline) Resolve(ctx context.Context, req RequestEnvelope) (ResolutionResult, error) {
	res := ResolutionResult{
		Movies: []EnrichedCandidate{},
		Store:  map[string]Details{},
		Metadata: PipelineMetadata{
			RequestID: uuid.NewString(),
			Model:     p.generator.ModelName(),
			StartedAt: time.Now(),
		},
	}

	ctx, span := tracer.Start(ctx, "recommend.resolve", trace.WithAttributes(
		attribute.String("request_id", res.Metadata.RequestID),
	))
	defer span.End()

	input := strings.TrimSpace(req.Input)
	if input == "" {
		return res, NewValidationError("no input provided")
	}
	if len(input) > MaxInputChars {
		input = input[:MaxInputChars]
		res.Metadata.InputTruncated = true
	}
	cacheHitsBefore := p.cacheHits()

	flagged, reason, err := p.runScreen(ctx, &res, input)
	if err != nil {
		return res, err
	}
	if flagged {
		if reason == "" {
			reason = "input violates content policy"
		}
		return res, NewValidationError(reason)
	}

	raw, err := p.runGenerate(ctx, &res, input)
	if err != nil {
		return res, &StageError{Stage: "generate", Err: NewUpstreamError("recommendation generator unavailable", err)}
	}

	candidates := ParseCandidates(raw)
	res.Metadata.CandidatesRaw = len(candidates)
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, "parse")
	if len(candidates) == 0 {
		return res, &StageError{Stage: "parse", Err: NewUpstreamError("generator returned no parseable recommendations", nil)}
	}

	movies, store, failed := p.runEnrich(ctx, &res, candidates)
	res.Movies = movies
	res.Store = store
	res.Metadata.LookupsFailed = failed
	res.Metadata.LookupCacheHits = int(p.cacheHits() - cacheHitsBefore)

	res.Metadata.CompletedAt = time.Now()
	res.Metadata.DurationMS = res.Metadata.CompletedAt.Sub(res.Metadata.StartedAt).Milliseconds()
	log.Printf(
		"moviefinder resolve_done request_id=%s parsed=%d enriched=%d lookups_failed=%d elapsed_ms=%d",
		res.Metadata.RequestID,
		res.Metadata.CandidatesRaw,
		len(res.Movies),
		failed,
		res.Metadata.DurationMS,
	)
	return res, nil
}

func (p *Pipeline) runScreen(ctx context.Context, res *ResolutionResult, input string) (bool, string, error) {
	ctx, span := tracer.Start(ctx, "recommend.screen")
	defer span.End()
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, "screen")
	flagged, reason, err := p.generator.Screen(ctx, input)
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Bool("flagged", flagged))
	return flagged, reason, err
}

func (p *Pipeline) runGenerate(ctx context.Context, res *ResolutionResult, input string) (string, error) {
	ctx, span := tracer.Start(ctx, "recommend.generate")
	defer span.End()
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, "generate")
	raw, err := p.generator.Generate(ctx, input)
	if err != nil {
		span.RecordError(err)
	}
	return raw, err
}

func (p *Pipeline) runEnrich(ctx context.Context, res *ResolutionResult, candidates []Candidate) ([]EnrichedCandidate, map[string]Details, int) {
	ctx, span := tracer.Start(ctx, "recommend.enrich", trace.WithAttributes(
		attribute.Int("candidates", len(candidates)),
	))
	defer span.End()
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, "enrich")
	movies, store, failed := p.enricher.Enrich(ctx, candidates)
	span.SetAttributes(attribute.Int("enriched", len(movies)), attribute.Int("failed", failed))
	return movies, store, failed
}

func (p *Pipeline) cacheHits() int64 {
	if p.cached == nil {
		return 0
	}
	return p.cached.Hits()
}

func BuildResponse(result ResolutionResult) ResponseEnvelope {
	return ResponseEnvelope{
		Movies:         result.Movies,
		Metadata:       result.Metadata,
		ReportMarkdown: BuildReportMarkdown(result),
	}
}
