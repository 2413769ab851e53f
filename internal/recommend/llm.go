package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const generatorSystemPrompt = "You are a movie recommendation engine. You output only movie titles with match percentages, one per line, and nothing else. No commentary, no apologies, no preamble."

const screenSystemPrompt = "You are a content moderation filter. You classify user input and return strict JSON only."

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

type llmFailureClass int

const (
	failureNone llmFailureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

type LLMCaller interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	ModelName() string
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicCaller struct {
	messages AnthropicMessager
	model    string
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	model := strings.TrimSpace(os.Getenv("MOVIEFINDER_LLM_MODEL"))
	if model == "" {
		model = DefaultLLMModel
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model}, nil
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   1024,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0.7),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// Generator drives the two upstream LLM calls: the moderation screen and the
// recommendation generation itself.
type Generator struct {
	caller LLMCaller
}

func NewGenerator(caller LLMCaller) *Generator {
	return &Generator{caller: caller}
}

func (g *Generator) ModelName() string {
	if g == nil || g.caller == nil {
		return DefaultLLMModel
	}
	return g.caller.ModelName()
}

// Generate asks the upstream model for raw recommendation text. Transport
// failures in the retryable classes (timeout, rate limit, server error) are
// retried up to three attempts; an empty response counts as one content
// retry. The returned string is the unparsed recommendation payload.
func (g *Generator) Generate(ctx context.Context, description string) (string, error) {
	prompt := buildGeneratorPrompt(description)
	for attempt := 1; attempt <= 3; attempt++ {
		attemptStart := time.Now()
		log.Printf("moviefinder generate_attempt_start attempt=%d", attempt)
		raw, err := g.caller.Generate(ctx, generatorSystemPrompt, prompt)
		if err != nil {
			class := classifyTransportError(err)
			log.Printf("moviefinder generate_attempt_transport_error attempt=%d class=%d elapsed_ms=%d err=%q", attempt, class, time.Since(attemptStart).Milliseconds(), err.Error())
			if class == failureTimeout || class == failureRateLimit || class == failureServer {
				if attempt < 3 {
					if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
						return "", err
					}
					continue
				}
			}
			return "", fmt.Errorf("generate transport failure: %w", err)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			log.Printf("moviefinder generate_attempt_empty attempt=%d elapsed_ms=%d", attempt, time.Since(attemptStart).Milliseconds())
			if attempt < 3 {
				continue
			}
			return "", errors.New("generate failed: empty response")
		}
		log.Printf("moviefinder generate_attempt_success attempt=%d elapsed_ms=%d response_chars=%d", attempt, time.Since(attemptStart).Milliseconds(), len(raw))
		return raw, nil
	}
	return "", errors.New("generate failed after retries")
}

type screenVerdict struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason"`
}

// Screen runs the moderation pre-check on the user description. A flagged
// verdict means the input must not reach the generator. Transport or parse
// failures fail open: moderation is advisory, a broken moderation path must
// not take resolution down with it.
func (g *Generator) Screen(ctx context.Context, description string) (flagged bool, reason string, err error) {
	raw, err := g.caller.Generate(ctx, screenSystemPrompt, buildScreenPrompt(description))
	if err != nil {
		log.Printf("moviefinder screen_transport_error err=%q", err.Error())
		return false, "", nil
	}
	var v screenVerdict
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &v); err != nil {
		log.Printf("moviefinder screen_parse_error err=%q", err.Error())
		return false, "", nil
	}
	if v.Flagged {
		log.Printf("moviefinder screen_flagged reason=%q", v.Reason)
	}
	return v.Flagged, strings.TrimSpace(v.Reason), nil
}

func buildGeneratorPrompt(description string) string {
	var b strings.Builder
	b.WriteString(`Generate a list of 20 movie recommendations based on the following
description of the user, their life, or their taste in movies.

Each recommendation must be on its own line in exactly this format:

MovieTitle MatchPercentage

For example:
No Country for Old Men 90
The Master 95

Output absolutely no additional text, explanation, commentary, or
apologies. If the input is unclear or nonsensical, return a list of 15
popular movies with match percentages instead, still with no extra text.

Description: `)
	b.WriteString(description)
	return b.String()
}

func buildScreenPrompt(description string) string {
	var b strings.Builder
	b.WriteString(`Return valid JSON only. No markdown fences, no commentary.

Classify the user input below. Flag it only if it contains hate speech,
sexual content involving minors, credible threats, or instructions for
serious harm. Ordinary descriptions of taste, dark themes in fiction, and
mature film preferences are NOT flagged.

Schema: {"flagged": boolean, "reason": string}

USER INPUT:
`)
	b.WriteString(description)
	return b.String()
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func classifyTransportError(err error) llmFailureClass {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	m := statusCodeRe.FindStringSubmatch(msg)
	if len(m) == 2 {
		switch {
		case strings.HasPrefix(m[1], "429"):
			return failureRateLimit
		case strings.HasPrefix(m[1], "5"):
			return failureServer
		case strings.HasPrefix(m[1], "4"):
			return failureClient
		}
	}
	switch {
	case strings.Contains(msg, "status 429"), strings.Contains(msg, "rate limit"):
		return failureRateLimit
	case strings.Contains(msg, "status 5"), strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 1 * time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
