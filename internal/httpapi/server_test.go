package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joelkehle/moviefinder/internal/recommend"
)

type stubCaller struct {
	response string
}

func (s *stubCaller) Generate(_ context.Context, system, _ string) (string, error) {
	if strings.Contains(system, "moderation") {
		return `{"flagged":false,"reason":""}`, nil
	}
	return s.response, nil
}

func (s *stubCaller) ModelName() string { return "stub-model" }

type stubLookup struct {
	details map[string]recommend.Details
}

func (s *stubLookup) MovieDetails(_ context.Context, title string) (recommend.Details, error) {
	d, ok := s.details[title]
	if !ok {
		return recommend.Details{}, recommend.ErrNoResults
	}
	return d, nil
}

func (s *stubLookup) PosterURL(_ context.Context, title string) (string, error) {
	d, ok := s.details[title]
	if !ok || d.PosterURL == "" {
		return "", recommend.ErrNoResults
	}
	return d.PosterURL, nil
}

type stubPDF struct{}

func (stubPDF) Render(_ context.Context, _ string) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	caller := &stubCaller{response: "Beta 70\nAlpha 95"}
	lookup := &stubLookup{details: map[string]recommend.Details{
		"Alpha": {Title: "Alpha", Rating: 7.1, PosterURL: "https://img.example/alpha.jpg"},
		"Beta":  {Title: "Beta", Rating: 6.2},
	}}
	pipeline := recommend.NewPipeline(recommend.NewGenerator(caller), recommend.NewEnricher(lookup, 4))
	return NewServer(ServerConfig{
		Session: recommend.NewSession(pipeline),
		Lookup:  lookup,
		Poster:  lookup,
		PDF:     stubPDF{},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	payload := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid JSON response: %v\n%s", err, w.Body.String())
		}
	}
	return w, payload
}

func resolveOnce(t *testing.T, h http.Handler) {
	t.Helper()
	w, _ := doJSON(t, h, http.MethodPost, "/v1/recommendations", `{"input":"anything"}`)
	if w.Code != 200 {
		t.Fatalf("resolve failed: %d %s", w.Code, w.Body.String())
	}
}

func TestResolveEndpoint(t *testing.T) {
	h := testHandler(t)
	w, payload := doJSON(t, h, http.MethodPost, "/v1/recommendations", `{"input":"anything"}`)
	if w.Code != 200 {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	movies, _ := payload["movies"].([]any)
	if len(movies) != 2 {
		t.Fatalf("expected 2 movies, got %v", payload["movies"])
	}
	if payload["generation"].(float64) != 1 {
		t.Fatalf("expected generation 1, got %v", payload["generation"])
	}
}

func TestResolveEmptyInputReturns400(t *testing.T) {
	h := testHandler(t)
	w, payload := doJSON(t, h, http.MethodPost, "/v1/recommendations", `{"input":"   "}`)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	errObj := payload["error"].(map[string]any)
	if errObj["code"] != recommend.CodeValidation {
		t.Fatalf("expected validation code, got %v", errObj)
	}
}

func TestResolveBadJSONReturns400(t *testing.T) {
	h := testHandler(t)
	w, _ := doJSON(t, h, http.MethodPost, "/v1/recommendations", `{not json`)
	if w.Code != 400 {
		t.Fatalf("expected 400 for bad JSON, got %d", w.Code)
	}
}

func TestCurrentBeforeResolveReturns404(t *testing.T) {
	h := testHandler(t)
	w, _ := doJSON(t, h, http.MethodGet, "/v1/recommendations", "")
	if w.Code != 404 {
		t.Fatalf("expected 404 before any resolve, got %d", w.Code)
	}
}

func TestSortEndpoint(t *testing.T) {
	h := testHandler(t)
	resolveOnce(t, h)

	w, payload := doJSON(t, h, http.MethodPost, "/v1/recommendations/sort", `{"sort":"alphabetical"}`)
	if w.Code != 200 || payload["applied"] != true {
		t.Fatalf("expected sort applied, got %d %v", w.Code, payload)
	}

	w, payload = doJSON(t, h, http.MethodGet, "/v1/recommendations", "")
	if w.Code != 200 {
		t.Fatalf("unexpected status %d", w.Code)
	}
	movies := payload["movies"].([]any)
	first := movies[0].(map[string]any)
	if first["title"] != "Alpha" {
		t.Fatalf("expected alphabetical order, got %v", first)
	}
}

func TestSortUnknownCriterionReturns400(t *testing.T) {
	h := testHandler(t)
	resolveOnce(t, h)
	w, _ := doJSON(t, h, http.MethodPost, "/v1/recommendations/sort", `{"sort":"banana"}`)
	if w.Code != 400 {
		t.Fatalf("expected 400 for unknown criterion, got %d", w.Code)
	}
}

func TestSortBeforeResolveIsNoOp(t *testing.T) {
	h := testHandler(t)
	w, payload := doJSON(t, h, http.MethodPost, "/v1/recommendations/sort", `{"sort":"year"}`)
	if w.Code != 200 || payload["applied"] != false {
		t.Fatalf("expected no-op sort, got %d %v", w.Code, payload)
	}
}

func TestMovieDetailsEndpoint(t *testing.T) {
	h := testHandler(t)
	w, payload := doJSON(t, h, http.MethodPost, "/v1/movies/details", `{"title":"Alpha"}`)
	if w.Code != 200 {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	details := payload["details"].(map[string]any)
	if details["title"] != "Alpha" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestMovieDetailsUnknownTitleReturns404(t *testing.T) {
	h := testHandler(t)
	w, _ := doJSON(t, h, http.MethodPost, "/v1/movies/details", `{"title":"Nope"}`)
	if w.Code != 404 {
		t.Fatalf("expected 404 for unknown title, got %d", w.Code)
	}
}

func TestMovieDetailsMissingTitleReturns400(t *testing.T) {
	h := testHandler(t)
	w, _ := doJSON(t, h, http.MethodPost, "/v1/movies/details", `{"title":"  "}`)
	if w.Code != 400 {
		t.Fatalf("expected 400 for missing title, got %d", w.Code)
	}
}

func TestMoviePosterEndpoint(t *testing.T) {
	h := testHandler(t)
	w, payload := doJSON(t, h, http.MethodPost, "/v1/movies/poster", `{"title":"Alpha"}`)
	if w.Code != 200 || payload["poster_url"] != "https://img.example/alpha.jpg" {
		t.Fatalf("unexpected poster response: %d %v", w.Code, payload)
	}

	w, _ = doJSON(t, h, http.MethodPost, "/v1/movies/poster", `{"title":"Beta"}`)
	if w.Code != 404 {
		t.Fatalf("expected 404 for a title without a poster, got %d", w.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	h := testHandler(t)
	resolveOnce(t, h)
	w, _ := doJSON(t, h, http.MethodGet, "/v1/recommendations/report", "")
	if w.Code != 200 {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "# Movie Recommendations") {
		t.Fatalf("unexpected report body:\n%s", w.Body.String())
	}
}

func TestExportEndpoint(t *testing.T) {
	h := testHandler(t)
	resolveOnce(t, h)
	w, _ := doJSON(t, h, http.MethodPost, "/v1/recommendations/export", "")
	if w.Code != 200 {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestExportBeforeResolveReturns404(t *testing.T) {
	h := testHandler(t)
	w, _ := doJSON(t, h, http.MethodPost, "/v1/recommendations/export", "")
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := testHandler(t)
	w, payload := doJSON(t, h, http.MethodGet, "/v1/health", "")
	if w.Code != 200 || payload["ok"] != true {
		t.Fatalf("unexpected health response: %d %v", w.Code, payload)
	}
	if payload["state"] != string(recommend.StateIdle) {
		t.Fatalf("expected idle state, got %v", payload["state"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := testHandler(t)
	w, _ := doJSON(t, h, http.MethodDelete, "/v1/recommendations", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	w, _ = doJSON(t, h, http.MethodGet, "/v1/recommendations/sort", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
