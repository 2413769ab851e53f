// Package httpapi exposes the recommendation session over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/joelkehle/moviefinder/internal/export"
	"github.com/joelkehle/moviefinder/internal/recommend"
)

// PDFRenderer turns a markdown report into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, reportMarkdown string) ([]byte, error)
}

type Server struct {
	session *recommend.Session
	lookup  recommend.MovieLookup
	poster  recommend.PosterLookup
	pdf     PDFRenderer
}

type ServerConfig struct {
	Session *recommend.Session
	Lookup  recommend.MovieLookup
	Poster  recommend.PosterLookup
	PDF     PDFRenderer
}

func NewServer(cfg ServerConfig) http.Handler {
	s := &Server{
		session: cfg.Session,
		lookup:  cfg.Lookup,
		poster:  cfg.Poster,
		pdf:     cfg.PDF,
	}
	if s.pdf == nil {
		s.pdf = export.NewPDFRenderer()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/recommendations", s.handleRecommendations)
	mux.HandleFunc("/v1/recommendations/sort", s.handleSort)
	mux.HandleFunc("/v1/recommendations/report", s.handleReport)
	mux.HandleFunc("/v1/recommendations/export", s.handleExport)
	mux.HandleFunc("/v1/movies/details", s.handleMovieDetails)
	mux.HandleFunc("/v1/movies/poster", s.handleMoviePoster)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *recommend.Error
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status == 0 {
			status = 500
		}
		writeJSON(w, status, map[string]any{
			"ok": false,
			"error": map[string]any{
				"code":    apiErr.Code,
				"message": apiErr.Message,
				"stage":   recommend.StageNameFromError(err),
			},
		})
		return
	}
	writeJSON(w, 500, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    recommend.CodeInternal,
			"message": err.Error(),
		},
	})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func decodeJSONBytes(blob []byte, dst any) error {
	return json.Unmarshal(blob, dst)
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleResolve(w, r)
	case http.MethodGet:
		s.handleCurrent(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	blob, err := readBody(r)
	if err != nil {
		writeAPIError(w, recommend.NewValidationError("unreadable request body"))
		return
	}
	var req recommend.RequestEnvelope
	if err := decodeJSONBytes(blob, &req); err != nil {
		writeAPIError(w, recommend.NewValidationError("invalid JSON body"))
		return
	}

	result, err := s.session.Resolve(r.Context(), req.Input)
	if err != nil {
		if errors.Is(err, recommend.ErrSuperseded) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"ok": false,
				"error": map[string]any{
					"code":    "superseded",
					"message": err.Error(),
				},
			})
			return
		}
		writeAPIError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"ok":         true,
		"generation": result.Generation,
		"movies":     result.Movies,
		"metadata":   result.Metadata,
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	result, criterion := s.session.Current()
	if result == nil {
		writeAPIError(w, recommend.NewNotFoundError("no recommendations published"))
		return
	}
	writeJSON(w, 200, map[string]any{
		"ok":         true,
		"generation": result.Generation,
		"sort":       criterion,
		"movies":     result.Movies,
		"metadata":   result.Metadata,
	})
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeAPIError(w, recommend.NewValidationError("unreadable request body"))
		return
	}
	var req struct {
		Sort string `json:"sort"`
	}
	if err := decodeJSONBytes(blob, &req); err != nil {
		writeAPIError(w, recommend.NewValidationError("invalid JSON body"))
		return
	}
	criterion, ok := recommend.ParseSortCriterion(req.Sort)
	if !ok {
		writeAPIError(w, recommend.NewValidationError("unknown sort criterion: "+req.Sort))
		return
	}
	applied := s.session.SetSortCriterion(criterion)
	writeJSON(w, 200, map[string]any{"ok": true, "applied": applied, "sort": criterion})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	result, _ := s.session.Current()
	if result == nil {
		writeAPIError(w, recommend.NewNotFoundError("no recommendations published"))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, recommend.BuildReportMarkdown(*result))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	result, _ := s.session.Current()
	if result == nil {
		writeAPIError(w, recommend.NewNotFoundError("no recommendations published"))
		return
	}
	pdf, err := s.pdf.Render(r.Context(), recommend.BuildReportMarkdown(*result))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="recommendations.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleMovieDetails(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	title, ok := s.readTitle(w, r)
	if !ok {
		return
	}
	details, err := s.lookup.MovieDetails(r.Context(), title)
	if err != nil {
		if errors.Is(err, recommend.ErrNoResults) {
			writeAPIError(w, recommend.NewNotFoundError("no movies found for the given title"))
			return
		}
		writeAPIError(w, recommend.NewUpstreamError("movie details lookup failed", err))
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "details": details})
}

func (s *Server) handleMoviePoster(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	title, ok := s.readTitle(w, r)
	if !ok {
		return
	}
	posterURL, err := s.poster.PosterURL(r.Context(), title)
	if err != nil {
		if errors.Is(err, recommend.ErrNoResults) {
			writeAPIError(w, recommend.NewNotFoundError("no movies found for the given title"))
			return
		}
		writeAPIError(w, recommend.NewUpstreamError("poster lookup failed", err))
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "poster_url": posterURL})
}

func (s *Server) readTitle(w http.ResponseWriter, r *http.Request) (string, bool) {
	blob, err := readBody(r)
	if err != nil {
		writeAPIError(w, recommend.NewValidationError("unreadable request body"))
		return "", false
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSONBytes(blob, &req); err != nil {
		writeAPIError(w, recommend.NewValidationError("invalid JSON body"))
		return "", false
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeAPIError(w, recommend.NewValidationError("title is required"))
		return "", false
	}
	return title, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, 200, map[string]any{
		"ok":    true,
		"state": s.session.State(),
	})
}
