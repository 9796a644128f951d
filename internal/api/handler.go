package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/paperdesk/advisor/internal/advisor"
	"github.com/paperdesk/advisor/internal/retrieval"
	"github.com/paperdesk/advisor/internal/storage"
)

const maxAdviceBodySize = 1 << 20 // 1MB

var validate = validator.New(validator.WithRequiredStructEnabled())

// AdviceProvider abstracts the advisor for the HTTP layer.
type AdviceProvider interface {
	GetAdvice(ctx context.Context, query string, facts map[string]string) advisor.Advice
	Ready() bool
	IndexSize() int
}

// SearchRetriever abstracts raw reference search.
type SearchRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) []retrieval.ScoredChunk
}

// InteractionStore is the persistence surface the handlers need.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, in storage.Interaction) (storage.Interaction, error)
	ListInteractions(ctx context.Context, limit int) ([]storage.Interaction, error)
	GetInteraction(ctx context.Context, id string) (storage.Interaction, error)
	DeleteInteraction(ctx context.Context, id string) error
	CountInteractions(ctx context.Context) (int, error)
}

type Deps struct {
	Advisor    AdviceProvider
	Retriever  SearchRetriever
	Store      InteractionStore // optional; if nil, exchanges are not logged
	Token      string
	SourcePath string // reference document path, empty when degraded
}

// NewHandler wires up the public advisory API and the token-protected
// management endpoints.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))
	r.Post("/v1/advice", handleAdvice(deps))
	r.Get("/v1/reference/search", handleSearch(deps))
	r.Get("/v1/reference/status", handleStatus(deps))

	r.Route("/v1/interactions", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/", handleListInteractions(deps))
		r.Get("/{id}", handleGetInteraction(deps))
		r.Delete("/{id}", handleDeleteInteraction(deps))
	})

	return r
}

type AdviceRequest struct {
	Query string            `json:"query"`
	K     int               `json:"k" validate:"omitempty,min=1,max=20"`
	Facts map[string]string `json:"facts" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=256"`
}

type AdviceResponse struct {
	Advice      string `json:"advice"`
	Outcome     string `json:"outcome"`
	ContextUsed int    `json:"context_used"`
	DurationMS  int64  `json:"duration_ms"`
}

func handleAdvice(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAdviceBodySize)
		defer r.Body.Close()

		var req AdviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		// Query is deliberately not required: a blank query gets a prompt
		// for input, not an error.
		if err := validate.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request: %v", err)
			return
		}

		advice := deps.Advisor.GetAdvice(r.Context(), req.Query, req.Facts)

		if deps.Store != nil && advice.Outcome != advisor.OutcomeEmptyQuery {
			_, err := deps.Store.SaveInteraction(r.Context(), storage.Interaction{
				Query:       req.Query,
				Answer:      advice.Text,
				Outcome:     string(advice.Outcome),
				ContextUsed: advice.ContextUsed,
				DurationMS:  advice.Duration.Milliseconds(),
			})
			if err != nil {
				// The log is diagnostics, not the product; the answer
				// still goes out.
				slog.Warn("failed to log interaction", "error", err)
			}
		}

		writeJSON(w, http.StatusOK, AdviceResponse{
			Advice:      advice.Text,
			Outcome:     string(advice.Outcome),
			ContextUsed: advice.ContextUsed,
			DurationMS:  advice.Duration.Milliseconds(),
		})
	}
}

type searchResult struct {
	ID    string  `json:"id"`
	Page  int     `json:"page"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}

		k := retrieval.DefaultTopK
		if raw := r.URL.Query().Get("k"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > retrieval.MaxTopK {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "k must be an integer between 1 and %d", retrieval.MaxTopK)
				return
			}
			k = parsed
		}

		scored := deps.Retriever.Retrieve(r.Context(), query, k)
		results := make([]searchResult, len(scored))
		for i, s := range scored {
			results[i] = searchResult{
				ID:    s.Chunk.ID,
				Page:  s.Chunk.Page,
				Text:  s.Chunk.Text,
				Score: s.Score,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ready":  deps.Advisor.Ready(),
			"chunks": deps.Advisor.IndexSize(),
			"source": deps.SourcePath,
		})
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"retrieval_ready": deps.Advisor.Ready(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
