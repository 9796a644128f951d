package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paperdesk/advisor/internal/storage"
)

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "interaction log is disabled")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 500 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be an integer between 1 and 500")
				return
			}
			limit = parsed
		}

		list, err := deps.Store.ListInteractions(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing interactions: %v", err)
			return
		}
		total, err := deps.Store.CountInteractions(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting interactions: %v", err)
			return
		}

		if list == nil {
			list = []storage.Interaction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"interactions": list,
			"total":        total,
		})
	}
}

func handleGetInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "interaction log is disabled")
			return
		}

		id := chi.URLParam(r, "id")
		in, err := deps.Store.GetInteraction(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "no interaction with id %s", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "fetching interaction: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, in)
	}
}

func handleDeleteInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "interaction log is disabled")
			return
		}

		id := chi.URLParam(r, "id")
		err := deps.Store.DeleteInteraction(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "no interaction with id %s", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting interaction: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
