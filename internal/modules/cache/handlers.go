package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"oddogate/internal/domain"
	"oddogate/internal/modules/auth"
)

// AccountsFetcher pulls fresh account data from the upstream API.
type AccountsFetcher interface {
	FetchAccountsWithPositions(ctx context.Context, session domain.Session) ([]domain.AccountWithPositions, error)
}

// Handler handles cache management HTTP requests
type Handler struct {
	service *Service
	fetcher AccountsFetcher
	log     zerolog.Logger
}

// NewHandler creates a new cache handler
func NewHandler(service *Service, fetcher AccountsFetcher, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		fetcher: fetcher,
		log:     log.With().Str("handler", "cache").Logger(),
	}
}

// HandleInfo returns the detailed cache report for the current user.
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing session")
		return
	}

	info, err := h.service.GetDetailedInfo(session.Username)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read cache info")
		h.writeError(w, http.StatusInternalServerError, "Failed to get cache info", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// HandleInvalidate drops every cached entry of the current user.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing session")
		return
	}

	removed, err := h.service.InvalidateUser(session.Username)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to invalidate cache")
		h.writeError(w, http.StatusInternalServerError, "Failed to invalidate cache", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Cache invalidated successfully",
		"removed":   removed,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleRefresh drops the cached accounts, refetches them upstream and
// caches the fresh copy.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing session")
		return
	}

	accounts, err := h.service.RefreshUserAccounts(session.Username, func() ([]domain.AccountWithPositions, error) {
		return h.fetcher.FetchAccountsWithPositions(r.Context(), session)
	}, nil)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.writeError(w, http.StatusUnauthorized, "Session expired", "Please login again")
			return
		}
		h.log.Error().Err(err).Msg("Failed to refresh cache")
		h.writeError(w, http.StatusBadGateway, "Failed to refresh cache", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "Cache refreshed successfully",
		"accountsCount": len(accounts),
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errMsg, message string) {
	h.writeJSON(w, status, map[string]string{"error": errMsg, "message": message})
}
