package accounts

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"oddogate/internal/domain"
	"oddogate/internal/modules/auth"
	"oddogate/internal/modules/portfolio"
)

// AccountCache is the caching policy this handler reads and writes.
type AccountCache interface {
	GetUserAccounts(userID string) ([]domain.AccountWithPositions, bool, error)
	SetUserAccounts(userID string, accounts []domain.AccountWithPositions, ttl *time.Duration) error
}

// Handler handles account HTTP requests
type Handler struct {
	service *Service
	cache   AccountCache
	engine  *portfolio.Engine
	log     zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(service *Service, cache AccountCache, engine *portfolio.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		cache:   cache,
		engine:  engine,
		log:     log.With().Str("handler", "accounts").Logger(),
	}
}

// HandleGetAccounts serves the accounts-with-positions view with
// statistics, cache-first. On a miss the data is fetched upstream and
// cached; a failed cache write is logged but never fails the request.
func (h *Handler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing session")
		return
	}

	cached, found, err := h.cache.GetUserAccounts(session.Username)
	if err != nil {
		h.log.Warn().Err(err).Msg("Cache read failed, falling through to upstream")
	}
	if found {
		h.writeJSON(w, http.StatusOK, h.engine.ComputeStats(cached))
		return
	}

	fresh, err := h.service.FetchAccountsWithPositions(r.Context(), session)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.writeError(w, http.StatusUnauthorized, "Session expired", "Please login again")
			return
		}
		h.log.Error().Err(err).Msg("Failed to fetch accounts")
		h.writeError(w, http.StatusBadGateway, "Failed to fetch accounts", err.Error())
		return
	}

	if err := h.cache.SetUserAccounts(session.Username, fresh, nil); err != nil {
		h.log.Error().Err(err).Msg("Failed to cache accounts")
	}

	h.writeJSON(w, http.StatusOK, h.engine.ComputeStats(fresh))
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
