package portfolio

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"oddogate/internal/domain"
	"oddogate/internal/modules/auth"
)

// CachedAccounts reads the cached account snapshot for a user.
type CachedAccounts interface {
	GetUserAccounts(userID string) ([]domain.AccountWithPositions, bool, error)
}

// Handler serves the portfolio overview endpoint.
type Handler struct {
	engine *Engine
	cache  CachedAccounts
	log    zerolog.Logger
}

// NewHandler creates a portfolio handler.
func NewHandler(engine *Engine, cache CachedAccounts, logger zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		cache:  cache,
		log:    logger.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleOverview returns portfolio-wide statistics computed from the
// cached accounts. It never fetches upstream: a cache miss asks the
// client to refresh first.
func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing session")
		return
	}

	accounts, found, err := h.cache.GetUserAccounts(session.Username)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read cached accounts")
		writeError(w, http.StatusInternalServerError, "Cache read failed", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "No portfolio data available", "Please refresh your data first")
		return
	}

	overview := h.engine.ComputeStats(accounts)
	writeJSON(w, http.StatusOK, overview.Portfolio)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errMsg, message string) {
	writeJSON(w, status, map[string]string{"error": errMsg, "message": message})
}
