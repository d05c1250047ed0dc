package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"oddogate/internal/domain"
)

// Handler handles authentication HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "auth").Logger(),
	}
}

type loginBody struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

// HandleLogin authenticates against the upstream API and returns a JWT.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.User == "" || body.Pass == "" {
		h.writeError(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	token, err := h.service.Authenticate(r.Context(), body.User, body.Pass)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.log.Error().Err(err).Msg("Login failed")
		h.writeError(w, http.StatusBadGateway, "Authentication service unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"jwt": token})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
