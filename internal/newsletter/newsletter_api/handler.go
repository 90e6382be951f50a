package newsletter_api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/newsletter"
	"verbs-tickets/internal/ratelimit"
	"verbs-tickets/internal/utils"
)

type Handler struct {
	service *newsletter.Service
	limiter *ratelimit.Limiter
	logger  *logger.Logger
}

func NewHandler(service *newsletter.Service, limiter *ratelimit.Limiter, log *logger.Logger) *Handler {
	return &Handler{service: service, limiter: limiter, logger: log}
}

type subscribeRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

// Subscribe handles POST /api/newsletter/subscribe. Signups are rate limited
// per client IP before any validation runs.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(r.Context(), clientIP(r)) {
		utils.WriteError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Please enter a valid email address")
		return
	}
	if req.Source == "" {
		req.Source = "website"
	}

	result := h.service.Subscribe(r.Context(), req.Email, req.Source)
	if result.Status >= 400 {
		utils.WriteError(w, result.Status, result.Message)
		return
	}
	utils.WriteMessage(w, result.Status, result.Message)
}

// clientIP prefers the first X-Forwarded-For hop, set by the edge proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
