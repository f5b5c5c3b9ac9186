package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
)

const (
	defaultAttemptLimit = 20
	maxAttemptLimit     = 100
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// InitiateCheckout handles POST /api/v1/checkout
//
// Redirect and login outcomes are 200 responses the browser acts on. A
// failed checkout is a 502 carrying only the generic notice; a checkout
// already running for the session is a 409.
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	res, err := h.service.Initiate(r.Context(), sid)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	switch res.Outcome {
	case domain.OutcomeBusy:
		httputil.WriteErrorCode(w, r, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "checkout already in progress")
	case domain.OutcomeFailed:
		httputil.WriteErrorCode(w, r, http.StatusBadGateway, "CHECKOUT_FAILED", res.Notice.Message)
	default:
		httputil.WriteData(w, http.StatusOK, res)
	}
}

// GetStatus handles GET /api/v1/checkout/status
func (h *CheckoutHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	status, err := h.service.Status(r.Context(), sid)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, status)
}

// ListAttempts handles GET /api/v1/checkout/attempts
func (h *CheckoutHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	limit := httputil.QueryInt(r, "limit", defaultAttemptLimit, maxAttemptLimit)
	attempts, err := h.service.Attempts(r.Context(), sid, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, attempts)
}
