package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// AuthHandler handles HTTP requests for sign-in and sign-out.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  logger,
	}
}

type meResponse struct {
	User *domain.UserProfile `json:"user"`
}

// ListProviders handles GET /api/v1/auth/providers
func (h *AuthHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.service.Providers())
}

// Login handles POST /api/v1/auth/login/{kind}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	kind := domain.ProviderKind(chi.URLParam(r, "kind"))
	if _, known := domain.ProviderFor(kind); !known {
		httputil.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("unknown provider %q", kind)), h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.LoginInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.Login(r.Context(), sid, kind, req.Credential)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if res.User == nil {
		httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "PROVIDER_AUTH_FAILED", res.Notice.Message)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	res, err := h.service.Logout(r.Context(), sid)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if res.Notice.Kind == domain.NoticeError {
		httputil.WriteErrorCode(w, r, http.StatusBadGateway, "PROVIDER_SIGNOUT_FAILED", res.Notice.Message)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Me(r.Context(), sid)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, meResponse{User: user})
}
