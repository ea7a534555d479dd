package auth

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/AceBNeato/sdmdweb-sub001/internal/platform/httpx"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/auth/csrf", h.handleCSRF)
	r.Route("/auth/{guard}", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type principalView struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type loginResponse struct {
	Guard     string         `json:"guard"`
	Principal *principalView `json:"principal,omitempty"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	guard, err := ParseGuard(chi.URLParam(r, "guard"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown guard")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}

	result, err := h.service.Login(r.Context(), sess, guard, req.Email, req.Password, clientIP(r))
	if err != nil {
		// Storage failures are already logged with context; callers get a
		// generic answer.
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	switch result.Code {
	case OutcomeOK:
		httpx.JSON(w, http.StatusOK, loginResponse{
			Guard:     string(guard),
			Principal: viewOf(result.Principal),
		})
	case OutcomeRateLimited:
		w.Header().Set("Retry-After", formatSeconds(result.RetryAfter))
		httpx.Problem(w, http.StatusTooManyRequests, "Too Many Attempts", result.Message)
	case OutcomeAccountDeactivated:
		httpx.Problem(w, http.StatusForbidden, "Account Deactivated", result.Message)
	default:
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", result.Message)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	guard, err := ParseGuard(chi.URLParam(r, "guard"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown guard")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.NoContent(w)
		return
	}
	if err := h.service.Logout(r.Context(), sess, guard); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	guard, err := ParseGuard(chi.URLParam(r, "guard"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown guard")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "not authenticated")
		return
	}
	principal, err := h.service.CurrentIdentity(r.Context(), sess, guard)
	if err != nil {
		h.logger.Error("current identity", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "not authenticated")
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Guard: string(guard), Principal: viewOf(principal)})
}

func viewOf(p *Principal) *principalView {
	if p == nil {
		return nil
	}
	return &principalView{ID: p.ID, Email: p.Email, Name: p.Name}
}

// clientIP strips the port chi's RealIP-adjusted RemoteAddr may carry.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
