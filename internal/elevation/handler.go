package elevation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/AceBNeato/sdmdweb-sub001/internal/platform/httpx"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Handler wires HTTP endpoints for elevation management. Routes are mounted
// behind the elevations.grant permission; the actor is whoever the session
// binds.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers elevation routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/elevations", h.handleList)
	r.Post("/elevations", h.handleGrant)
	r.Delete("/elevations/{principalID}/{role}", h.handleRevoke)
}

type grantRequest struct {
	PrincipalID int64     `json:"principal_id" validate:"required"`
	Role        string    `json:"role" validate:"required"`
	ExpiresAt   time.Time `json:"expires_at" validate:"required"`
}

type grantView struct {
	PrincipalID    int64     `json:"principal_id"`
	PrincipalEmail string    `json:"principal_email,omitempty"`
	Role           string    `json:"role"`
	GrantedBy      int64     `json:"granted_by"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list elevations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, viewOf(g))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"elevations": views})
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromSession(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated actor")
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principal_id, role and expires_at are required")
		return
	}
	grant, err := h.service.GrantTemporary(r.Context(), actorID, req.PrincipalID, req.Role, req.ExpiresAt)
	if err != nil {
		if !isExpectedGrantError(err) {
			h.logger.Error("grant elevation", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(grant))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromSession(r)
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated actor")
		return
	}
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid principal id")
		return
	}
	role := chi.URLParam(r, "role")
	if err := h.service.Revoke(r.Context(), actorID, principalID, role); err != nil {
		if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrPermissionAssignmentForbidden) {
			h.logger.Error("revoke elevation", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func viewOf(g Grant) grantView {
	return grantView{
		PrincipalID:    g.PrincipalID,
		PrincipalEmail: g.PrincipalEmail,
		Role:           g.RoleName,
		GrantedBy:      g.GrantedBy,
		ExpiresAt:      g.ExpiresAt,
		CreatedAt:      g.CreatedAt,
	}
}

func isExpectedGrantError(err error) bool {
	return errors.Is(err, shared.ErrElevationConflict) ||
		errors.Is(err, shared.ErrEligibilityUnmet) ||
		errors.Is(err, shared.ErrPermissionAssignmentForbidden)
}

func actorFromSession(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	_, raw, ok := sess.BoundPrincipal()
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
