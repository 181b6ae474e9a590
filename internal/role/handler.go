package role

import (
	"context"
	"net/http"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListRoles(ctx context.Context) ([]*Role, error)
	AssignRole(ctx context.Context, actorID, userID, roleName string) (*AssignmentResponse, error)
	RevokeRole(ctx context.Context, actorID, userID, roleName string) (*AssignmentResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RolesResponse{Roles: roles})
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	actorID := internal.UserIDFromContext(r.Context())
	if actorID == "" {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	resp, err := h.Service.AssignRole(r.Context(), actorID, chi.URLParam(r, "id"), chi.URLParam(r, "role"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	actorID := internal.UserIDFromContext(r.Context())
	if actorID == "" {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	resp, err := h.Service.RevokeRole(r.Context(), actorID, chi.URLParam(r, "id"), chi.URLParam(r, "role"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
