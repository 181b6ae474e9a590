package submission

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/transport"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, actorID string, dto CreateSubmissionDTO) (*Submission, error)
	Get(ctx context.Context, actorID, id string) (*Submission, error)
	List(ctx context.Context, actorID string, filter ListFilter) ([]*Submission, error)
	UpdateContent(ctx context.Context, actorID, id string, dto UpdateSubmissionDTO) (*Submission, error)
	ValidActions(ctx context.Context, actorID, id string) (*ValidActionsResponse, error)
	Transition(ctx context.Context, actorID, id string, dto TransitionDTO) (*TransitionResult, error)
	AddComment(ctx context.Context, actorID, id string, dto CommentDTO) (*Comment, error)
	ListComments(ctx context.Context, actorID, id string) ([]*Comment, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID := internal.UserIDFromContext(r.Context())
	if actorID == "" {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return "", false
	}
	return actorID, true
}

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateSubmissionDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	sub, err := h.Service.Create(r.Context(), actorID, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Limit:  h.QueryInt(r, "limit", DefaultListLimit),
		Offset: h.QueryInt(r, "offset", 0),
	}

	if err := filter.Normalize(); err != nil {
		h.WriteAppError(w, err)
		return
	}

	subs, err := h.Service.List(r.Context(), actorID, filter)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{
		Submissions: subs,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	sub, err := h.Service.Get(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) UpdateSubmission(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto UpdateSubmissionDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	sub, err := h.Service.UpdateContent(r.Context(), actorID, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	resp, err := h.Service.ValidActions(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) PostTransition(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto TransitionDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.Transition(r.Context(), actorID, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	comments, err := h.Service.ListComments(r.Context(), actorID, chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CommentDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	comment, err := h.Service.AddComment(r.Context(), actorID, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, comment)
}
