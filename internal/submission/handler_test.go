package submission_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/submission"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockSubmissionService struct {
	submission.ServiceAPI
	transitionResult *submission.TransitionResult
	transitionErr    error
	lastActor        string
	lastID           string
	lastDTO          submission.TransitionDTO
	created          *submission.Submission
}

func (m *mockSubmissionService) Transition(ctx context.Context, actorID, id string, dto submission.TransitionDTO) (*submission.TransitionResult, error) {
	m.lastActor, m.lastID, m.lastDTO = actorID, id, dto
	return m.transitionResult, m.transitionErr
}

func (m *mockSubmissionService) Create(ctx context.Context, actorID string, dto submission.CreateSubmissionDTO) (*submission.Submission, error) {
	m.lastActor = actorID
	return m.created, nil
}

func (m *mockSubmissionService) ValidActions(ctx context.Context, actorID, id string) (*submission.ValidActionsResponse, error) {
	return &submission.ValidActionsResponse{SubmissionID: id, Status: submission.StatusDraft, ValidActions: []string{"submit"}}, nil
}

type errorBody struct {
	Error struct {
		Type    string                 `json:"type"`
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

var _ = Describe("Handler", func() {
	var (
		service *mockSubmissionService
		router  chi.Router
	)

	withUser := func(userID string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if userID != "" {
					r = r.WithContext(internal.ContextWithUserID(r.Context(), userID))
				}
				next.ServeHTTP(w, r)
			})
		}
	}

	build := func(userID string) {
		h := submission.NewHandler(service)
		router = chi.NewRouter()
		router.Use(withUser(userID))
		router.Post("/submissions", h.CreateSubmission)
		router.Get("/submissions/{id}/transitions", h.GetTransitions)
		router.Post("/submissions/{id}/transitions", h.PostTransition)
	}

	BeforeEach(func() {
		service = &mockSubmissionService{}
		build("rita")
	})

	Describe("PostTransition", func() {
		It("should return the updated submission and valid actions", func() {
			// Given
			service.transitionResult = &submission.TransitionResult{
				Submission:   &submission.Submission{ID: "sub-1", Status: submission.StatusApproved},
				ValidActions: []string{"convert"},
			}
			body := bytes.NewBufferString(`{"action":"approve","comment":"ship it"}`)

			// When
			req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/transitions", body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			// Then
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(service.lastActor).To(Equal("rita"))
			Expect(service.lastID).To(Equal("sub-1"))
			Expect(service.lastDTO.Comment).To(Equal("ship it"))

			var resp submission.TransitionResult
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Submission.Status).To(Equal(submission.StatusApproved))
			Expect(resp.ValidActions).To(Equal([]string{"convert"}))
		})

		It("should render invalid transitions as 409 with details", func() {
			service.transitionErr = internal.NewConflictError("Cannot approve a submission in DRAFT status", internal.ErrCodeInvalidTransition).
				WithDetails(submission.TransitionErrorDetails{
					CurrentStatus:   submission.StatusDraft,
					ActionAttempted: "approve",
					AllowedActions:  []string{"submit"},
				})

			req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/transitions", bytes.NewBufferString(`{"action":"approve"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusConflict))
			var resp errorBody
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Error.Code).To(Equal("INVALID_TRANSITION"))
			Expect(resp.Error.Details).To(HaveKeyWithValue("current_status", "DRAFT"))
			Expect(resp.Error.Details).To(HaveKeyWithValue("allowed_actions", ConsistOf("submit")))
		})

		It("should render infrastructure faults as 503", func() {
			service.transitionErr = internal.NewInfrastructureError("Unable to evaluate permissions, try again later", nil)

			req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/transitions", bytes.NewBufferString(`{"action":"approve"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("should reject malformed bodies", func() {
			req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/transitions", bytes.NewBufferString(`{"action":`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(service.lastID).To(BeEmpty())
		})

		It("should require authentication", func() {
			build("")

			req := httptest.NewRequest(http.MethodPost, "/submissions/sub-1/transitions", bytes.NewBufferString(`{"action":"approve"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			var resp errorBody
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Error.Code).To(Equal("UNAUTHENTICATED"))
		})
	})

	Describe("GetTransitions", func() {
		It("should list valid actions", func() {
			req := httptest.NewRequest(http.MethodGet, "/submissions/sub-9/transitions", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp submission.ValidActionsResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.SubmissionID).To(Equal("sub-9"))
			Expect(resp.ValidActions).To(Equal([]string{"submit"}))
		})
	})

	Describe("CreateSubmission", func() {
		It("should respond 201", func() {
			service.created = &submission.Submission{ID: "sub-2", Status: submission.StatusDraft}

			req := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewBufferString(`{"title":"Better coffee","description":"Replace the machine on floor 3"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(service.lastActor).To(Equal("rita"))
		})

		It("should reject unknown fields", func() {
			req := httptest.NewRequest(http.MethodPost, "/submissions", bytes.NewBufferString(`{"title":"Better coffee","status":"APPROVED"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
