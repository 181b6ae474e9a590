package submission_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	submissionDatamodel "github.com/frahmantamala/innovation-portal/internal/core/datamodel/submission"
	"github.com/frahmantamala/innovation-portal/internal/core/events"
	"github.com/frahmantamala/innovation-portal/internal/submission"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockSubmissionRepository struct {
	mu          sync.Mutex
	submissions map[string]*submissionDatamodel.Submission
	comments    []*submissionDatamodel.Comment
	lastFilter  submission.ListFilter
	// raceTo simulates a concurrent writer moving the row before the CAS runs
	raceTo  string
	loadErr error
}

func newMockSubmissionRepository() *mockSubmissionRepository {
	return &mockSubmissionRepository{submissions: map[string]*submissionDatamodel.Submission{}}
}

func (m *mockSubmissionRepository) put(s *submissionDatamodel.Submission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.submissions[s.ID] = &cp
}

func (m *mockSubmissionRepository) Create(ctx context.Context, s *submissionDatamodel.Submission) error {
	m.put(s)
	return nil
}

func (m *mockSubmissionRepository) GetByID(ctx context.Context, id string) (*submissionDatamodel.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	s, ok := m.submissions[id]
	if !ok {
		return nil, internal.ErrSubmissionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubmissionRepository) List(ctx context.Context, filter submission.ListFilter) ([]*submissionDatamodel.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	out := make([]*submissionDatamodel.Submission, 0)
	for _, s := range m.submissions {
		if filter.OwnerID != "" && s.UserID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && s.Status != string(filter.Status) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockSubmissionRepository) UpdateContent(ctx context.Context, id string, expected submission.Status, title, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok || s.Status != string(expected) {
		return internal.ErrStatusChanged
	}
	s.Title, s.Description = title, description
	return nil
}

func (m *mockSubmissionRepository) ApplyTransition(ctx context.Context, change submission.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[change.SubmissionID]
	if !ok {
		return internal.ErrStatusChanged
	}
	if m.raceTo != "" {
		s.Status = m.raceTo
	}
	if s.Status != string(change.From) {
		return internal.ErrStatusChanged
	}
	s.Status = string(change.To)
	if change.ReviewerID != nil {
		s.ReviewerID = change.ReviewerID
		s.ReviewedAt = change.ReviewedAt
	}
	if change.ApprovalComment != nil {
		s.ApprovalComment = change.ApprovalComment
	}
	if change.RejectionReason != nil {
		s.RejectionReason = change.RejectionReason
	}
	if change.NeedInfoQuestion != nil {
		s.NeedInfoQuestion = change.NeedInfoQuestion
	}
	if change.Comment != nil {
		m.comments = append(m.comments, change.Comment)
	}
	return nil
}

func (m *mockSubmissionRepository) AddComment(ctx context.Context, c *submissionDatamodel.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, c)
	return nil
}

func (m *mockSubmissionRepository) ListComments(ctx context.Context, submissionID string) ([]*submissionDatamodel.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*submissionDatamodel.Comment, 0)
	for _, c := range m.comments {
		if c.SubmissionID == submissionID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockAuditRecorder struct {
	events []audit.DomainEvent
	err    error
}

func (m *mockAuditRecorder) LogDomainEvent(ctx context.Context, event audit.DomainEvent) error {
	m.events = append(m.events, event)
	return m.err
}

type mockPublisher struct {
	published []events.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.published = append(m.published, event)
	return nil
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		perms     *mockPermissionRepository
		repo      *mockSubmissionRepository
		recorder  *mockAuditRecorder
		publisher *mockPublisher
		service   *submission.Service
	)

	seed := func(id, owner string, status submission.Status) {
		repo.put(&submissionDatamodel.Submission{
			ID:          id,
			UserID:      owner,
			Title:       "Automate expense reports",
			Description: "Replace the spreadsheet with a workflow",
			Status:      string(status),
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		})
	}

	status := func(id string) string {
		s, err := repo.GetByID(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		return s.Status
	}

	BeforeEach(func() {
		ctx = context.Background()
		perms = newPermissionRepository()
		repo = newMockSubmissionRepository()
		recorder = &mockAuditRecorder{}
		publisher = &mockPublisher{}
		service = submission.NewService(repo, newResolver(perms), recorder, publisher, logger.Discard())
	})

	Describe("Create", func() {
		It("should create a draft owned by the actor", func() {
			// Given
			dto := submission.CreateSubmissionDTO{Title: "  Faster onboarding ", Description: "Pre-provision laptops before day one"}

			// When
			sub, err := service.Create(ctx, "alice", dto)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.ID).To(HaveLen(26))
			Expect(sub.UserID).To(Equal("alice"))
			Expect(sub.Title).To(Equal("Faster onboarding"))
			Expect(sub.Status).To(Equal(submission.StatusDraft))
			Expect(recorder.events).To(HaveLen(1))
			Expect(recorder.events[0].Action).To(Equal(audit.ActionSubmissionCreate))
		})

		It("should reject short titles", func() {
			_, err := service.Create(ctx, "alice", submission.CreateSubmissionDTO{Title: "abc", Description: "long enough description"})
			Expect(codeOf(err)).To(Equal(internal.ErrCodeValidationFailed))
		})

		It("should require the create permission", func() {
			_, err := service.Create(ctx, "victor", submission.CreateSubmissionDTO{Title: "Valid title", Description: "long enough description"})
			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
		})

		It("should require an authenticated actor", func() {
			_, err := service.Create(ctx, "", submission.CreateSubmissionDTO{Title: "Valid title", Description: "long enough description"})
			Expect(errors.Is(err, internal.ErrUnauthenticated)).To(BeTrue())
		})
	})

	Describe("Get", func() {
		BeforeEach(func() {
			seed("sub-1", "alice", submission.StatusDraft)
		})

		It("should let the owner and readers of all submissions see it", func() {
			_, err := service.Get(ctx, "alice", "sub-1")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Get(ctx, "victor", "sub-1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should deny other submitters", func() {
			_, err := service.Get(ctx, "bob", "sub-1")
			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
		})

		It("should return not found for unknown ids", func() {
			_, err := service.Get(ctx, "alice", "missing")
			Expect(errors.Is(err, internal.ErrSubmissionNotFound)).To(BeTrue())
		})

		It("should wrap store failures as infrastructure faults", func() {
			repo.loadErr = errors.New("connection reset")
			_, err := service.Get(ctx, "alice", "sub-1")
			Expect(internal.IsInfrastructure(err)).To(BeTrue())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			seed("sub-1", "alice", submission.StatusDraft)
			seed("sub-2", "bob", submission.StatusSubmitted)
		})

		It("should scope submitters to their own submissions", func() {
			subs, err := service.List(ctx, "alice", submission.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(1))
			Expect(subs[0].ID).To(Equal("sub-1"))
			Expect(repo.lastFilter.Limit).To(Equal(submission.DefaultListLimit))
		})

		It("should list everything for readers of all submissions", func() {
			subs, err := service.List(ctx, "rita", submission.ListFilter{Status: "submitted"})
			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(1))
			Expect(subs[0].ID).To(Equal("sub-2"))
		})

		It("should reject unknown status filters", func() {
			_, err := service.List(ctx, "rita", submission.ListFilter{Status: "PENDING"})
			Expect(codeOf(err)).To(Equal(internal.ErrCodeValidationFailed))
		})
	})

	Describe("UpdateContent", func() {
		It("should update an editable draft", func() {
			seed("sub-1", "alice", submission.StatusDraft)
			title := "Automate all expense reports"

			sub, err := service.UpdateContent(ctx, "alice", "sub-1", submission.UpdateSubmissionDTO{Title: &title})

			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Title).To(Equal(title))
			Expect(recorder.events[0].Action).To(Equal(audit.ActionSubmissionUpdate))
		})

		It("should refuse edits once the submission left draft", func() {
			seed("sub-1", "alice", submission.StatusSubmitted)
			title := "Automate all expense reports"

			_, err := service.UpdateContent(ctx, "alice", "sub-1", submission.UpdateSubmissionDTO{Title: &title})
			Expect(codeOf(err)).To(Equal(internal.ErrCodeCannotModifySubmission))
		})

		It("should refuse edits by other users", func() {
			seed("sub-1", "alice", submission.StatusDraft)
			title := "Automate all expense reports"

			_, err := service.UpdateContent(ctx, "bob", "sub-1", submission.UpdateSubmissionDTO{Title: &title})
			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
		})
	})

	Describe("Transition", func() {
		It("should apply, audit, publish and recompute valid actions", func() {
			// Given
			seed("sub-1", "alice", submission.StatusDraft)

			// When
			result, err := service.Transition(ctx, "alice", "sub-1", submission.TransitionDTO{
				Action:   "submit",
				Comment:  "ready for review",
				Metadata: map[string]interface{}{"source": "web"},
			})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Submission.Status).To(Equal(submission.StatusSubmitted))
			Expect(result.ValidActions).To(BeEmpty())

			Expect(recorder.events).To(HaveLen(1))
			event := recorder.events[0]
			Expect(event.Action).To(Equal(audit.ActionSubmissionTransition))
			Expect(event.Success).To(BeTrue())
			Expect(event.Metadata).To(HaveKeyWithValue("from_status", "DRAFT"))
			Expect(event.Metadata).To(HaveKeyWithValue("to_status", "SUBMITTED"))
			Expect(event.Metadata).To(HaveKeyWithValue("source", "web"))
			Expect(event.Metadata).To(HaveKeyWithValue("comment", "ready for review"))

			Expect(publisher.published).To(HaveLen(1))
			published, ok := publisher.published[0].(*events.SubmissionTransitionedEvent)
			Expect(ok).To(BeTrue())
			Expect(published.ToStatus).To(Equal("SUBMITTED"))
			Expect(published.OwnerID).To(Equal("alice"))

			Expect(repo.comments).To(HaveLen(1))
			Expect(repo.comments[0].Body).To(Equal("ready for review"))
		})

		It("should record the question when requesting information", func() {
			seed("sub-1", "alice", submission.StatusUnderReview)

			result, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "need_info", Comment: "What is the budget?"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Submission.Status).To(Equal(submission.StatusNeedInfo))
			Expect(*result.Submission.NeedInfoQuestion).To(Equal("What is the budget?"))
			Expect(*result.Submission.ReviewerID).To(Equal("rita"))
			Expect(repo.comments[0].Body).To(Equal("Need More Info: What is the budget?"))
		})

		It("should prefix approval and rejection comments", func() {
			seed("sub-1", "alice", submission.StatusUnderReview)
			seed("sub-2", "bob", submission.StatusUnderReview)

			_, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "approve", Comment: "great idea"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Transition(ctx, "rita", "sub-2", submission.TransitionDTO{Action: "reject", Comment: "out of scope"})
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.comments[0].Body).To(Equal("Approved: great idea"))
			Expect(repo.comments[1].Body).To(Equal("Rejected: out of scope"))
			rejected, _ := repo.GetByID(ctx, "sub-2")
			Expect(*rejected.RejectionReason).To(Equal("out of scope"))
		})

		It("should reject without a reason", func() {
			seed("sub-1", "alice", submission.StatusUnderReview)

			result, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "reject"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Submission.Status).To(Equal(submission.StatusRejected))
			Expect(result.Submission.RejectionReason).To(BeNil())
			Expect(*result.Submission.ReviewerID).To(Equal("rita"))
			Expect(repo.comments).To(BeEmpty())
		})

		It("should guide a reject on an approved submission towards convert", func() {
			seed("sub-1", "alice", submission.StatusApproved)

			_, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{
				Action:   "reject",
				Metadata: map[string]interface{}{"source": "web"},
			})

			Expect(codeOf(err)).To(Equal(internal.ErrCodeInvalidTransition))
			Expect(details(err).AllowedActions).To(Equal([]string{"convert"}))
			Expect(status("sub-1")).To(Equal("APPROVED"))
			Expect(recorder.events).To(HaveLen(1))
			Expect(recorder.events[0].Success).To(BeFalse())
			Expect(recorder.events[0].Metadata).To(HaveKeyWithValue("error_code", "INVALID_TRANSITION"))
			Expect(recorder.events[0].Metadata).To(HaveKeyWithValue("source", "web"))
		})

		It("should deny a submitter before looking at the comment", func() {
			seed("sub-1", "bob", submission.StatusUnderReview)

			_, err := service.Transition(ctx, "alice", "sub-1", submission.TransitionDTO{Action: "reject"})

			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
			Expect(recorder.events).To(HaveLen(1))
			Expect(recorder.events[0].Metadata).To(HaveKeyWithValue("error_code", "PERMISSION_DENIED"))
		})

		It("should require the question once request_info is accepted", func() {
			seed("sub-1", "alice", submission.StatusUnderReview)

			_, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "request_info", Comment: "  "})

			Expect(codeOf(err)).To(Equal(internal.ErrCodeValidationFailed))
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Details.(internal.ValidationErrors).Errors[0].Code).To(Equal(string(internal.ErrCodeCommentRequired)))
			Expect(status("sub-1")).To(Equal("UNDER_REVIEW"))
			Expect(recorder.events).To(HaveLen(1))
			Expect(recorder.events[0].Success).To(BeFalse())
		})

		It("should audit a failed attempt and change nothing", func() {
			seed("sub-1", "alice", submission.StatusDraft)

			_, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "approve"})

			Expect(codeOf(err)).To(Equal(internal.ErrCodeInvalidTransition))
			Expect(status("sub-1")).To(Equal("DRAFT"))
			Expect(recorder.events).To(HaveLen(1))
			Expect(recorder.events[0].Success).To(BeFalse())
			Expect(recorder.events[0].Metadata).To(HaveKeyWithValue("error_code", "INVALID_TRANSITION"))
			Expect(publisher.published).To(BeEmpty())
		})

		It("should fail with STATUS_CHANGED when another writer wins the race", func() {
			seed("sub-1", "alice", submission.StatusUnderReview)
			repo.raceTo = string(submission.StatusRejected)

			_, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "approve", Comment: "ok"})

			Expect(errors.Is(err, internal.ErrStatusChanged)).To(BeTrue())
			Expect(repo.comments).To(BeEmpty())
			Expect(recorder.events[0].Success).To(BeFalse())
		})

		It("should not fail the transition when auditing fails", func() {
			seed("sub-1", "alice", submission.StatusSubmitted)
			recorder.err = internal.NewInfrastructureError("audit down", errors.New("timeout"))

			result, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "start_review"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Submission.Status).To(Equal(submission.StatusUnderReview))
			Expect(result.ValidActions).To(Equal([]string{"request_info", "approve", "reject"}))
		})

		It("should return 503 when permissions cannot be resolved", func() {
			seed("sub-1", "alice", submission.StatusUnderReview)
			perms.err = errors.New("connection refused")

			_, err := service.Transition(ctx, "rita", "sub-1", submission.TransitionDTO{Action: "approve"})

			Expect(internal.IsInfrastructure(err)).To(BeTrue())
			Expect(status("sub-1")).To(Equal("UNDER_REVIEW"))
		})

		It("should return not found for unknown submissions", func() {
			_, err := service.Transition(ctx, "rita", "missing", submission.TransitionDTO{Action: "approve"})
			Expect(errors.Is(err, internal.ErrSubmissionNotFound)).To(BeTrue())
		})
	})

	Describe("ValidActions", func() {
		It("should report the actor's actions", func() {
			seed("sub-1", "alice", submission.StatusUnderReview)

			resp, err := service.ValidActions(ctx, "rita", "sub-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(submission.StatusUnderReview))
			Expect(resp.ValidActions).To(ConsistOf("request_info", "approve", "reject"))
		})
	})

	Describe("comments", func() {
		BeforeEach(func() {
			seed("sub-1", "alice", submission.StatusSubmitted)
		})

		It("should append and list comments for readers", func() {
			_, err := service.AddComment(ctx, "rita", "sub-1", submission.CommentDTO{Body: " looks promising "})
			Expect(err).NotTo(HaveOccurred())

			comments, err := service.ListComments(ctx, "alice", "sub-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(comments).To(HaveLen(1))
			Expect(comments[0].Body).To(Equal("looks promising"))
			Expect(recorder.events[0].Action).To(Equal(audit.ActionCommentCreate))
		})

		It("should hide comments from users who cannot read the submission", func() {
			_, err := service.ListComments(ctx, "bob", "sub-1")
			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
		})

		It("should reject empty comments", func() {
			_, err := service.AddComment(ctx, "alice", "sub-1", submission.CommentDTO{Body: "   "})
			Expect(codeOf(err)).To(Equal(internal.ErrCodeValidationFailed))
		})
	})
})
