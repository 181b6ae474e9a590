package submission_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/permission"
	"github.com/frahmantamala/innovation-portal/internal/submission"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type panickingChecker struct{}

func (panickingChecker) CheckPermission(ctx context.Context, principalID, key string, opts ...permission.CheckOption) (bool, error) {
	panic("checker exploded")
}

type failingChecker struct {
	err error
}

func (f failingChecker) CheckPermission(ctx context.Context, principalID, key string, opts ...permission.CheckOption) (bool, error) {
	return false, f.err
}

func details(err error) submission.TransitionErrorDetails {
	appErr, ok := internal.IsAppError(err)
	Expect(ok).To(BeTrue())
	d, ok := appErr.Details.(submission.TransitionErrorDetails)
	Expect(ok).To(BeTrue())
	return d
}

func codeOf(err error) internal.ErrorCode {
	appErr, ok := internal.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected an AppError, got %v", err)
	return appErr.Code
}

var _ = Describe("Machine", func() {
	var (
		ctx     context.Context
		machine *submission.Machine
		sub     *submission.Submission
	)

	BeforeEach(func() {
		ctx = context.Background()
		machine = submission.NewMachine(newResolver(newPermissionRepository()), logger.Discard())
		sub = &submission.Submission{ID: "sub-1", UserID: "alice", Title: "Faster CI", Status: submission.StatusDraft}
	})

	Describe("transition table", func() {
		It("should define exactly one row per (status, action)", func() {
			seen := map[string]bool{}
			for _, t := range submission.Transitions() {
				key := string(t.From) + "/" + string(t.Action)
				Expect(seen).NotTo(HaveKey(key))
				seen[key] = true
			}
			Expect(seen).To(HaveLen(9))
		})

		It("should leave only ARCHIVED without outgoing transitions", func() {
			for _, status := range submission.AllStatuses {
				if status.IsTerminal() {
					Expect(submission.AllowedActions(status)).To(BeEmpty())
				} else {
					Expect(submission.AllowedActions(status)).NotTo(BeEmpty(), string(status))
				}
			}
		})

		It("should normalise legacy aliases", func() {
			Expect(submission.NormalizeAction("review")).To(Equal(submission.ActionStartReview))
			Expect(submission.NormalizeAction(" NEED_INFO ")).To(Equal(submission.ActionRequestInfo))
			Expect(submission.NormalizeAction("approve")).To(Equal(submission.ActionApprove))
		})
	})

	Describe("ValidActions", func() {
		It("should offer submit to the owner of a draft only", func() {
			Expect(machine.ValidActions(ctx, sub, "alice")).To(Equal([]string{"submit"}))
			Expect(machine.ValidActions(ctx, sub, "rita")).To(BeEmpty())
		})

		It("should list review decisions in table order", func() {
			sub.Status = submission.StatusUnderReview
			Expect(machine.ValidActions(ctx, sub, "rita")).To(Equal([]string{"request_info", "approve", "reject"}))
			Expect(machine.ValidActions(ctx, sub, "alice")).To(BeEmpty())
		})

		It("should return an empty list for terminal submissions", func() {
			sub.Status = submission.StatusArchived
			Expect(machine.ValidActions(ctx, sub, "adam")).To(BeEmpty())
		})

		It("should be repeatable and leave the submission untouched", func() {
			sub.Status = submission.StatusUnderReview
			before := *sub
			first := machine.ValidActions(ctx, sub, "rita")
			second := machine.ValidActions(ctx, sub, "rita")
			Expect(second).To(Equal(first))
			Expect(*sub).To(Equal(before))
		})

		It("should hide actions whose guard panics without failing", func() {
			// Given
			machine = submission.NewMachine(panickingChecker{}, logger.Discard())

			// When / Then
			Expect(machine.ValidActions(ctx, sub, "alice")).To(Equal([]string{"submit"}))
			sub.Status = submission.StatusUnderReview
			Expect(machine.ValidActions(ctx, sub, "rita")).To(BeEmpty())
		})

		It("should hide actions whose guard hits a store fault", func() {
			repo := newPermissionRepository()
			repo.err = errors.New("connection refused")
			machine = submission.NewMachine(newResolver(repo), logger.Discard())

			sub.Status = submission.StatusSubmitted
			Expect(machine.ValidActions(ctx, sub, "rita")).To(BeEmpty())
		})

		It("should tolerate a nil submission", func() {
			Expect(machine.ValidActions(ctx, nil, "rita")).To(BeEmpty())
		})
	})

	Describe("Apply", func() {
		It("should move a draft to submitted for the owner", func() {
			outcome, err := machine.Apply(ctx, sub, "alice", "submit")

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.From).To(Equal(submission.StatusDraft))
			Expect(outcome.To).To(Equal(submission.StatusSubmitted))
			Expect(sub.Status).To(Equal(submission.StatusDraft))
		})

		It("should deny submit for anyone but the owner", func() {
			_, err := machine.Apply(ctx, sub, "rita", "submit")

			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
			d := details(err)
			Expect(d.Reason).To(Equal(submission.DenyReasonNotOwner))
			Expect(d.CurrentStatus).To(Equal(submission.StatusDraft))
			Expect(d.ActionAttempted).To(Equal("submit"))
		})

		It("should reject actions that are not defined from the current status", func() {
			_, err := machine.Apply(ctx, sub, "rita", "approve")

			Expect(codeOf(err)).To(Equal(internal.ErrCodeInvalidTransition))
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.StatusCode).To(Equal(409))
			d := details(err)
			Expect(d.AllowedActions).To(Equal([]string{"submit"}))
			Expect(d.ActionAttempted).To(Equal("approve"))
		})

		It("should point a reject on an approved submission at convert", func() {
			sub.Status = submission.StatusApproved
			_, err := machine.Apply(ctx, sub, "rita", "reject")

			Expect(codeOf(err)).To(Equal(internal.ErrCodeInvalidTransition))
			d := details(err)
			Expect(d.CurrentStatus).To(Equal(submission.StatusApproved))
			Expect(d.ActionAttempted).To(Equal("reject"))
			Expect(d.AllowedActions).To(Equal([]string{"convert"}))
		})

		It("should reject unknown actions as invalid transitions", func() {
			_, err := machine.Apply(ctx, sub, "alice", "teleport")
			Expect(codeOf(err)).To(Equal(internal.ErrCodeInvalidTransition))
		})

		It("should accept the review alias", func() {
			sub.Status = submission.StatusSubmitted
			outcome, err := machine.Apply(ctx, sub, "rita", "review")

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Action).To(Equal(submission.ActionStartReview))
			Expect(outcome.To).To(Equal(submission.StatusUnderReview))
		})

		It("should report the missing permission", func() {
			sub.Status = submission.StatusUnderReview
			_, err := machine.Apply(ctx, sub, "victor", "approve")

			d := details(err)
			Expect(d.Reason).To(Equal(submission.DenyReasonMissingPermission))
			Expect(d.RequiredPermission).To(Equal(permission.SubmissionsApprove))
		})

		It("should require both ownership and update permission to resubmit", func() {
			sub.Status = submission.StatusNeedInfo

			outcome, err := machine.Apply(ctx, sub, "alice", "resubmit")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.To).To(Equal(submission.StatusUnderReview))

			_, err = machine.Apply(ctx, sub, "rita", "resubmit")
			Expect(details(err).Reason).To(Equal(submission.DenyReasonNotOwner))

			noraSub := &submission.Submission{ID: "sub-2", UserID: "nora", Status: submission.StatusNeedInfo}
			_, err = machine.Apply(ctx, noraSub, "nora", "resubmit")
			Expect(details(err).Reason).To(Equal(submission.DenyReasonMissingPermission))
		})

		It("should surface store faults as infrastructure errors, not denials", func() {
			repo := newPermissionRepository()
			repo.err = errors.New("connection refused")
			machine = submission.NewMachine(newResolver(repo), logger.Discard())
			sub.Status = submission.StatusUnderReview

			_, err := machine.Apply(ctx, sub, "rita", "approve")

			Expect(internal.IsInfrastructure(err)).To(BeTrue())
			Expect(codeOf(err)).To(Equal(internal.ErrCodeInfrastructureFault))
		})

		It("should deny when the guard panics", func() {
			machine = submission.NewMachine(panickingChecker{}, logger.Discard())
			sub.Status = submission.StatusUnderReview

			_, err := machine.Apply(ctx, sub, "rita", "approve")

			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
			Expect(details(err).Reason).To(Equal(submission.DenyReasonGuardError))
		})

		It("should deny when the guard fails with a non-infrastructure error", func() {
			machine = submission.NewMachine(failingChecker{err: errors.New("bad key")}, logger.Discard())
			sub.Status = submission.StatusApproved

			_, err := machine.Apply(ctx, sub, "rita", "convert")
			Expect(codeOf(err)).To(Equal(internal.ErrCodePermissionDenied))
		})

		It("should return not found for a nil submission", func() {
			_, err := machine.Apply(ctx, nil, "rita", "approve")
			Expect(errors.Is(err, internal.ErrSubmissionNotFound)).To(BeTrue())
		})

		It("should make every action valid for the same actor that ValidActions offers", func() {
			for _, status := range submission.AllStatuses {
				for _, actor := range []string{"alice", "rita", "adam", "victor"} {
					s := &submission.Submission{ID: "x", UserID: "alice", Status: status}
					for _, action := range machine.ValidActions(ctx, s, actor) {
						_, err := machine.Apply(ctx, s, actor, action)
						Expect(err).NotTo(HaveOccurred(), "%s %s %s", status, actor, action)
					}
				}
			}
		})
	})

	Describe("full lifecycle", func() {
		It("should walk a submission from draft to archived", func() {
			steps := []struct {
				actor  string
				action string
				to     submission.Status
			}{
				{"alice", "submit", submission.StatusSubmitted},
				{"rita", "start_review", submission.StatusUnderReview},
				{"rita", "request_info", submission.StatusNeedInfo},
				{"alice", "resubmit", submission.StatusUnderReview},
				{"rita", "approve", submission.StatusApproved},
				{"rita", "convert", submission.StatusConverted},
				{"adam", "archive", submission.StatusArchived},
			}

			for _, step := range steps {
				outcome, err := machine.Apply(ctx, sub, step.actor, step.action)
				Expect(err).NotTo(HaveOccurred(), step.action)
				Expect(outcome.To).To(Equal(step.to))
				sub.Status = outcome.To

				// replaying the same action is rejected
				_, err = machine.Apply(ctx, sub, step.actor, step.action)
				Expect(err).To(HaveOccurred())
			}

			Expect(machine.ValidActions(ctx, sub, "adam")).To(BeEmpty())
		})
	})
})
