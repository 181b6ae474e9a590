package submission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/permission"
)

type Action string

const (
	ActionSubmit      Action = "submit"
	ActionStartReview Action = "start_review"
	ActionRequestInfo Action = "request_info"
	ActionResubmit    Action = "resubmit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionConvert     Action = "convert"
	ActionArchive     Action = "archive"
)

var actionAliases = map[string]Action{
	"review":    ActionStartReview,
	"need_info": ActionRequestInfo,
}

// NormalizeAction lower-cases raw and maps legacy aliases to canonical action names.
func NormalizeAction(raw string) Action {
	a := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := actionAliases[a]; ok {
		return canonical
	}
	return Action(a)
}

// PermissionChecker is the capability guards use to ask authorization questions.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, principalID, key string, opts ...permission.CheckOption) (bool, error)
}

// Guard decides whether actorID may fire a transition on the submission snapshot.
// Guards must not mutate anything.
type Guard func(ctx context.Context, sub Submission, actorID string, checker PermissionChecker) (bool, error)

type Transition struct {
	From   Status
	To     Status
	Action Action
	// Permission and OwnerOnly describe the guard for error details.
	Permission string
	OwnerOnly  bool
	Guard      Guard
}

func requireOwner() Guard {
	return func(_ context.Context, sub Submission, actorID string, _ PermissionChecker) (bool, error) {
		return sub.IsOwnedBy(actorID), nil
	}
}

func requirePermission(key string) Guard {
	return func(ctx context.Context, _ Submission, actorID string, checker PermissionChecker) (bool, error) {
		return checker.CheckPermission(ctx, actorID, key)
	}
}

func requireOwnerWithPermission(key string) Guard {
	return func(ctx context.Context, sub Submission, actorID string, checker PermissionChecker) (bool, error) {
		if !sub.IsOwnedBy(actorID) {
			return false, nil
		}
		return checker.CheckPermission(ctx, actorID, key, permission.WithOwner(sub.UserID))
	}
}

var transitions = []Transition{
	{From: StatusDraft, To: StatusSubmitted, Action: ActionSubmit, OwnerOnly: true, Guard: requireOwner()},
	{From: StatusSubmitted, To: StatusUnderReview, Action: ActionStartReview, Permission: permission.SubmissionsReview, Guard: requirePermission(permission.SubmissionsReview)},
	{From: StatusUnderReview, To: StatusNeedInfo, Action: ActionRequestInfo, Permission: permission.SubmissionsReview, Guard: requirePermission(permission.SubmissionsReview)},
	{From: StatusNeedInfo, To: StatusUnderReview, Action: ActionResubmit, Permission: permission.SubmissionsUpdateOwn, OwnerOnly: true, Guard: requireOwnerWithPermission(permission.SubmissionsUpdateOwn)},
	{From: StatusUnderReview, To: StatusApproved, Action: ActionApprove, Permission: permission.SubmissionsApprove, Guard: requirePermission(permission.SubmissionsApprove)},
	{From: StatusUnderReview, To: StatusRejected, Action: ActionReject, Permission: permission.SubmissionsReject, Guard: requirePermission(permission.SubmissionsReject)},
	{From: StatusApproved, To: StatusConverted, Action: ActionConvert, Permission: permission.InitiativesCreate, Guard: requirePermission(permission.InitiativesCreate)},
	{From: StatusRejected, To: StatusArchived, Action: ActionArchive, Permission: permission.SubmissionsArchive, Guard: requirePermission(permission.SubmissionsArchive)},
	{From: StatusConverted, To: StatusArchived, Action: ActionArchive, Permission: permission.SubmissionsArchive, Guard: requirePermission(permission.SubmissionsArchive)},
}

// Transitions returns a copy of the transition table in declaration order.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// AllowedActions lists every action defined from status, ignoring guards.
func AllowedActions(status Status) []string {
	actions := make([]string, 0)
	for _, t := range transitions {
		if t.From == status {
			actions = append(actions, string(t.Action))
		}
	}
	return actions
}

func lookup(status Status, action Action) (Transition, bool) {
	for _, t := range transitions {
		if t.From == status && t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

type TransitionErrorDetails struct {
	CurrentStatus      Status   `json:"current_status"`
	ActionAttempted    string   `json:"action_attempted"`
	AllowedActions     []string `json:"allowed_actions,omitempty"`
	RequiredPermission string   `json:"required_permission,omitempty"`
	Reason             string   `json:"reason,omitempty"`
}

const (
	DenyReasonNotOwner          = "not_owner"
	DenyReasonMissingPermission = "missing_permission"
	DenyReasonGuardError        = "guard_error"
)

type Outcome struct {
	From   Status `json:"from"`
	To     Status `json:"to"`
	Action Action `json:"action"`
}

type guardPanic struct {
	value interface{}
}

func (g *guardPanic) Error() string {
	return fmt.Sprintf("guard panicked: %v", g.value)
}

// Machine evaluates the submission lifecycle. It never persists anything.
type Machine struct {
	checker PermissionChecker
	logger  *slog.Logger
}

func NewMachine(checker PermissionChecker, logger *slog.Logger) *Machine {
	return &Machine{
		checker: checker,
		logger:  logger,
	}
}

func (m *Machine) runGuard(ctx context.Context, t Transition, sub Submission, actorID string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &guardPanic{value: r}
		}
	}()
	return t.Guard(ctx, sub, actorID, m.checker)
}

// ValidActions returns the canonical actions actorID may fire from the submission's
// current status, in table order. A guard that errors or panics only hides its own action.
func (m *Machine) ValidActions(ctx context.Context, sub *Submission, actorID string) []string {
	actions := make([]string, 0)
	if sub == nil {
		return actions
	}

	snapshot := *sub
	for _, t := range transitions {
		if t.From != snapshot.Status {
			continue
		}
		ok, err := m.runGuard(ctx, t, snapshot, actorID)
		if err != nil {
			m.logger.WarnContext(ctx, "transition guard failed, hiding action",
				"submission_id", snapshot.ID,
				"action", t.Action,
				"actor_id", actorID,
				"error", err)
			continue
		}
		if ok {
			actions = append(actions, string(t.Action))
		}
	}
	return actions
}

// Apply decides whether actorID may fire action on the submission and returns the
// resulting status. Errors are *internal.AppError of kind INVALID_TRANSITION,
// PERMISSION_DENIED or INFRASTRUCTURE_FAULT.
func (m *Machine) Apply(ctx context.Context, sub *Submission, actorID string, action string) (*Outcome, error) {
	if sub == nil {
		return nil, internal.ErrSubmissionNotFound
	}

	snapshot := *sub
	canonical := NormalizeAction(action)

	t, ok := lookup(snapshot.Status, canonical)
	if !ok {
		return nil, internal.NewConflictError(
			fmt.Sprintf("Cannot %s a submission in %s status", canonical, snapshot.Status),
			internal.ErrCodeInvalidTransition,
		).WithDetails(TransitionErrorDetails{
			CurrentStatus:   snapshot.Status,
			ActionAttempted: string(canonical),
			AllowedActions:  AllowedActions(snapshot.Status),
		})
	}

	allowed, err := m.runGuard(ctx, t, snapshot, actorID)
	details := TransitionErrorDetails{
		CurrentStatus:      snapshot.Status,
		ActionAttempted:    string(canonical),
		RequiredPermission: t.Permission,
	}

	if err != nil {
		if internal.IsInfrastructure(err) {
			m.logger.ErrorContext(ctx, "transition guard hit an infrastructure fault",
				"submission_id", snapshot.ID,
				"action", canonical,
				"error", err)
			return nil, internal.NewInfrastructureError("Unable to evaluate permissions, try again later", err).
				WithDetails(details)
		}

		m.logger.WarnContext(ctx, "transition guard failed, denying",
			"submission_id", snapshot.ID,
			"action", canonical,
			"error", err)
		details.Reason = DenyReasonGuardError
		return nil, internal.NewForbiddenError("You are not allowed to perform this action", internal.ErrCodePermissionDenied).
			WithCause(err).
			WithDetails(details)
	}

	if !allowed {
		details.Reason = DenyReasonMissingPermission
		if t.OwnerOnly && !snapshot.IsOwnedBy(actorID) {
			details.Reason = DenyReasonNotOwner
		}
		return nil, internal.NewForbiddenError("You are not allowed to perform this action", internal.ErrCodePermissionDenied).
			WithDetails(details)
	}

	return &Outcome{
		From:   snapshot.Status,
		To:     t.To,
		Action: t.Action,
	}, nil
}
