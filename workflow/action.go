package workflow

import (
	"strings"

	"github.com/teranos/hireflow/errors"
)

// Action is a named operation requested against a job post
type Action string

const (
	ActionSubmitForApproval Action = "submit_for_approval"
	ActionBeginReview       Action = "begin_review"
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionPublish           Action = "publish"
	ActionUnpublish         Action = "unpublish"
	ActionPause             Action = "pause"
	ActionResume            Action = "resume"
	ActionClose             Action = "close"
	ActionReopen            Action = "reopen"
	ActionCancel            Action = "cancel"
	ActionFlag              Action = "flag"
	ActionUnflag            Action = "unflag"
	ActionExpire            Action = "expire"
	ActionAutoPublish       Action = "auto_publish"
)

var allActions = []Action{
	ActionSubmitForApproval,
	ActionBeginReview,
	ActionApprove,
	ActionReject,
	ActionPublish,
	ActionUnpublish,
	ActionPause,
	ActionResume,
	ActionClose,
	ActionReopen,
	ActionCancel,
	ActionFlag,
	ActionUnflag,
	ActionExpire,
	ActionAutoPublish,
}

// AllActions returns every action in canonical order
func AllActions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

// SystemOnly reports whether only the automation scheduler may perform a
func (a Action) SystemOnly() bool {
	return a == ActionExpire || a == ActionAutoPublish
}

// ParseAction converts a user-supplied value into an Action
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", errors.Wrapf(errors.ErrInvalidRequest, "unknown workflow action %q", s)
	}
	return a, nil
}

// Role is the role an actor carries when invoking an action
type Role string

const (
	RoleJobSeeker  Role = "job_seeker"
	RoleEmployer   Role = "employer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	// RoleSystem is carried only by the automation scheduler
	RoleSystem Role = "system"
)

// ParseRole converts a token claim into a Role. The system role cannot be
// claimed from outside the process.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleJobSeeker, RoleEmployer, RoleAdmin, RoleSuperAdmin:
		return r, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidRequest, "unknown role %q", s)
	}
}

// IsAdmin reports whether r is admin or super admin
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Actor is the identity invoking an action
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActorID marks entries written by the automation scheduler
const SystemActorID = "system"

// SystemActor is the identity the automation scheduler acts as
var SystemActor = Actor{ID: SystemActorID, Role: RoleSystem}

// IsSystem reports whether the actor is the automation scheduler
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// Priority is independent of status and settable by an admin on publish
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority converts a user-supplied value into a Priority
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidRequest, "unknown priority %q", s)
	}
}

// RejectionReason is the closed set of codes an admin picks from when rejecting
type RejectionReason string

const (
	RejectionIncompleteInformation RejectionReason = "incomplete_information"
	RejectionInappropriateContent  RejectionReason = "inappropriate_content"
	RejectionDuplicatePosting      RejectionReason = "duplicate_posting"
	RejectionMisleadingInformation RejectionReason = "misleading_information"
	RejectionDiscriminatoryContent RejectionReason = "discriminatory_content"
	RejectionInvalidCompensation   RejectionReason = "invalid_compensation"
	RejectionPolicyViolation       RejectionReason = "policy_violation"
	RejectionSpam                  RejectionReason = "spam"
	// RejectionOther requires free-text notes
	RejectionOther RejectionReason = "other"
)

var rejectionReasons = []RejectionReason{
	RejectionIncompleteInformation,
	RejectionInappropriateContent,
	RejectionDuplicatePosting,
	RejectionMisleadingInformation,
	RejectionDiscriminatoryContent,
	RejectionInvalidCompensation,
	RejectionPolicyViolation,
	RejectionSpam,
	RejectionOther,
}

// RejectionReasons returns the closed set of rejection codes
func RejectionReasons() []RejectionReason {
	out := make([]RejectionReason, len(rejectionReasons))
	copy(out, rejectionReasons)
	return out
}

// ParseRejectionReason converts a user-supplied value into a RejectionReason
func ParseRejectionReason(s string) (RejectionReason, error) {
	r := RejectionReason(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range rejectionReasons {
		if r == known {
			return r, nil
		}
	}
	return "", errors.Wrapf(errors.ErrInvalidRequest, "unknown rejection reason %q", s)
}
