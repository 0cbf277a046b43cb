package workflow

import "fmt"

// scope limits a grant to posts the actor owns, or not at all
type scope int

const (
	scopeAny scope = iota
	scopeOwner
)

// Decision is the typed outcome of a permission check
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Gate resolves whether an actor may invoke an action on a job post.
// The whole policy lives in one role matrix consulted once per action.
type Gate struct {
	grants map[Role]map[Action]scope
}

// NewGate returns the gate with the default job post policy.
func NewGate() *Gate {
	everything := make(map[Action]scope, len(allActions))
	for _, a := range allActions {
		if !a.SystemOnly() {
			everything[a] = scopeAny
		}
	}
	return &Gate{grants: map[Role]map[Action]scope{
		RoleEmployer: {
			ActionSubmitForApproval: scopeOwner,
			ActionPause:             scopeOwner,
			ActionResume:            scopeOwner,
			ActionClose:             scopeOwner,
			ActionReopen:            scopeOwner,
			ActionCancel:            scopeOwner,
		},
		RoleAdmin:      everything,
		RoleSuperAdmin: everything,
		RoleSystem: {
			ActionAutoPublish: scopeAny,
			ActionExpire:      scopeAny,
		},
	}}
}

// Authorize decides whether actor may perform action on post.
func (g *Gate) Authorize(actor Actor, post *JobPost, action Action) Decision {
	if actor.ID == "" {
		return deny("anonymous actor")
	}
	sc, ok := g.grants[actor.Role][action]
	if !ok {
		return deny("role %q may not %s", actor.Role, action)
	}
	if sc == scopeOwner && !post.OwnedBy(actor.ID) {
		return deny("actor %s does not own job post %s", actor.ID, post.ID)
	}
	return allow()
}

// AuthorizeView decides whether actor may read a post's history and available actions.
func (g *Gate) AuthorizeView(actor Actor, post *JobPost) Decision {
	switch {
	case actor.Role.IsAdmin():
		return allow()
	case actor.Role == RoleEmployer && post.OwnedBy(actor.ID):
		return allow()
	}
	return deny("actor %s may not view job post %s", actor.ID, post.ID)
}

// AuthorizeEmployerHistory decides whether actor may read an employer's workflow history.
func (g *Gate) AuthorizeEmployerHistory(actor Actor, employerID string) Decision {
	switch {
	case actor.Role.IsAdmin():
		return allow()
	case actor.Role == RoleEmployer && actor.ID != "" && actor.ID == employerID:
		return allow()
	}
	return deny("actor %s may not view history of employer %s", actor.ID, employerID)
}

// AuthorizeBulk decides whether actor may run bulk operations.
func (g *Gate) AuthorizeBulk(actor Actor) Decision {
	if actor.Role.IsAdmin() {
		return allow()
	}
	return deny("bulk operations require an admin role")
}

// AuthorizeStats decides whether actor may read status counts.
func (g *Gate) AuthorizeStats(actor Actor) Decision {
	if actor.Role.IsAdmin() {
		return allow()
	}
	return deny("stats require an admin role")
}
