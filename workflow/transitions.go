package workflow

// Rule is one row of the transition table: action from any of From leads to To.
type Rule struct {
	Action Action
	From   []Status
	To     Status
}

// TransitionTable maps (action, from-status) to the next status.
// It is the single source of truth for legal moves.
type TransitionTable struct {
	rules map[Action]map[Status]Status
}

// NewTransitionTable builds a table from rules. Later rules override earlier ones
// for the same (action, from) pair.
func NewTransitionTable(rules []Rule) *TransitionTable {
	t := &TransitionTable{rules: make(map[Action]map[Status]Status)}
	for _, r := range rules {
		if t.rules[r.Action] == nil {
			t.rules[r.Action] = make(map[Status]Status)
		}
		for _, from := range r.From {
			t.rules[r.Action][from] = r.To
		}
	}
	return t
}

func nonTerminal() []Status {
	var out []Status
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// DefaultRules is the job post lifecycle.
var DefaultRules = []Rule{
	{ActionSubmitForApproval, []Status{StatusDraft}, StatusPendingApproval},
	{ActionBeginReview, []Status{StatusPendingApproval}, StatusUnderReview},
	// publish_immediately redirects approve to Active, see Next
	{ActionApprove, []Status{StatusPendingApproval, StatusUnderReview}, StatusApproved},
	{ActionReject, []Status{StatusPendingApproval, StatusUnderReview, StatusApproved}, StatusRejected},
	{ActionPublish, []Status{StatusApproved}, StatusActive},
	{ActionUnpublish, []Status{StatusActive}, StatusApproved},
	{ActionPause, []Status{StatusActive}, StatusPaused},
	{ActionResume, []Status{StatusPaused}, StatusActive},
	{ActionClose, []Status{StatusActive, StatusPaused}, StatusClosed},
	{ActionReopen, []Status{StatusClosed}, StatusActive},
	{ActionCancel, nonTerminal(), StatusCancelled},
	{ActionFlag, []Status{StatusActive}, StatusFlagged},
	// unflag restores the recorded pre-flag status, see Next
	{ActionUnflag, []Status{StatusFlagged}, StatusActive},
	{ActionExpire, []Status{StatusActive}, StatusExpired},
	{ActionAutoPublish, []Status{StatusApproved}, StatusActive},
}

// DefaultTable is the table the engine uses unless configured otherwise.
var DefaultTable = NewTransitionTable(DefaultRules)

// Lookup returns the static target of action from the given status.
func (t *TransitionTable) Lookup(action Action, from Status) (Status, bool) {
	to, ok := t.rules[action][from]
	return to, ok
}

// Next resolves the target status for action applied to post, including the
// payload- and history-dependent targets of approve and unflag.
func (t *TransitionTable) Next(action Action, post *JobPost, payload Payload) (Status, bool) {
	to, ok := t.Lookup(action, post.Status)
	if !ok {
		return "", false
	}
	switch action {
	case ActionApprove:
		if payload.PublishImmediately {
			return StatusActive, true
		}
	case ActionUnflag:
		if t.isRestorable(post.PreFlagStatus) {
			return post.PreFlagStatus, true
		}
	}
	return to, true
}

// isRestorable reports whether s is a status flag can be applied from
func (t *TransitionTable) isRestorable(s Status) bool {
	_, ok := t.Lookup(ActionFlag, s)
	return ok
}

// Permits reports whether an audit entry (action, from -> to) is a legal move,
// accepting the alternate targets Next can produce.
func (t *TransitionTable) Permits(action Action, from, to Status) bool {
	static, ok := t.Lookup(action, from)
	if !ok {
		return false
	}
	if to == static {
		return true
	}
	switch action {
	case ActionApprove:
		return to == StatusActive
	case ActionUnflag:
		return t.isRestorable(to)
	}
	return false
}

// AvailableActions lists actions with a table entry for from, in canonical order.
func (t *TransitionTable) AvailableActions(from Status) []Action {
	var out []Action
	for _, a := range allActions {
		if _, ok := t.rules[a][from]; ok {
			out = append(out, a)
		}
	}
	return out
}

// sources lists the statuses action may be applied from, in lifecycle order.
func (t *TransitionTable) sources(action Action) []Status {
	var out []Status
	for _, s := range allStatuses {
		if _, ok := t.rules[action][s]; ok {
			out = append(out, s)
		}
	}
	return out
}
