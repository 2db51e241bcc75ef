// Package lifecycle holds the pure rules of the agent lifecycle: which status
// movements are legal and when a profile counts as complete. Nothing in this
// package touches storage or transport, so callers can evaluate rules freely
// before committing anything.
package lifecycle

import (
	"fmt"
	"sort"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// allowedTransitions is the adjacency table of legal status movements.
// A status maps to the set of statuses it may move to; absence means denial.
var allowedTransitions = map[model.AgentStatus][]model.AgentStatus{
	model.StatusDraft:          {model.StatusPendingProfile},
	model.StatusPendingProfile: {model.StatusPendingAdmin, model.StatusDraft},
	model.StatusPendingAdmin:   {model.StatusActive, model.StatusPendingProfile},
	model.StatusActive:         {model.StatusInactive, model.StatusSuspended},
	model.StatusInactive:       {model.StatusActive, model.StatusSuspended},
	model.StatusSuspended:      {model.StatusActive},
}

// transitionDescriptions label each legal edge for operator-facing output.
var transitionDescriptions = map[model.AgentStatus]map[model.AgentStatus]string{
	model.StatusDraft: {
		model.StatusPendingProfile: "Agent claimed their record and began onboarding",
	},
	model.StatusPendingProfile: {
		model.StatusPendingAdmin: "Profile completed, awaiting admin review",
		model.StatusDraft:        "Onboarding abandoned, record returned to draft",
	},
	model.StatusPendingAdmin: {
		model.StatusActive:         "Admin approved and activated the agent",
		model.StatusPendingProfile: "Admin sent the profile back for changes",
	},
	model.StatusActive: {
		model.StatusInactive:  "Agent deactivated",
		model.StatusSuspended: "Agent suspended",
	},
	model.StatusInactive: {
		model.StatusActive:    "Agent reactivated",
		model.StatusSuspended: "Agent suspended while inactive",
	},
	model.StatusSuspended: {
		model.StatusActive: "Suspension lifted, agent reactivated",
	},
}

// TransitionResult reports whether a status movement is legal and why not
// when it isn't.
type TransitionResult struct {
	Allowed bool
	// Reason is set on denial and names the legal destinations.
	Reason string
	// Description labels the edge on success.
	Description string
}

// CanTransition evaluates whether an agent may move from one status to
// another. Same-status requests are always denied; denial reasons enumerate
// the destinations that would have been accepted.
func CanTransition(from, to model.AgentStatus) TransitionResult {
	if !from.Valid() {
		return TransitionResult{Reason: fmt.Sprintf("unknown current status %q", from)}
	}
	if !to.Valid() {
		return TransitionResult{Reason: fmt.Sprintf("unknown target status %q", to)}
	}
	if from == to {
		return TransitionResult{Reason: fmt.Sprintf("agent is already in this status (%s)", from)}
	}

	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return TransitionResult{
				Allowed:     true,
				Description: transitionDescriptions[from][to],
			}
		}
	}

	return TransitionResult{
		Reason: fmt.Sprintf("cannot transition from %s to %s; allowed: %s",
			from, to, formatDestinations(allowedTransitions[from])),
	}
}

// AvailableTransitions returns the legal destinations from a status in a
// stable order. Unknown statuses yield an empty slice.
func AvailableTransitions(from model.AgentStatus) []model.AgentStatus {
	src := allowedTransitions[from]
	out := make([]model.AgentStatus, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DescribeTransition returns the display label for a legal edge, or an empty
// string when the edge does not exist.
func DescribeTransition(from, to model.AgentStatus) string {
	return transitionDescriptions[from][to]
}

func formatDestinations(dests []model.AgentStatus) string {
	if len(dests) == 0 {
		return "none"
	}
	sorted := make([]model.AgentStatus, len(dests))
	copy(sorted, dests)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	s := ""
	for i, d := range sorted {
		if i > 0 {
			s += ", "
		}
		s += string(d)
	}
	return s
}
