package model

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Ensure gofakeit is seeded. It might already be seeded by factories.go's init,
// but adding it here ensures this file is self-sufficient if used independently.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// --- NATS Payload Factories ---

// NewProfileUpdatedPayload creates a ProfileUpdatedPayload with default fake data.
func NewProfileUpdatedPayload(overrideDefaults ...*ProfileUpdatedPayload) *ProfileUpdatedPayload {
	base := &ProfileUpdatedPayload{
		AgentID:   uuid.NewString(),
		CompanyID: "tenant_" + gofakeit.LetterN(10),
		UserID:    uuid.NewString(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.AgentID != "" {
			base.AgentID = ovr.AgentID
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		if ovr.UserID != "" {
			base.UserID = ovr.UserID
		}
	}
	return base
}

// NewAgentDetectedPayload creates an AgentDetectedPayload with default fake data.
func NewAgentDetectedPayload(overrideDefaults ...*AgentDetectedPayload) *AgentDetectedPayload {
	base := &AgentDetectedPayload{
		BranchID:   uuid.NewString(),
		BranchName: gofakeit.City(),
		CompanyID:  "tenant_" + gofakeit.LetterN(10),
		AgentName:  gofakeit.Name(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.BranchID != "" {
			base.BranchID = ovr.BranchID
		}
		if ovr.BranchName != "" {
			base.BranchName = ovr.BranchName
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		if ovr.AgentName != "" {
			base.AgentName = ovr.AgentName
		}
	}
	return base
}

// NewLifecycleCommandPayload creates a LifecycleCommandPayload with default fake data.
func NewLifecycleCommandPayload(overrideDefaults ...*LifecycleCommandPayload) *LifecycleCommandPayload {
	base := &LifecycleCommandPayload{
		AgentID:   uuid.NewString(),
		CompanyID: "tenant_" + gofakeit.LetterN(10),
		ActorID:   "admin-" + gofakeit.DigitN(4),
		Reason:    gofakeit.Sentence(6),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.AgentID != "" {
			base.AgentID = ovr.AgentID
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		if ovr.ActorID != "" {
			base.ActorID = ovr.ActorID
		}
		if ovr.Reason != "" {
			base.Reason = ovr.Reason
		}
		if ovr.QueueBuild {
			base.QueueBuild = true
		}
	}
	return base
}

// NewRebuildCommandPayload creates a RebuildCommandPayload with default fake data.
func NewRebuildCommandPayload(overrideDefaults ...*RebuildCommandPayload) *RebuildCommandPayload {
	base := &RebuildCommandPayload{
		AgentID:       uuid.NewString(),
		CompanyID:     "tenant_" + gofakeit.LetterN(10),
		Priority:      int(PriorityNormal),
		TriggerReason: TriggerManual,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.AgentID != "" {
			base.AgentID = ovr.AgentID
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		if ovr.Priority != 0 {
			base.Priority = ovr.Priority
		}
		if ovr.TriggerReason != "" {
			base.TriggerReason = ovr.TriggerReason
		}
	}
	return base
}
