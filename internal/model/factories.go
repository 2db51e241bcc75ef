package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

// RandomQualifications generates a random qualifications array for testing.
func RandomQualifications() datatypes.JSON {
	items := []string{gofakeit.JobTitle(), gofakeit.JobTitle()}
	bytes, _ := json.Marshal(items)
	return datatypes.JSON(bytes)
}

// RandomJSONBMap generates JSON data from a map for testing.
func RandomJSONBMap(data map[string]interface{}) datatypes.JSON {
	bytes, _ := json.Marshal(data)
	return datatypes.JSON(bytes)
}

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewAgent creates a new Agent instance with default fake data.
func NewAgent(overrideDefaults ...*Agent) *Agent {
	name := strings.ToLower(gofakeit.LastName())
	base := &Agent{
		AgentID:        uuid.NewString(),
		CompanyID:      "tenant_" + gofakeit.LetterN(10),
		Status:         StatusDraft,
		Subdomain:      fmt.Sprintf("%s-%s", name, gofakeit.DigitN(4)),
		BranchID:       gofakeit.UUID(),
		BranchName:     gofakeit.City(),
		Qualifications: RandomQualifications(),
		SocialLinks:    RandomJSONBMap(map[string]interface{}{"linkedin": gofakeit.URL(), "instagram": gofakeit.URL()}),
		CreatedAt:      utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:      utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.AgentID != "" {
			base.AgentID = ovr.AgentID
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Subdomain != "" {
			base.Subdomain = ovr.Subdomain
		}
		if ovr.BranchID != "" {
			base.BranchID = ovr.BranchID
		}
		if ovr.BranchName != "" {
			base.BranchName = ovr.BranchName
		}
		if ovr.UserID != nil {
			base.UserID = ovr.UserID
		}
		if len(ovr.Qualifications) > 0 {
			base.Qualifications = ovr.Qualifications
		}
		if len(ovr.SocialLinks) > 0 {
			base.SocialLinks = ovr.SocialLinks
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewProfile creates a Profile instance with default fake data that satisfies
// every completion requirement.
func NewProfile(overrideDefaults ...*Profile) *Profile {
	base := &Profile{
		UserID:    uuid.NewString(),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Email:     gofakeit.Email(),
		Phone:     gofakeit.Phone(),
		Bio:       gofakeit.Paragraph(1, 4, 12, " "),
		AvatarURL: gofakeit.URL(),
		CreatedAt: utils.Now().Add(-24 * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.UserID != "" {
			base.UserID = ovr.UserID
		}
		if ovr.FirstName != "" {
			base.FirstName = ovr.FirstName
		}
		if ovr.LastName != "" {
			base.LastName = ovr.LastName
		}
		if ovr.Email != "" {
			base.Email = ovr.Email
		}
		if ovr.Phone != "" {
			base.Phone = ovr.Phone
		}
		if ovr.Bio != "" {
			base.Bio = ovr.Bio
		}
		if ovr.AvatarURL != "" {
			base.AvatarURL = ovr.AvatarURL
		}
	}
	return base
}

// NewChecklist creates an OnboardingChecklist instance with default fake data.
func NewChecklist(overrideDefaults ...*OnboardingChecklist) *OnboardingChecklist {
	base := &OnboardingChecklist{
		AgentID:   uuid.NewString(),
		CompanyID: "tenant_" + gofakeit.LetterN(10),
		CreatedAt: utils.Now().Add(-48 * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.AgentID != "" {
			base.AgentID = ovr.AgentID
		}
		if ovr.CompanyID != "" {
			base.CompanyID = ovr.CompanyID
		}
		base.UserCreated = ovr.UserCreated
		base.WelcomeEmailSent = ovr.WelcomeEmailSent
		base.ProfileCompleted = ovr.ProfileCompleted
		base.AdminApproved = ovr.AdminApproved
		base.SiteDeployed = ovr.SiteDeployed
		base.ProfileCompletionPct = ovr.ProfileCompletionPct
	}
	return base
}

// NewBuildQueueEntry creates a BuildQueueEntry instance with default fake data.
func NewBuildQueueEntry(overrideDefaults ...*BuildQueueEntry) *BuildQueueEntry {
	base := &BuildQueueEntry{
		ID:            uuid.NewString(),
		AgentID:       uuid.NewString(),
		CompanyID:     "tenant_" + gofakeit.LetterN(10),
		Priority:      PriorityNormal,
		TriggerReason: TriggerProfileUpdated,
		Status:        BuildStatusPending,
		CreatedAt:     utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
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
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
	}
	return base
}
