package lifecycle

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
)

// MinBioLength is the minimum biography length, in characters, for the bio
// requirement to count as met.
const MinBioLength = 100

// Completion requirement labels, in evaluation order. The order is fixed so
// that Missing reads the same way in every report.
const (
	RequirementName           = "full name"
	RequirementContact        = "email and phone"
	RequirementBio            = "bio of at least 100 characters"
	RequirementAvatar         = "profile photo"
	RequirementQualifications = "at least one qualification"
	RequirementSubdomain      = "site subdomain"
)

const requirementCount = 6

// CompletionReport is the result of evaluating the profile requirements.
type CompletionReport struct {
	// Pct is the rounded completion percentage (0, 17, 33, 50, 67, 83, 100).
	Pct int
	// Complete is true only when every requirement is met.
	Complete bool
	// Missing lists unmet requirement labels in evaluation order.
	Missing []string
}

// CalculateCompletion evaluates the six profile requirements for an agent.
// Each requirement carries equal weight. A nil profile fails every
// profile-derived requirement; agent-derived requirements (qualifications,
// subdomain) are evaluated regardless.
func CalculateCompletion(profile *model.Profile, agent *model.Agent) CompletionReport {
	type check struct {
		label string
		met   bool
	}

	var p model.Profile
	if profile != nil {
		p = *profile
	}

	checks := []check{
		{RequirementName, strings.TrimSpace(p.FirstName) != "" && strings.TrimSpace(p.LastName) != ""},
		{RequirementContact, strings.TrimSpace(p.Email) != "" && strings.TrimSpace(p.Phone) != ""},
		{RequirementBio, utf8.RuneCountInString(strings.TrimSpace(p.Bio)) >= MinBioLength},
		{RequirementAvatar, strings.TrimSpace(p.AvatarURL) != ""},
		{RequirementQualifications, hasQualifications(agent)},
		{RequirementSubdomain, agent != nil && strings.TrimSpace(agent.Subdomain) != ""},
	}

	report := CompletionReport{}
	met := 0
	for _, c := range checks {
		if c.met {
			met++
		} else {
			report.Missing = append(report.Missing, c.label)
		}
	}

	report.Pct = int(math.Round(float64(met) / requirementCount * 100))
	report.Complete = met == requirementCount
	return report
}

// hasQualifications reports whether the agent's qualifications column holds a
// non-empty JSON array. Malformed JSON counts as no qualifications.
func hasQualifications(agent *model.Agent) bool {
	if agent == nil || len(agent.Qualifications) == 0 {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(agent.Qualifications, &items); err != nil {
		return false
	}
	return len(items) > 0
}
