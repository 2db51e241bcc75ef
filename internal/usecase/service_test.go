package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	notifymock "gitlab.com/nestestates/api/agent-lifecycle-service/internal/notify/mock"
	storagemock "gitlab.com/nestestates/api/agent-lifecycle-service/internal/storage/mock"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zaptest.NewLogger(nil).Named("test")
}

const testCompanyID = "tenant-lifecycle-1"

// serviceMocks bundles the repository and notifier mocks behind a service
// under test.
type serviceMocks struct {
	agentRepo     *storagemock.AgentRepoMock
	profileRepo   *storagemock.ProfileRepoMock
	checklistRepo *storagemock.ChecklistRepoMock
	buildRepo     *storagemock.BuildQueueRepoMock
	auditRepo     *storagemock.AuditLogRepoMock
	notifier      *notifymock.NotifierMock
}

func newTestService() (*LifecycleService, *serviceMocks) {
	m := &serviceMocks{
		agentRepo:     new(storagemock.AgentRepoMock),
		profileRepo:   new(storagemock.ProfileRepoMock),
		checklistRepo: new(storagemock.ChecklistRepoMock),
		buildRepo:     new(storagemock.BuildQueueRepoMock),
		auditRepo:     new(storagemock.AuditLogRepoMock),
		notifier:      new(notifymock.NotifierMock),
	}
	svc := NewLifecycleService(m.agentRepo, m.profileRepo, m.checklistRepo, m.buildRepo, m.auditRepo, m.notifier)
	return svc, m
}

func testContext(t *testing.T) context.Context {
	ctx := tenant.WithCompanyID(context.Background(), testCompanyID)
	return logger.WithLogger(ctx, zaptest.NewLogger(t))
}

// testAgent builds an agent whose profile-independent requirements
// (qualifications, subdomain) are satisfied.
func testAgent(status model.AgentStatus, userID *string) *model.Agent {
	return &model.Agent{
		ID:             7,
		AgentID:        "agent-lc-1",
		CompanyID:      testCompanyID,
		Status:         status,
		Subdomain:      "jane-doe-1234",
		UserID:         userID,
		BranchID:       "branch-9",
		BranchName:     "Downtown",
		Qualifications: datatypes.JSON(`["licensed broker"]`),
	}
}

// testProfile satisfies every profile-derived completion requirement.
func testProfile(userID string) *model.Profile {
	bio := ""
	for len(bio) < 120 {
		bio += "Seasoned residential agent covering the downtown corridor. "
	}
	return &model.Profile{
		UserID:    userID,
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane.doe@example.com",
		Phone:     "+15550001111",
		Bio:       bio,
		AvatarURL: "https://cdn.example.com/avatars/jane.jpg",
	}
}

func strPtr(s string) *string { return &s }
