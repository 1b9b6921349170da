package overallocation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/utils"
	"github.com/benchtrack/benchtrack/pkg/allocation"
	"github.com/benchtrack/benchtrack/pkg/project"
	"github.com/benchtrack/benchtrack/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithCaller(context.Background(), user.Caller{Id: 2, Login: "alice"})

var repoStub = allocation.NewRepositoryStub()
var projectsStub = project.NewDirectoryStub()
var userRepoStub = user.NewRepoStub()

var checker *CheckerImpl

func setup(t *testing.T) func() {
	userRepoStub.Put(user.User{Id: 2, Login: "alice", FirstName: "Alice", LastName: "Smith"})
	projectsStub.AddProject(project.Project{Id: 100, Name: "Apollo"})
	projectsStub.AddProject(project.Project{Id: 200, Name: "Zephyr", Status: project.StatusOnHold})
	projectsStub.AddProject(project.Project{Id: 300, Name: "Borealis"})
	clock := &utils.MockClock{FixedNow: time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)}
	checker = NewChecker(repoStub, user.NewDirectory(userRepoStub, clock), projectsStub, 40)
	return func() {
		t.Log("Teardown after test")
		repoStub.Reset()
		projectsStub.Reset()
		userRepoStub.Reset()
	}
}

func hours(billable, nonBillable, leave int64) allocation.Hours {
	return allocation.Hours{
		Billable:    decimal.NewFromInt(billable),
		NonBillable: decimal.NewFromInt(nonBillable),
		Leave:       decimal.NewFromInt(leave),
	}
}

func put(userId, projectId int, h allocation.Hours) {
	repoStub.Put(allocation.Record{UserId: userId, ProjectId: projectId, Year: 2025, Week: 10, Hours: h})
}

func TestCheckerImpl_Check(t *testing.T) {
	t.Run("no existing records and 45 proposed hours", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		result, err := checker.Check(ctx, CheckInput{UserId: 2, Year: 2025, Week: 10, CurrentProjectId: 100, Proposed: hours(45, 0, 0)})

		require.NoError(t, err)
		assert.Equal(t, "0", result.CurrentTotal.String())
		assert.Equal(t, "45", result.NewTotal.String())
		assert.True(t, result.IsOverallocated)
		assert.Equal(t, "5", result.OverBy.String())
		assert.Equal(t, "40", result.Limit.String())
		assert.Empty(t, result.Projects)
	})

	t.Run("replaces the current project's hours with the proposal", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(2, 100, hours(20, 0, 0))
		put(2, 200, hours(10, 2, 0))

		result, err := checker.Check(ctx, CheckInput{UserId: 2, Year: 2025, Week: 10, CurrentProjectId: 100, Proposed: hours(24, 0, 4)})

		require.NoError(t, err)
		assert.Equal(t, "32", result.CurrentTotal.String())
		assert.Equal(t, "20", result.CurrentProjectHours.String())
		assert.Equal(t, "28", result.NewProjectHours.String())
		assert.Equal(t, "40", result.NewTotal.String())
		assert.False(t, result.IsOverallocated)
		assert.True(t, result.OverBy.IsZero())
	})

	t.Run("projects are ordered by total then name", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(2, 100, hours(8, 0, 0))
		put(2, 200, hours(30, 0, 0))
		put(2, 300, hours(8, 0, 0))

		result, err := checker.Check(ctx, CheckInput{UserId: 2, Year: 2025, Week: 10, CurrentProjectId: 100})

		require.NoError(t, err)
		require.Len(t, result.Projects, 3)
		assert.Equal(t, []string{"Zephyr", "Apollo", "Borealis"}, []string{result.Projects[0].Name, result.Projects[1].Name, result.Projects[2].Name})
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := checker.Check(ctx, CheckInput{UserId: 2, Year: 2025, Week: 54, CurrentProjectId: 100})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = checker.Check(ctx, CheckInput{UserId: 2, Year: 2025, Week: 10, CurrentProjectId: 100, Proposed: hours(0, -1, 0)})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("requires a caller", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := checker.Check(context.Background(), CheckInput{UserId: 2, Year: 2025, Week: 10, CurrentProjectId: 100})

		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	})
}

func TestCheckerImpl_UserWeekBreakdown(t *testing.T) {
	t.Run("sums categories across projects", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(2, 100, hours(30, 0, 0))
		put(2, 200, hours(8, 4, 2))

		b, err := checker.UserWeekBreakdown(ctx, 2, 10, 2025)

		require.NoError(t, err)
		assert.Equal(t, "Alice Smith", b.Name)
		assert.Equal(t, "38", b.Totals.Billable.String())
		assert.Equal(t, "4", b.Totals.NonBillable.String())
		assert.Equal(t, "2", b.Totals.Leave.String())
		assert.True(t, b.IsOverallocated)
		assert.Equal(t, "4", b.OverBy.String())
		assert.Len(t, b.Projects, 2)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := checker.UserWeekBreakdown(ctx, 99, 10, 2025)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestHandler_Check(t *testing.T) {
	teardown := setup(t)
	defer teardown()
	put(2, 200, hours(30, 0, 0))
	handler := NewHandler(checker)

	t.Run("returns the projected totals", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/api/allocation/check-overallocation?userId=2&week=10&year=2025&currentProjectId=100&newBillable=12.5", nil).WithContext(ctx)
		rr := httptest.NewRecorder()

		handler.Check(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var body CheckResultDTO
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "42.5", body.NewTotal.String())
		assert.Equal(t, "2.5", body.OverBy.String())
		assert.True(t, body.IsOverallocated)
		require.Len(t, body.Allocations, 1)
		assert.Equal(t, "Zephyr", body.Allocations[0].ProjectName)
		assert.Equal(t, "On Hold", body.Allocations[0].ProjectStatus)
	})

	t.Run("rejects non numeric hours", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/api/allocation/check-overallocation?userId=2&week=10&year=2025&currentProjectId=100&newLeave=abc", nil).WithContext(ctx)
		rr := httptest.NewRecorder()

		handler.Check(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
