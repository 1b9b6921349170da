package bench

import (
	"context"
	"strings"
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

var adminCtx = user.WithCaller(context.Background(), user.Caller{Id: 1, Login: "admin", IsAdmin: true})

var ledgerStub = allocation.NewRepositoryStub()
var userRepoStub = user.NewRepoStub()
var projectsStub = project.NewDirectoryStub()
var clock = &utils.MockClock{FixedNow: time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)}

var service *ServiceImpl

func setup(t *testing.T) func() {
	joined := time.Date(2023, time.March, 12, 0, 0, 0, 0, time.UTC)
	userRepoStub.Put(user.User{Id: 10, Login: "anna", FirstName: "Anna", StoredExperience: decimal.RequireFromString("1.5"), DateOfJoining: &joined, Skills: "Go"})
	userRepoStub.Put(user.User{Id: 11, Login: "ben", FirstName: "Ben", Skills: "Java"})
	userRepoStub.Put(user.User{Id: 12, Login: "cara", FirstName: "Cara"})
	userRepoStub.Put(user.User{Id: 13, Login: "dan", FirstName: "Dan"})
	userRepoStub.Put(user.User{Id: 14, Login: "eve", FirstName: "Eve"})
	projectsStub.AddProject(project.Project{Id: 100, Name: "Apollo"})
	projectsStub.AddProject(project.Project{Id: 200, Name: "Zephyr"})

	service = NewService(ledgerStub, user.NewDirectory(userRepoStub, clock), projectsStub, 40)
	return func() {
		t.Log("Teardown after test")
		ledgerStub.Reset()
		userRepoStub.Reset()
		projectsStub.Reset()
	}
}

func put(userId, projectId, year, week int, billable, nonBillable, leave string) {
	ledgerStub.Put(allocation.Record{
		UserId:    userId,
		ProjectId: projectId,
		Year:      year,
		Week:      week,
		Hours: allocation.Hours{
			Billable:    decimal.RequireFromString(billable),
			NonBillable: decimal.RequireFromString(nonBillable),
			Leave:       decimal.RequireFromString(leave),
		},
	})
}

func userIds(rows []Row) []int {
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserId)
	}
	return ids
}

func TestServiceImpl_Report(t *testing.T) {
	t.Run("idle user is fully benched and 20 billable hours is partial", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(10, 100, 2025, 10, "0", "0", "0")
		put(11, 100, 2025, 10, "20", "0", "0")

		report, err := service.Report(adminCtx, 2025, 10)

		require.NoError(t, err)
		assert.Equal(t, []int{10}, userIds(report.FullyBenched))
		assert.Equal(t, []int{11}, userIds(report.PartialBenched))
		assert.Empty(t, report.NonBillable)
		assert.Empty(t, report.OverUtilised)
	})

	t.Run("categories are independent", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(12, 100, 2025, 10, "30", "2", "0")
		put(12, 200, 2025, 10, "0", "4", "0")
		put(13, 100, 2025, 10, "45", "0", "0")
		put(14, 100, 2025, 10, "0", "0", "40")
		_, err := ledgerStub.UpsertRemark(context.Background(), allocation.WeeklyRemark{UserId: 12, Week: 10, Remark: "internal tooling"})
		require.NoError(t, err)

		report, err := service.Report(adminCtx, 2025, 10)

		require.NoError(t, err)
		assert.Equal(t, []int{14}, userIds(report.FullyBenched), "leave alone is not activity")
		assert.Equal(t, []int{12}, userIds(report.PartialBenched))
		assert.Equal(t, []int{13}, userIds(report.OverUtilised))
		require.Len(t, report.NonBillable, 2)
		assert.Equal(t, "Apollo", report.NonBillable[0].ProjectName)
		assert.Equal(t, "2", report.NonBillable[0].ProjectHours.NonBillable.String())
		assert.Equal(t, "Zephyr", report.NonBillable[1].ProjectName)
		assert.Equal(t, "internal tooling", report.NonBillable[1].Remark)
		assert.Equal(t, "36", report.NonBillable[1].Total().String())

		summary := report.Summary()
		assert.Equal(t, 1, summary.FullyBenched)
		assert.Equal(t, 1, summary.PartialBenched)
		assert.Equal(t, 1, summary.NonBillable)
		assert.Equal(t, 1, summary.OverUtilised)
	})

	t.Run("exactly 40 hours is neither partial nor over-utilised", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(11, 100, 2025, 10, "32", "0", "8")

		report, err := service.Report(adminCtx, 2025, 10)

		require.NoError(t, err)
		assert.Empty(t, report.PartialBenched)
		assert.Empty(t, report.OverUtilised)
		assert.Empty(t, report.FullyBenched)
	})

	t.Run("rows carry tenure and skills", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(10, 100, 2025, 10, "0", "0", "0")

		report, err := service.Report(adminCtx, 2025, 10)

		require.NoError(t, err)
		require.Len(t, report.FullyBenched, 1)
		row := report.FullyBenched[0]
		assert.Equal(t, "Anna", row.Name)
		assert.Equal(t, "3.5", row.Tenure.StringFixed(1))
		assert.Equal(t, "Go", row.Skills)
	})

	t.Run("remark is matched by week number regardless of year", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(12, 100, 2024, 10, "0", "8", "0")
		_, err := ledgerStub.UpsertRemark(context.Background(), allocation.WeeklyRemark{UserId: 12, Week: 10, Remark: "onboarding"})
		require.NoError(t, err)

		report, err := service.Report(adminCtx, 2024, 10)

		require.NoError(t, err)
		require.Len(t, report.NonBillable, 1)
		assert.Equal(t, "onboarding", report.NonBillable[0].Remark)
	})

	t.Run("on bench since is the start of the unbroken benched run", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		// given
		put(10, 100, 2025, 6, "0", "0", "0")
		put(10, 100, 2025, 7, "40", "0", "0")
		put(10, 100, 2025, 8, "0", "0", "8")
		put(10, 100, 2025, 9, "0", "0", "0")
		put(10, 100, 2025, 10, "0", "0", "0")
		put(11, 100, 2025, 9, "0", "0", "0")
		put(11, 100, 2025, 10, "20", "0", "0")

		// when
		report, err := service.Report(adminCtx, 2025, 10)

		// then
		require.NoError(t, err)
		require.Len(t, report.FullyBenched, 1)
		assert.Equal(t, time.Date(2025, time.February, 24, 0, 0, 0, 0, time.UTC), report.FullyBenched[0].OnBenchSince)
		require.Len(t, report.PartialBenched, 1)
		assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), report.PartialBenched[0].OnBenchSince)
	})

	t.Run("on bench since crosses the year boundary", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(12, 100, 2024, 52, "0", "0", "0")
		put(12, 100, 2024, 53, "0", "0", "0")
		put(12, 200, 2025, 1, "0", "0", "0")

		report, err := service.Report(adminCtx, 2025, 1)

		require.NoError(t, err)
		require.Len(t, report.FullyBenched, 1)
		assert.Equal(t, time.Date(2024, time.December, 23, 0, 0, 0, 0, time.UTC), report.FullyBenched[0].OnBenchSince)
	})

	t.Run("falls back to the most recent week with data", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(11, 100, 2024, 52, "10", "0", "0")
		put(11, 100, 2025, 8, "20", "0", "0")
		put(10, 100, 2025, 3, "0", "0", "0")

		report, err := service.Report(adminCtx, 2025, 12)

		require.NoError(t, err)
		assert.Equal(t, 2025, report.RequestedYear)
		assert.Equal(t, 12, report.RequestedWeek)
		assert.Equal(t, 2025, report.ActualYear)
		assert.Equal(t, 8, report.ActualWeek)
		assert.True(t, report.Summary().IsFallback())
		assert.Equal(t, []int{11}, userIds(report.PartialBenched))
		assert.Empty(t, report.FullyBenched)
	})

	t.Run("empty ledger yields zero counts for the requested week", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		summary, err := service.Summary(adminCtx, 2025, 12)

		require.NoError(t, err)
		assert.Equal(t, Summary{RequestedYear: 2025, RequestedWeek: 12, ActualYear: 2025, ActualWeek: 12}, summary)
		assert.False(t, summary.IsFallback())
	})

	t.Run("non-admin is denied", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		ctx := user.WithCaller(context.Background(), user.Caller{Id: 11, Login: "ben"})

		_, err := service.Report(ctx, 2025, 10)

		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	})

	t.Run("invalid week is rejected, not clamped", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		put(11, 100, 2025, 8, "20", "0", "0")

		_, err := service.Report(adminCtx, 2025, 0)

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestCsvReportRendererImpl_RenderReport(t *testing.T) {
	report := Report{
		RequestedYear: 2025, RequestedWeek: 12, ActualYear: 2025, ActualWeek: 10,
		FullyBenched: []Row{{UserId: 10, Name: "Anna", Tenure: decimal.RequireFromString("3.5"), Skills: "Go", OnBenchSince: time.Date(2025, time.February, 24, 0, 0, 0, 0, time.UTC)}},
		NonBillable: []NonBillableRow{{
			Row: Row{UserId: 12, Name: "Cara", Hours: allocation.Hours{
				Billable:    decimal.NewFromInt(30),
				NonBillable: decimal.NewFromInt(6),
				Leave:       decimal.Zero,
			}},
			ProjectName:  "Zephyr",
			ProjectHours: allocation.Hours{NonBillable: decimal.NewFromInt(4)},
			Remark:       "internal, tooling",
		}},
	}

	csv, err := NewCsvReportRenderer().RenderReport(report)

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Requested week,12/2025", lines[0])
	assert.Equal(t, "Reported week,10/2025", lines[1])
	assert.Equal(t, "Fully benched,10,Anna,3.5,Go,0.00,0.00,0.00,0.00,,,,2025-02-24", lines[3])
	assert.Equal(t, `Non-billable,12,Cara,0.0,,30.00,6.00,0.00,36.00,Zephyr,4.00,"internal, tooling",`, lines[4])
}
