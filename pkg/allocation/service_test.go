package allocation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/event_bus"
	"github.com/benchtrack/benchtrack/internal/utils"
	"github.com/benchtrack/benchtrack/pkg/project"
	"github.com/benchtrack/benchtrack/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday of corporate week 10 of 2025 (Mar 10-14).
var now = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

var adminCtx = user.WithCaller(context.Background(), user.Caller{Id: 1, Login: "admin", IsAdmin: true})
var aliceCtx = user.WithCaller(context.Background(), user.Caller{Id: 2, Login: "alice"})
var bobCtx = user.WithCaller(context.Background(), user.Caller{Id: 3, Login: "bob"})

var repoStub = NewRepositoryStub()
var userRepoStub = user.NewRepoStub()
var projectsStub = project.NewDirectoryStub()
var clock = &utils.MockClock{FixedNow: now}

var eventBus *event_bus.EventBus
var service *ServiceImpl

func setup(t *testing.T) func() {
	clock.SetNow(now)
	userRepoStub.Put(user.User{Id: 1, Login: "admin", FirstName: "Ada", IsAdmin: true})
	userRepoStub.Put(user.User{Id: 2, Login: "alice", FirstName: "Alice"})
	userRepoStub.Put(user.User{Id: 3, Login: "bob", FirstName: "Bob"})
	projectsStub.AddProject(project.Project{Id: 100, Name: "Apollo", Status: project.StatusActive}, 2)
	projectsStub.AddProject(project.Project{Id: 200, Name: "Zephyr", Status: project.StatusActive}, 3)

	eventBus = event_bus.NewEventBus()
	service = NewService(repoStub, user.NewDirectory(userRepoStub, clock), projectsStub, clock, eventBus, 15)
	return func() {
		t.Log("Teardown after test")
		repoStub.Reset()
		userRepoStub.Reset()
		projectsStub.Reset()
	}
}

func hours(billable, nonBillable, leave int64) Hours {
	return Hours{
		Billable:    decimal.NewFromInt(billable),
		NonBillable: decimal.NewFromInt(nonBillable),
		Leave:       decimal.NewFromInt(leave),
	}
}

func TestServiceImpl_Upsert(t *testing.T) {
	t.Run("creates a record starting on the corporate Monday", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		saved, err := service.Upsert(aliceCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(30, 5, 0)})

		require.NoError(t, err)
		assert.NotZero(t, saved.Id)
		assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), saved.WeekStart)
		assert.Equal(t, "35", saved.Total().String())
		assert.Equal(t, "alice", saved.UpdatedBy)
	})

	t.Run("is idempotent", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		input := UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(20, 0, 8)}

		first, err := service.Upsert(aliceCtx, input)
		require.NoError(t, err)
		second, err := service.Upsert(aliceCtx, input)
		require.NoError(t, err)

		all := repoStub.All()
		require.Len(t, all, 1)
		assert.Equal(t, first.Id, second.Id)
		assert.Equal(t, "20", all[0].Billable.String())
		assert.Equal(t, "8", all[0].Leave.String())
	})

	t.Run("replaces all three hour fields", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		_, err := service.Upsert(aliceCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(20, 10, 8)})
		require.NoError(t, err)

		saved, err := service.Upsert(adminCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(40, 0, 0)})

		require.NoError(t, err)
		assert.Equal(t, "40", saved.Billable.String())
		assert.True(t, saved.NonBillable.IsZero())
		assert.True(t, saved.Leave.IsZero())
		assert.Equal(t, "admin", saved.UpdatedBy)
	})

	t.Run("rejects negative hours before touching storage", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		repoStub.SetUpsertError(errors.New("must not be called"))

		_, err := service.Upsert(aliceCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(-1, 0, 0)})

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("rejects week numbers outside 1-53", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		for _, week := range []int{0, 54, -3} {
			_, err := service.Upsert(adminCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: week, Hours: hours(1, 0, 0)})
			assert.ErrorIs(t, err, apperr.ErrValidation, "week %d", week)
		}
		assert.Empty(t, repoStub.All())
	})

	t.Run("rejects week 53 of a 52-week year", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// 2025 has 52 corporate weeks; week 53 would start on Jan 5 2026, which is (2026, 1)
		_, err := service.Upsert(adminCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 53, Hours: hours(30, 0, 0)})

		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Empty(t, repoStub.All())
	})

	t.Run("rejects a week start that is not the corporate Monday", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		// ISO week 10 of 2025 starts on Mar 3, corporate week 10 on Mar 10
		_, err := service.Upsert(aliceCtx, UpsertInput{
			UserId:    2,
			ProjectId: 100,
			Year:      2025,
			Week:      10,
			WeekStart: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
			Hours:     hours(8, 0, 0),
		})

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("non-admin cannot change a record that started 20 days ago", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		repoStub.Put(Record{
			UserId:    2,
			ProjectId: 100,
			Year:      2025,
			Week:      7,
			WeekStart: now.AddDate(0, 0, -20),
			Hours:     hours(10, 0, 0),
			UpdatedBy: "alice",
		})
		input := UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 7, Hours: hours(40, 0, 0)}

		_, err := service.Upsert(aliceCtx, input)
		assert.ErrorIs(t, err, apperr.ErrEditWindowExpired)

		saved, err := service.Upsert(adminCtx, input)
		require.NoError(t, err)
		assert.Equal(t, "40", saved.Billable.String())
	})

	t.Run("non-admin may still create a record for an old week", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Upsert(aliceCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 2, Hours: hours(8, 0, 0)})

		assert.NoError(t, err)
	})

	t.Run("edit window is checked before membership", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 3, WeekStart: time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC)})

		_, err := service.Upsert(bobCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 3, Hours: hours(8, 0, 0)})

		assert.ErrorIs(t, err, apperr.ErrEditWindowExpired)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Upsert(bobCtx, UpsertInput{UserId: 3, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(8, 0, 0)})

		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
		assert.Empty(t, repoStub.All())
	})

	t.Run("admin does not need membership", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Upsert(adminCtx, UpsertInput{UserId: 3, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(8, 0, 0)})

		assert.NoError(t, err)
	})

	t.Run("missing caller is denied", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Upsert(context.Background(), UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(8, 0, 0)})

		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	})

	t.Run("unknown user or project is not found", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.Upsert(adminCtx, UpsertInput{UserId: 99, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(8, 0, 0)})
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = service.Upsert(adminCtx, UpsertInput{UserId: 2, ProjectId: 999, Year: 2025, Week: 10, Hours: hours(8, 0, 0)})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Empty(t, repoStub.All())
	})

	t.Run("storage failure leaves the ledger unchanged", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		repoStub.SetTransactionError(errors.New("connection reset"))

		_, err := service.Upsert(aliceCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(8, 0, 0)})

		assert.ErrorIs(t, err, apperr.ErrStorage)
		assert.Empty(t, repoStub.All())
	})

	t.Run("publishes allocation saved event", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		var events []event_bus.AllocationSaved
		event_bus.SubscribeTyped(eventBus, event_bus.AllocationSavedType, func(e event_bus.EventT[event_bus.AllocationSaved]) error {
			events = append(events, e.Data)
			return nil
		})

		_, err := service.Upsert(aliceCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(30, 2, 0)})
		require.NoError(t, err)
		_, err = service.Upsert(aliceCtx, UpsertInput{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, Hours: hours(30, 4, 0)})
		require.NoError(t, err)

		require.Len(t, events, 2)
		assert.True(t, events[0].Created)
		assert.False(t, events[1].Created)
		assert.Equal(t, "34", events[1].TotalHours.String())
		assert.Equal(t, event_bus.SourceUpsert, events[1].Source)
	})
}

func TestServiceImpl_UpdateById(t *testing.T) {
	t.Run("replaces hours of an existing record", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		existing := repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 9, WeekStart: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), Hours: hours(8, 0, 0)})

		saved, err := service.UpdateById(aliceCtx, existing.Id, hours(16, 4, 0))

		require.NoError(t, err)
		assert.Equal(t, existing.Id, saved.Id)
		assert.Equal(t, "20", saved.Total().String())
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.UpdateById(adminCtx, 12345, hours(1, 0, 0))

		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("old record is expired for non-admin", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		existing := repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 5, WeekStart: time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC)})

		_, err := service.UpdateById(aliceCtx, existing.Id, hours(1, 0, 0))

		assert.ErrorIs(t, err, apperr.ErrEditWindowExpired)
	})
}

func TestServiceImpl_CopyForward(t *testing.T) {
	t.Run("copies previous week's hours into the current week", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 9, WeekStart: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), Hours: hours(32, 0, 8), UpdatedBy: "admin"})

		saved, err := service.CopyForward(aliceCtx, 2, 100)

		require.NoError(t, err)
		assert.Equal(t, 10, saved.Week)
		assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), saved.WeekStart)
		assert.Equal(t, "32", saved.Billable.String())
		assert.Equal(t, "8", saved.Leave.String())
		assert.Equal(t, "alice", saved.UpdatedBy)
		assert.Len(t, repoStub.All(), 2)
	})

	t.Run("missing user is a validation error", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.CopyForward(adminCtx, 0, 100)

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("missing previous week is not found and changes nothing", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		current := repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 10, WeekStart: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), Hours: hours(4, 0, 0)})

		_, err := service.CopyForward(aliceCtx, 2, 100)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
		all := repoStub.All()
		require.Len(t, all, 1)
		assert.Equal(t, current, all[0])
	})

	t.Run("reads the last corporate week of the previous year", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		clock.SetNow(time.Date(2025, time.January, 8, 9, 0, 0, 0, time.UTC))
		// 2024 starts on a Monday, so Dec 30 2024 opens its 53rd week
		repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2024, Week: 53, WeekStart: time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC), Hours: hours(16, 0, 0)})

		saved, err := service.CopyForward(aliceCtx, 2, 100)

		require.NoError(t, err)
		assert.Equal(t, 2025, saved.Year)
		assert.Equal(t, 1, saved.Week)
		assert.Equal(t, "16", saved.Billable.String())
	})

	t.Run("storage failure rolls back the copy", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 9, WeekStart: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), Hours: hours(32, 0, 8)})
		repoStub.SetTransactionError(errors.New("disk full"))

		_, err := service.CopyForward(aliceCtx, 2, 100)

		assert.ErrorIs(t, err, apperr.ErrStorage)
		assert.Len(t, repoStub.All(), 1)
	})

	t.Run("non-member cannot copy", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()
		repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 9, WeekStart: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), Hours: hours(32, 0, 8)})

		_, err := service.CopyForward(bobCtx, 2, 100)

		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
		assert.Len(t, repoStub.All(), 1)
	})
}

func TestServiceImpl_EditableAllocations(t *testing.T) {
	teardown := setup(t)
	defer teardown()
	repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 7, WeekStart: time.Date(2025, time.February, 17, 0, 0, 0, 0, time.UTC)})
	repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: 8, WeekStart: time.Date(2025, time.February, 24, 0, 0, 0, 0, time.UTC)})
	repoStub.Put(Record{UserId: 3, ProjectId: 200, Year: 2025, Week: 9, WeekStart: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)})

	view, err := service.EditableAllocations(aliceCtx, 100)

	require.NoError(t, err)
	require.Len(t, view.Weeks, 3)
	assert.Equal(t, []int{8, 9, 10}, []int{view.Weeks[0].Week, view.Weeks[1].Week, view.Weeks[2].Week})
	assert.True(t, view.Weeks[2].IsCurrentWeek)
	require.Len(t, view.Records, 1)
	assert.Equal(t, 8, view.Records[0].Week)

	_, err = service.EditableAllocations(bobCtx, 100)
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)
}

func TestServiceImpl_Get(t *testing.T) {
	teardown := setup(t)
	defer teardown()
	for week := 1; week <= 4; week++ {
		repoStub.Put(Record{UserId: 2, ProjectId: 100, Year: 2025, Week: week, Hours: hours(int64(week), 0, 0)})
	}

	t.Run("filters by weeks", func(t *testing.T) {
		records, err := service.Get(aliceCtx, 2, 100, 2025, []int{2, 4})

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 2, records[0].Week)
		assert.Equal(t, 4, records[1].Week)
	})

	t.Run("all weeks when none given", func(t *testing.T) {
		records, err := service.ListProjectWeeks(adminCtx, 100, 2025, nil)

		require.NoError(t, err)
		assert.Len(t, records, 4)
	})

	t.Run("rejects invalid weeks", func(t *testing.T) {
		_, err := service.Get(aliceCtx, 2, 100, 2025, []int{60})

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		_, err := service.Get(bobCtx, 2, 100, 2025, nil)

		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	})
}

func TestServiceImpl_UpsertRemark(t *testing.T) {
	t.Run("admin saves a trimmed remark", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		saved, err := service.UpsertRemark(adminCtx, 2, 10, "  internal training  ")

		require.NoError(t, err)
		assert.Equal(t, "internal training", saved.Remark)
		remarks, err := repoStub.GetRemarks(context.Background(), 10, []int{2})
		require.NoError(t, err)
		assert.Equal(t, "internal training", remarks[2])
	})

	t.Run("non-admin is denied", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.UpsertRemark(aliceCtx, 2, 10, "x")

		assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	})

	t.Run("remark longer than 250 characters is rejected", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.UpsertRemark(adminCtx, 2, 10, strings.Repeat("a", 251))

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("invalid week and unknown user", func(t *testing.T) {
		teardown := setup(t)
		defer teardown()

		_, err := service.UpsertRemark(adminCtx, 2, 0, "x")
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = service.UpsertRemark(adminCtx, 42, 10, "x")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
