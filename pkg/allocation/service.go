package allocation

import (
	"context"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/event_bus"
	"github.com/benchtrack/benchtrack/internal/utils"
	"github.com/benchtrack/benchtrack/pkg/corporate_week"
	"github.com/benchtrack/benchtrack/pkg/project"
	"github.com/benchtrack/benchtrack/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Get(ctx context.Context, userId int, projectId int, year int, weeks []int) ([]Record, error)
	ListProjectWeeks(ctx context.Context, projectId int, year int, weeks []int) ([]Record, error)
	EditableAllocations(ctx context.Context, projectId int) (EditableView, error)
	Upsert(ctx context.Context, in UpsertInput) (Record, error)
	UpdateById(ctx context.Context, id int, hours Hours) (Record, error)
	// CopyForward copies the previous corporate week's hours of (userId, projectId) into the current week.
	CopyForward(ctx context.Context, userId int, projectId int) (Record, error)
	UpsertRemark(ctx context.Context, userId int, week int, remark string) (WeeklyRemark, error)
}

type ServiceImpl struct {
	repo           Repository
	users          user.Directory
	projects       project.Directory
	clock          utils.Clock
	eventBus       *event_bus.EventBus
	editWindowDays int
}

func NewService(
	repo Repository,
	users user.Directory,
	projects project.Directory,
	clock utils.Clock,
	eventBus *event_bus.EventBus,
	editWindowDays int,
) *ServiceImpl {
	if editWindowDays <= 0 {
		editWindowDays = corporate_week.DefaultEditWindowDays
	}
	return &ServiceImpl{
		repo:           repo,
		users:          users,
		projects:       projects,
		clock:          clock,
		eventBus:       eventBus,
		editWindowDays: editWindowDays,
	}
}

func (s *ServiceImpl) Get(ctx context.Context, userId int, projectId int, year int, weeks []int) ([]Record, error) {
	if err := s.checkProjectAccess(ctx, projectId); err != nil {
		return nil, err
	}
	if err := validateWeeks(year, weeks); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userId, projectId, year, weeks)
}

func (s *ServiceImpl) ListProjectWeeks(ctx context.Context, projectId int, year int, weeks []int) ([]Record, error) {
	if err := s.checkProjectAccess(ctx, projectId); err != nil {
		return nil, err
	}
	if err := validateWeeks(year, weeks); err != nil {
		return nil, err
	}
	return s.repo.ListProject(ctx, projectId, year, weeks)
}

func (s *ServiceImpl) EditableAllocations(ctx context.Context, projectId int) (EditableView, error) {
	if err := s.checkProjectAccess(ctx, projectId); err != nil {
		return EditableView{}, err
	}
	weeks := corporate_week.EditableWeeks(s.clock.Now(), s.editWindowDays)
	starts := make([]time.Time, 0, len(weeks))
	for _, w := range weeks {
		starts = append(starts, w.Monday)
	}
	records, err := s.repo.ListProjectByWeekStarts(ctx, projectId, starts)
	if err != nil {
		return EditableView{}, err
	}
	return EditableView{Weeks: weeks, Records: records}, nil
}

func (s *ServiceImpl) Upsert(ctx context.Context, in UpsertInput) (Record, error) {
	caller, err := user.CurrentCaller(ctx)
	if err != nil {
		return Record{}, err
	}
	week, err := in.Validate()
	if err != nil {
		return Record{}, err
	}
	log.Debugf("upserting allocation %+v by %s", in.Key(), caller.Login)

	updatedBy := in.UpdatedBy
	if updatedBy == "" {
		updatedBy = caller.Login
	}
	var saved Record
	var created bool
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		saved, created, err = s.save(ctx, repo, caller, Record{
			UserId:    in.UserId,
			ProjectId: in.ProjectId,
			Year:      week.Year,
			Week:      week.Week,
			WeekStart: week.Monday,
			Hours:     in.Hours,
			UpdatedBy: updatedBy,
		})
		return err
	})
	if err != nil {
		return Record{}, err
	}
	s.publishSaved(ctx, saved, created, event_bus.SourceUpsert)
	return saved, nil
}

func (s *ServiceImpl) UpdateById(ctx context.Context, id int, hours Hours) (Record, error) {
	caller, err := user.CurrentCaller(ctx)
	if err != nil {
		return Record{}, err
	}
	if err := hours.Validate(); err != nil {
		return Record{}, err
	}

	var saved Record
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		existing, err := repo.GetById(ctx, id)
		if err != nil {
			return err
		}
		existing.Hours = hours
		existing.UpdatedBy = caller.Login
		saved, _, err = s.save(ctx, repo, caller, existing)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	s.publishSaved(ctx, saved, false, event_bus.SourceUpdateById)
	return saved, nil
}

func (s *ServiceImpl) CopyForward(ctx context.Context, userId int, projectId int) (Record, error) {
	caller, err := user.CurrentCaller(ctx)
	if err != nil {
		return Record{}, err
	}
	if userId <= 0 {
		return Record{}, apperr.Validation("userId is required")
	}
	current := corporate_week.CurrentWeekInfo(s.clock)
	previous := current.Previous()

	var saved Record
	var created bool
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		source, found, err := repo.GetByKey(ctx, Key{UserId: userId, ProjectId: projectId, Year: previous.Year, Week: previous.Week})
		if err != nil {
			return err
		}
		if !found {
			return apperr.NotFound("no allocation for user %d on project %d in %s", userId, projectId, previous)
		}
		saved, created, err = s.save(ctx, repo, caller, Record{
			UserId:    userId,
			ProjectId: projectId,
			Year:      current.Year,
			Week:      current.Week,
			WeekStart: current.Monday,
			Hours:     source.Hours,
			UpdatedBy: caller.Login,
		})
		return err
	})
	if err != nil {
		return Record{}, err
	}
	log.Debugf("copied allocation of user %d on project %d from %s to %s", userId, projectId, previous, current)
	s.publishSaved(ctx, saved, created, event_bus.SourceCopyForward)
	return saved, nil
}

func (s *ServiceImpl) UpsertRemark(ctx context.Context, userId int, week int, remark string) (WeeklyRemark, error) {
	if _, err := user.RequireAdmin(ctx); err != nil {
		return WeeklyRemark{}, err
	}
	if week < corporate_week.MinWeek || week > corporate_week.MaxWeek {
		return WeeklyRemark{}, apperr.Validation("invalid week number %d (must be %d-%d)", week, corporate_week.MinWeek, corporate_week.MaxWeek)
	}
	normalized, err := NormalizeRemark(remark)
	if err != nil {
		return WeeklyRemark{}, err
	}
	if _, err := s.users.GetUser(ctx, userId); err != nil {
		return WeeklyRemark{}, err
	}

	saved, err := s.repo.UpsertRemark(ctx, WeeklyRemark{UserId: userId, Week: week, Remark: normalized})
	if err != nil {
		return WeeklyRemark{}, err
	}
	err = s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.WeeklyRemarkSavedType, event_bus.WeeklyRemarkSaved{
		UserId: saved.UserId,
		Week:   saved.Week,
	}))
	if err != nil {
		log.Warnf("failed to publish weekly remark event: %v", err)
	}
	return saved, nil
}

// save applies the write policy to rec inside a transaction: the existing row is locked and
// checked against the edit window, then membership and referenced entities are verified.
func (s *ServiceImpl) save(ctx context.Context, repo Repository, caller user.Caller, rec Record) (Record, bool, error) {
	existing, found, err := repo.GetByKey(ctx, rec.Key())
	if err != nil {
		return Record{}, false, err
	}
	if found && !caller.IsAdmin && !corporate_week.InEditableWindow(existing.WeekStart, s.clock.Now(), s.editWindowDays) {
		return Record{}, false, apperr.EditWindowExpired("%s of user %d on project %d can no longer be changed",
			existing.CorporateWeek(), existing.UserId, existing.ProjectId)
	}
	if !caller.IsAdmin {
		member, err := s.projects.IsMember(ctx, caller.Id, rec.ProjectId)
		if err != nil {
			return Record{}, false, err
		}
		if !member {
			return Record{}, false, apperr.AccessDenied("user %d is not a member of project %d", caller.Id, rec.ProjectId)
		}
	}
	if !found {
		if _, err := s.users.GetUser(ctx, rec.UserId); err != nil {
			return Record{}, false, err
		}
		if _, err := s.projects.GetProject(ctx, rec.ProjectId); err != nil {
			return Record{}, false, err
		}
	}
	return repo.Upsert(ctx, rec)
}

func (s *ServiceImpl) checkProjectAccess(ctx context.Context, projectId int) error {
	caller, err := user.CurrentCaller(ctx)
	if err != nil {
		return err
	}
	if caller.IsAdmin {
		return nil
	}
	member, err := s.projects.IsMember(ctx, caller.Id, projectId)
	if err != nil {
		return err
	}
	if !member {
		return apperr.AccessDenied("user %d is not a member of project %d", caller.Id, projectId)
	}
	return nil
}

func (s *ServiceImpl) publishSaved(ctx context.Context, rec Record, created bool, source event_bus.AllocationSource) {
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.AllocationSavedType, event_bus.AllocationSaved{
		AllocationId: rec.Id,
		UserId:       rec.UserId,
		ProjectId:    rec.ProjectId,
		Year:         rec.Year,
		Week:         rec.Week,
		TotalHours:   rec.Total(),
		Created:      created,
		Source:       source,
		UpdatedBy:    rec.UpdatedBy,
	}))
	if err != nil {
		log.Warnf("failed to publish allocation event: %v", err)
	}
}

func validateWeeks(year int, weeks []int) error {
	if len(weeks) == 0 {
		return corporate_week.Validate(year, corporate_week.MinWeek)
	}
	for _, week := range weeks {
		if err := corporate_week.Validate(year, week); err != nil {
			return err
		}
	}
	return nil
}
