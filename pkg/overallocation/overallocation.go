package overallocation

import (
	"context"
	"sort"

	"github.com/benchtrack/benchtrack/pkg/allocation"
	"github.com/benchtrack/benchtrack/pkg/corporate_week"
	"github.com/benchtrack/benchtrack/pkg/project"
	"github.com/benchtrack/benchtrack/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const DefaultWeeklyLimit = 40

// WeekReader returns every record of one user in one week, read in a single statement.
type WeekReader interface {
	ListUserWeek(ctx context.Context, userId int, year int, week int) ([]allocation.Record, error)
}

type CheckInput struct {
	UserId           int
	Year             int
	Week             int
	CurrentProjectId int
	Proposed         allocation.Hours
}

type ProjectHours struct {
	ProjectId int
	Name      string
	Status    project.Status
	allocation.Hours
}

type CheckResult struct {
	CurrentTotal        decimal.Decimal
	NewTotal            decimal.Decimal
	IsOverallocated     bool
	OverBy              decimal.Decimal
	Limit               decimal.Decimal
	CurrentProjectHours decimal.Decimal
	NewProjectHours     decimal.Decimal
	Projects            []ProjectHours
}

type Breakdown struct {
	UserId          int
	Name            string
	Year            int
	Week            int
	Totals          allocation.Hours
	IsOverallocated bool
	OverBy          decimal.Decimal
	Limit           decimal.Decimal
	Projects        []ProjectHours
}

type Checker interface {
	// Check reports what the user's week would total if CurrentProjectId carried the proposed
	// hours. It never blocks a save.
	Check(ctx context.Context, in CheckInput) (CheckResult, error)
	UserWeekBreakdown(ctx context.Context, userId int, week int, year int) (Breakdown, error)
}

type CheckerImpl struct {
	reader   WeekReader
	users    user.Directory
	projects project.Directory
	limit    decimal.Decimal
}

func NewChecker(reader WeekReader, users user.Directory, projects project.Directory, weeklyLimit int) *CheckerImpl {
	if weeklyLimit <= 0 {
		weeklyLimit = DefaultWeeklyLimit
	}
	return &CheckerImpl{
		reader:   reader,
		users:    users,
		projects: projects,
		limit:    decimal.NewFromInt(int64(weeklyLimit)),
	}
}

func (c *CheckerImpl) Check(ctx context.Context, in CheckInput) (CheckResult, error) {
	if _, err := user.CurrentCaller(ctx); err != nil {
		return CheckResult{}, err
	}
	if err := in.Proposed.Validate(); err != nil {
		return CheckResult{}, err
	}
	if err := corporate_week.Validate(in.Year, in.Week); err != nil {
		return CheckResult{}, err
	}

	records, err := c.reader.ListUserWeek(ctx, in.UserId, in.Year, in.Week)
	if err != nil {
		return CheckResult{}, err
	}
	projects, err := c.projectHours(ctx, records)
	if err != nil {
		return CheckResult{}, err
	}

	currentTotal := decimal.Zero
	currentProject := decimal.Zero
	for _, p := range projects {
		currentTotal = currentTotal.Add(p.Total())
		if p.ProjectId == in.CurrentProjectId {
			currentProject = p.Total()
		}
	}
	newProject := in.Proposed.Total()
	newTotal := currentTotal.Sub(currentProject).Add(newProject)
	over := newTotal.GreaterThan(c.limit)
	log.Debugf("overallocation check for user %d in %d/%d: %s -> %s", in.UserId, in.Year, in.Week, currentTotal, newTotal)

	return CheckResult{
		CurrentTotal:        currentTotal,
		NewTotal:            newTotal,
		IsOverallocated:     over,
		OverBy:              overBy(newTotal, c.limit),
		Limit:               c.limit,
		CurrentProjectHours: currentProject,
		NewProjectHours:     newProject,
		Projects:            projects,
	}, nil
}

func (c *CheckerImpl) UserWeekBreakdown(ctx context.Context, userId int, week int, year int) (Breakdown, error) {
	if _, err := user.CurrentCaller(ctx); err != nil {
		return Breakdown{}, err
	}
	if err := corporate_week.Validate(year, week); err != nil {
		return Breakdown{}, err
	}
	u, err := c.users.GetUser(ctx, userId)
	if err != nil {
		return Breakdown{}, err
	}

	records, err := c.reader.ListUserWeek(ctx, userId, year, week)
	if err != nil {
		return Breakdown{}, err
	}
	projects, err := c.projectHours(ctx, records)
	if err != nil {
		return Breakdown{}, err
	}
	var totals allocation.Hours
	for _, p := range projects {
		totals = totals.Add(p.Hours)
	}
	return Breakdown{
		UserId:          u.Id,
		Name:            u.Name(),
		Year:            year,
		Week:            week,
		Totals:          totals,
		IsOverallocated: totals.Total().GreaterThan(c.limit),
		OverBy:          overBy(totals.Total(), c.limit),
		Limit:           c.limit,
		Projects:        projects,
	}, nil
}

// projectHours names each record's project and orders them by total desc, then name.
func (c *CheckerImpl) projectHours(ctx context.Context, records []allocation.Record) ([]ProjectHours, error) {
	ids := make([]int, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ProjectId)
	}
	byId, err := c.projects.GetProjects(ctx, ids)
	if err != nil {
		return nil, err
	}

	projects := make([]ProjectHours, 0, len(records))
	for _, rec := range records {
		p := byId[rec.ProjectId]
		projects = append(projects, ProjectHours{ProjectId: rec.ProjectId, Name: p.Name, Status: p.Status, Hours: rec.Hours})
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if cmp := projects[i].Total().Cmp(projects[j].Total()); cmp != 0 {
			return cmp > 0
		}
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

func overBy(total decimal.Decimal, limit decimal.Decimal) decimal.Decimal {
	if total.GreaterThan(limit) {
		return total.Sub(limit)
	}
	return decimal.Zero
}
