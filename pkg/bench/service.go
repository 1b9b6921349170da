package bench

import (
	"context"
	"sort"
	"time"

	"github.com/benchtrack/benchtrack/pkg/allocation"
	"github.com/benchtrack/benchtrack/pkg/corporate_week"
	"github.com/benchtrack/benchtrack/pkg/project"
	"github.com/benchtrack/benchtrack/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const DefaultWeeklyLimit = 40

// LedgerReader is the part of the allocation ledger the classifier reads.
type LedgerReader interface {
	ListWeek(ctx context.Context, year int, week int) ([]allocation.Record, error)
	LatestWeek(ctx context.Context) (year int, week int, found bool, err error)
	GetRemarks(ctx context.Context, week int, userIds []int) (map[int]string, error)
	ListUsersHistory(ctx context.Context, userIds []int, year int, week int) ([]allocation.Record, error)
}

type weekKey struct {
	year int
	week int
}

type Service interface {
	Summary(ctx context.Context, year int, week int) (Summary, error)
	Report(ctx context.Context, year int, week int) (Report, error)
}

type ServiceImpl struct {
	ledger   LedgerReader
	users    user.Directory
	projects project.Directory
	limit    decimal.Decimal
}

func NewService(ledger LedgerReader, users user.Directory, projects project.Directory, weeklyLimit int) *ServiceImpl {
	if weeklyLimit <= 0 {
		weeklyLimit = DefaultWeeklyLimit
	}
	return &ServiceImpl{
		ledger:   ledger,
		users:    users,
		projects: projects,
		limit:    decimal.NewFromInt(int64(weeklyLimit)),
	}
}

func (s *ServiceImpl) Summary(ctx context.Context, year int, week int) (Summary, error) {
	report, err := s.Report(ctx, year, week)
	if err != nil {
		return Summary{}, err
	}
	return report.Summary(), nil
}

func (s *ServiceImpl) Report(ctx context.Context, year int, week int) (Report, error) {
	if _, err := user.RequireAdmin(ctx); err != nil {
		return Report{}, err
	}
	if err := corporate_week.Validate(year, week); err != nil {
		return Report{}, err
	}

	report := Report{RequestedYear: year, RequestedWeek: week, ActualYear: year, ActualWeek: week}
	records, err := s.ledger.ListWeek(ctx, year, week)
	if err != nil {
		return Report{}, err
	}
	if len(records) == 0 {
		latestYear, latestWeek, found, err := s.ledger.LatestWeek(ctx)
		if err != nil {
			return Report{}, err
		}
		if !found {
			log.Debugf("bench report for %d/%d: ledger is empty", year, week)
			return report, nil
		}
		log.Debugf("bench report for %d/%d: no records, using %d/%d", year, week, latestYear, latestWeek)
		report.ActualYear, report.ActualWeek = latestYear, latestWeek
		if records, err = s.ledger.ListWeek(ctx, latestYear, latestWeek); err != nil {
			return Report{}, err
		}
	}

	totals := Aggregate(records)
	if err := s.classify(ctx, &report, totals); err != nil {
		return Report{}, err
	}
	return report, nil
}

func (s *ServiceImpl) classify(ctx context.Context, report *Report, totals []UserTotals) error {
	userIds := make([]int, 0, len(totals))
	projectIds := make(map[int]struct{})
	var nonBillableIds, benchedIds []int
	for _, t := range totals {
		userIds = append(userIds, t.UserId)
		if t.IsFullyBenched() || t.IsPartialBenched(s.limit) {
			benchedIds = append(benchedIds, t.UserId)
		}
		for _, rec := range t.Projects {
			projectIds[rec.ProjectId] = struct{}{}
		}
		if t.IsNonBillable() {
			nonBillableIds = append(nonBillableIds, t.UserId)
		}
	}

	profiles, err := s.users.GetProfiles(ctx, userIds)
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(projectIds))
	for id := range projectIds {
		ids = append(ids, id)
	}
	projects, err := s.projects.GetProjects(ctx, ids)
	if err != nil {
		return err
	}
	// Remarks are keyed by week number only, so one remark applies to that week of every year.
	remarks, err := s.ledger.GetRemarks(ctx, report.ActualWeek, nonBillableIds)
	if err != nil {
		return err
	}
	history, err := s.weeklyHistory(ctx, report, benchedIds)
	if err != nil {
		return err
	}
	reported := corporate_week.WeekInfoFor(report.ActualWeek, report.ActualYear)
	partial := func(u UserTotals) bool { return u.IsPartialBenched(s.limit) }

	for _, t := range totals {
		row := Row{UserId: t.UserId, Hours: t.Hours}
		if profile, ok := profiles[t.UserId]; ok {
			row.Name = profile.Name()
			row.Tenure = profile.Tenure
			row.Skills = profile.Skills
		} else {
			log.Warnf("bench report: user %d has allocations but no profile", t.UserId)
		}

		if t.IsFullyBenched() {
			benched := row
			benched.OnBenchSince = benchedSince(history[t.UserId], reported, UserTotals.IsFullyBenched)
			report.FullyBenched = append(report.FullyBenched, benched)
		}
		if t.IsPartialBenched(s.limit) {
			benched := row
			benched.OnBenchSince = benchedSince(history[t.UserId], reported, partial)
			report.PartialBenched = append(report.PartialBenched, benched)
		}
		if t.IsOverUtilised(s.limit) {
			report.OverUtilised = append(report.OverUtilised, row)
		}
		if t.IsNonBillable() {
			for _, rec := range t.Projects {
				if !rec.NonBillable.IsPositive() {
					continue
				}
				report.NonBillable = append(report.NonBillable, NonBillableRow{
					Row:          row,
					ProjectId:    rec.ProjectId,
					ProjectName:  projects[rec.ProjectId].Name,
					ProjectHours: rec.Hours,
					Remark:       remarks[t.UserId],
				})
			}
		}
	}

	sortByName(report.FullyBenched)
	sortByName(report.PartialBenched)
	sort.SliceStable(report.OverUtilised, func(i, j int) bool {
		if cmp := report.OverUtilised[i].Total().Cmp(report.OverUtilised[j].Total()); cmp != 0 {
			return cmp > 0
		}
		return report.OverUtilised[i].Name < report.OverUtilised[j].Name
	})
	sort.SliceStable(report.NonBillable, func(i, j int) bool {
		a, b := report.NonBillable[i], report.NonBillable[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ProjectName < b.ProjectName
	})
	return nil
}

// weeklyHistory aggregates every week up to the reported one for userIds, keyed by user
// and then by week.
func (s *ServiceImpl) weeklyHistory(ctx context.Context, report *Report, userIds []int) (map[int]map[weekKey]UserTotals, error) {
	history := make(map[int]map[weekKey]UserTotals, len(userIds))
	if len(userIds) == 0 {
		return history, nil
	}
	records, err := s.ledger.ListUsersHistory(ctx, userIds, report.ActualYear, report.ActualWeek)
	if err != nil {
		return nil, err
	}
	byWeek := make(map[weekKey][]allocation.Record)
	for _, rec := range records {
		key := weekKey{year: rec.Year, week: rec.Week}
		byWeek[key] = append(byWeek[key], rec)
	}
	for key, weekRecords := range byWeek {
		for _, t := range Aggregate(weekRecords) {
			if history[t.UserId] == nil {
				history[t.UserId] = make(map[weekKey]UserTotals)
			}
			history[t.UserId][key] = t
		}
	}
	return history, nil
}

// benchedSince walks back from the reported week while each earlier week still satisfies
// benched. A week without any record ends the run.
func benchedSince(weeks map[weekKey]UserTotals, reported corporate_week.CorporateWeek, benched func(UserTotals) bool) time.Time {
	since := reported.Monday
	for w := reported.Previous(); ; w = w.Previous() {
		t, ok := weeks[weekKey{year: w.Year, week: w.Week}]
		if !ok || !benched(t) {
			return since
		}
		since = w.Monday
	}
}

func sortByName(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].UserId < rows[j].UserId
	})
}
