package bench

import (
	"time"

	"github.com/benchtrack/benchtrack/pkg/allocation"
	"github.com/shopspring/decimal"
)

// UserTotals aggregates one user's records for one week across all projects.
// The classification predicates are independent; a user may satisfy several.
type UserTotals struct {
	UserId int
	allocation.Hours
	Projects []allocation.Record
}

// IsFullyBenched reports no project activity at all; leave does not count as activity.
func (u UserTotals) IsFullyBenched() bool {
	return u.Active().IsZero()
}

func (u UserTotals) IsPartialBenched(limit decimal.Decimal) bool {
	total := u.Total()
	return total.IsPositive() && total.LessThan(limit)
}

func (u UserTotals) IsNonBillable() bool {
	return u.Hours.NonBillable.IsPositive()
}

func (u UserTotals) IsOverUtilised(limit decimal.Decimal) bool {
	return u.Total().GreaterThan(limit)
}

// Aggregate groups records by user, keeping the order in which users first appear.
func Aggregate(records []allocation.Record) []UserTotals {
	index := make(map[int]int)
	var totals []UserTotals
	for _, rec := range records {
		i, ok := index[rec.UserId]
		if !ok {
			i = len(totals)
			index[rec.UserId] = i
			totals = append(totals, UserTotals{
				UserId: rec.UserId,
				Hours:  allocation.Hours{Billable: decimal.Zero, NonBillable: decimal.Zero, Leave: decimal.Zero},
			})
		}
		totals[i].Hours = totals[i].Hours.Add(rec.Hours)
		totals[i].Projects = append(totals[i].Projects, rec)
	}
	return totals
}

type Summary struct {
	RequestedYear  int
	RequestedWeek  int
	ActualYear     int
	ActualWeek     int
	FullyBenched   int
	PartialBenched int
	NonBillable    int
	OverUtilised   int
}

// Row is one user in one category of the report.
type Row struct {
	UserId int
	Name   string
	Tenure decimal.Decimal
	Skills string
	allocation.Hours
	// OnBenchSince is the Monday of the first week of the unbroken run of weeks, ending
	// with the reported one, in which the user stayed in the row's category. Set for
	// fully and partially benched rows only.
	OnBenchSince time.Time
}

// NonBillableRow is one project on which a user logged non-billable hours.
type NonBillableRow struct {
	Row
	ProjectId    int
	ProjectName  string
	ProjectHours allocation.Hours
	Remark       string
}

type Report struct {
	RequestedYear  int
	RequestedWeek  int
	ActualYear     int
	ActualWeek     int
	FullyBenched   []Row
	PartialBenched []Row
	NonBillable    []NonBillableRow
	OverUtilised   []Row
}

func (r Report) Summary() Summary {
	nonBillableUsers := make(map[int]struct{})
	for _, row := range r.NonBillable {
		nonBillableUsers[row.UserId] = struct{}{}
	}
	return Summary{
		RequestedYear:  r.RequestedYear,
		RequestedWeek:  r.RequestedWeek,
		ActualYear:     r.ActualYear,
		ActualWeek:     r.ActualWeek,
		FullyBenched:   len(r.FullyBenched),
		PartialBenched: len(r.PartialBenched),
		NonBillable:    len(nonBillableUsers),
		OverUtilised:   len(r.OverUtilised),
	}
}

// IsFallback reports whether the counts come from a different week than requested.
func (s Summary) IsFallback() bool {
	return s.RequestedYear != s.ActualYear || s.RequestedWeek != s.ActualWeek
}
