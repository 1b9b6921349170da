package allocation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/pkg/corporate_week"
	"github.com/shopspring/decimal"
)

const MaxRemarkLength = 250

// Hours is the weekly split of a user's time on one project.
type Hours struct {
	Billable    decimal.Decimal
	NonBillable decimal.Decimal
	Leave       decimal.Decimal
}

func (h Hours) Total() decimal.Decimal {
	return h.Billable.Add(h.NonBillable).Add(h.Leave)
}

// Active is the part of the total that counts as project work; leave is excluded.
func (h Hours) Active() decimal.Decimal {
	return h.Billable.Add(h.NonBillable)
}

func (h Hours) Add(other Hours) Hours {
	return Hours{
		Billable:    h.Billable.Add(other.Billable),
		NonBillable: h.NonBillable.Add(other.NonBillable),
		Leave:       h.Leave.Add(other.Leave),
	}
}

func (h Hours) Validate() error {
	if h.Billable.IsNegative() || h.NonBillable.IsNegative() || h.Leave.IsNegative() {
		return apperr.Validation("hours cannot be negative (billable %s, non-billable %s, leave %s)",
			h.Billable, h.NonBillable, h.Leave)
	}
	return nil
}

// Key identifies a record; at most one record exists per key.
type Key struct {
	UserId    int
	ProjectId int
	Year      int
	Week      int
}

// Record is one user's hours on one project for one corporate week.
type Record struct {
	Id        int
	UserId    int
	ProjectId int
	Year      int
	Week      int
	WeekStart time.Time
	Hours
	UpdatedBy string
	UpdatedAt time.Time
}

func (r Record) Key() Key {
	return Key{UserId: r.UserId, ProjectId: r.ProjectId, Year: r.Year, Week: r.Week}
}

func (r Record) CorporateWeek() corporate_week.CorporateWeek {
	return corporate_week.WeekInfoFor(r.Week, r.Year)
}

// UpsertInput is a request to create or replace the record for (UserId, ProjectId, Year, Week).
// WeekStart may be left zero, in which case the corporate Monday is used.
type UpsertInput struct {
	UserId    int
	ProjectId int
	Year      int
	Week      int
	WeekStart time.Time
	Hours
	// UpdatedBy defaults to the caller's login.
	UpdatedBy string
}

func (in UpsertInput) Key() Key {
	return Key{UserId: in.UserId, ProjectId: in.ProjectId, Year: in.Year, Week: in.Week}
}

// Validate runs the checks that need no storage access and returns the corporate week the
// input targets.
func (in UpsertInput) Validate() (corporate_week.CorporateWeek, error) {
	if in.UserId <= 0 {
		return corporate_week.CorporateWeek{}, apperr.Validation("userId is required")
	}
	if in.ProjectId <= 0 {
		return corporate_week.CorporateWeek{}, apperr.Validation("projectId is required")
	}
	if err := in.Hours.Validate(); err != nil {
		return corporate_week.CorporateWeek{}, err
	}
	if err := corporate_week.Validate(in.Year, in.Week); err != nil {
		return corporate_week.CorporateWeek{}, err
	}
	week := corporate_week.WeekInfoFor(in.Week, in.Year)
	if !in.WeekStart.IsZero() {
		y, m, d := in.WeekStart.Date()
		if !time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Equal(week.Monday) {
			return corporate_week.CorporateWeek{}, apperr.Validation("week start %s does not match %s (Monday %s)",
				in.WeekStart.Format(time.DateOnly), week, week.Monday.Format(time.DateOnly))
		}
	}
	return week, nil
}

// WeeklyRemark explains why a user spent a week on non-billable work. Remarks are keyed by
// week number only and apply to that week in every year.
type WeeklyRemark struct {
	UserId int
	Week   int
	Remark string
}

func NormalizeRemark(remark string) (string, error) {
	trimmed := strings.TrimSpace(remark)
	if utf8.RuneCountInString(trimmed) > MaxRemarkLength {
		return "", apperr.Validation("remark must be at most %d characters", MaxRemarkLength)
	}
	return trimmed, nil
}

// EditableView lists a project's records for the weeks that can still be changed.
type EditableView struct {
	Weeks   []corporate_week.EditableWeek
	Records []Record
}
