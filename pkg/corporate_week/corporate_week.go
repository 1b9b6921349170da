package corporate_week

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/utils"
)

const (
	MinWeek = 1
	MaxWeek = 53
	MinYear = 1900
	MaxYear = 9999

	// DefaultEditWindowDays is how far back non-admin users may still modify allocations.
	DefaultEditWindowDays = 15
)

const day = 24 * time.Hour

// CorporateWeek is a Monday-Friday span numbered forward from the first Monday of its year.
// Dates are UTC midnights.
type CorporateWeek struct {
	Year   int
	Week   int
	Monday time.Time
	Friday time.Time
}

type EditableWeek struct {
	CorporateWeek
	IsCurrentWeek bool
}

// FirstMonday returns the first Monday on or after January 1 of year.
func FirstMonday(year int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (8 - int(jan1.Weekday())) % 7
	return jan1.AddDate(0, 0, offset)
}

// WeekInfoFor builds the corporate week with the given number. The number is not range
// checked; use Validate on input paths.
func WeekInfoFor(week int, year int) CorporateWeek {
	monday := FirstMonday(year).AddDate(0, 0, 7*(week-1))
	return CorporateWeek{
		Year:   year,
		Week:   week,
		Monday: monday,
		Friday: monday.AddDate(0, 0, 4),
	}
}

// WeekOf returns the corporate week containing date. Days before the first Monday of a
// year belong to the last corporate week of the previous year.
func WeekOf(date time.Time) CorporateWeek {
	d := dateOnly(date)
	delta := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -delta)
	year := monday.Year()
	days := int(monday.Sub(FirstMonday(year)) / day)
	return WeekInfoFor(days/7+1, year)
}

func CurrentWeekInfo(clock utils.Clock) CorporateWeek {
	return WeekOf(clock.Now())
}

// WeeksInYear returns how many corporate weeks (Mondays) year has: 52 or 53.
func WeeksInYear(year int) int {
	return WeekOf(time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)).Week
}

// EditableWeeks lists, oldest first, the corporate weeks whose Monday-Friday span
// intersects [now-windowDays, now].
func EditableWeeks(now time.Time, windowDays int) []EditableWeek {
	today := dateOnly(now)
	cutoff := today.AddDate(0, 0, -windowDays)

	var weeks []EditableWeek
	for monday := WeekOf(cutoff).Monday; !monday.After(today); monday = monday.AddDate(0, 0, 7) {
		week := WeekOf(monday)
		if week.Friday.Before(cutoff) {
			continue
		}
		weeks = append(weeks, EditableWeek{
			CorporateWeek: week,
			IsCurrentWeek: week.Contains(today),
		})
	}
	return weeks
}

// InEditableWindow reports whether the week starting on weekStart overlaps the window.
func InEditableWindow(weekStart time.Time, now time.Time, windowDays int) bool {
	today := dateOnly(now)
	cutoff := today.AddDate(0, 0, -windowDays)
	monday := dateOnly(weekStart)
	friday := monday.AddDate(0, 0, 4)
	return !friday.Before(cutoff) && !monday.After(today)
}

// Validate checks a (year, week) pair coming from outside.
func Validate(year int, week int) error {
	if week < MinWeek || week > MaxWeek {
		return apperr.Validation("invalid week number %d (must be %d-%d)", week, MinWeek, MaxWeek)
	}
	if year < MinYear || year > MaxYear {
		return apperr.Validation("invalid year %d", year)
	}
	// week 53 of a 52-week year is week 1 of the next one
	if weeks := WeeksInYear(year); week > weeks {
		return apperr.Validation("invalid week number %d for %d (must be %d-%d)", week, year, MinWeek, weeks)
	}
	return nil
}

// ISOWeekStart returns the Monday of ISO-8601 week isoWeek of isoYear. This numbering
// differs from corporate weeks and is only used to translate ISO input into a date.
func ISOWeekStart(isoYear int, isoWeek int) (time.Time, error) {
	if isoYear < MinYear || isoYear > MaxYear {
		return time.Time{}, apperr.Validation("invalid ISO year %d", isoYear)
	}
	_, weeksInYear := time.Date(isoYear, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	if isoWeek < 1 || isoWeek > weeksInYear {
		return time.Time{}, apperr.Validation("invalid ISO week %d for %d (must be 1-%d)", isoWeek, isoYear, weeksInYear)
	}
	jan4 := time.Date(isoYear, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1Monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return week1Monday.AddDate(0, 0, 7*(isoWeek-1)), nil
}

// ParseISOWeek converts "2025-W03" into its year and week parts.
func ParseISOWeek(isoWeekString string) (int, int, error) {
	parts := strings.Split(isoWeekString, "-")
	if len(parts) != 2 || !strings.HasPrefix(parts[1], "W") {
		return 0, 0, apperr.Validation("invalid ISO week format: %s", isoWeekString)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, apperr.Validation("invalid ISO year in %s", isoWeekString)
	}
	week, err := strconv.Atoi(parts[1][1:])
	if err != nil {
		return 0, 0, apperr.Validation("invalid ISO week in %s", isoWeekString)
	}
	return year, week, nil
}

// Previous returns the corporate week immediately before w, crossing year boundaries.
func (w CorporateWeek) Previous() CorporateWeek {
	return WeekOf(w.Monday.AddDate(0, 0, -7))
}

// Contains reports whether date falls on a working day of w.
func (w CorporateWeek) Contains(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(w.Monday) && !d.After(w.Friday)
}

func (w CorporateWeek) Equal(other CorporateWeek) bool {
	return w.Year == other.Year && w.Week == other.Week
}

func (w CorporateWeek) Before(other CorporateWeek) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Week < other.Week
}

func (w CorporateWeek) After(other CorporateWeek) bool {
	if w.Year != other.Year {
		return w.Year > other.Year
	}
	return w.Week > other.Week
}

// String returns e.g. "2025-CW01".
func (w CorporateWeek) String() string {
	return fmt.Sprintf("%04d-CW%02d", w.Year, w.Week)
}

// DisplayText renders "Week 10: Mar 03-07", or "Week 13: Mar 31-Apr 04" across months.
func (w CorporateWeek) DisplayText() string {
	if w.Monday.Month() != w.Friday.Month() {
		return fmt.Sprintf("Week %d: %s-%s", w.Week, w.Monday.Format("Jan 02"), w.Friday.Format("Jan 02"))
	}
	return fmt.Sprintf("Week %d: %s-%s", w.Week, w.Monday.Format("Jan 02"), w.Friday.Format("02"))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
