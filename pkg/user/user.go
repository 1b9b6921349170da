package user

import (
	"time"

	"github.com/shopspring/decimal"
)

// Caller is the resolved identity of whoever issues a request.
type Caller struct {
	Id      int
	Login   string
	IsAdmin bool
}

type User struct {
	Id        int
	Login     string
	FirstName string
	LastName  string
	IsAdmin   bool
	// DateOfJoining is nil for users imported without a joining date.
	DateOfJoining *time.Time
	// StoredExperience is the experience in years the user had before joining.
	StoredExperience decimal.Decimal
	Skills           string
}

func (u User) Name() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u User) Caller() Caller {
	return Caller{Id: u.Id, Login: u.Login, IsAdmin: u.IsAdmin}
}

// Profile is a User enriched with values computed at lookup time.
type Profile struct {
	User
	// Tenure is the total experience in years, rounded to one decimal.
	Tenure decimal.Decimal
}

var daysPerYear = decimal.RequireFromString("365.25")

// Tenure adds the years elapsed since joining to the stored experience.
func Tenure(stored decimal.Decimal, dateOfJoining *time.Time, today time.Time) decimal.Decimal {
	if dateOfJoining == nil {
		return stored.Round(1)
	}
	joined := time.Date(dateOfJoining.Year(), dateOfJoining.Month(), dateOfJoining.Day(), 0, 0, 0, 0, time.UTC)
	now := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := int64(now.Sub(joined) / (24 * time.Hour))
	return stored.Add(decimal.NewFromInt(days).Div(daysPerYear)).Round(1)
}
