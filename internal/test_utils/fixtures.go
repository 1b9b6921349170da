package test_utils

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

type UserFixture struct {
	Login           string
	FirstName       string
	LastName        string
	Admin           bool
	DateOfJoining   *time.Time
	TotalExperience string
	Skill           string
}

// InsertUser stores u and returns its id.
func InsertUser(t *testing.T, db *pgxpool.Pool, u UserFixture) int {
	t.Helper()
	if u.FirstName == "" {
		u.FirstName = u.Login
	}
	var experience *string
	if u.TotalExperience != "" {
		experience = &u.TotalExperience
	}
	var id int
	err := db.QueryRow(context.Background(),
		`INSERT INTO users (login, firstname, lastname, admin, date_of_joining, total_experience, skill)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7) RETURNING id`,
		u.Login, u.FirstName, u.LastName, u.Admin, u.DateOfJoining, experience, u.Skill,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertProject stores a project with the given members and returns its id.
func InsertProject(t *testing.T, db *pgxpool.Pool, name string, status int, memberIds ...int) int {
	t.Helper()
	ctx := context.Background()
	var id int
	err := db.QueryRow(ctx, `INSERT INTO projects (name, status) VALUES ($1, $2) RETURNING id`, name, status).Scan(&id)
	require.NoError(t, err)
	for _, userId := range memberIds {
		_, err := db.Exec(ctx, `INSERT INTO members (user_id, project_id) VALUES ($1, $2)`, userId, id)
		require.NoError(t, err)
	}
	return id
}
