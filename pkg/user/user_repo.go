package user

import (
	"context"
	"errors"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repo interface {
	GetUser(ctx context.Context, id int) (User, error)
	GetUserByLogin(ctx context.Context, login string) (User, error)
	// GetUsers returns the users that exist among ids, in no particular order.
	GetUsers(ctx context.Context, ids []int) ([]User, error)
}

type UserRepoImpl struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepoImpl {
	return &UserRepoImpl{db: db}
}

const selectUser = `SELECT id, login, firstname, lastname, admin, date_of_joining,
				COALESCE(total_experience, 0)::text, COALESCE(skill, '') FROM users`

func (u *UserRepoImpl) GetUser(ctx context.Context, id int) (User, error) {
	user, err := scanUser(u.db.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debugf("user with id %d not found", id)
		return User{}, apperr.NotFound("user %d", id)
	} else if err != nil {
		log.Errorf("failed to get user: %v", err)
		return User{}, apperr.Storage("get user", err)
	}
	return user, nil
}

func (u *UserRepoImpl) GetUserByLogin(ctx context.Context, login string) (User, error) {
	user, err := scanUser(u.db.QueryRow(ctx, selectUser+` WHERE login = $1`, login))
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debugf("user with login %s not found", login)
		return User{}, apperr.NotFound("user %s", login)
	} else if err != nil {
		log.Errorf("failed to get user by login: %v", err)
		return User{}, apperr.Storage("get user by login", err)
	}
	return user, nil
}

func (u *UserRepoImpl) GetUsers(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := u.db.Query(ctx, selectUser+` WHERE id = ANY($1) ORDER BY firstname, lastname`, ids)
	if err != nil {
		return nil, apperr.Storage("get users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Storage("scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("get users", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var dateOfJoining *time.Time
	var experience string
	err := row.Scan(
		&user.Id,
		&user.Login,
		&user.FirstName,
		&user.LastName,
		&user.IsAdmin,
		&dateOfJoining,
		&experience,
		&user.Skills,
	)
	if err != nil {
		return User{}, err
	}
	user.DateOfJoining = dateOfJoining
	user.StoredExperience, err = decimal.NewFromString(experience)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
