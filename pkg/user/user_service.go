package user

import (
	"context"

	"github.com/benchtrack/benchtrack/internal/utils"
)

// Directory is the read-only view of users consumed by the ledger and the bench report.
type Directory interface {
	GetUser(ctx context.Context, id int) (User, error)
	GetUserByLogin(ctx context.Context, login string) (User, error)
	GetProfile(ctx context.Context, id int) (Profile, error)
	// GetProfiles returns profiles keyed by user id; unknown ids are absent from the map.
	GetProfiles(ctx context.Context, ids []int) (map[int]Profile, error)
}

type DirectoryImpl struct {
	repo  Repo
	clock utils.Clock
}

func NewDirectory(repo Repo, clock utils.Clock) *DirectoryImpl {
	return &DirectoryImpl{repo: repo, clock: clock}
}

func (d *DirectoryImpl) GetUser(ctx context.Context, id int) (User, error) {
	return d.repo.GetUser(ctx, id)
}

func (d *DirectoryImpl) GetUserByLogin(ctx context.Context, login string) (User, error) {
	return d.repo.GetUserByLogin(ctx, login)
}

func (d *DirectoryImpl) GetProfile(ctx context.Context, id int) (Profile, error) {
	u, err := d.repo.GetUser(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return d.profile(u), nil
}

func (d *DirectoryImpl) GetProfiles(ctx context.Context, ids []int) (map[int]Profile, error) {
	users, err := d.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	profiles := make(map[int]Profile, len(users))
	for _, u := range users {
		profiles[u.Id] = d.profile(u)
	}
	return profiles, nil
}

func (d *DirectoryImpl) profile(u User) Profile {
	return Profile{
		User:   u,
		Tenure: Tenure(u.StoredExperience, u.DateOfJoining, utils.Today(d.clock.Now())),
	}
}
