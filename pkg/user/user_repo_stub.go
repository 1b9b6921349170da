package user

import (
	"context"
	"sync"

	"github.com/benchtrack/benchtrack/internal/apperr"
)

type RepoStub struct {
	mu    sync.RWMutex
	users map[int]User
}

func NewRepoStub(users ...User) *RepoStub {
	stub := &RepoStub{users: map[int]User{}}
	for _, u := range users {
		stub.users[u.Id] = u
	}
	return stub
}

func (s *RepoStub) Put(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Id] = u
}

func (s *RepoStub) GetUser(ctx context.Context, id int) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, apperr.NotFound("user %d", id)
	}
	return u, nil
}

func (s *RepoStub) GetUserByLogin(ctx context.Context, login string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return User{}, apperr.NotFound("user %s", login)
}

func (s *RepoStub) GetUsers(ctx context.Context, ids []int) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (s *RepoStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = map[int]User{}
}
