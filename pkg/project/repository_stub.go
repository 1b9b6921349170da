package project

import (
	"context"
	"sync"

	"github.com/benchtrack/benchtrack/internal/apperr"
)

type membershipKey struct {
	userId    int
	projectId int
}

type DirectoryStub struct {
	mu       sync.RWMutex
	projects map[int]Project
	members  map[membershipKey]bool
}

func NewDirectoryStub() *DirectoryStub {
	return &DirectoryStub{
		projects: map[int]Project{},
		members:  map[membershipKey]bool{},
	}
}

func (s *DirectoryStub) AddProject(p Project, memberIds ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.Id] = p
	for _, userId := range memberIds {
		s.members[membershipKey{userId, p.Id}] = true
	}
}

func (s *DirectoryStub) IsMember(ctx context.Context, userId int, projectId int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[membershipKey{userId, projectId}], nil
}

func (s *DirectoryStub) GetProject(ctx context.Context, projectId int) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectId]
	if !ok {
		return Project{}, apperr.NotFound("project %d", projectId)
	}
	return p, nil
}

func (s *DirectoryStub) GetProjects(ctx context.Context, projectIds []int) (map[int]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := map[int]Project{}
	for _, id := range projectIds {
		if p, ok := s.projects[id]; ok {
			projects[id] = p
		}
	}
	return projects, nil
}

func (s *DirectoryStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = map[int]Project{}
	s.members = map[membershipKey]bool{}
}
