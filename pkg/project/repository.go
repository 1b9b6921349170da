package project

import (
	"context"
	"errors"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers the membership and naming questions the ledger asks about projects.
type Directory interface {
	IsMember(ctx context.Context, userId int, projectId int) (bool, error)
	GetProject(ctx context.Context, projectId int) (Project, error)
	// GetProjects returns projects keyed by id; unknown ids are absent.
	GetProjects(ctx context.Context, projectIds []int) (map[int]Project, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) Directory {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) IsMember(ctx context.Context, userId int, projectId int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE user_id = $1 AND project_id = $2)`,
		userId, projectId,
	).Scan(&exists)
	if err != nil {
		return false, apperr.Storage("check membership", err)
	}
	return exists, nil
}

func (r *repositoryImpl) GetProject(ctx context.Context, projectId int) (Project, error) {
	var p Project
	err := r.db.QueryRow(ctx, `SELECT id, name, status FROM projects WHERE id = $1`, projectId).
		Scan(&p.Id, &p.Name, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, apperr.NotFound("project %d", projectId)
	} else if err != nil {
		return Project{}, apperr.Storage("get project", err)
	}
	return p, nil
}

func (r *repositoryImpl) GetProjects(ctx context.Context, projectIds []int) (map[int]Project, error) {
	projects := make(map[int]Project, len(projectIds))
	if len(projectIds) == 0 {
		return projects, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, status FROM projects WHERE id = ANY($1)`, projectIds)
	if err != nil {
		return nil, apperr.Storage("get projects", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Id, &p.Name, &p.Status); err != nil {
			return nil, apperr.Storage("scan project", err)
		}
		projects[p.Id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("get projects", err)
	}
	return projects, nil
}
