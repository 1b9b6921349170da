package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	// GetByKey returns the record for key and whether it exists. Inside a transaction the
	// row stays locked until commit.
	GetByKey(ctx context.Context, key Key) (Record, bool, error)
	GetById(ctx context.Context, id int) (Record, error)
	// Upsert creates or fully replaces the hours and updated_by of the record with r's key.
	Upsert(ctx context.Context, r Record) (Record, bool, error)
	List(ctx context.Context, userId int, projectId int, year int, weeks []int) ([]Record, error)
	ListProject(ctx context.Context, projectId int, year int, weeks []int) ([]Record, error)
	ListProjectByWeekStarts(ctx context.Context, projectId int, weekStarts []time.Time) ([]Record, error)
	ListUserWeek(ctx context.Context, userId int, year int, week int) ([]Record, error)
	ListWeek(ctx context.Context, year int, week int) ([]Record, error)
	// ListUsersHistory returns the records of userIds up to and including (year, week),
	// newest week first.
	ListUsersHistory(ctx context.Context, userIds []int, year int, week int) ([]Record, error)
	// LatestWeek returns the most recent (year, week) holding any record.
	LatestWeek(ctx context.Context) (year int, week int, found bool, err error)
	UpsertRemark(ctx context.Context, remark WeeklyRemark) (WeeklyRemark, error)
	// GetRemarks returns remarks for week keyed by user id.
	GetRemarks(ctx context.Context, week int, userIds []int) (map[int]string, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepo(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *repositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return apperr.Storage("begin transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&repositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Storage("commit transaction", err)
	}
	return nil
}

const recordColumns = `id, user_id, project_id, year, week, week_start,
		billable_hours::text, non_billable_hours::text, leave_hours::text,
		updated_by, updated_at`

func (r *repositoryImpl) GetByKey(ctx context.Context, key Key) (Record, bool, error) {
	query := `SELECT ` + recordColumns + ` FROM allocations
			  WHERE user_id = $1 AND project_id = $2 AND year = $3 AND week = $4`
	if r.tx != nil {
		query += ` FOR UPDATE`
	}
	record, err := scanRecord(r.getQueryer().QueryRow(ctx, query, key.UserId, key.ProjectId, key.Year, key.Week))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	} else if err != nil {
		return Record{}, false, apperr.Storage("get allocation", err)
	}
	return record, true, nil
}

func (r *repositoryImpl) GetById(ctx context.Context, id int) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM allocations WHERE id = $1`
	if r.tx != nil {
		query += ` FOR UPDATE`
	}
	record, err := scanRecord(r.getQueryer().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.NotFound("allocation %d", id)
	} else if err != nil {
		return Record{}, apperr.Storage("get allocation", err)
	}
	return record, nil
}

func (r *repositoryImpl) Upsert(ctx context.Context, rec Record) (Record, bool, error) {
	query := `INSERT INTO allocations (
				user_id, project_id, year, week, week_start,
				billable_hours, non_billable_hours, leave_hours, updated_by, updated_at
			  ) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, now())
			  ON CONFLICT (user_id, project_id, year, week) DO UPDATE SET
				billable_hours = EXCLUDED.billable_hours,
				non_billable_hours = EXCLUDED.non_billable_hours,
				leave_hours = EXCLUDED.leave_hours,
				updated_by = EXCLUDED.updated_by,
				updated_at = EXCLUDED.updated_at
			  RETURNING ` + recordColumns + `, (xmax = 0)`
	var created bool
	saved, err := scanRecord(r.getQueryer().QueryRow(ctx, query,
		rec.UserId,
		rec.ProjectId,
		rec.Year,
		rec.Week,
		rec.WeekStart,
		rec.Billable.String(),
		rec.NonBillable.String(),
		rec.Leave.String(),
		rec.UpdatedBy,
	), &created)
	if err != nil {
		return Record{}, false, apperr.Storage("upsert allocation", err)
	}
	return saved, created, nil
}

func (r *repositoryImpl) List(ctx context.Context, userId int, projectId int, year int, weeks []int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM allocations
			  WHERE user_id = $1 AND project_id = $2 AND year = $3
			    AND (cardinality($4::int[]) = 0 OR week = ANY($4))
			  ORDER BY week`
	return r.queryRecords(ctx, "list allocations", query, userId, projectId, year, nonNil(weeks))
}

func (r *repositoryImpl) ListProject(ctx context.Context, projectId int, year int, weeks []int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM allocations
			  WHERE project_id = $1 AND year = $2
			    AND (cardinality($3::int[]) = 0 OR week = ANY($3))
			  ORDER BY week, user_id`
	return r.queryRecords(ctx, "list project allocations", query, projectId, year, nonNil(weeks))
}

func (r *repositoryImpl) ListProjectByWeekStarts(ctx context.Context, projectId int, weekStarts []time.Time) ([]Record, error) {
	if len(weekStarts) == 0 {
		return nil, nil
	}
	query := `SELECT ` + recordColumns + ` FROM allocations
			  WHERE project_id = $1 AND week_start = ANY($2::date[])
			  ORDER BY week_start, user_id`
	return r.queryRecords(ctx, "list editable allocations", query, projectId, weekStarts)
}

func (r *repositoryImpl) ListUserWeek(ctx context.Context, userId int, year int, week int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM allocations
			  WHERE user_id = $1 AND year = $2 AND week = $3
			  ORDER BY project_id`
	return r.queryRecords(ctx, "list user week allocations", query, userId, year, week)
}

func (r *repositoryImpl) ListWeek(ctx context.Context, year int, week int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM allocations
			  WHERE year = $1 AND week = $2
			  ORDER BY user_id, project_id`
	return r.queryRecords(ctx, "list week allocations", query, year, week)
}

func (r *repositoryImpl) ListUsersHistory(ctx context.Context, userIds []int, year int, week int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM allocations
			  WHERE user_id = ANY($1) AND (year, week) <= ($2, $3)
			  ORDER BY user_id, year DESC, week DESC, project_id`
	return r.queryRecords(ctx, "list users history", query, nonNil(userIds), year, week)
}

func (r *repositoryImpl) LatestWeek(ctx context.Context) (int, int, bool, error) {
	var year, week int
	err := r.getQueryer().QueryRow(ctx,
		`SELECT year, week FROM allocations ORDER BY year DESC, week DESC LIMIT 1`,
	).Scan(&year, &week)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	} else if err != nil {
		return 0, 0, false, apperr.Storage("find latest week", err)
	}
	return year, week, true, nil
}

func (r *repositoryImpl) UpsertRemark(ctx context.Context, remark WeeklyRemark) (WeeklyRemark, error) {
	query := `INSERT INTO weekly_remarks (user_id, week, remark) VALUES ($1, $2, $3)
			  ON CONFLICT (user_id, week) DO UPDATE SET remark = EXCLUDED.remark
			  RETURNING user_id, week, remark`
	var saved WeeklyRemark
	err := r.getQueryer().QueryRow(ctx, query, remark.UserId, remark.Week, remark.Remark).
		Scan(&saved.UserId, &saved.Week, &saved.Remark)
	if err != nil {
		return WeeklyRemark{}, apperr.Storage("upsert weekly remark", err)
	}
	return saved, nil
}

func (r *repositoryImpl) GetRemarks(ctx context.Context, week int, userIds []int) (map[int]string, error) {
	remarks := make(map[int]string)
	if len(userIds) == 0 {
		return remarks, nil
	}
	rows, err := r.getQueryer().Query(ctx,
		`SELECT user_id, remark FROM weekly_remarks WHERE week = $1 AND user_id = ANY($2)`,
		week, userIds,
	)
	if err != nil {
		return nil, apperr.Storage("get weekly remarks", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userId int
		var remark string
		if err := rows.Scan(&userId, &remark); err != nil {
			return nil, apperr.Storage("scan weekly remark", err)
		}
		remarks[userId] = remark
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("get weekly remarks", err)
	}
	return remarks, nil
}

func (r *repositoryImpl) queryRecords(ctx context.Context, op string, query string, args ...any) ([]Record, error) {
	rows, err := r.getQueryer().Query(ctx, query, args...)
	if err != nil {
		log.Errorf("%s: %v", op, err)
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return records, nil
}

func scanRecord(row pgx.Row, extra ...any) (Record, error) {
	var rec Record
	var billable, nonBillable, leave string
	dest := []any{
		&rec.Id,
		&rec.UserId,
		&rec.ProjectId,
		&rec.Year,
		&rec.Week,
		&rec.WeekStart,
		&billable,
		&nonBillable,
		&leave,
		&rec.UpdatedBy,
		&rec.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Record{}, err
	}
	var err error
	if rec.Billable, err = decimal.NewFromString(billable); err != nil {
		return Record{}, fmt.Errorf("parse billable hours: %w", err)
	}
	if rec.NonBillable, err = decimal.NewFromString(nonBillable); err != nil {
		return Record{}, fmt.Errorf("parse non-billable hours: %w", err)
	}
	if rec.Leave, err = decimal.NewFromString(leave); err != nil {
		return Record{}, fmt.Errorf("parse leave hours: %w", err)
	}
	return rec, nil
}

func nonNil(weeks []int) []int {
	if weeks == nil {
		return []int{}
	}
	return weeks
}
