package allocation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
)

type remarkKey struct {
	userId int
	week   int
}

// RepositoryStub keeps records in memory. Transactions are serialized and rolled back on error.
type RepositoryStub struct {
	txMu           sync.Mutex
	mu             sync.RWMutex
	records        map[int]Record
	remarks        map[remarkKey]string
	nextId         int
	transactionErr error
	upsertErr      error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		records: make(map[int]Record),
		remarks: make(map[remarkKey]string),
		nextId:  1,
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	originalRecords := make(map[int]Record, len(r.records))
	for k, v := range r.records {
		originalRecords[k] = v
	}
	originalRemarks := make(map[remarkKey]string, len(r.remarks))
	for k, v := range r.remarks {
		originalRemarks[k] = v
	}
	originalNextId := r.nextId
	r.mu.Unlock()

	err := fn(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && r.transactionErr != nil {
		err = apperr.Storage("commit transaction", r.transactionErr)
	}
	if err != nil {
		r.records = originalRecords
		r.remarks = originalRemarks
		r.nextId = originalNextId
		return err
	}
	return nil
}

func (r *RepositoryStub) GetByKey(ctx context.Context, key Key) (Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Key() == key {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

func (r *RepositoryStub) GetById(ctx context.Context, id int) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, apperr.NotFound("allocation %d", id)
	}
	return rec, nil
}

func (r *RepositoryStub) Upsert(ctx context.Context, rec Record) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return Record{}, false, apperr.Storage("upsert allocation", r.upsertErr)
	}
	for id, existing := range r.records {
		if existing.Key() == rec.Key() {
			existing.Hours = rec.Hours
			existing.UpdatedBy = rec.UpdatedBy
			existing.UpdatedAt = time.Now()
			r.records[id] = existing
			return existing, false, nil
		}
	}
	rec.Id = r.nextId
	rec.UpdatedAt = time.Now()
	r.records[rec.Id] = rec
	r.nextId++
	return rec, true, nil
}

func (r *RepositoryStub) List(ctx context.Context, userId int, projectId int, year int, weeks []int) ([]Record, error) {
	return r.filter(func(rec Record) bool {
		return rec.UserId == userId && rec.ProjectId == projectId && rec.Year == year && inWeeks(rec.Week, weeks)
	}), nil
}

func (r *RepositoryStub) ListProject(ctx context.Context, projectId int, year int, weeks []int) ([]Record, error) {
	return r.filter(func(rec Record) bool {
		return rec.ProjectId == projectId && rec.Year == year && inWeeks(rec.Week, weeks)
	}), nil
}

func (r *RepositoryStub) ListProjectByWeekStarts(ctx context.Context, projectId int, weekStarts []time.Time) ([]Record, error) {
	return r.filter(func(rec Record) bool {
		if rec.ProjectId != projectId {
			return false
		}
		for _, start := range weekStarts {
			if rec.WeekStart.Equal(start) {
				return true
			}
		}
		return false
	}), nil
}

func (r *RepositoryStub) ListUserWeek(ctx context.Context, userId int, year int, week int) ([]Record, error) {
	return r.filter(func(rec Record) bool {
		return rec.UserId == userId && rec.Year == year && rec.Week == week
	}), nil
}

func (r *RepositoryStub) ListWeek(ctx context.Context, year int, week int) ([]Record, error) {
	return r.filter(func(rec Record) bool {
		return rec.Year == year && rec.Week == week
	}), nil
}

func (r *RepositoryStub) ListUsersHistory(ctx context.Context, userIds []int, year int, week int) ([]Record, error) {
	wanted := make(map[int]bool, len(userIds))
	for _, id := range userIds {
		wanted[id] = true
	}
	records := r.filter(func(rec Record) bool {
		return wanted[rec.UserId] && (rec.Year < year || rec.Year == year && rec.Week <= week)
	})
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.UserId != b.UserId {
			return a.UserId < b.UserId
		}
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.Week > b.Week
	})
	return records, nil
}

func (r *RepositoryStub) LatestWeek(ctx context.Context) (int, int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	year, week, found := 0, 0, false
	for _, rec := range r.records {
		if !found || rec.Year > year || (rec.Year == year && rec.Week > week) {
			year, week, found = rec.Year, rec.Week, true
		}
	}
	return year, week, found, nil
}

func (r *RepositoryStub) UpsertRemark(ctx context.Context, remark WeeklyRemark) (WeeklyRemark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remarks[remarkKey{remark.UserId, remark.Week}] = remark.Remark
	return remark, nil
}

func (r *RepositoryStub) GetRemarks(ctx context.Context, week int, userIds []int) (map[int]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	remarks := make(map[int]string)
	for _, userId := range userIds {
		if remark, ok := r.remarks[remarkKey{userId, week}]; ok {
			remarks[userId] = remark
		}
	}
	return remarks, nil
}

// Put stores rec as is, bypassing validation; used to arrange test fixtures.
func (r *RepositoryStub) Put(rec Record) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.Id == 0 {
		rec.Id = r.nextId
	}
	if rec.Id >= r.nextId {
		r.nextId = rec.Id + 1
	}
	r.records[rec.Id] = rec
	return rec
}

func (r *RepositoryStub) All() []Record {
	return r.filter(func(Record) bool { return true })
}

// SetTransactionError makes the next transactions fail at commit time.
func (r *RepositoryStub) SetTransactionError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactionErr = err
}

func (r *RepositoryStub) SetUpsertError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertErr = err
}

func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[int]Record)
	r.remarks = make(map[remarkKey]string)
	r.nextId = 1
	r.transactionErr = nil
	r.upsertErr = nil
}

func (r *RepositoryStub) filter(keep func(Record) bool) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Record
	for _, rec := range r.records {
		if keep(rec) {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Year != result[j].Year {
			return result[i].Year < result[j].Year
		}
		if result[i].Week != result[j].Week {
			return result[i].Week < result[j].Week
		}
		if result[i].UserId != result[j].UserId {
			return result[i].UserId < result[j].UserId
		}
		return result[i].ProjectId < result[j].ProjectId
	})
	return result
}

func inWeeks(week int, weeks []int) bool {
	if len(weeks) == 0 {
		return true
	}
	for _, w := range weeks {
		if w == week {
			return true
		}
	}
	return false
}
