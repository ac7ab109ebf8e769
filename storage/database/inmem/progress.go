package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

// Milestones

func (repo *progressRepository) CreateMilestone(ctx context.Context, m progress.Milestone, exec ...core.DBExecutor) (progress.Milestone, error) {
	tbl := repo.db.milestones
	tbl.Lock()
	defer tbl.Unlock()

	m.ID = uuid.New().String()
	m.Tasks = nil
	tbl.t[m.ID] = m
	return m, nil
}

func (repo *progressRepository) GetMilestone(ctx context.Context, id string, exec ...core.DBExecutor) (progress.Milestone, error) {
	tbl := repo.db.milestones
	tbl.RLock()
	defer tbl.RUnlock()

	if m, ok := tbl.t[id]; ok {
		return m, nil
	}
	return progress.Milestone{}, progress.ErrMilestoneNotFound
}

func (repo *progressRepository) QueryMilestones(ctx context.Context, bookingID string, exec ...core.DBExecutor) ([]progress.Milestone, error) {
	tbl := repo.db.milestones
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]progress.Milestone, 0)
	for _, m := range tbl.t {
		if m.BookingID == bookingID {
			res = append(res, m)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Position != res[j].Position {
			return res[i].Position < res[j].Position
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *progressRepository) UpdateMilestone(ctx context.Context, m progress.Milestone, exec ...core.DBExecutor) (progress.Milestone, error) {
	tbl := repo.db.milestones
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.t[m.ID]
	if !ok {
		return progress.Milestone{}, progress.ErrMilestoneNotFound
	}
	m.BookingID = orig.BookingID
	m.CreatedAt = orig.CreatedAt
	// computed fields are not stored
	m.Tasks, m.Progress, m.Overdue = nil, 0, false
	tbl.t[m.ID] = m
	return m, nil
}

func (repo *progressRepository) DeleteMilestone(ctx context.Context, id string, exec ...core.DBExecutor) error {
	milestones, tasks := repo.db.milestones, repo.db.tasks
	milestones.Lock()
	defer milestones.Unlock()
	tasks.Lock()
	defer tasks.Unlock()

	if _, ok := milestones.t[id]; !ok {
		return progress.ErrMilestoneNotFound
	}
	delete(milestones.t, id)
	for tid, t := range tasks.t {
		if t.MilestoneID == id {
			delete(tasks.t, tid)
		}
	}
	return nil
}

// Tasks

func (repo *progressRepository) CreateTask(ctx context.Context, t progress.Task, exec ...core.DBExecutor) (progress.Task, error) {
	tbl := repo.db.tasks
	tbl.Lock()
	defer tbl.Unlock()

	t.ID = uuid.New().String()
	tbl.t[t.ID] = t
	return t, nil
}

func (repo *progressRepository) GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (progress.Task, error) {
	tbl := repo.db.tasks
	tbl.RLock()
	defer tbl.RUnlock()

	if t, ok := tbl.t[id]; ok {
		return t, nil
	}
	return progress.Task{}, progress.ErrTaskNotFound
}

func (repo *progressRepository) QueryTasks(ctx context.Context, milestoneIDs []string, exec ...core.DBExecutor) ([]progress.Task, error) {
	tbl := repo.db.tasks
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]progress.Task, 0)
	for _, t := range tbl.t {
		if containsString(milestoneIDs, t.MilestoneID) {
			res = append(res, t)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Position != res[j].Position {
			return res[i].Position < res[j].Position
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *progressRepository) UpdateTask(ctx context.Context, t progress.Task, exec ...core.DBExecutor) (progress.Task, error) {
	tbl := repo.db.tasks
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.t[t.ID]
	if !ok {
		return progress.Task{}, progress.ErrTaskNotFound
	}
	t.MilestoneID = orig.MilestoneID
	t.CreatedAt = orig.CreatedAt
	t.Overdue = false
	tbl.t[t.ID] = t
	return t, nil
}

func (repo *progressRepository) DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error {
	tbl := repo.db.tasks
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.t[id]; !ok {
		return progress.ErrTaskNotFound
	}
	delete(tbl.t, id)
	return nil
}
