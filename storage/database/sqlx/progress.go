package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
)

const (
	workflowColumns  = "due_date, status, approval_status, approval_note, approved_by, approved_at, completed_at"
	milestoneColumns = "id, booking_id, title, description, position, weight, " + workflowColumns + ", created_at, updated_at"
	taskColumns      = "id, milestone_id, title, position, " + workflowColumns + ", created_at, updated_at"
)

type workflowRow struct {
	DueDate        null.Time   `db:"due_date"`
	Status         string      `db:"status"`
	ApprovalStatus string      `db:"approval_status"`
	ApprovalNote   string      `db:"approval_note"`
	ApprovedBy     null.String `db:"approved_by"`
	ApprovedAt     null.Time   `db:"approved_at"`
	CompletedAt    null.Time   `db:"completed_at"`
}

func newWorkflowRow(w progress.Workflow) workflowRow {
	return workflowRow{
		DueDate:        nullTime(w.DueDate),
		Status:         w.Status,
		ApprovalStatus: w.ApprovalStatus,
		ApprovalNote:   w.ApprovalNote,
		ApprovedBy:     nullString(w.ReviewedBy),
		ApprovedAt:     nullTime(w.ReviewedAt),
		CompletedAt:    nullTime(w.CompletedAt),
	}
}

func (r workflowRow) workflow() progress.Workflow {
	return progress.Workflow{
		Status:         r.Status,
		ApprovalStatus: r.ApprovalStatus,
		ApprovalNote:   r.ApprovalNote,
		ReviewedBy:     r.ApprovedBy.String,
		ReviewedAt:     utcPtr(r.ApprovedAt),
		CompletedAt:    utcPtr(r.CompletedAt),
		DueDate:        utcPtr(r.DueDate),
	}
}

type milestoneRow struct {
	ID          string `db:"id"`
	BookingID   string `db:"booking_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Position    int    `db:"position"`
	Weight      int    `db:"weight"`
	workflowRow
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newMilestoneRow(m progress.Milestone) milestoneRow {
	return milestoneRow{
		ID:          m.ID,
		BookingID:   m.BookingID,
		Title:       m.Title,
		Description: m.Description,
		Position:    m.Position,
		Weight:      m.Weight,
		workflowRow: newWorkflowRow(m.Workflow),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func (r milestoneRow) milestone() progress.Milestone {
	return progress.Milestone{
		ID:          r.ID,
		BookingID:   r.BookingID,
		Title:       r.Title,
		Description: r.Description,
		Position:    r.Position,
		Weight:      r.Weight,
		Workflow:    r.workflow(),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type taskRow struct {
	ID          string `db:"id"`
	MilestoneID string `db:"milestone_id"`
	Title       string `db:"title"`
	Position    int    `db:"position"`
	workflowRow
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newTaskRow(t progress.Task) taskRow {
	return taskRow{
		ID:          t.ID,
		MilestoneID: t.MilestoneID,
		Title:       t.Title,
		Position:    t.Position,
		workflowRow: newWorkflowRow(t.Workflow),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (r taskRow) task() progress.Task {
	return progress.Task{
		ID:          r.ID,
		MilestoneID: r.MilestoneID,
		Title:       r.Title,
		Position:    r.Position,
		Workflow:    r.workflow(),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type progressRepository struct {
	base
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{base{db: db}}
}

// Milestones

func (repo progressRepository) CreateMilestone(ctx context.Context, m progress.Milestone, exec ...core.DBExecutor) (progress.Milestone, error) {
	m.ID = uuid.New().String()
	q := `INSERT INTO milestones (` + milestoneColumns + `) VALUES (:id, :booking_id, :title, :description,
		:position, :weight, :due_date, :status, :approval_status, :approval_note, :approved_by, :approved_at,
		:completed_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newMilestoneRow(m)); err != nil {
		return progress.Milestone{}, errors.Wrap(err, "inserting milestone")
	}
	return m, nil
}

func (repo progressRepository) GetMilestone(ctx context.Context, id string, exec ...core.DBExecutor) (progress.Milestone, error) {
	if _, err := uuid.Parse(id); err != nil {
		return progress.Milestone{}, progress.ErrMilestoneNotFound
	}
	var row milestoneRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+milestoneColumns+" FROM milestones WHERE id = $1", id)
	if err != nil {
		return progress.Milestone{}, trapNoRowsErr(err, progress.ErrMilestoneNotFound, "getting milestone")
	}
	return row.milestone(), nil
}

func (repo progressRepository) QueryMilestones(ctx context.Context, bookingID string, exec ...core.DBExecutor) ([]progress.Milestone, error) {
	var rows []milestoneRow
	q := "SELECT " + milestoneColumns + " FROM milestones WHERE booking_id = $1 ORDER BY position, created_at"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, bookingID); err != nil {
		return nil, errors.Wrap(err, "querying milestones")
	}
	milestones := make([]progress.Milestone, 0, len(rows))
	for _, r := range rows {
		milestones = append(milestones, r.milestone())
	}
	return milestones, nil
}

func (repo progressRepository) UpdateMilestone(ctx context.Context, m progress.Milestone, exec ...core.DBExecutor) (progress.Milestone, error) {
	q := `UPDATE milestones SET title = :title, description = :description, position = :position, weight = :weight,
		due_date = :due_date, status = :status, approval_status = :approval_status, approval_note = :approval_note,
		approved_by = :approved_by, approved_at = :approved_at, completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newMilestoneRow(m))
	if err != nil {
		return progress.Milestone{}, errors.Wrap(err, "updating milestone")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.Milestone{}, progress.ErrMilestoneNotFound
	}
	return m, nil
}

// DeleteMilestone relies on ON DELETE CASCADE for the tasks.
func (repo progressRepository) DeleteMilestone(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM milestones WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting milestone")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.ErrMilestoneNotFound
	}
	return nil
}

// Tasks

func (repo progressRepository) CreateTask(ctx context.Context, t progress.Task, exec ...core.DBExecutor) (progress.Task, error) {
	t.ID = uuid.New().String()
	q := `INSERT INTO tasks (` + taskColumns + `) VALUES (:id, :milestone_id, :title, :position, :due_date, :status,
		:approval_status, :approval_note, :approved_by, :approved_at, :completed_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newTaskRow(t)); err != nil {
		return progress.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo progressRepository) GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (progress.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return progress.Task{}, progress.ErrTaskNotFound
	}
	var row taskRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	if err != nil {
		return progress.Task{}, trapNoRowsErr(err, progress.ErrTaskNotFound, "getting task")
	}
	return row.task(), nil
}

func (repo progressRepository) QueryTasks(ctx context.Context, milestoneIDs []string, exec ...core.DBExecutor) ([]progress.Task, error) {
	if len(milestoneIDs) == 0 {
		return []progress.Task{}, nil
	}
	var rows []taskRow
	q := "SELECT " + taskColumns + " FROM tasks WHERE milestone_id = ANY($1::uuid[]) ORDER BY position, created_at"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, pq.Array(milestoneIDs)); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]progress.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

func (repo progressRepository) UpdateTask(ctx context.Context, t progress.Task, exec ...core.DBExecutor) (progress.Task, error) {
	q := `UPDATE tasks SET title = :title, position = :position, due_date = :due_date, status = :status,
		approval_status = :approval_status, approval_note = :approval_note, approved_by = :approved_by,
		approved_at = :approved_at, completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newTaskRow(t))
	if err != nil {
		return progress.Task{}, errors.Wrap(err, "updating task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.Task{}, progress.ErrTaskNotFound
	}
	return t, nil
}

func (repo progressRepository) DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.ErrTaskNotFound
	}
	return nil
}
