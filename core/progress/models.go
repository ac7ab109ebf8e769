package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

// Work statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Approval statuses
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

var errNotReviewable = "only completed items can be reviewed"

// Workflow holds the status and approval fields shared by milestones and tasks.
type Workflow struct {
	Status         string     `json:"status"`
	ApprovalStatus string     `json:"approval_status"`
	ApprovalNote   string     `json:"approval_note"`
	ReviewedBy     string     `json:"reviewed_by"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	DueDate        *time.Time `json:"due_date"`
}

func newWorkflow(dueDate *time.Time) Workflow {
	return Workflow{Status: StatusPending, ApprovalStatus: ApprovalPending, DueDate: dueDate}
}

// SetStatus moves the item to `to`. Entering or leaving completed resets the approval.
func (w *Workflow) SetStatus(to string, now time.Time) bool {
	if w.Status == to {
		return false
	}
	if to == StatusCompleted || w.Status == StatusCompleted {
		w.resetApproval()
	}
	if to == StatusCompleted {
		w.CompletedAt = &now
	} else {
		w.CompletedAt = nil
	}
	w.Status = to
	return true
}

// Review records a decision on a completed item. Rejection reopens it.
func (w *Workflow) Review(reviewerID string, r Review, now time.Time) error {
	if w.Status != StatusCompleted {
		return core.NewFieldError("status", errNotReviewable)
	}
	w.ApprovalStatus = r.Decision
	w.ApprovalNote = r.Note
	w.ReviewedBy = reviewerID
	w.ReviewedAt = &now
	if r.Decision == ApprovalRejected {
		w.Status = StatusInProgress
		w.CompletedAt = nil
	}
	return nil
}

// Reopen moves completed work back to in progress with a fresh approval.
func (w *Workflow) Reopen(now time.Time) bool {
	if w.Status != StatusCompleted {
		return false
	}
	return w.SetStatus(StatusInProgress, now)
}

func (w *Workflow) resetApproval() {
	w.ApprovalStatus = ApprovalPending
	w.ApprovalNote = ""
	w.ReviewedBy = ""
	w.ReviewedAt = nil
}

// IsOverdue reports a due date in the past on unfinished work.
func (w Workflow) IsOverdue(now time.Time) bool {
	return w.DueDate != nil && w.Status != StatusCompleted && w.DueDate.Before(now)
}

// IsDone reports completed and approved work.
func (w Workflow) IsDone() bool {
	return w.Status == StatusCompleted && w.ApprovalStatus == ApprovalApproved
}

type Milestone struct {
	ID          string `json:"id"`
	BookingID   string `json:"booking_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	Weight      int    `json:"weight"`
	Workflow
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// computed on read
	Progress int    `json:"progress"`
	Overdue  bool   `json:"is_overdue"`
	Tasks    []Task `json:"tasks"`
}

type Task struct {
	ID          string `json:"id"`
	MilestoneID string `json:"milestone_id"`
	Title       string `json:"title"`
	Position    int    `json:"position"`
	Workflow
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// computed on read
	Overdue bool `json:"is_overdue"`
}

// Summary is the progress overview of a booking.
type Summary struct {
	BookingID           string `json:"booking_id"`
	Progress            int    `json:"progress"`
	Milestones          int    `json:"milestones"`
	MilestonesCompleted int    `json:"milestones_completed"`
	MilestonesApproved  int    `json:"milestones_approved"`
	Tasks               int    `json:"tasks"`
	TasksCompleted      int    `json:"tasks_completed"`
	Overdue             int    `json:"overdue"`
}

type NewMilestone struct {
	Title       string     `json:"title" validate:"required,notblank,max=160"`
	Description string     `json:"description" validate:"max=2000"`
	DueDate     *time.Time `json:"due_date"`
	Weight      int        `json:"weight" validate:"omitempty,min=1,max=100"`
}

func (nm *NewMilestone) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// UpdateMilestone changes a milestone; nil fields are kept.
type UpdateMilestone struct {
	Title        *string    `json:"title" validate:"omitempty,notblank,max=160"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Weight       *int       `json:"weight" validate:"omitempty,min=1,max=100"`
	Position     *int       `json:"position" validate:"omitempty,min=0"`
}

func (um *UpdateMilestone) Validate(validate *validator.Validate) error {
	if um.Title != nil {
		*um.Title = core.CleanString(*um.Title)
	}
	if um.Description != nil {
		*um.Description = core.CleanString(*um.Description)
	}
	return validate.Struct(um)
}

type NewTask struct {
	Title   string     `json:"title" validate:"required,notblank,max=160"`
	DueDate *time.Time `json:"due_date"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

// UpdateTask changes a task; nil fields are kept.
type UpdateTask struct {
	Title        *string    `json:"title" validate:"omitempty,notblank,max=160"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Position     *int       `json:"position" validate:"omitempty,min=0"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	if ut.Title != nil {
		*ut.Title = core.CleanString(*ut.Title)
	}
	return validate.Struct(ut)
}

type StatusChange struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = core.CleanString(sc.Status, true /* lower */)
	return validate.Struct(sc)
}

// Review is the client's decision on completed work.
type Review struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Note     string `json:"note" validate:"max=1000"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Decision = core.CleanString(r.Decision, true /* lower */)
	r.Note = core.CleanString(r.Note)
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Decision == ApprovalRejected && r.Note == "" {
		return core.NewFieldError("note", "a note is required when rejecting")
	}
	return nil
}
