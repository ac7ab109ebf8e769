package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

var (
	// errors
	ErrMilestoneNotFound = core.NewNotFoundError("milestone")
	ErrTaskNotFound      = core.NewNotFoundError("task")

	errBookingClosed   = "progress can only change while the booking is approved or in progress"
	errDerivedStatus   = "the status of a milestone with tasks follows its tasks"
	defaultWeight      = 1
	editorPermission   = permission(canEdit)
	reviewerPermission = permission(canReview)
)

type (
	Repository interface {
		CreateMilestone(ctx context.Context, m Milestone, exec ...core.DBExecutor) (Milestone, error)
		GetMilestone(ctx context.Context, id string, exec ...core.DBExecutor) (Milestone, error)
		// QueryMilestones returns the milestones of a booking ordered by position then creation.
		QueryMilestones(ctx context.Context, bookingID string, exec ...core.DBExecutor) ([]Milestone, error)
		UpdateMilestone(ctx context.Context, m Milestone, exec ...core.DBExecutor) (Milestone, error)
		// DeleteMilestone also deletes its tasks.
		DeleteMilestone(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)
		GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (Task, error)
		// QueryTasks returns the tasks of the given milestones ordered by position then creation.
		QueryTasks(ctx context.Context, milestoneIDs []string, exec ...core.DBExecutor) ([]Task, error)
		UpdateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)
		DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// Service implements the milestone/task workflow of bookings.
	// Every write runs in one transaction which ends by re-deriving milestone
	// statuses and the booking progress.
	Service struct {
		repo     Repository
		bookings booking.Repository
		tx       core.Transactor
		notifier *booking.Notifier
	}

	permission func(actor profile.Profile, b booking.Booking) bool
)

var _ booking.CompletionGuard = (*Service)(nil) // interface compliance check

// NewService builds the progress workflow; notifier may be nil.
func NewService(repo Repository, bookings booking.Repository, tx core.Transactor, notifier *booking.Notifier) *Service {
	return &Service{repo: repo, bookings: bookings, tx: tx, notifier: notifier}
}

// providers structure and progress the work
func canEdit(actor profile.Profile, b booking.Booking) bool {
	return actor.IsAdmin() || actor.ID == b.ProviderID
}

// clients review it
func canReview(actor profile.Profile, b booking.Booking) bool {
	return actor.IsAdmin() || actor.ID == b.ClientID
}

// getBooking returns the booking when visible to actor.
func (svc *Service) getBooking(ctx context.Context, actor profile.Profile, id string, exec ...core.DBExecutor) (booking.Booking, error) {
	b, err := svc.bookings.GetBooking(ctx, id, exec...)
	if err != nil {
		return booking.Booking{}, err
	}
	if !actor.IsAdmin() && !b.IsParticipant(actor.ID) {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

// write runs fn for bookingID in a transaction holding the booking lock,
// then syncs the booking progress.
func (svc *Service) write(
	ctx context.Context,
	actor profile.Profile,
	bookingID string,
	allowed permission,
	derive bool,
	fn func(exec core.DBExecutor, b booking.Booking, now time.Time) error,
) error {
	var started *booking.Booking
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		// concurrent writes on one booking would derive from stale siblings
		b, err := svc.bookings.LockBooking(ctx, bookingID, exec)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !b.IsParticipant(actor.ID) {
			return booking.ErrNotFound
		}
		if !allowed(actor, b) {
			return core.ErrForbidden
		}
		if !b.IsOpen() {
			return core.NewFieldError("booking", errBookingClosed)
		}

		now := core.NowFunc()
		var before map[string]string
		if derive {
			if before, err = svc.derivedStatuses(ctx, b.ID, now, exec); err != nil {
				return err
			}
		}
		if err = fn(exec, b, now); err != nil {
			return err
		}
		synced, err := svc.sync(ctx, b, derive, before, now, exec)
		if err != nil {
			return err
		}
		if synced.Status != b.Status {
			started = &synced
		}
		return nil
	})
	if err != nil {
		return err
	}
	if started != nil && svc.notifier != nil {
		svc.notifier.StatusChanged(ctx, actor, *started)
	}
	return nil
}

// milestoneBooking resolves the booking of a milestone; hidden milestones are not found.
func (svc *Service) milestoneBooking(ctx context.Context, actor profile.Profile, milestoneID string) (string, error) {
	m, err := svc.repo.GetMilestone(ctx, milestoneID)
	if err != nil {
		return "", err
	}
	if _, err = svc.getBooking(ctx, actor, m.BookingID); err != nil {
		if core.IsNotFound(err) {
			return "", ErrMilestoneNotFound
		}
		return "", err
	}
	return m.BookingID, nil
}

func (svc *Service) taskBooking(ctx context.Context, actor profile.Profile, taskID string) (string, error) {
	t, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	bookingID, err := svc.milestoneBooking(ctx, actor, t.MilestoneID)
	if core.IsNotFound(err) {
		return "", ErrTaskNotFound
	}
	return bookingID, err
}

// derivedStatuses maps the milestones of a booking to the status their tasks give them.
func (svc *Service) derivedStatuses(ctx context.Context, bookingID string, now time.Time, exec ...core.DBExecutor) (map[string]string, error) {
	milestones, err := svc.load(ctx, bookingID, now, exec...)
	if err != nil {
		return nil, err
	}
	res := make(map[string]string, len(milestones))
	for _, m := range milestones {
		res[m.ID] = deriveStatus(m.Tasks)
	}
	return res, nil
}

// sync stores the booking progress. With derive set, milestones whose tasks
// now give another status than before the write take that status; a
// milestone the write left alone keeps its status and review.
// The first work started on an approved booking moves it to in progress.
// It returns the stored booking.
func (svc *Service) sync(
	ctx context.Context,
	b booking.Booking,
	derive bool,
	before map[string]string,
	now time.Time,
	exec ...core.DBExecutor,
) (booking.Booking, error) {
	milestones, err := svc.load(ctx, b.ID, now, exec...)
	if err != nil {
		return b, err
	}

	for i := range milestones {
		m := &milestones[i]
		if !derive {
			continue
		}
		derived := deriveStatus(m.Tasks)
		if prev, ok := before[m.ID]; derived == "" || (ok && prev == derived) || !m.SetStatus(derived, now) {
			continue
		}
		m.UpdatedAt = now
		updated, err := svc.repo.UpdateMilestone(ctx, *m, exec...)
		if err != nil {
			return b, errors.Wrap(err, "updating milestone")
		}
		m.Workflow = updated.Workflow
		m.Progress = milestonePercent(*m, m.Tasks)
		m.Overdue = m.IsOverdue(now)
	}

	changed := false
	if pct := bookingPercent(milestones); pct != b.Progress {
		b.Progress = pct
		changed = true
	}
	if b.Status == booking.StatusApproved && hasStarted(milestones) {
		b.Status = booking.StatusInProgress
		b.StartedAt = &now
		changed = true
	}
	if changed {
		b.UpdatedAt = now
		if b, err = svc.bookings.UpdateBooking(ctx, b, exec...); err != nil {
			return b, errors.Wrap(err, "updating booking progress")
		}
	}
	return b, nil
}

// load returns the milestones of a booking with their tasks and computed fields.
func (svc *Service) load(ctx context.Context, bookingID string, now time.Time, exec ...core.DBExecutor) ([]Milestone, error) {
	milestones, err := svc.repo.QueryMilestones(ctx, bookingID, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying milestones")
	}
	if len(milestones) == 0 {
		return []Milestone{}, nil
	}

	ids := make([]string, 0, len(milestones))
	for _, m := range milestones {
		ids = append(ids, m.ID)
	}
	tasks, err := svc.repo.QueryTasks(ctx, ids, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	byMilestone := make(map[string][]Task, len(milestones))
	for _, t := range tasks {
		t.Overdue = t.IsOverdue(now)
		byMilestone[t.MilestoneID] = append(byMilestone[t.MilestoneID], t)
	}

	for i := range milestones {
		m := &milestones[i]
		m.Tasks = byMilestone[m.ID]
		if m.Tasks == nil {
			m.Tasks = []Task{}
		}
		m.Progress = milestonePercent(*m, m.Tasks)
		m.Overdue = m.IsOverdue(now)
	}
	return milestones, nil
}

// List returns the milestones of a booking, with their tasks.
func (svc *Service) List(ctx context.Context, actor profile.Profile, bookingID string) ([]Milestone, error) {
	if _, err := svc.getBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return svc.load(ctx, bookingID, core.NowFunc())
}

func (svc *Service) Summary(ctx context.Context, actor profile.Profile, bookingID string) (Summary, error) {
	b, err := svc.getBooking(ctx, actor, bookingID)
	if err != nil {
		return Summary{}, err
	}
	now := core.NowFunc()
	milestones, err := svc.load(ctx, bookingID, now)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{BookingID: b.ID, Progress: b.Progress, Milestones: len(milestones)}
	for _, m := range milestones {
		if m.Status == StatusCompleted {
			s.MilestonesCompleted++
		}
		if m.IsDone() {
			s.MilestonesApproved++
		}
		if m.Overdue {
			s.Overdue++
		}
		for _, t := range m.Tasks {
			s.Tasks++
			if t.Status == StatusCompleted {
				s.TasksCompleted++
			}
			if t.Overdue {
				s.Overdue++
			}
		}
	}
	return s, nil
}

// UnfinishedMilestones counts the milestones not yet completed and approved.
func (svc *Service) UnfinishedMilestones(ctx context.Context, bookingID string, exec ...core.DBExecutor) (int, error) {
	milestones, err := svc.repo.QueryMilestones(ctx, bookingID, exec...)
	if err != nil {
		return 0, errors.Wrap(err, "querying milestones")
	}
	var left int
	for _, m := range milestones {
		if !m.IsDone() {
			left++
		}
	}
	return left, nil
}

// Milestones

func (svc *Service) CreateMilestone(ctx context.Context, actor profile.Profile, bookingID string, nm NewMilestone) (Milestone, error) {
	var m Milestone
	err := svc.write(ctx, actor, bookingID, editorPermission, false, func(exec core.DBExecutor, b booking.Booking, now time.Time) error {
		existing, err := svc.repo.QueryMilestones(ctx, b.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying milestones")
		}
		m = Milestone{
			BookingID:   b.ID,
			Title:       nm.Title,
			Description: nm.Description,
			Position:    len(existing),
			Weight:      nm.Weight,
			Workflow:    newWorkflow(utcPtr(nm.DueDate)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if m.Weight == 0 {
			m.Weight = defaultWeight
		}
		m, err = svc.repo.CreateMilestone(ctx, m, exec)
		return errors.Wrap(err, "creating milestone")
	})
	if err != nil {
		return Milestone{}, err
	}
	m.Tasks = []Task{}
	return m, nil
}

func (svc *Service) UpdateMilestone(ctx context.Context, actor profile.Profile, id string, um UpdateMilestone) (Milestone, error) {
	return svc.changeMilestone(ctx, actor, id, editorPermission, func(_ core.DBExecutor, m *Milestone, now time.Time) error {
		if um.Title != nil {
			m.Title = *um.Title
		}
		if um.Description != nil {
			m.Description = *um.Description
		}
		if um.ClearDueDate {
			m.DueDate = nil
		} else if um.DueDate != nil {
			m.DueDate = utcPtr(um.DueDate)
		}
		if um.Weight != nil {
			m.Weight = *um.Weight
		}
		if um.Position != nil {
			m.Position = *um.Position
		}
		return nil
	})
}

// SetMilestoneStatus changes the status of a milestone without tasks.
func (svc *Service) SetMilestoneStatus(ctx context.Context, actor profile.Profile, id string, sc StatusChange) (Milestone, error) {
	return svc.changeMilestone(ctx, actor, id, editorPermission, func(_ core.DBExecutor, m *Milestone, now time.Time) error {
		if len(m.Tasks) > 0 {
			return core.NewFieldError("status", errDerivedStatus)
		}
		m.SetStatus(sc.Status, now)
		return nil
	})
}

// ReviewMilestone approves or rejects a completed milestone. Rejecting a
// milestone with tasks reopens its completed tasks so its status keeps
// following them.
func (svc *Service) ReviewMilestone(ctx context.Context, actor profile.Profile, id string, r Review) (Milestone, error) {
	return svc.changeMilestone(ctx, actor, id, reviewerPermission, func(exec core.DBExecutor, m *Milestone, now time.Time) error {
		if err := m.Review(actor.ID, r, now); err != nil {
			return err
		}
		if r.Decision != ApprovalRejected {
			return nil
		}
		for i := range m.Tasks {
			t := &m.Tasks[i]
			if !t.Reopen(now) {
				continue
			}
			t.UpdatedAt = now
			updated, err := svc.repo.UpdateTask(ctx, *t, exec)
			if err != nil {
				return errors.Wrap(err, "reopening task")
			}
			updated.Overdue = updated.IsOverdue(now)
			*t = updated
		}
		return nil
	})
}

func (svc *Service) DeleteMilestone(ctx context.Context, actor profile.Profile, id string) error {
	bookingID, err := svc.milestoneBooking(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.write(ctx, actor, bookingID, editorPermission, false, func(exec core.DBExecutor, b booking.Booking, now time.Time) error {
		return errors.Wrap(svc.repo.DeleteMilestone(ctx, id, exec), "deleting milestone")
	})
}

// changeMilestone loads milestone id with its tasks, applies fn and stores it.
func (svc *Service) changeMilestone(
	ctx context.Context,
	actor profile.Profile,
	id string,
	allowed permission,
	fn func(exec core.DBExecutor, m *Milestone, now time.Time) error,
) (Milestone, error) {
	bookingID, err := svc.milestoneBooking(ctx, actor, id)
	if err != nil {
		return Milestone{}, err
	}

	var m Milestone
	err = svc.write(ctx, actor, bookingID, allowed, false, func(exec core.DBExecutor, b booking.Booking, now time.Time) error {
		milestones, err := svc.load(ctx, b.ID, now, exec)
		if err != nil {
			return err
		}
		found := false
		for _, ms := range milestones {
			if ms.ID == id {
				m, found = ms, true
				break
			}
		}
		if !found {
			return ErrMilestoneNotFound
		}
		if err = fn(exec, &m, now); err != nil {
			return err
		}
		m.UpdatedAt = now
		tasks := m.Tasks
		if m, err = svc.repo.UpdateMilestone(ctx, m, exec); err != nil {
			return errors.Wrap(err, "updating milestone")
		}
		m.Tasks = tasks
		return nil
	})
	if err != nil {
		return Milestone{}, err
	}
	now := core.NowFunc()
	m.Progress = milestonePercent(m, m.Tasks)
	m.Overdue = m.IsOverdue(now)
	return m, nil
}

// Tasks

func (svc *Service) CreateTask(ctx context.Context, actor profile.Profile, milestoneID string, nt NewTask) (Task, error) {
	bookingID, err := svc.milestoneBooking(ctx, actor, milestoneID)
	if err != nil {
		return Task{}, err
	}

	var t Task
	err = svc.write(ctx, actor, bookingID, editorPermission, true, func(exec core.DBExecutor, b booking.Booking, now time.Time) error {
		existing, err := svc.repo.QueryTasks(ctx, []string{milestoneID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying tasks")
		}
		t = Task{
			MilestoneID: milestoneID,
			Title:       nt.Title,
			Position:    len(existing),
			Workflow:    newWorkflow(utcPtr(nt.DueDate)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		t, err = svc.repo.CreateTask(ctx, t, exec)
		return errors.Wrap(err, "creating task")
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (svc *Service) UpdateTask(ctx context.Context, actor profile.Profile, id string, ut UpdateTask) (Task, error) {
	return svc.changeTask(ctx, actor, id, editorPermission, func(t *Task, now time.Time) error {
		if ut.Title != nil {
			t.Title = *ut.Title
		}
		if ut.ClearDueDate {
			t.DueDate = nil
		} else if ut.DueDate != nil {
			t.DueDate = utcPtr(ut.DueDate)
		}
		if ut.Position != nil {
			t.Position = *ut.Position
		}
		return nil
	})
}

func (svc *Service) SetTaskStatus(ctx context.Context, actor profile.Profile, id string, sc StatusChange) (Task, error) {
	return svc.changeTask(ctx, actor, id, editorPermission, func(t *Task, now time.Time) error {
		t.SetStatus(sc.Status, now)
		return nil
	})
}

func (svc *Service) ReviewTask(ctx context.Context, actor profile.Profile, id string, r Review) (Task, error) {
	return svc.changeTask(ctx, actor, id, reviewerPermission, func(t *Task, now time.Time) error {
		return t.Review(actor.ID, r, now)
	})
}

func (svc *Service) DeleteTask(ctx context.Context, actor profile.Profile, id string) error {
	bookingID, err := svc.taskBooking(ctx, actor, id)
	if err != nil {
		return err
	}
	return svc.write(ctx, actor, bookingID, editorPermission, true, func(exec core.DBExecutor, b booking.Booking, now time.Time) error {
		return errors.Wrap(svc.repo.DeleteTask(ctx, id, exec), "deleting task")
	})
}

func (svc *Service) changeTask(
	ctx context.Context,
	actor profile.Profile,
	id string,
	allowed permission,
	fn func(t *Task, now time.Time) error,
) (Task, error) {
	bookingID, err := svc.taskBooking(ctx, actor, id)
	if err != nil {
		return Task{}, err
	}

	var t Task
	err = svc.write(ctx, actor, bookingID, allowed, true, func(exec core.DBExecutor, b booking.Booking, now time.Time) error {
		var err error
		if t, err = svc.repo.GetTask(ctx, id, exec); err != nil {
			return err
		}
		if err = fn(&t, now); err != nil {
			return err
		}
		t.UpdatedAt = now
		t, err = svc.repo.UpdateTask(ctx, t, exec)
		return errors.Wrap(err, "updating task")
	})
	if err != nil {
		return Task{}, err
	}
	t.Overdue = t.IsOverdue(core.NowFunc())
	return t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
