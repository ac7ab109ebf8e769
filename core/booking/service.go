package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("booking")

	errServiceUnavailable = "service is not available for booking"
	errScheduledInPast    = "scheduled date must be in the future"
	errReasonRequired     = "a reason is required to cancel a booking"
	errUnfinishedWork     = "all milestones must be completed and approved first"
	errNotReschedulable   = "only pending or approved bookings can be rescheduled"
)

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (Booking, error)
		// LockBooking is GetBooking holding a row lock until exec's transaction ends.
		LockBooking(ctx context.Context, id string, exec core.DBExecutor) (Booking, error)
		// QueryBookings applies AND operation on available QueryFilter fields.
		QueryBookings(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Booking, error)
		UpdateBooking(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
	}

	// CompletionGuard counts the work left before a booking can be completed.
	CompletionGuard interface {
		UnfinishedMilestones(ctx context.Context, bookingID string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo      Repository
		offerings catalog.Repository
		profiles  profile.Repository
		tx        core.Transactor
		guard     CompletionGuard
		notifier  *Notifier
	}
)

func NewService(
	repo Repository,
	offerings catalog.Repository,
	profiles profile.Repository,
	tx core.Transactor,
	guard CompletionGuard,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:      repo,
		offerings: offerings,
		profiles:  profiles,
		tx:        tx,
		guard:     guard,
		notifier:  NewNotifier(profiles, mailSvc, conf),
	}
}

// Create books a service for actor; only clients book, so providers never book their own offerings.
func (svc *Service) Create(ctx context.Context, actor profile.Profile, nb NewBooking) (Booking, error) {
	if !actor.IsClient() {
		return Booking{}, core.ErrForbidden
	}

	o, err := svc.offerings.GetOffering(ctx, nb.ServiceID)
	if err != nil {
		if errors.Cause(err) == catalog.ErrNotFound {
			return Booking{}, core.NewFieldError("service_id", errServiceUnavailable)
		}
		return Booking{}, errors.Wrap(err, "getting service")
	}
	if !o.IsBookable() {
		return Booking{}, core.NewFieldError("service_id", errServiceUnavailable)
	}

	now := core.NowFunc()
	if nb.ScheduledAt != nil && !nb.ScheduledAt.After(now) {
		return Booking{}, core.NewFieldError("scheduled_at", errScheduledInPast)
	}

	b := Booking{
		ServiceID:    o.ID,
		ServiceTitle: o.Title,
		ClientID:     actor.ID,
		ProviderID:   o.ProviderID,
		Status:       StatusPending,
		ScheduledAt:  utcPtr(nb.ScheduledAt),
		Notes:        nb.Notes,
		Amount:       o.Price,
		Currency:     o.Currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b, err = svc.repo.CreateBooking(ctx, b)
	if err != nil {
		return Booking{}, errors.Wrap(err, "creating booking")
	}

	svc.notifier.notify(ctx, b, b.ProviderID,
		fmt.Sprintf("New booking request: %s", b.ServiceTitle),
		fmt.Sprintf("%s requested \"%s\" for %s.", actor.DisplayName(), b.ServiceTitle, core.FormatAmount(b.Amount, b.Currency)),
	)
	return b, nil
}

// Get returns the booking when actor is one of its participants or an admin.
func (svc *Service) Get(ctx context.Context, actor profile.Profile, id string, exec ...core.DBExecutor) (Booking, error) {
	b, err := svc.repo.GetBooking(ctx, id, exec...)
	if err != nil {
		return Booking{}, err
	}
	return visible(actor, b)
}

func visible(actor profile.Profile, b Booking) (Booking, error) {
	if !actor.IsAdmin() && !b.IsParticipant(actor.ID) {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

// Query lists the bookings visible to actor: their own, or all of them for admins.
func (svc *Service) Query(ctx context.Context, actor profile.Profile, filter *QueryFilter, ordering []core.DBOrdering) ([]Booking, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsAdmin():
	case actor.IsProvider():
		filter.ProviderID = actor.ID
	default:
		filter.ClientID = actor.ID
	}
	bookings, err := svc.repo.QueryBookings(ctx, filter, ordering)
	return bookings, errors.Wrap(err, "querying bookings")
}

// Transition moves a booking to another status, see transitions for the allowed changes.
func (svc *Service) Transition(ctx context.Context, actor profile.Profile, id string, sc StatusChange) (Booking, error) {
	var b Booking
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		locked, err := svc.repo.LockBooking(ctx, id, exec)
		if err != nil {
			return err
		}
		if b, err = visible(actor, locked); err != nil {
			return err
		}
		if b.Status == sc.Status {
			return core.NewFieldError("status", fmt.Sprintf("booking is already %s", sc.Status))
		}
		exists, allowed := CanTransition(actor, b, sc.Status)
		if !exists {
			return core.NewFieldError("status", fmt.Sprintf("a %s booking cannot be moved to %s", b.Status, sc.Status))
		}
		if !allowed {
			return core.ErrForbidden
		}

		now := core.NowFunc()
		switch sc.Status {
		case StatusApproved:
			b.ApprovedAt = &now
		case StatusInProgress:
			b.StartedAt = &now
		case StatusCompleted:
			if svc.guard != nil {
				left, err := svc.guard.UnfinishedMilestones(ctx, b.ID, exec)
				if err != nil {
					return errors.Wrap(err, "counting unfinished milestones")
				}
				if left > 0 {
					return core.NewFieldError("status", errUnfinishedWork)
				}
			}
			b.CompletedAt = &now
			b.Progress = 100
		case StatusCancelled:
			if sc.Reason == "" {
				return core.NewFieldError("reason", errReasonRequired)
			}
			b.CancelledAt = &now
			b.CancelReason = sc.Reason
		}
		b.Status = sc.Status
		b.UpdatedAt = now

		b, err = svc.repo.UpdateBooking(ctx, b, exec)
		return errors.Wrap(err, "updating booking")
	})
	if err != nil {
		return Booking{}, err
	}

	svc.notifier.StatusChanged(ctx, actor, b)
	return b, nil
}

// Reschedule changes the date or notes of a pending or approved booking.
func (svc *Service) Reschedule(ctx context.Context, actor profile.Profile, id string, rs Reschedule) (Booking, error) {
	b, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Booking{}, err
	}
	if !(b.Status == StatusPending || b.Status == StatusApproved) {
		return Booking{}, core.NewFieldError("status", errNotReschedulable)
	}

	now := core.NowFunc()
	if rs.ScheduledAt != nil {
		if !rs.ScheduledAt.After(now) {
			return Booking{}, core.NewFieldError("scheduled_at", errScheduledInPast)
		}
		b.ScheduledAt = utcPtr(rs.ScheduledAt)
	}
	if rs.Notes != nil {
		b.Notes = *rs.Notes
	}
	b.UpdatedAt = now

	b, err = svc.repo.UpdateBooking(ctx, b)
	return b, errors.Wrap(err, "rescheduling booking")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
