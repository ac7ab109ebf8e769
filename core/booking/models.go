package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

// Booking statuses
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var AllStatuses = []string{StatusPending, StatusApproved, StatusInProgress, StatusCompleted, StatusCancelled}

// Booking is a reserved instance of a service between a client and its provider.
type Booking struct {
	ID           string     `json:"id"`
	ServiceID    string     `json:"service_id"`
	ServiceTitle string     `json:"service_title"` // at booking time
	ClientID     string     `json:"client_id"`
	ProviderID   string     `json:"provider_id"`
	Status       string     `json:"status"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	Notes        string     `json:"notes"`
	Amount       int64      `json:"amount"` // minor units
	Currency     string     `json:"currency"`
	Progress     int        `json:"progress"` // 0..100
	ApprovedAt   *time.Time `json:"approved_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelReason string     `json:"cancel_reason"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (b Booking) IsParticipant(profileID string) bool {
	return profileID != "" && (b.ClientID == profileID || b.ProviderID == profileID)
}

// IsOpen reports whether work can still happen on the booking.
func (b Booking) IsOpen() bool {
	return b.Status == StatusApproved || b.Status == StatusInProgress
}

func (b Booking) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// NewBooking contains information needed to book a service.
type NewBooking struct {
	ServiceID   string     `json:"service_id" validate:"required,uuid"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Notes       string     `json:"notes" validate:"max=2000"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.ServiceID = core.CleanString(nb.ServiceID, true /* lower */)
	nb.Notes = core.CleanString(nb.Notes)
	return validate.Struct(nb)
}

// StatusChange asks for a booking to move to another status.
type StatusChange struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=1000"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = core.CleanString(sc.Status, true /* lower */)
	sc.Reason = core.CleanString(sc.Reason)
	return validate.Struct(sc)
}

// Reschedule changes the date or the notes of a booking that has not started.
type Reschedule struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	Notes       *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (rs *Reschedule) Validate(validate *validator.Validate) error {
	if rs.Notes != nil {
		*rs.Notes = core.CleanString(*rs.Notes)
	}
	return validate.Struct(rs)
}

type QueryFilter struct {
	Statuses      []string
	ServiceID     string
	ClientID      string
	ProviderID    string
	ScheduledFrom time.Time
	ScheduledTo   time.Time
}

func (qf *QueryFilter) Clean() {
	statuses := qf.Statuses[:0]
	for _, s := range qf.Statuses {
		if s = core.CleanString(s, true); s != "" {
			statuses = append(statuses, s)
		}
	}
	qf.Statuses = statuses
	qf.ServiceID = core.CleanString(qf.ServiceID, true)
}

// OrderingFields are the fields bookings can be ordered by.
var OrderingFields = []string{"created_at", "updated_at", "scheduled_at", "status", "amount"}
