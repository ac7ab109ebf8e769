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
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
)

const bookingColumns = `id, service_id, service_title, client_id, provider_id, status, scheduled_at, notes,
	amount, currency, progress, approved_at, started_at, completed_at, cancelled_at, cancel_reason,
	created_at, updated_at`

type bookingRow struct {
	ID           string    `db:"id"`
	ServiceID    string    `db:"service_id"`
	ServiceTitle string    `db:"service_title"`
	ClientID     string    `db:"client_id"`
	ProviderID   string    `db:"provider_id"`
	Status       string    `db:"status"`
	ScheduledAt  null.Time `db:"scheduled_at"`
	Notes        string    `db:"notes"`
	Amount       int64     `db:"amount"`
	Currency     string    `db:"currency"`
	Progress     int       `db:"progress"`
	ApprovedAt   null.Time `db:"approved_at"`
	StartedAt    null.Time `db:"started_at"`
	CompletedAt  null.Time `db:"completed_at"`
	CancelledAt  null.Time `db:"cancelled_at"`
	CancelReason string    `db:"cancel_reason"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func newBookingRow(b booking.Booking) bookingRow {
	return bookingRow{
		ID:           b.ID,
		ServiceID:    b.ServiceID,
		ServiceTitle: b.ServiceTitle,
		ClientID:     b.ClientID,
		ProviderID:   b.ProviderID,
		Status:       b.Status,
		ScheduledAt:  nullTime(b.ScheduledAt),
		Notes:        b.Notes,
		Amount:       b.Amount,
		Currency:     b.Currency,
		Progress:     b.Progress,
		ApprovedAt:   nullTime(b.ApprovedAt),
		StartedAt:    nullTime(b.StartedAt),
		CompletedAt:  nullTime(b.CompletedAt),
		CancelledAt:  nullTime(b.CancelledAt),
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt.UTC(),
		UpdatedAt:    b.UpdatedAt.UTC(),
	}
}

func (r bookingRow) booking() booking.Booking {
	return booking.Booking{
		ID:           r.ID,
		ServiceID:    r.ServiceID,
		ServiceTitle: r.ServiceTitle,
		ClientID:     r.ClientID,
		ProviderID:   r.ProviderID,
		Status:       r.Status,
		ScheduledAt:  utcPtr(r.ScheduledAt),
		Notes:        r.Notes,
		Amount:       r.Amount,
		Currency:     r.Currency,
		Progress:     r.Progress,
		ApprovedAt:   utcPtr(r.ApprovedAt),
		StartedAt:    utcPtr(r.StartedAt),
		CompletedAt:  utcPtr(r.CompletedAt),
		CancelledAt:  utcPtr(r.CancelledAt),
		CancelReason: r.CancelReason,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type bookingRepository struct {
	base
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *sqlx.DB) *bookingRepository {
	return &bookingRepository{base{db: db}}
}

func (repo bookingRepository) CreateBooking(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	b.ID = uuid.New().String()
	q := `INSERT INTO bookings (` + bookingColumns + `) VALUES (:id, :service_id, :service_title, :client_id,
		:provider_id, :status, :scheduled_at, :notes, :amount, :currency, :progress, :approved_at, :started_at,
		:completed_at, :cancelled_at, :cancel_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newBookingRow(b)); err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return b, nil
}

func (repo bookingRepository) GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (booking.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Booking{}, booking.ErrNotFound
	}
	var row bookingRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1", id)
	if err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "getting booking")
	}
	return row.booking(), nil
}

func (repo bookingRepository) LockBooking(ctx context.Context, id string, exec core.DBExecutor) (booking.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return booking.Booking{}, booking.ErrNotFound
	}
	var row bookingRow
	err := sqlx.GetContext(ctx, repo.getExec([]core.DBExecutor{exec}), &row,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "locking booking")
	}
	return row.booking(), nil
}

func (repo bookingRepository) QueryBookings(ctx context.Context, filter *booking.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]booking.Booking, error) {
	var w where
	if filter != nil {
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		for col, id := range map[string]string{
			"service_id":  filter.ServiceID,
			"client_id":   filter.ClientID,
			"provider_id": filter.ProviderID,
		} {
			if id == "" {
				continue
			}
			if _, err := uuid.Parse(id); err != nil {
				return []booking.Booking{}, nil
			}
			w.add(col+" = ?", id)
		}
		if !filter.ScheduledFrom.IsZero() {
			w.add("scheduled_at >= ?", filter.ScheduledFrom.UTC())
		}
		if !filter.ScheduledTo.IsZero() {
			w.add("scheduled_at <= ?", filter.ScheduledTo.UTC())
		}
	}

	q := "SELECT " + bookingColumns + " FROM bookings" + w.String() +
		" ORDER BY " + core.OrderByClause(ordering, "created_at DESC")
	var rows []bookingRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.booking())
	}
	return bookings, nil
}

func (repo bookingRepository) UpdateBooking(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	q := `UPDATE bookings SET status = :status, scheduled_at = :scheduled_at, notes = :notes, progress = :progress,
		approved_at = :approved_at, started_at = :started_at, completed_at = :completed_at,
		cancelled_at = :cancelled_at, cancel_reason = :cancel_reason, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newBookingRow(b))
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "updating booking")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
