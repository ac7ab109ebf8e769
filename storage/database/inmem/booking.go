package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
)

type bookingRepository struct {
	db *DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo *bookingRepository) CreateBooking(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	tbl := repo.db.bookings
	tbl.Lock()
	defer tbl.Unlock()

	b.ID = uuid.New().String()
	tbl.t[b.ID] = b
	return b, nil
}

func (repo *bookingRepository) GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (booking.Booking, error) {
	tbl := repo.db.bookings
	tbl.RLock()
	defer tbl.RUnlock()

	if b, ok := tbl.t[id]; ok {
		return b, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

// LockBooking relies on the Transactor serializing transactions.
func (repo *bookingRepository) LockBooking(ctx context.Context, id string, exec core.DBExecutor) (booking.Booking, error) {
	return repo.GetBooking(ctx, id, exec)
}

func (repo *bookingRepository) QueryBookings(ctx context.Context, filter *booking.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]booking.Booking, error) {
	tbl := repo.db.bookings
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]booking.Booking, 0, len(tbl.t))
	for _, b := range tbl.t {
		if filter != nil && !matchBooking(b, filter) {
			continue
		}
		res = append(res, b)
	}

	sortRows(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] }, ordering,
		core.DBOrdering{Field: "created_at"},
		func(field string, i, j int) int {
			switch field {
			case "updated_at":
				return cmpTime(res[i].UpdatedAt, res[j].UpdatedAt)
			case "scheduled_at":
				return cmpTimePtr(res[i].ScheduledAt, res[j].ScheduledAt)
			case "status":
				return cmpString(res[i].Status, res[j].Status)
			case "amount":
				return cmpInt(res[i].Amount, res[j].Amount)
			default:
				return cmpTime(res[i].CreatedAt, res[j].CreatedAt)
			}
		})
	return res, nil
}

func matchBooking(b booking.Booking, filter *booking.QueryFilter) bool {
	switch {
	case len(filter.Statuses) > 0 && !containsString(filter.Statuses, b.Status):
		return false
	case filter.ServiceID != "" && b.ServiceID != filter.ServiceID:
		return false
	case filter.ClientID != "" && b.ClientID != filter.ClientID:
		return false
	case filter.ProviderID != "" && b.ProviderID != filter.ProviderID:
		return false
	case !filter.ScheduledFrom.IsZero() && (b.ScheduledAt == nil || b.ScheduledAt.Before(filter.ScheduledFrom)):
		return false
	case !filter.ScheduledTo.IsZero() && (b.ScheduledAt == nil || b.ScheduledAt.After(filter.ScheduledTo)):
		return false
	}
	return true
}

func (repo *bookingRepository) UpdateBooking(ctx context.Context, b booking.Booking, exec ...core.DBExecutor) (booking.Booking, error) {
	tbl := repo.db.bookings
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.t[b.ID]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	// immutable columns
	b.ServiceID, b.ServiceTitle = orig.ServiceID, orig.ServiceTitle
	b.ClientID, b.ProviderID = orig.ClientID, orig.ProviderID
	b.Amount, b.Currency = orig.Amount, orig.Currency
	b.CreatedAt = orig.CreatedAt
	tbl.t[b.ID] = b
	return b, nil
}
