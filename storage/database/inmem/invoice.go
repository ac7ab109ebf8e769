package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
)

type invoiceRepository struct {
	db *DB
}

var _ invoice.Repository = (*invoiceRepository)(nil) // interface compliance check

func NewInvoiceRepository(db *DB) *invoiceRepository {
	return &invoiceRepository{db: db}
}

func (repo *invoiceRepository) CreateInvoice(ctx context.Context, inv invoice.Invoice, exec ...core.DBExecutor) (invoice.Invoice, error) {
	tbl := repo.db.invoices
	tbl.Lock()
	defer tbl.Unlock()

	for _, existing := range tbl.t {
		if existing.BookingID == inv.BookingID {
			return invoice.Invoice{}, invoice.ErrExists
		}
	}
	inv.ID = uuid.New().String()
	items := make([]invoice.Item, len(inv.Items))
	for i, it := range inv.Items {
		it.ID = uuid.New().String()
		it.InvoiceID = inv.ID
		items[i] = it
	}
	inv.Items = items
	inv.Overdue = false
	tbl.t[inv.ID] = inv
	return inv, nil
}

func (repo *invoiceRepository) GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (invoice.Invoice, error) {
	tbl := repo.db.invoices
	tbl.RLock()
	defer tbl.RUnlock()

	if inv, ok := tbl.t[id]; ok {
		return withItems(inv), nil
	}
	return invoice.Invoice{}, invoice.ErrNotFound
}

func (repo *invoiceRepository) GetInvoiceByBooking(ctx context.Context, bookingID string, exec ...core.DBExecutor) (invoice.Invoice, error) {
	tbl := repo.db.invoices
	tbl.RLock()
	defer tbl.RUnlock()

	for _, inv := range tbl.t {
		if inv.BookingID == bookingID {
			return withItems(inv), nil
		}
	}
	return invoice.Invoice{}, invoice.ErrNotFound
}

// withItems copies the items so callers cannot change the stored ones.
func withItems(inv invoice.Invoice) invoice.Invoice {
	inv.Items = append([]invoice.Item{}, inv.Items...)
	return inv
}

func (repo *invoiceRepository) QueryInvoices(ctx context.Context, filter *invoice.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]invoice.Invoice, error) {
	tbl := repo.db.invoices
	tbl.RLock()
	defer tbl.RUnlock()

	res := make([]invoice.Invoice, 0, len(tbl.t))
	for _, inv := range tbl.t {
		if filter != nil && !matchInvoice(inv, filter) {
			continue
		}
		inv.Items = nil
		res = append(res, inv)
	}

	sortRows(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] }, ordering,
		core.DBOrdering{Field: "issued_at"},
		func(field string, i, j int) int {
			switch field {
			case "due_date":
				return cmpTime(res[i].DueDate, res[j].DueDate)
			case "number":
				return cmpString(res[i].Number, res[j].Number)
			case "total":
				return cmpInt(res[i].Total, res[j].Total)
			case "status":
				return cmpString(res[i].Status, res[j].Status)
			default:
				return cmpTime(res[i].IssuedAt, res[j].IssuedAt)
			}
		})
	return res, nil
}

func matchInvoice(inv invoice.Invoice, filter *invoice.QueryFilter) bool {
	switch {
	case filter.Status != "" && inv.Status != filter.Status:
		return false
	case filter.BookingID != "" && inv.BookingID != filter.BookingID:
		return false
	case filter.ClientID != "" && inv.ClientID != filter.ClientID:
		return false
	case filter.ProviderID != "" && inv.ProviderID != filter.ProviderID:
		return false
	case filter.DueBefore != nil && !inv.DueDate.Before(*filter.DueBefore):
		return false
	}
	return true
}

func (repo *invoiceRepository) UpdateInvoice(ctx context.Context, inv invoice.Invoice, exec ...core.DBExecutor) (invoice.Invoice, error) {
	tbl := repo.db.invoices
	tbl.Lock()
	defer tbl.Unlock()

	orig, ok := tbl.t[inv.ID]
	if !ok {
		return invoice.Invoice{}, invoice.ErrNotFound
	}
	orig.Status = inv.Status
	orig.PaidAt = inv.PaidAt
	orig.VoidedAt = inv.VoidedAt
	orig.VoidReason = inv.VoidReason
	orig.Notes = inv.Notes
	orig.UpdatedAt = inv.UpdatedAt
	tbl.t[inv.ID] = orig
	return withItems(orig), nil
}

func (repo *invoiceRepository) NextSequence(ctx context.Context, period string, exec ...core.DBExecutor) (int, error) {
	tbl := repo.db.invoices
	tbl.Lock()
	defer tbl.Unlock()

	tbl.sequences[period]++
	return tbl.sequences[period], nil
}
