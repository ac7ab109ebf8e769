package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
)

const (
	invoiceColumns = `id, number, booking_id, client_id, provider_id, currency, subtotal, tax_rate, tax_amount, total,
	status, issued_at, due_date, paid_at, voided_at, void_reason, notes, created_at, updated_at`
	invoiceItemColumns = "id, invoice_id, position, description, quantity, unit_amount, amount"
)

type invoiceRow struct {
	ID         string    `db:"id"`
	Number     string    `db:"number"`
	BookingID  string    `db:"booking_id"`
	ClientID   string    `db:"client_id"`
	ProviderID string    `db:"provider_id"`
	Currency   string    `db:"currency"`
	Subtotal   int64     `db:"subtotal"`
	TaxRate    int       `db:"tax_rate"`
	TaxAmount  int64     `db:"tax_amount"`
	Total      int64     `db:"total"`
	Status     string    `db:"status"`
	IssuedAt   time.Time `db:"issued_at"`
	DueDate    time.Time `db:"due_date"`
	PaidAt     null.Time `db:"paid_at"`
	VoidedAt   null.Time `db:"voided_at"`
	VoidReason string    `db:"void_reason"`
	Notes      string    `db:"notes"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func newInvoiceRow(inv invoice.Invoice) invoiceRow {
	return invoiceRow{
		ID:         inv.ID,
		Number:     inv.Number,
		BookingID:  inv.BookingID,
		ClientID:   inv.ClientID,
		ProviderID: inv.ProviderID,
		Currency:   inv.Currency,
		Subtotal:   inv.Subtotal,
		TaxRate:    inv.TaxRate,
		TaxAmount:  inv.TaxAmount,
		Total:      inv.Total,
		Status:     inv.Status,
		IssuedAt:   inv.IssuedAt.UTC(),
		DueDate:    inv.DueDate.UTC(),
		PaidAt:     nullTime(inv.PaidAt),
		VoidedAt:   nullTime(inv.VoidedAt),
		VoidReason: inv.VoidReason,
		Notes:      inv.Notes,
		CreatedAt:  inv.CreatedAt.UTC(),
		UpdatedAt:  inv.UpdatedAt.UTC(),
	}
}

func (r invoiceRow) invoice() invoice.Invoice {
	return invoice.Invoice{
		ID:         r.ID,
		Number:     r.Number,
		BookingID:  r.BookingID,
		ClientID:   r.ClientID,
		ProviderID: r.ProviderID,
		Currency:   r.Currency,
		Subtotal:   r.Subtotal,
		TaxRate:    r.TaxRate,
		TaxAmount:  r.TaxAmount,
		Total:      r.Total,
		Status:     r.Status,
		IssuedAt:   r.IssuedAt.UTC(),
		DueDate:    r.DueDate.UTC(),
		PaidAt:     utcPtr(r.PaidAt),
		VoidedAt:   utcPtr(r.VoidedAt),
		VoidReason: r.VoidReason,
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type invoiceItemRow struct {
	ID          string `db:"id"`
	InvoiceID   string `db:"invoice_id"`
	Position    int    `db:"position"`
	Description string `db:"description"`
	Quantity    int    `db:"quantity"`
	UnitAmount  int64  `db:"unit_amount"`
	Amount      int64  `db:"amount"`
}

type invoiceRepository struct {
	base
}

var _ invoice.Repository = (*invoiceRepository)(nil) // interface compliance check

func NewInvoiceRepository(db *sqlx.DB) *invoiceRepository {
	return &invoiceRepository{base{db: db}}
}

func (repo invoiceRepository) CreateInvoice(ctx context.Context, inv invoice.Invoice, exec ...core.DBExecutor) (invoice.Invoice, error) {
	exe := repo.getExec(exec)
	inv.ID = uuid.New().String()

	q := `INSERT INTO invoices (` + invoiceColumns + `) VALUES (:id, :number, :booking_id, :client_id, :provider_id,
		:currency, :subtotal, :tax_rate, :tax_amount, :total, :status, :issued_at, :due_date, :paid_at, :voided_at,
		:void_reason, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exe, q, newInvoiceRow(inv)); err != nil {
		if pqCode(err) == uniqueViolation && pqConstraint(err) == "invoices_booking_id_key" {
			return invoice.Invoice{}, invoice.ErrExists
		}
		return invoice.Invoice{}, errors.Wrap(err, "inserting invoice")
	}

	q = `INSERT INTO invoice_items (` + invoiceItemColumns + `)
		VALUES (:id, :invoice_id, :position, :description, :quantity, :unit_amount, :amount)`
	for i := range inv.Items {
		it := &inv.Items[i]
		it.ID = uuid.New().String()
		it.InvoiceID = inv.ID
		row := invoiceItemRow{
			ID:          it.ID,
			InvoiceID:   it.InvoiceID,
			Position:    it.Position,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitAmount:  it.UnitAmount,
			Amount:      it.Amount,
		}
		if _, err := sqlx.NamedExecContext(ctx, exe, q, row); err != nil {
			return invoice.Invoice{}, errors.Wrap(err, "inserting invoice item")
		}
	}
	return inv, nil
}

func (repo invoiceRepository) getOne(ctx context.Context, where string, arg string, exec []core.DBExecutor) (invoice.Invoice, error) {
	if _, err := uuid.Parse(arg); err != nil {
		return invoice.Invoice{}, invoice.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row invoiceRow
	if err := sqlx.GetContext(ctx, exe, &row, "SELECT "+invoiceColumns+" FROM invoices WHERE "+where, arg); err != nil {
		return invoice.Invoice{}, trapNoRowsErr(err, invoice.ErrNotFound, "getting invoice")
	}
	inv := row.invoice()

	var items []invoiceItemRow
	q := "SELECT " + invoiceItemColumns + " FROM invoice_items WHERE invoice_id = $1 ORDER BY position"
	if err := sqlx.SelectContext(ctx, exe, &items, q, inv.ID); err != nil {
		return invoice.Invoice{}, errors.Wrap(err, "getting invoice items")
	}
	inv.Items = make([]invoice.Item, 0, len(items))
	for _, it := range items {
		inv.Items = append(inv.Items, invoice.Item(it))
	}
	return inv, nil
}

func (repo invoiceRepository) GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (invoice.Invoice, error) {
	return repo.getOne(ctx, "id = $1", id, exec)
}

func (repo invoiceRepository) GetInvoiceByBooking(ctx context.Context, bookingID string, exec ...core.DBExecutor) (invoice.Invoice, error) {
	return repo.getOne(ctx, "booking_id = $1", bookingID, exec)
}

func (repo invoiceRepository) QueryInvoices(ctx context.Context, filter *invoice.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]invoice.Invoice, error) {
	var w where
	if filter != nil {
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
		for col, id := range map[string]string{
			"booking_id":  filter.BookingID,
			"client_id":   filter.ClientID,
			"provider_id": filter.ProviderID,
		} {
			if id == "" {
				continue
			}
			if _, err := uuid.Parse(id); err != nil {
				return []invoice.Invoice{}, nil
			}
			w.add(col+" = ?", id)
		}
		if filter.DueBefore != nil {
			w.add("due_date < ?", filter.DueBefore.UTC())
		}
	}

	q := "SELECT " + invoiceColumns + " FROM invoices" + w.String() +
		" ORDER BY " + core.OrderByClause(ordering, "issued_at DESC")
	var rows []invoiceRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying invoices")
	}
	invoices := make([]invoice.Invoice, 0, len(rows))
	for _, r := range rows {
		invoices = append(invoices, r.invoice())
	}
	return invoices, nil
}

func (repo invoiceRepository) UpdateInvoice(ctx context.Context, inv invoice.Invoice, exec ...core.DBExecutor) (invoice.Invoice, error) {
	q := `UPDATE invoices SET status = :status, paid_at = :paid_at, voided_at = :voided_at, void_reason = :void_reason,
		notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, newInvoiceRow(inv))
	if err != nil {
		return invoice.Invoice{}, errors.Wrap(err, "updating invoice")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return invoice.Invoice{}, invoice.ErrNotFound
	}
	return inv, nil
}

func (repo invoiceRepository) NextSequence(ctx context.Context, period string, exec ...core.DBExecutor) (int, error) {
	q := `INSERT INTO invoice_sequences (period, last_value) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`
	var seq int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &seq, q, period); err != nil {
		return 0, errors.Wrap(err, "incrementing invoice sequence")
	}
	return seq, nil
}
