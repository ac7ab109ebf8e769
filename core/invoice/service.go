package invoice

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("invoice")
	// ErrExists is returned by Repository.CreateInvoice when the booking already has an invoice.
	ErrExists = errors.New("booking already has an invoice")

	errNotBillable = "only approved, in progress or completed bookings can be invoiced"
	errNotIssued   = "only issued invoices can be changed"
)

type (
	Repository interface {
		// CreateInvoice stores the invoice with its items.
		CreateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)
		GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (Invoice, error)
		GetInvoiceByBooking(ctx context.Context, bookingID string, exec ...core.DBExecutor) (Invoice, error)
		// QueryInvoices applies AND operation on available QueryFilter fields. Items are not loaded.
		QueryInvoices(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Invoice, error)
		// UpdateInvoice stores status changes; items and amounts are immutable.
		UpdateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)
		// NextSequence returns the next invoice sequence number of period, starting at 1.
		NextSequence(ctx context.Context, period string, exec ...core.DBExecutor) (int, error)
	}

	// Exporter writes invoices as a spreadsheet.
	Exporter interface {
		ExportInvoices(w io.Writer, invoices []Invoice) error
	}

	Service struct {
		repo        Repository
		bookings    booking.Repository
		profiles    profile.Repository
		tx          core.Transactor
		exporter    Exporter
		mailSvc     core.EmailService
		prefix      string
		taxRate     int
		paymentTerm time.Duration
		baseURL     string
	}
)

func NewService(
	repo Repository,
	bookings booking.Repository,
	profiles profile.Repository,
	tx core.Transactor,
	exporter Exporter,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:        repo,
		bookings:    bookings,
		profiles:    profiles,
		tx:          tx,
		exporter:    exporter,
		mailSvc:     mailSvc,
		prefix:      conf.Invoice.NumberPrefix,
		taxRate:     conf.Invoice.TaxRateBP,
		paymentTerm: time.Duration(conf.Invoice.PaymentTermDays) * 24 * time.Hour,
		baseURL:     strings.TrimRight(conf.Email.FrontendBaseURL, "/"),
	}
}

func isBillable(b booking.Booking) bool {
	switch b.Status {
	case booking.StatusApproved, booking.StatusInProgress, booking.StatusCompleted:
		return true
	}
	return false
}

// Generate issues the invoice of a booking. A booking is invoiced once; later calls
// return the existing invoice with created set to false.
func (svc *Service) Generate(ctx context.Context, actor profile.Profile, bookingID string) (inv Invoice, created bool, err error) {
	b, err := svc.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Invoice{}, false, err
	}
	if !actor.IsAdmin() && !b.IsParticipant(actor.ID) {
		return Invoice{}, false, booking.ErrNotFound
	}
	if !actor.IsAdmin() && actor.ID != b.ProviderID {
		return Invoice{}, false, core.ErrForbidden
	}

	if inv, err = svc.repo.GetInvoiceByBooking(ctx, b.ID); err == nil {
		return svc.withOverdue(inv), false, nil
	} else if errors.Cause(err) != ErrNotFound {
		return Invoice{}, false, errors.Wrap(err, "getting booking invoice")
	}
	if !isBillable(b) {
		return Invoice{}, false, core.NewFieldError("booking_id", errNotBillable)
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		now := core.NowFunc()
		seq, err := svc.repo.NextSequence(ctx, Period(now), exec)
		if err != nil {
			return errors.Wrap(err, "numbering invoice")
		}
		inv = Invoice{
			Number:     FormatNumber(svc.prefix, now, seq),
			BookingID:  b.ID,
			ClientID:   b.ClientID,
			ProviderID: b.ProviderID,
			Currency:   b.Currency,
			TaxRate:    svc.taxRate,
			Status:     StatusIssued,
			IssuedAt:   now,
			DueDate:    now.Add(svc.paymentTerm),
			Items: []Item{{
				Position:    1,
				Description: b.ServiceTitle,
				Quantity:    1,
				UnitAmount:  b.Amount,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		inv.computeTotals()
		inv, err = svc.repo.CreateInvoice(ctx, inv, exec)
		return err
	})
	if err != nil {
		// lost a race with a concurrent Generate
		if errors.Cause(err) == ErrExists {
			inv, err = svc.repo.GetInvoiceByBooking(ctx, b.ID)
			return svc.withOverdue(inv), false, errors.Wrap(err, "getting booking invoice")
		}
		return Invoice{}, false, errors.Wrap(err, "creating invoice")
	}

	svc.notify(ctx, inv, inv.ClientID,
		fmt.Sprintf("Invoice %s", inv.Number),
		fmt.Sprintf("Invoice %s for \"%s\" was issued: %s due on %s.",
			inv.Number, b.ServiceTitle, inv.FormattedTotal(), inv.DueDate.Format("2006-01-02")),
	)
	return inv, true, nil
}

// Get returns the invoice when actor is its client, its provider or an admin.
func (svc *Service) Get(ctx context.Context, actor profile.Profile, id string) (Invoice, error) {
	inv, err := svc.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if !actor.IsAdmin() && actor.ID != inv.ClientID && actor.ID != inv.ProviderID {
		return Invoice{}, ErrNotFound
	}
	return svc.withOverdue(inv), nil
}

// Query lists the invoices visible to actor.
func (svc *Service) Query(ctx context.Context, actor profile.Profile, filter *QueryFilter, ordering []core.DBOrdering) ([]Invoice, error) {
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
	now := core.NowFunc()
	if filter.Overdue {
		filter.Status = StatusIssued
		filter.DueBefore = &now
	}

	invoices, err := svc.repo.QueryInvoices(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying invoices")
	}
	for i := range invoices {
		invoices[i].Overdue = invoices[i].IsOverdue(now)
	}
	return invoices, nil
}

// MarkPaid records the payment of an issued invoice.
func (svc *Service) MarkPaid(ctx context.Context, actor profile.Profile, id string) (Invoice, error) {
	inv, err := svc.change(ctx, actor, id, func(inv *Invoice, now time.Time) error {
		if !actor.IsAdmin() && actor.ID != inv.ProviderID {
			return core.ErrForbidden
		}
		inv.Status = StatusPaid
		inv.PaidAt = &now
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	svc.notify(ctx, inv, inv.ClientID,
		fmt.Sprintf("Payment received for invoice %s", inv.Number),
		fmt.Sprintf("Invoice %s (%s) is marked as paid.", inv.Number, inv.FormattedTotal()),
	)
	return inv, nil
}

// Void cancels an issued invoice.
func (svc *Service) Void(ctx context.Context, actor profile.Profile, id string, vr VoidRequest) (Invoice, error) {
	if !actor.IsAdmin() {
		return Invoice{}, core.ErrForbidden
	}
	return svc.change(ctx, actor, id, func(inv *Invoice, now time.Time) error {
		inv.Status = StatusVoid
		inv.VoidedAt = &now
		inv.VoidReason = vr.Reason
		return nil
	})
}

// change applies fn to an issued invoice and stores it.
func (svc *Service) change(ctx context.Context, actor profile.Profile, id string, fn func(inv *Invoice, now time.Time) error) (Invoice, error) {
	inv, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status != StatusIssued {
		return Invoice{}, core.NewFieldError("status", errNotIssued)
	}
	now := core.NowFunc()
	if err = fn(&inv, now); err != nil {
		return Invoice{}, err
	}
	inv.UpdatedAt = now

	items := inv.Items
	if inv, err = svc.repo.UpdateInvoice(ctx, inv); err != nil {
		return Invoice{}, errors.Wrap(err, "updating invoice")
	}
	inv.Items = items
	return svc.withOverdue(inv), nil
}

// Export writes the invoices matching filter as a spreadsheet to w.
func (svc *Service) Export(ctx context.Context, actor profile.Profile, filter *QueryFilter, w io.Writer) error {
	if !actor.IsAdmin() {
		return core.ErrForbidden
	}
	invoices, err := svc.Query(ctx, actor, filter, []core.DBOrdering{{Field: "issued_at", Ascending: true}})
	if err != nil {
		return err
	}
	return errors.Wrap(svc.exporter.ExportInvoices(w, invoices), "exporting invoices")
}

func (svc *Service) withOverdue(inv Invoice) Invoice {
	inv.Overdue = inv.IsOverdue(core.NowFunc())
	return inv
}

func (svc *Service) notify(ctx context.Context, inv Invoice, recipientID, subject, body string) {
	if svc.mailSvc == nil {
		return
	}
	p, err := svc.profiles.GetProfile(ctx, recipientID)
	if err != nil {
		return
	}
	body += fmt.Sprintf("\n\n%s/invoices/%s", svc.baseURL, inv.ID)
	if msg := core.NewNotification(p.DisplayName(), p.Email, subject, body); msg != nil {
		svc.mailSvc.SendMessages(msg)
	}
}
