package invoice

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

// Invoice statuses
const (
	StatusIssued = "issued"
	StatusPaid   = "paid"
	StatusVoid   = "void"
)

var AllStatuses = []string{StatusIssued, StatusPaid, StatusVoid}

// Invoice bills a booking. Amounts are in minor units of Currency.
type Invoice struct {
	ID         string     `json:"id"`
	Number     string     `json:"number"`
	BookingID  string     `json:"booking_id"`
	ClientID   string     `json:"client_id"`
	ProviderID string     `json:"provider_id"`
	Currency   string     `json:"currency"`
	Subtotal   int64      `json:"subtotal"`
	TaxRate    int        `json:"tax_rate"` // basis points
	TaxAmount  int64      `json:"tax_amount"`
	Total      int64      `json:"total"`
	Status     string     `json:"status"`
	IssuedAt   time.Time  `json:"issued_at"`
	DueDate    time.Time  `json:"due_date"`
	PaidAt     *time.Time `json:"paid_at"`
	VoidedAt   *time.Time `json:"voided_at"`
	VoidReason string     `json:"void_reason"`
	Notes      string     `json:"notes"`
	Items      []Item     `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// computed on read
	Overdue bool `json:"is_overdue"`
}

type Item struct {
	ID          string `json:"id"`
	InvoiceID   string `json:"invoice_id"`
	Position    int    `json:"position"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	Amount      int64  `json:"amount"`
}

// IsOverdue reports an issued invoice past its due date.
func (inv Invoice) IsOverdue(now time.Time) bool {
	return inv.Status == StatusIssued && inv.DueDate.Before(now)
}

// FormattedTotal renders the total with its currency, eg. "10.500 OMR".
func (inv Invoice) FormattedTotal() string {
	return core.FormatAmount(inv.Total, inv.Currency)
}

// computeTotals sets the item amounts, subtotal, tax and total of inv.
func (inv *Invoice) computeTotals() {
	inv.Subtotal = 0
	for i := range inv.Items {
		it := &inv.Items[i]
		it.Amount = it.UnitAmount * int64(it.Quantity)
		inv.Subtotal += it.Amount
	}
	inv.TaxAmount = core.ApplyRateBP(inv.Subtotal, inv.TaxRate)
	inv.Total = inv.Subtotal + inv.TaxAmount
}

// FormatNumber renders an invoice number, eg. "INV-202410-0007".
func FormatNumber(prefix string, issuedAt time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, Period(issuedAt), seq)
}

// Period is the numbering period of invoices issued at t.
func Period(t time.Time) string {
	return t.UTC().Format("200601")
}

type VoidRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

func (vr *VoidRequest) Validate(validate *validator.Validate) error {
	vr.Reason = core.CleanString(vr.Reason)
	return validate.Struct(vr)
}

type QueryFilter struct {
	Status     string
	BookingID  string
	ClientID   string
	ProviderID string
	// DueBefore keeps invoices due strictly before the given time.
	DueBefore *time.Time
	// Overdue is resolved by the Service into Status and DueBefore.
	Overdue bool
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.BookingID = core.CleanString(qf.BookingID)
}

// OrderingFields are the fields invoices can be ordered by.
var OrderingFields = []string{"issued_at", "due_date", "number", "total", "status"}
