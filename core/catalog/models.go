package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AbuAli85/business-services-hub-sub009/core"
)

// Offering statuses
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Approval statuses, set by admins
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Offering is a service a provider offers for booking.
type Offering struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Price           int64     `json:"price"` // minor units
	Currency        string    `json:"currency"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	ApprovalStatus  string    `json:"approval_status"`
	ReviewNote      string    `json:"review_note"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsBookable reports whether clients can see and book the offering.
func (o Offering) IsBookable() bool {
	return o.Status == StatusActive && o.ApprovalStatus == ApprovalApproved
}

func (o Offering) FormattedPrice() string {
	return core.FormatAmount(o.Price, o.Currency)
}

// NewOffering contains information needed to create a new Offering.
type NewOffering struct {
	Title           string `json:"title" validate:"required,notblank,max=160"`
	Description     string `json:"description" validate:"max=5000"`
	Category        string `json:"category" validate:"required,notblank,max=80"`
	Price           int64  `json:"price" validate:"gte=0"`
	Currency        string `json:"currency" validate:"omitempty,currency"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=43200"`
	Status          string `json:"status" validate:"omitempty,oneof=draft active inactive"`
}

func (no *NewOffering) Validate(validate *validator.Validate) error {
	no.Title = core.CleanString(no.Title)
	no.Description = core.CleanString(no.Description)
	no.Category = core.CleanString(no.Category, true /* lower */)
	no.Currency = core.CleanString(no.Currency)
	no.Status = core.CleanString(no.Status, true /* lower */)
	return validate.Struct(no)
}

// UpdateOffering defines what may be changed on an existing Offering; nil fields are kept.
type UpdateOffering struct {
	Title           *string `json:"title" validate:"omitempty,notblank,max=160"`
	Description     *string `json:"description" validate:"omitempty,max=5000"`
	Category        *string `json:"category" validate:"omitempty,notblank,max=80"`
	Price           *int64  `json:"price" validate:"omitempty,gte=0"`
	Currency        *string `json:"currency" validate:"omitempty,currency"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gte=0,lte=43200"`
	Status          *string `json:"status" validate:"omitempty,oneof=draft active inactive"`
}

func (uo *UpdateOffering) Validate(validate *validator.Validate) error {
	if uo.Title != nil {
		*uo.Title = core.CleanString(*uo.Title)
	}
	if uo.Description != nil {
		*uo.Description = core.CleanString(*uo.Description)
	}
	if uo.Category != nil {
		*uo.Category = core.CleanString(*uo.Category, true /* lower */)
	}
	if uo.Status != nil {
		*uo.Status = core.CleanString(*uo.Status, true /* lower */)
	}
	return validate.Struct(uo)
}

// changesContent reports whether the update touches what admins approved.
func (uo UpdateOffering) changesContent() bool {
	return uo.Title != nil || uo.Description != nil || uo.Category != nil || uo.Price != nil || uo.Currency != nil
}

// Review is an admin decision on an Offering.
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

type QueryFilter struct {
	Search     string
	Category   string
	ProviderID string
	Status     string
	Approval   string
	MinPrice   *int64
	MaxPrice   *int64
	// Public restricts results to bookable offerings.
	Public bool
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Approval = core.CleanString(qf.Approval, true /* lower */)
}

// OrderingFields are the fields offerings can be ordered by.
var OrderingFields = []string{"created_at", "updated_at", "title", "price", "category"}
