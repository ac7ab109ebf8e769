package message

import (
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

const MaxContentLength = 5000

// Message is a direct message between two profiles, optionally about a booking.
type Message struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"sender_id"`
	RecipientID string     `json:"recipient_id"`
	BookingID   string     `json:"booking_id,omitempty"`
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`

	// resolved on read
	Sender    profile.Participant `json:"sender"`
	Recipient profile.Participant `json:"recipient"`
}

func (m Message) IsRead() bool { return m.ReadAt != nil }

// Counterparty returns the other side of the message for profileID.
func (m Message) Counterparty(profileID string) string {
	if m.SenderID == profileID {
		return m.RecipientID
	}
	return m.SenderID
}

// Thread is an inbox entry: the last message exchanged with a counterparty.
type Thread struct {
	CounterpartyID string              `json:"-"`
	Counterparty   profile.Participant `json:"counterparty"`
	LastMessage    Message             `json:"last_message"`
	Unread         int                 `json:"unread"`
}

type NewMessage struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	BookingID   string `json:"booking_id" validate:"omitempty,uuid"`
	Subject     string `json:"subject" validate:"max=200"`
	Content     string `json:"content" validate:"required,notblank"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.RecipientID = core.CleanString(nm.RecipientID, true /* lower */)
	nm.BookingID = core.CleanString(nm.BookingID, true /* lower */)
	nm.Subject = core.CleanString(nm.Subject)
	nm.Content = core.CleanString(nm.Content)
	if err := validate.Struct(nm); err != nil {
		return err
	}
	if utf8.RuneCountInString(nm.Content) > MaxContentLength {
		return core.NewFieldError("content", "must be at most 5000 characters")
	}
	return nil
}

// ReadRequest lists the messages to mark as read.
type ReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
}

func (rr *ReadRequest) Validate(validate *validator.Validate) error {
	for i := range rr.IDs {
		rr.IDs[i] = core.CleanString(rr.IDs[i], true /* lower */)
	}
	return validate.Struct(rr)
}

// ConversationFilter selects the messages exchanged by two profiles.
type ConversationFilter struct {
	ProfileID string
	OtherID   string
	BookingID string
}
