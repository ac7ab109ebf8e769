package message

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

var (
	errSelfMessage        = "you cannot message yourself"
	errUnknownRecipient   = "recipient does not exist"
	errNotBookingParty    = "both parties must take part in the booking"
	errUnknownBooking     = "booking does not exist"
	notificationPreviewAt = 280
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message, exec ...core.DBExecutor) (Message, error)
		// QueryConversation returns the messages between the two profiles of filter, oldest first.
		QueryConversation(ctx context.Context, filter ConversationFilter, exec ...core.DBExecutor) ([]Message, error)
		// QueryThreads returns the last message per counterparty of profileID, newest first,
		// with the number of unread messages addressed to profileID.
		QueryThreads(ctx context.Context, profileID string, exec ...core.DBExecutor) ([]Thread, error)
		// MarkRead sets read_at on the unread messages among ids addressed to recipientID.
		MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time, exec ...core.DBExecutor) (int, error)
		CountUnread(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo     Repository
		profiles *profile.Service
		bookings booking.Repository
		mailSvc  core.EmailService
		baseURL  string
	}
)

func NewService(
	repo Repository,
	profiles *profile.Service,
	bookings booking.Repository,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		bookings: bookings,
		mailSvc:  mailSvc,
		baseURL:  strings.TrimRight(conf.Email.FrontendBaseURL, "/"),
	}
}

func (svc *Service) Send(ctx context.Context, sender profile.Profile, nm NewMessage) (Message, error) {
	if nm.RecipientID == sender.ID {
		return Message{}, core.NewFieldError("recipient_id", errSelfMessage)
	}
	recipient, err := svc.profiles.Get(ctx, nm.RecipientID)
	if err != nil {
		if errors.Cause(err) == profile.ErrNotFound {
			return Message{}, core.NewFieldError("recipient_id", errUnknownRecipient)
		}
		return Message{}, errors.Wrap(err, "getting recipient")
	}

	if nm.BookingID != "" {
		b, err := svc.bookings.GetBooking(ctx, nm.BookingID)
		if err != nil {
			if errors.Cause(err) == booking.ErrNotFound {
				return Message{}, core.NewFieldError("booking_id", errUnknownBooking)
			}
			return Message{}, errors.Wrap(err, "getting booking")
		}
		if !b.IsParticipant(sender.ID) || !b.IsParticipant(recipient.ID) {
			return Message{}, core.NewFieldError("booking_id", errNotBookingParty)
		}
	}

	m, err := svc.repo.CreateMessage(ctx, Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		BookingID:   nm.BookingID,
		Subject:     nm.Subject,
		Content:     nm.Content,
		CreatedAt:   core.NowFunc(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	m.Sender = sender.Participant()
	m.Recipient = recipient.Participant()

	svc.notify(sender, recipient, m)
	return m, nil
}

// Conversation returns the messages between actor and otherID, oldest first,
// optionally limited to a booking.
func (svc *Service) Conversation(ctx context.Context, actor profile.Profile, otherID, bookingID string) ([]Message, error) {
	messages, err := svc.repo.QueryConversation(ctx, ConversationFilter{
		ProfileID: actor.ID,
		OtherID:   otherID,
		BookingID: bookingID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}

	parts, err := svc.profiles.Participants(ctx, actor.ID, otherID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Sender = parts[messages[i].SenderID]
		messages[i].Recipient = parts[messages[i].RecipientID]
	}
	return messages, nil
}

func (svc *Service) Inbox(ctx context.Context, actor profile.Profile) ([]Thread, error) {
	threads, err := svc.repo.QueryThreads(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying threads")
	}

	ids := make([]string, 0, len(threads)+1)
	ids = append(ids, actor.ID)
	for _, t := range threads {
		ids = append(ids, t.CounterpartyID)
	}
	parts, err := svc.profiles.Participants(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		t := &threads[i]
		t.Counterparty = parts[t.CounterpartyID]
		t.LastMessage.Sender = parts[t.LastMessage.SenderID]
		t.LastMessage.Recipient = parts[t.LastMessage.RecipientID]
	}
	return threads, nil
}

// MarkRead marks messages addressed to actor as read; others are ignored.
func (svc *Service) MarkRead(ctx context.Context, actor profile.Profile, ids []string) (int, error) {
	n, err := svc.repo.MarkRead(ctx, actor.ID, ids, core.NowFunc())
	return n, errors.Wrap(err, "marking messages read")
}

func (svc *Service) UnreadCount(ctx context.Context, actor profile.Profile) (int, error) {
	n, err := svc.repo.CountUnread(ctx, actor.ID)
	return n, errors.Wrap(err, "counting unread messages")
}

func (svc *Service) notify(sender, recipient profile.Profile, m Message) {
	if svc.mailSvc == nil {
		return
	}
	subject := m.Subject
	if subject == "" {
		subject = fmt.Sprintf("New message from %s", sender.DisplayName())
	}
	preview := m.Content
	if r := []rune(preview); len(r) > notificationPreviewAt {
		preview = string(r[:notificationPreviewAt]) + "..."
	}
	body := fmt.Sprintf("%s wrote:\n\n%s\n\n%s/messages?with=%s", sender.DisplayName(), preview, svc.baseURL, sender.ID)
	if msg := core.NewNotification(recipient.DisplayName(), recipient.Email, subject, body); msg != nil {
		svc.mailSvc.SendMessages(msg)
	}
}
