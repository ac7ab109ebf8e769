package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

// Notifier emails booking participants; failures never reach the caller.
type Notifier struct {
	profiles profile.Repository
	mailSvc  core.EmailService
	baseURL  string
}

func NewNotifier(profiles profile.Repository, mailSvc core.EmailService, conf *core.Config) *Notifier {
	return &Notifier{
		profiles: profiles,
		mailSvc:  mailSvc,
		baseURL:  strings.TrimRight(conf.Email.FrontendBaseURL, "/"),
	}
}

// StatusChanged tells the other participant that actor moved b to its current status.
func (n *Notifier) StatusChanged(ctx context.Context, actor profile.Profile, b Booking) {
	recipient := b.ClientID
	if actor.ID == b.ClientID {
		recipient = b.ProviderID
	}
	status := strings.Replace(b.Status, "_", " ", 1)
	body := fmt.Sprintf("Your booking for \"%s\" is now %s.", b.ServiceTitle, status)
	if b.Status == StatusCancelled {
		body += "\nReason: " + b.CancelReason
	}
	n.notify(ctx, b, recipient, fmt.Sprintf("Booking %s: %s", status, b.ServiceTitle), body)
}

func (n *Notifier) notify(ctx context.Context, b Booking, recipientID, subject, body string) {
	if n == nil || n.mailSvc == nil {
		return
	}
	p, err := n.profiles.GetProfile(ctx, recipientID)
	if err != nil {
		return
	}
	body += fmt.Sprintf("\n\n%s/bookings/%s", n.baseURL, b.ID)
	if msg := core.NewNotification(p.DisplayName(), p.Email, subject, body); msg != nil {
		n.mailSvc.SendMessages(msg)
	}
}
