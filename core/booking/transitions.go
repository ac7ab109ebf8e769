package booking

import (
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

// relations of an acting profile to a booking
const (
	relAdmin    = "admin"
	relProvider = "provider"
	relClient   = "client"
)

type transition struct {
	from, to string
}

// transitions lists the allowed status changes and who may perform them.
var transitions = map[transition][]string{
	{StatusPending, StatusApproved}:     {relProvider, relAdmin},
	{StatusPending, StatusCancelled}:    {relClient, relProvider, relAdmin},
	{StatusApproved, StatusInProgress}:  {relProvider, relAdmin},
	{StatusApproved, StatusCancelled}:   {relClient, relProvider, relAdmin},
	{StatusInProgress, StatusCompleted}: {relProvider, relAdmin},
	{StatusInProgress, StatusCancelled}: {relProvider, relAdmin},
}

// relation returns how actor relates to b, or "" when unrelated.
func relation(actor profile.Profile, b Booking) string {
	switch {
	case actor.IsAdmin():
		return relAdmin
	case actor.ID == b.ProviderID:
		return relProvider
	case actor.ID == b.ClientID:
		return relClient
	default:
		return ""
	}
}

// CanTransition reports whether the status change exists, and whether actor may perform it.
func CanTransition(actor profile.Profile, b Booking, to string) (exists, allowed bool) {
	rels, ok := transitions[transition{b.Status, to}]
	if !ok {
		return false, false
	}
	rel := relation(actor, b)
	for _, r := range rels {
		if r == rel {
			return true, true
		}
	}
	return true, false
}

// NextStatuses lists the statuses actor may move b to.
func NextStatuses(actor profile.Profile, b Booking) []string {
	next := make([]string, 0, 2)
	for _, to := range AllStatuses {
		if _, allowed := CanTransition(actor, b, to); allowed {
			next = append(next, to)
		}
	}
	return next
}
