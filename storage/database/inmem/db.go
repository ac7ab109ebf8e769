package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
)

// Tables are always locked in declaration order: profiles, services, bookings,
// milestones, tasks, invoices, messages.
type (
	DB struct {
		profiles   *profileTable
		services   *offeringTable
		bookings   *bookingTable
		milestones *milestoneTable
		tasks      *taskTable
		invoices   *invoiceTable
		messages   *messageTable

		txMu sync.Mutex
	}

	profileTable struct {
		sync.RWMutex
		t map[string]profile.Profile
	}

	offeringTable struct {
		sync.RWMutex
		t map[string]catalog.Offering
	}

	bookingTable struct {
		sync.RWMutex
		t map[string]booking.Booking
	}

	milestoneTable struct {
		sync.RWMutex
		t map[string]progress.Milestone
	}

	taskTable struct {
		sync.RWMutex
		t map[string]progress.Task
	}

	invoiceTable struct {
		sync.RWMutex
		t         map[string]invoice.Invoice
		sequences map[string]int
	}

	messageTable struct {
		sync.RWMutex
		t map[string]message.Message
	}
)

func Open() *DB {
	return &DB{
		profiles:   &profileTable{t: make(map[string]profile.Profile)},
		services:   &offeringTable{t: make(map[string]catalog.Offering)},
		bookings:   &bookingTable{t: make(map[string]booking.Booking)},
		milestones: &milestoneTable{t: make(map[string]progress.Milestone)},
		tasks:      &taskTable{t: make(map[string]progress.Task)},
		invoices:   &invoiceTable{t: make(map[string]invoice.Invoice), sequences: make(map[string]int)},
		messages:   &messageTable{t: make(map[string]message.Message)},
	}
}

// Transactor serializes transactions; there is no rollback.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	return fn(nil)
}

// sortRows orders rows with cmp by ordering, falling back to def.
// cmp returns <0, 0 or >0 comparing rows i and j on field.
func sortRows(n int, swap func(i, j int), ordering []core.DBOrdering, def core.DBOrdering, cmp func(field string, i, j int) int) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{def}
	}
	sort.Stable(rowSorter{n: n, swap: swap, less: func(i, j int) bool {
		for _, ord := range ordering {
			c := cmp(ord.Field, i, j)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}})
}

type rowSorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (s rowSorter) Len() int           { return s.n }
func (s rowSorter) Swap(i, j int)      { s.swap(i, j) }
func (s rowSorter) Less(i, j int) bool { return s.less(i, j) }

func cmpString(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func cmpTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1 // nulls last
	case b == nil:
		return -1
	}
	return cmpTime(*a, *b)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
