package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
	emailsvc "github.com/AbuAli85/business-services-hub-sub009/services/email"
	exportsvc "github.com/AbuAli85/business-services-hub-sub009/services/export"
	"github.com/AbuAli85/business-services-hub-sub009/storage/database"
	inmemdb "github.com/AbuAli85/business-services-hub-sub009/storage/database/inmem"
)

// Env wires every service on top of a fresh in-memory database.
type Env struct {
	Conf *core.Config
	Mail *emailsvc.ConsoleServiceMock
	Tx   core.Transactor

	Profiles  profile.Repository
	Offerings catalog.Repository
	Bookings  booking.Repository
	Progress  progress.Repository
	Invoices  invoice.Repository
	Messages  message.Repository

	ProfileSvc  *profile.Service
	CatalogSvc  *catalog.Service
	BookingSvc  *booking.Service
	ProgressSvc *progress.Service
	InvoiceSvc  *invoice.Service
	MessageSvc  *message.Service
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)

	env := &Env{
		Conf:      conf,
		Mail:      emailsvc.NewConsoleServiceMock(conf),
		Tx:        tx,
		Profiles:  inmemdb.NewProfileRepository(db),
		Offerings: inmemdb.NewOfferingRepository(db),
		Bookings:  inmemdb.NewBookingRepository(db),
		Progress:  inmemdb.NewProgressRepository(db),
		Invoices:  inmemdb.NewInvoiceRepository(db),
		Messages:  inmemdb.NewMessageRepository(db),
	}
	env.ProfileSvc = profile.NewService(env.Profiles)
	env.CatalogSvc = catalog.NewService(env.Offerings, conf)
	env.ProgressSvc = progress.NewService(env.Progress, env.Bookings, tx, booking.NewNotifier(env.Profiles, env.Mail, conf))
	env.BookingSvc = booking.NewService(env.Bookings, env.Offerings, env.Profiles, tx, env.ProgressSvc, env.Mail, conf)
	env.InvoiceSvc = invoice.NewService(env.Invoices, env.Bookings, env.Profiles, tx, exportsvc.NewXLSXExporter(), env.Mail, conf)
	env.MessageSvc = message.NewService(env.Messages, env.ProfileSvc, env.Bookings, env.Mail, conf)
	return env
}

// CreateProfile stores an active profile with a random ID.
func CreateProfile(t *testing.T, repo profile.Repository, role, name, email string, createdAt ...time.Time) profile.Profile {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p, err := repo.CreateProfile(context.Background(), profile.Profile{
		ID:        uuid.New().String(),
		Role:      role,
		FullName:  name,
		Email:     email,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return p
}

// CreateOffering stores a bookable (active and approved) offering of provider.
func CreateOffering(t *testing.T, repo catalog.Repository, provider profile.Profile, title string, price int64) catalog.Offering {
	now := time.Now().UTC()
	o, err := repo.CreateOffering(context.Background(), catalog.Offering{
		ProviderID:      provider.ID,
		Title:           title,
		Description:     title + " description",
		Category:        "consulting",
		Price:           price,
		Currency:        "OMR",
		DurationMinutes: 60,
		Status:          catalog.StatusActive,
		ApprovalStatus:  catalog.ApprovalApproved,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateOffering() failed: %v", err)
	}
	return o
}

// CreateBooking stores a booking of o by client directly in the given status.
func CreateBooking(t *testing.T, repo booking.Repository, o catalog.Offering, client profile.Profile, status string) booking.Booking {
	now := time.Now().UTC()
	b := booking.Booking{
		ServiceID:    o.ID,
		ServiceTitle: o.Title,
		ClientID:     client.ID,
		ProviderID:   o.ProviderID,
		Status:       status,
		Amount:       o.Price,
		Currency:     o.Currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch status {
	case booking.StatusApproved:
		b.ApprovedAt = &now
	case booking.StatusInProgress:
		b.ApprovedAt, b.StartedAt = &now, &now
	case booking.StatusCompleted:
		b.ApprovedAt, b.StartedAt, b.CompletedAt = &now, &now, &now
		b.Progress = 100
	case booking.StatusCancelled:
		b.CancelledAt = &now
		b.CancelReason = "test"
	}
	b, err := repo.CreateBooking(context.Background(), b)
	if err != nil {
		t.Fatalf("CreateBooking() failed: %v", err)
	}
	return b
}

// OpenDB connects to TEST_DATABASE_URL and migrates it; the test is skipped when unset.
func OpenDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ResetDB(t, db)
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	const q = `TRUNCATE profiles, services, bookings, milestones, tasks,
		invoice_sequences, invoices, invoice_items, messages CASCADE`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
