package sqlxrepos_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
	"github.com/AbuAli85/business-services-hub-sub009/storage/database"
	sqlxrepos "github.com/AbuAli85/business-services-hub-sub009/storage/database/sqlx"
	"github.com/AbuAli85/business-services-hub-sub009/tests"
)

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewProfileRepository(db)

	p := testutil.CreateProfile(t, repo, profile.RoleClient, "Amal", "Amal@Test.om")

	// a second first-login of the same subject returns the stored row
	again, err := repo.CreateProfile(ctx, profile.Profile{ID: p.ID, Role: profile.RoleProvider, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, profile.RoleClient, again.Role)
	assert.Equal(t, "Amal", again.FullName)

	_, err = repo.GetProfile(ctx, "not-a-uuid")
	assert.Equal(t, profile.ErrNotFound, err)

	got, err := repo.GetProfileByEmail(ctx, "amal@TEST.om")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	testutil.CreateProfile(t, repo, profile.RoleProvider, "Badr", "badr@100%.om")
	list, err := repo.QueryProfiles(ctx, &profile.QueryFilter{Search: "100%"}, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Badr", list[0].FullName)

	list, err = repo.GetProfiles(ctx, []string{p.ID, "junk"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.DeleteProfile(ctx, p.ID))
	assert.Equal(t, profile.ErrNotFound, repo.DeleteProfile(ctx, p.ID))
}

func TestReferences(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	profiles := sqlxrepos.NewProfileRepository(db)
	offerings := sqlxrepos.NewOfferingRepository(db)
	bookings := sqlxrepos.NewBookingRepository(db)

	provider := testutil.CreateProfile(t, profiles, profile.RoleProvider, "Prov", "prov@test.om")
	client := testutil.CreateProfile(t, profiles, profile.RoleClient, "Client", "client@test.om")
	o := testutil.CreateOffering(t, offerings, provider, "Logo", 1000)
	b := testutil.CreateBooking(t, bookings, o, client, booking.StatusPending)

	assert.Equal(t, profile.ErrInUse, profiles.DeleteProfile(ctx, provider.ID))
	assert.Equal(t, profile.ErrInUse, profiles.DeleteProfile(ctx, client.ID))
	assert.Equal(t, catalog.ErrHasBookings, offerings.DeleteOffering(ctx, o.ID))

	got, err := bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Title, got.ServiceTitle)
	assert.Equal(t, int64(1000), got.Amount)
}

func TestInvoiceRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewInvoiceRepository(db)

	for want := 1; want <= 3; want++ {
		seq, err := repo.NextSequence(ctx, "202410")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}
	seq, err := repo.NextSequence(ctx, "202411")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	profiles := sqlxrepos.NewProfileRepository(db)
	provider := testutil.CreateProfile(t, profiles, profile.RoleProvider, "Prov", "prov@test.om")
	client := testutil.CreateProfile(t, profiles, profile.RoleClient, "Client", "client@test.om")
	o := testutil.CreateOffering(t, sqlxrepos.NewOfferingRepository(db), provider, "Audit", 40000)
	b := testutil.CreateBooking(t, sqlxrepos.NewBookingRepository(db), o, client, booking.StatusApproved)

	now := time.Now().UTC().Truncate(time.Second)
	inv := invoice.Invoice{
		Number: "INV-202410-0001", BookingID: b.ID, ClientID: client.ID, ProviderID: provider.ID,
		Currency: "OMR", Subtotal: 40000, TaxRate: 500, TaxAmount: 2000, Total: 42000,
		Status: invoice.StatusIssued, IssuedAt: now, DueDate: now.Add(30 * 24 * time.Hour),
		Items:     []invoice.Item{{Position: 1, Description: "Audit", Quantity: 1, UnitAmount: 40000, Amount: 40000}},
		CreatedAt: now, UpdatedAt: now,
	}
	created, err := repo.CreateInvoice(ctx, inv)
	require.NoError(t, err)

	inv.Number = "INV-202410-0002"
	_, err = repo.CreateInvoice(ctx, inv)
	assert.Equal(t, invoice.ErrExists, err)

	got, err := repo.GetInvoiceByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(40000), got.Items[0].Amount)
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewMessageRepository(db)
	profiles := sqlxrepos.NewProfileRepository(db)

	amal := testutil.CreateProfile(t, profiles, profile.RoleClient, "Amal", "amal@test.om")
	badr := testutil.CreateProfile(t, profiles, profile.RoleProvider, "Badr", "badr@test.om")
	nour := testutil.CreateProfile(t, profiles, profile.RoleProvider, "Nour", "nour@test.om")

	now := time.Now().UTC().Truncate(time.Millisecond)
	send := func(from, to profile.Profile, content string, at time.Time) message.Message {
		m, err := repo.CreateMessage(ctx, message.Message{SenderID: from.ID, RecipientID: to.ID, Content: content, CreatedAt: at})
		require.NoError(t, err)
		return m
	}
	m1 := send(badr, amal, "hi", now)
	m2 := send(amal, badr, "hello", now.Add(time.Second))
	m3 := send(nour, amal, "offer", now.Add(2*time.Second))

	conv, err := repo.QueryConversation(ctx, message.ConversationFilter{ProfileID: amal.ID, OtherID: badr.ID})
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, m1.ID, conv[0].ID)
	assert.Equal(t, m2.ID, conv[1].ID)

	threads, err := repo.QueryThreads(ctx, amal.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, nour.ID, threads[0].CounterpartyID)
	assert.Equal(t, m3.ID, threads[0].LastMessage.ID)
	assert.Equal(t, 1, threads[0].Unread)
	assert.Equal(t, m2.ID, threads[1].LastMessage.ID)
	assert.Equal(t, 1, threads[1].Unread)

	n, err := repo.CountUnread(ctx, amal.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.MarkRead(ctx, amal.ID, []string{m1.ID, m2.ID, "junk"}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only messages addressed to the reader")
}

// TestServices runs the booking workflow against postgres.
func TestServices(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	conf := core.NewTestConfig()
	tx := database.NewTransactor(db)

	profiles := sqlxrepos.NewProfileRepository(db)
	offerings := sqlxrepos.NewOfferingRepository(db)
	bookings := sqlxrepos.NewBookingRepository(db)
	progressSvc := progress.NewService(sqlxrepos.NewProgressRepository(db), bookings, tx, nil)
	bookingSvc := booking.NewService(bookings, offerings, profiles, tx, progressSvc, nil, conf)

	provider := testutil.CreateProfile(t, profiles, profile.RoleProvider, "Prov", "prov@test.om")
	client := testutil.CreateProfile(t, profiles, profile.RoleClient, "Client", "client@test.om")
	o := testutil.CreateOffering(t, offerings, provider, "Website", 250000)

	b, err := bookingSvc.Create(ctx, client, booking.NewBooking{ServiceID: o.ID})
	require.NoError(t, err)
	b, err = bookingSvc.Transition(ctx, provider, b.ID, booking.StatusChange{Status: booking.StatusApproved})
	require.NoError(t, err)

	m, err := progressSvc.CreateMilestone(ctx, provider, b.ID, progress.NewMilestone{Title: "Design"})
	require.NoError(t, err)
	task, err := progressSvc.CreateTask(ctx, provider, m.ID, progress.NewTask{Title: "Mockups"})
	require.NoError(t, err)

	_, err = progressSvc.SetTaskStatus(ctx, provider, task.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)

	_, err = bookingSvc.Transition(ctx, provider, b.ID, booking.StatusChange{Status: booking.StatusCompleted})
	assert.True(t, core.IsValidation(err))

	_, err = progressSvc.ReviewMilestone(ctx, client, m.ID, progress.Review{Decision: progress.ApprovalApproved})
	require.NoError(t, err)

	b, err = bookingSvc.Transition(ctx, provider, b.ID, booking.StatusChange{Status: booking.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, b.Status)
	assert.Equal(t, 100, b.Progress)
	assert.NotNil(t, b.StartedAt)
}

// TestConcurrentWrites checks that writes on one booking see each other.
func TestConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	conf := core.NewTestConfig()
	tx := database.NewTransactor(db)

	profiles := sqlxrepos.NewProfileRepository(db)
	offerings := sqlxrepos.NewOfferingRepository(db)
	bookings := sqlxrepos.NewBookingRepository(db)
	progressSvc := progress.NewService(sqlxrepos.NewProgressRepository(db), bookings, tx, nil)
	bookingSvc := booking.NewService(bookings, offerings, profiles, tx, progressSvc, nil, conf)

	provider := testutil.CreateProfile(t, profiles, profile.RoleProvider, "Prov", "prov@test.om")
	client := testutil.CreateProfile(t, profiles, profile.RoleClient, "Client", "client@test.om")
	o := testutil.CreateOffering(t, offerings, provider, "Website", 250000)

	t.Run("sibling tasks", func(t *testing.T) {
		b := testutil.CreateBooking(t, bookings, o, client, booking.StatusInProgress)
		m, err := progressSvc.CreateMilestone(ctx, provider, b.ID, progress.NewMilestone{Title: "Build"})
		require.NoError(t, err)

		var ids []string
		for i := 0; i < 4; i++ {
			task, err := progressSvc.CreateTask(ctx, provider, m.ID, progress.NewTask{Title: fmt.Sprintf("Task %d", i)})
			require.NoError(t, err)
			ids = append(ids, task.ID)
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(ids))
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := progressSvc.SetTaskStatus(ctx, provider, id, progress.StatusChange{Status: progress.StatusCompleted})
				errs <- err
			}(id)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		milestones, err := progressSvc.List(ctx, provider, b.ID)
		require.NoError(t, err)
		assert.Equal(t, progress.StatusCompleted, milestones[0].Status)
		got, err := bookings.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Progress)
	})

	t.Run("cancel and complete", func(t *testing.T) {
		b := testutil.CreateBooking(t, bookings, o, client, booking.StatusInProgress)
		changes := []booking.StatusChange{
			{Status: booking.StatusCancelled, Reason: "late"},
			{Status: booking.StatusCompleted},
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(changes))
		for _, sc := range changes {
			wg.Add(1)
			go func(sc booking.StatusChange) {
				defer wg.Done()
				_, err := bookingSvc.Transition(ctx, provider, b.ID, sc)
				errs <- err
			}(sc)
		}
		wg.Wait()
		close(errs)

		var failed int
		for err := range errs {
			if err != nil {
				assert.True(t, core.IsValidation(err), "got %v", err)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "the second change sees the first")
	})
}
