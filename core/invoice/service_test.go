package invoice_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	exportsvc "github.com/AbuAli85/business-services-hub-sub009/services/export"
	"github.com/AbuAli85/business-services-hub-sub009/tests"
)

type fixture struct {
	env      *testutil.Env
	admin    profile.Profile
	provider profile.Profile
	client   profile.Profile
	offering catalog.Offering
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv()
	f := fixture{
		env:      env,
		admin:    testutil.CreateProfile(t, env.Profiles, profile.RoleAdmin, "Admin", "admin@test.om"),
		provider: testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Provider", "provider@test.om"),
		client:   testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Client", "client@test.om"),
	}
	f.offering = testutil.CreateOffering(t, env.Offerings, f.provider, "Bookkeeping", 25500)
	return f
}

func mockNow(t *testing.T, now time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

func TestService_Generate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	svc := f.env.InvoiceSvc
	mockNow(t, time.Date(2024, time.October, 5, 9, 0, 0, 0, time.UTC))

	b1 := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusApproved)
	b2 := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusCompleted)
	pending := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusPending)

	t.Run("client cannot invoice", func(t *testing.T) {
		_, _, err := svc.Generate(ctx, f.client, b1.ID)
		assert.Equal(t, core.ErrForbidden, err)
	})
	t.Run("strangers do not see the booking", func(t *testing.T) {
		stranger := testutil.CreateProfile(t, f.env.Profiles, profile.RoleProvider, "Stranger", "stranger@test.om")
		_, _, err := svc.Generate(ctx, stranger, b1.ID)
		assert.Equal(t, booking.ErrNotFound, err)
	})
	t.Run("pending booking", func(t *testing.T) {
		_, _, err := svc.Generate(ctx, f.provider, pending.ID)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "booking_id", vErr.Fields[0].Field)
	})

	f.env.Mail.Reset()
	inv, created, err := svc.Generate(ctx, f.provider, b1.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "INV-202410-0001", inv.Number)
	assert.Equal(t, invoice.StatusIssued, inv.Status)
	assert.Equal(t, f.client.ID, inv.ClientID)
	assert.Equal(t, f.provider.ID, inv.ProviderID)
	assert.Equal(t, "OMR", inv.Currency)
	assert.Equal(t, 500, inv.TaxRate)
	assert.Equal(t, int64(25500), inv.Subtotal)
	assert.Equal(t, int64(1275), inv.TaxAmount)
	assert.Equal(t, int64(26775), inv.Total)
	assert.Equal(t, time.Date(2024, time.November, 4, 9, 0, 0, 0, time.UTC), inv.DueDate)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Bookkeeping", inv.Items[0].Description)
	assert.Equal(t, int64(25500), inv.Items[0].Amount)

	sent := f.env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "client@test.om", sent[0].To[0].Address)
	assert.Contains(t, sent[0].Body, "26.775 OMR")

	// idempotent
	again, created, err := svc.Generate(ctx, f.admin, b1.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, inv.Number, again.Number)

	second, created, err := svc.Generate(ctx, f.admin, b2.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "INV-202410-0002", second.Number)

	// numbering restarts every month
	mockNow(t, time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC))
	b3 := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusInProgress)
	third, _, err := svc.Generate(ctx, f.provider, b3.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-202411-0001", third.Number)
}

func TestService_MarkPaid_Void(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	svc := f.env.InvoiceSvc

	b1 := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusCompleted)
	b2 := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusCompleted)
	inv1, _, err := svc.Generate(ctx, f.provider, b1.ID)
	require.NoError(t, err)
	inv2, _, err := svc.Generate(ctx, f.provider, b2.ID)
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, f.client, inv1.ID)
	assert.Equal(t, core.ErrForbidden, err)

	paid, err := svc.MarkPaid(ctx, f.provider, inv1.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.Len(t, paid.Items, 1)

	_, err = svc.MarkPaid(ctx, f.provider, inv1.ID)
	assert.True(t, core.IsValidation(err), "paid twice")

	_, err = svc.Void(ctx, f.provider, inv2.ID, invoice.VoidRequest{Reason: "duplicate"})
	assert.Equal(t, core.ErrForbidden, err)

	void, err := svc.Void(ctx, f.admin, inv2.ID, invoice.VoidRequest{Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusVoid, void.Status)
	assert.Equal(t, "duplicate", void.VoidReason)
	assert.NotNil(t, void.VoidedAt)

	_, err = svc.Void(ctx, f.admin, inv1.ID, invoice.VoidRequest{Reason: "late"})
	assert.True(t, core.IsValidation(err), "paid invoices cannot be voided")
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	svc := f.env.InvoiceSvc

	otherClient := testutil.CreateProfile(t, f.env.Profiles, profile.RoleClient, "Other", "other@test.om")

	mockNow(t, time.Now().UTC().Add(-60*24*time.Hour))
	old := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusCompleted)
	overdue, _, err := svc.Generate(ctx, f.provider, old.ID)
	require.NoError(t, err)

	mockNow(t, time.Now().UTC())
	recent := testutil.CreateBooking(t, f.env.Bookings, f.offering, otherClient, booking.StatusApproved)
	fresh, _, err := svc.Generate(ctx, f.provider, recent.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, f.client, overdue.ID)
	require.NoError(t, err)
	assert.True(t, got.Overdue)

	_, err = svc.Get(ctx, f.client, fresh.ID)
	assert.Equal(t, invoice.ErrNotFound, err)

	list, err := svc.Query(ctx, f.client, nil, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, overdue.ID, list[0].ID)

	list, err = svc.Query(ctx, f.provider, nil, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.Query(ctx, f.admin, &invoice.QueryFilter{Overdue: true}, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, overdue.ID, list[0].ID)
	assert.True(t, list[0].Overdue)

	list, err = svc.Query(ctx, f.admin, &invoice.QueryFilter{BookingID: recent.ID}, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Overdue)
}

func TestService_Export(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	svc := f.env.InvoiceSvc

	b := testutil.CreateBooking(t, f.env.Bookings, f.offering, f.client, booking.StatusCompleted)
	inv, _, err := svc.Generate(ctx, f.provider, b.ID)
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	assert.Equal(t, core.ErrForbidden, svc.Export(ctx, f.provider, nil, buf))

	require.NoError(t, svc.Export(ctx, f.admin, nil, buf))

	wb, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(exportsvc.InvoiceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Number", rows[0][0])
	assert.Equal(t, inv.Number, rows[1][0])
	assert.Equal(t, b.ID, rows[1][1])
	assert.Equal(t, invoice.StatusIssued, rows[1][4])
}
