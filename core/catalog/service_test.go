package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/tests"
)

func strPtr(s string) *string { return &s }
func int64Ptr(i int64) *int64 { return &i }

func titles(offerings []catalog.Offering) []string {
	res := make([]string, 0, len(offerings))
	for _, o := range offerings {
		res = append(res, o.Title)
	}
	return res
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.CatalogSvc

	provider := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Provider", "provider@test.om")
	client := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Client", "client@test.om")

	_, err := svc.Create(ctx, client, catalog.NewOffering{Title: "Nope", Category: "x"})
	assert.Equal(t, core.ErrForbidden, err)

	o, err := svc.Create(ctx, provider, catalog.NewOffering{Title: "Tax filing", Category: "finance", Price: 40000, Currency: "omr"})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, provider.ID, o.ProviderID)
	assert.Equal(t, "OMR", o.Currency)
	assert.Equal(t, catalog.StatusDraft, o.Status)
	assert.Equal(t, catalog.ApprovalPending, o.ApprovalStatus)
	assert.False(t, o.IsBookable())

	o, err = svc.Create(ctx, provider, catalog.NewOffering{Title: "Audit", Category: "finance", Status: catalog.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, env.Conf.Invoice.Currency, o.Currency, "default currency")
	assert.Equal(t, catalog.StatusActive, o.Status)
}

func TestNewOffering_Validate(t *testing.T) {
	validate, _ := core.NewValidator()

	no := catalog.NewOffering{Title: "  Logo  ", Category: " Design ", Currency: "OMR"}
	require.NoError(t, no.Validate(validate))
	assert.Equal(t, "Logo", no.Title)
	assert.Equal(t, "design", no.Category)

	no = catalog.NewOffering{Title: "Logo", Category: "design", Currency: "XYZ"}
	assert.Error(t, no.Validate(validate), "unsupported currency")

	no = catalog.NewOffering{Title: "Logo", Category: "design", Price: -1}
	assert.Error(t, no.Validate(validate), "negative price")

	r := catalog.Review{Decision: "rejected"}
	err := r.Validate(validate)
	assert.True(t, core.IsValidation(err), "rejections need a note")
}

func TestService_visibility(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.CatalogSvc

	admin := testutil.CreateProfile(t, env.Profiles, profile.RoleAdmin, "Admin", "admin@test.om")
	provider := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Provider", "provider@test.om")
	other := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Other", "other@test.om")
	client := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Client", "client@test.om")

	live := testutil.CreateOffering(t, env.Offerings, provider, "Live", 1000)
	draft, err := svc.Create(ctx, provider, catalog.NewOffering{Title: "Draft", Category: "consulting"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, client, draft.ID)
	assert.Equal(t, catalog.ErrNotFound, err)
	_, err = svc.Get(ctx, other, draft.ID)
	assert.Equal(t, catalog.ErrNotFound, err)
	_, err = svc.Get(ctx, provider, draft.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, admin, draft.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, client, live.ID)
	assert.NoError(t, err)

	list, err := svc.Query(ctx, client, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Live"}, titles(list))

	list, err = svc.Query(ctx, provider, &catalog.QueryFilter{ProviderID: provider.ID}, []core.DBOrdering{{Field: "title", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft", "Live"}, titles(list))

	list, err = svc.Query(ctx, other, &catalog.QueryFilter{ProviderID: provider.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Live"}, titles(list))

	list, err = svc.Query(ctx, admin, &catalog.QueryFilter{Approval: catalog.ApprovalPending}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft"}, titles(list))
}

func TestService_Query_filters(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.CatalogSvc

	provider := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Provider", "provider@test.om")
	client := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Client", "client@test.om")

	testutil.CreateOffering(t, env.Offerings, provider, "Company registration", 50000)
	testutil.CreateOffering(t, env.Offerings, provider, "Logo design", 20000)
	testutil.CreateOffering(t, env.Offerings, provider, "Logo", 10000)
	testutil.CreateOffering(t, env.Offerings, provider, "Website design", 300000)

	list, err := svc.Query(ctx, client, &catalog.QueryFilter{Search: "logo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Logo", "Logo design"}, titles(list), "closest title first")

	list, err = svc.Query(ctx, client, &catalog.QueryFilter{Search: "design"}, []core.DBOrdering{{Field: "price"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Website design", "Logo design"}, titles(list), "explicit ordering wins")

	list, err = svc.Query(ctx, client, &catalog.QueryFilter{MinPrice: int64Ptr(15000), MaxPrice: int64Ptr(60000)},
		[]core.DBOrdering{{Field: "price", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Logo design", "Company registration"}, titles(list))
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.CatalogSvc

	admin := testutil.CreateProfile(t, env.Profiles, profile.RoleAdmin, "Admin", "admin@test.om")
	provider := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Provider", "provider@test.om")
	other := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Other", "other@test.om")
	o := testutil.CreateOffering(t, env.Offerings, provider, "Logo", 10000)

	_, err := svc.Update(ctx, other, o.ID, catalog.UpdateOffering{Title: strPtr("Mine now")})
	assert.Equal(t, core.ErrForbidden, err)

	// status changes keep the approval
	o, err = svc.Update(ctx, provider, o.ID, catalog.UpdateOffering{Status: strPtr(catalog.StatusInactive)})
	require.NoError(t, err)
	assert.Equal(t, catalog.ApprovalApproved, o.ApprovalStatus)

	o, err = svc.Update(ctx, provider, o.ID, catalog.UpdateOffering{Status: strPtr(catalog.StatusActive), Price: int64Ptr(12000)})
	require.NoError(t, err)
	assert.Equal(t, int64(12000), o.Price)
	assert.Equal(t, catalog.ApprovalPending, o.ApprovalStatus, "content edits go back to review")

	o, err = svc.Review(ctx, admin, o.ID, catalog.Review{Decision: catalog.ApprovalRejected, Note: "price too high"})
	require.NoError(t, err)
	assert.Equal(t, catalog.ApprovalRejected, o.ApprovalStatus)
	assert.Equal(t, "price too high", o.ReviewNote)

	_, err = svc.Review(ctx, provider, o.ID, catalog.Review{Decision: catalog.ApprovalApproved})
	assert.Equal(t, core.ErrForbidden, err)

	o, err = svc.Update(ctx, admin, o.ID, catalog.UpdateOffering{Price: int64Ptr(9000)})
	require.NoError(t, err)
	assert.Equal(t, catalog.ApprovalRejected, o.ApprovalStatus, "admin edits keep the approval")
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	svc := env.CatalogSvc

	provider := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Provider", "provider@test.om")
	client := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Client", "client@test.om")
	booked := testutil.CreateOffering(t, env.Offerings, provider, "Booked", 1000)
	free := testutil.CreateOffering(t, env.Offerings, provider, "Free", 1000)
	testutil.CreateBooking(t, env.Bookings, booked, client, booking.StatusPending)

	assert.Equal(t, core.ErrForbidden, svc.Delete(ctx, client, free.ID))
	assert.Equal(t, catalog.ErrHasBookings, svc.Delete(ctx, provider, booked.ID))
	require.NoError(t, svc.Delete(ctx, provider, free.ID))

	_, err := svc.Get(ctx, provider, free.ID)
	assert.Equal(t, catalog.ErrNotFound, err)
}
