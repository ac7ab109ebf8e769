package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type adminApi struct {
	profileSvc *profile.Service
	catalogSvc *catalog.Service
	invoiceSvc *invoice.Service
	validate   *validator.Validate
}

// registerAdminAPI registers the back-office endpoints; g must be restricted to admins.
func registerAdminAPI(
	g *echo.Group,
	profileSvc *profile.Service,
	catalogSvc *catalog.Service,
	invoiceSvc *invoice.Service,
	validate *validator.Validate,
) {
	api := adminApi{
		profileSvc: profileSvc,
		catalogSvc: catalogSvc,
		invoiceSvc: invoiceSvc,
		validate:   validate,
	}

	g.GET("/profiles", api.queryProfiles)
	g.PUT("/profiles/:id", api.updateProfile)
	g.DELETE("/profiles/:id", api.destroyProfile)

	g.GET("/services", api.queryServices)
	g.POST("/services/:id/review", api.reviewService)

	g.GET("/invoices/export", api.exportInvoices)
	g.POST("/invoices/:id/void", api.voidInvoice)
}

// Profile handlers

func (api *adminApi) queryProfiles(ctx echo.Context) error {
	q := newQueryParams(ctx)
	filter := &profile.QueryFilter{
		Search:   q.String("search"),
		Roles:    q.Strings("role"),
		IsActive: q.Bool("is_active"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx, profile.OrderingFields...)

	profiles, err := api.profileSvc.Query(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying profiles")
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *adminApi) updateProfile(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data profile.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.profileSvc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *adminApi) destroyProfile(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	if err = api.profileSvc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Service handlers

func (api *adminApi) queryServices(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	filter, ord, err := bindOfferingFilter(ctx)
	if err != nil {
		return err
	}

	offerings, err := api.catalogSvc.Query(ctx.Request().Context(), actor, filter, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, offerings)
}

func (api *adminApi) reviewService(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data catalog.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	o, err := api.catalogSvc.Review(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

// Invoice handlers

func (api *adminApi) voidInvoice(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data invoice.VoidRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VoidRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	inv, err := api.invoiceSvc.Void(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *adminApi) exportInvoices(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	filter, _, err := bindInvoiceFilter(ctx)
	if err != nil {
		return err
	}

	// buffered so that failures still get a JSON error response
	var buf bytes.Buffer
	if err = api.invoiceSvc.Export(ctx.Request().Context(), actor, filter, &buf); err != nil {
		return err
	}

	filename := fmt.Sprintf("invoices-%s.xlsx", core.NowFunc().Format("20060102"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
