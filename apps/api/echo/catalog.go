package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

type catalogApi struct {
	svc      *catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, svc *catalog.Service, validate *validator.Validate) {
	api := catalogApi{svc: svc, validate: validate}

	sg := g.Group("/services")
	sg.GET("", api.query)
	sg.POST("", api.create, roleMiddleware(profile.RoleProvider, profile.RoleAdmin))
	sg.GET("/mine", api.queryMine, roleMiddleware(profile.RoleProvider))
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)
}

// bindOfferingFilter reads the catalog query parameters.
func bindOfferingFilter(ctx echo.Context) (*catalog.QueryFilter, Ordering, error) {
	q := newQueryParams(ctx)
	filter := &catalog.QueryFilter{
		Search:     q.String("search"),
		Category:   q.String("category"),
		ProviderID: q.String("provider_id"),
		Status:     q.String("status"),
		Approval:   q.String("approval"),
		MinPrice:   q.Int64("min_price"),
		MaxPrice:   q.Int64("max_price"),
	}
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx, catalog.OrderingFields...)
	return filter, ord, q.Err()
}

// Handlers

func (api *catalogApi) query(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	filter, ord, err := bindOfferingFilter(ctx)
	if err != nil {
		return err
	}

	offerings, err := api.svc.Query(ctx.Request().Context(), actor, filter, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, offerings)
}

func (api *catalogApi) queryMine(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	filter, ord, err := bindOfferingFilter(ctx)
	if err != nil {
		return err
	}
	filter.ProviderID = actor.ID

	offerings, err := api.svc.Query(ctx.Request().Context(), actor, filter, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, offerings)
}

func (api *catalogApi) create(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data catalog.NewOffering
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOffering")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	o, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	o, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *catalogApi) update(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data catalog.UpdateOffering
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOffering")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	o, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *catalogApi) destroy(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
