package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
)

type invoiceApi struct {
	svc *invoice.Service
}

func registerInvoiceAPI(g *echo.Group, svc *invoice.Service) {
	api := invoiceApi{svc: svc}

	g.POST("/bookings/:id/invoice", api.generate)

	ig := g.Group("/invoices")
	ig.GET("", api.query)
	ig.GET("/:id", api.retrieve)
	ig.POST("/:id/pay", api.markPaid)
}

// bindInvoiceFilter reads the invoice query parameters.
func bindInvoiceFilter(ctx echo.Context) (*invoice.QueryFilter, Ordering, error) {
	q := newQueryParams(ctx)
	filter := &invoice.QueryFilter{
		Status:    q.String("status"),
		BookingID: q.String("booking_id"),
	}
	if overdue := q.Bool("overdue"); overdue != nil {
		filter.Overdue = *overdue
	}
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx, invoice.OrderingFields...)
	return filter, ord, q.Err()
}

// Handlers

// generate answers 201 when the invoice was issued by this call and 200 when it already existed.
func (api *invoiceApi) generate(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	inv, created, err := api.svc.Generate(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, inv)
}

func (api *invoiceApi) query(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	filter, ord, err := bindInvoiceFilter(ctx)
	if err != nil {
		return err
	}

	invoices, err := api.svc.Query(ctx.Request().Context(), actor, filter, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, invoices)
}

func (api *invoiceApi) retrieve(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	inv, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *invoiceApi) markPaid(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	inv, err := api.svc.MarkPaid(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}
