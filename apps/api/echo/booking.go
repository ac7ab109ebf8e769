package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

type bookingApi struct {
	svc      *booking.Service
	validate *validator.Validate
}

// bookingResponse adds the statuses the caller may move the booking to.
type bookingResponse struct {
	booking.Booking
	NextStatuses []string `json:"next_statuses"`
}

func newBookingResponse(actor profile.Profile, b booking.Booking) bookingResponse {
	return bookingResponse{Booking: b, NextStatuses: booking.NextStatuses(actor, b)}
}

func registerBookingAPI(g *echo.Group, svc *booking.Service, validate *validator.Validate) {
	api := bookingApi{svc: svc, validate: validate}

	bg := g.Group("/bookings")
	bg.GET("", api.query)
	bg.POST("", api.create, roleMiddleware(profile.RoleClient))
	bg.GET("/:id", api.retrieve)
	bg.POST("/:id/status", api.transition)
	bg.PUT("/:id/schedule", api.reschedule)
}

// Handlers

func (api *bookingApi) query(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	q := newQueryParams(ctx)
	filter := &booking.QueryFilter{
		Statuses:      q.Strings("status"),
		ServiceID:     q.String("service_id"),
		ScheduledFrom: q.Time("scheduled_from"),
		ScheduledTo:   q.Time("scheduled_to"),
	}
	if err = q.Err(); err != nil {
		return err
	}
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx, booking.OrderingFields...)

	bookings, err := api.svc.Query(ctx.Request().Context(), actor, filter, ord.Orderings)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api *bookingApi) create(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data booking.NewBooking
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newBookingResponse(actor, b))
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	b, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newBookingResponse(actor, b))
}

func (api *bookingApi) transition(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data booking.StatusChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Transition(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newBookingResponse(actor, b))
}

func (api *bookingApi) reschedule(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data booking.Reschedule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reschedule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Reschedule(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newBookingResponse(actor, b))
}
