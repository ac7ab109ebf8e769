package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
)

type messageApi struct {
	svc      *message.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, svc *message.Service, validate *validator.Validate) {
	api := messageApi{svc: svc, validate: validate}

	mg := g.Group("/messages")
	mg.GET("", api.conversation)
	mg.POST("", api.send)
	mg.GET("/inbox", api.inbox)
	mg.GET("/unread", api.unreadCount)
	mg.POST("/read", api.markRead)
}

// Handlers

func (api *messageApi) conversation(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	q := newQueryParams(ctx)
	otherID := q.String("with")
	if otherID == "" {
		return core.NewFieldError("with", "this field is required")
	}

	msgs, err := api.svc.Conversation(ctx.Request().Context(), actor, otherID, q.String("booking_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) send(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data message.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Send(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *messageApi) inbox(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	threads, err := api.svc.Inbox(ctx.Request().Context(), actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, threads)
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"unread": n})
}

func (api *messageApi) markRead(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data message.ReadRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReadRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), actor, data.IDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": n})
}
