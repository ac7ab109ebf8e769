package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		ProfileSvc  *profile.Service
		CatalogSvc  *catalog.Service
		BookingSvc  *booking.Service
		ProgressSvc *progress.Service
		InvoiceSvc  *invoice.Service
		MessageSvc  *message.Service

		// HealthCheck reports whether the storage is reachable; optional.
		HealthCheck func(ctx context.Context) error
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps Deps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	v1.GET("/health", s.health)

	jwt := middleware.JWTWithConfig(newJWTConfig(conf.Auth.JWTSecret))
	authed := v1.Group("", jwt, profileMiddleware(s.deps.ProfileSvc, s.deps.Validate, conf.Auth.Audience))

	registerProfileAPI(authed, s.deps.ProfileSvc, s.deps.Validate)
	registerCatalogAPI(authed, s.deps.CatalogSvc, s.deps.Validate)
	registerBookingAPI(authed, s.deps.BookingSvc, s.deps.Validate)
	registerProgressAPI(authed, s.deps.ProgressSvc, s.deps.Validate)
	registerInvoiceAPI(authed, s.deps.InvoiceSvc)
	registerMessageAPI(authed, s.deps.MessageSvc, s.deps.Validate)
	registerAdminAPI(
		authed.Group("/admin", roleMiddleware(profile.RoleAdmin)),
		s.deps.ProfileSvc, s.deps.CatalogSvc, s.deps.InvoiceSvc, s.deps.Validate,
	)
}

// Start listens on the configured host and relays OS interrupts to ShutdownSignal.
func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func (s *server) health(ctx echo.Context) error {
	status := echo.Map{"status": "ok", "build": s.deps.Conf.Build}
	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(ctx.Request().Context()); err != nil {
			s.deps.Logger.Warn("health check failed", err)
			status["status"] = "unavailable"
			return ctx.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return ctx.JSON(http.StatusOK, status)
}
