package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/AbuAli85/business-services-hub-sub009/apps/api/echo"
	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/catalog"
	"github.com/AbuAli85/business-services-hub-sub009/core/invoice"
	"github.com/AbuAli85/business-services-hub-sub009/core/message"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
	emailsvc "github.com/AbuAli85/business-services-hub-sub009/services/email"
	exportsvc "github.com/AbuAli85/business-services-hub-sub009/services/export"
	logsvc "github.com/AbuAli85/business-services-hub-sub009/services/logger"
	"github.com/AbuAli85/business-services-hub-sub009/storage/database"
	sqlxrepos "github.com/AbuAli85/business-services-hub-sub009/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	std, logFile, err := logsvc.NewStdLogger(conf)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logFile.Close() }()

	logger := logsvc.NewRollbarLogger(std, conf)
	defer logger.Close()

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up repos
	tx := database.NewTransactor(db)
	profileRepo := sqlxrepos.NewProfileRepository(db)
	offeringRepo := sqlxrepos.NewOfferingRepository(db)
	bookingRepo := sqlxrepos.NewBookingRepository(db)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	profileSvc := profile.NewService(profileRepo)
	progressSvc := progress.NewService(sqlxrepos.NewProgressRepository(db), bookingRepo, tx,
		booking.NewNotifier(profileRepo, mailSvc, conf))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.Deps{
			Conf:        conf,
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
			ProfileSvc:  profileSvc,
			CatalogSvc:  catalog.NewService(offeringRepo, conf),
			BookingSvc:  booking.NewService(bookingRepo, offeringRepo, profileRepo, tx, progressSvc, mailSvc, conf),
			ProgressSvc: progressSvc,
			InvoiceSvc: invoice.NewService(
				sqlxrepos.NewInvoiceRepository(db), bookingRepo, profileRepo, tx,
				exportsvc.NewXLSXExporter(), mailSvc, conf,
			),
			MessageSvc:  message.NewService(sqlxrepos.NewMessageRepository(db), profileSvc, bookingRepo, mailSvc, conf),
			HealthCheck: db.PingContext,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
