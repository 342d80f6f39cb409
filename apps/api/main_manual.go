package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"

	echoapi "github.com/trezcool/vidyalaya/apps/api/echo"
	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/access"
	"github.com/trezcool/vidyalaya/core/ledger"
	"github.com/trezcool/vidyalaya/core/promotion"
	"github.com/trezcool/vidyalaya/core/roster"
	"github.com/trezcool/vidyalaya/core/student"
	archivesvc "github.com/trezcool/vidyalaya/services/archive"
	emailsvc "github.com/trezcool/vidyalaya/services/email"
	"github.com/trezcool/vidyalaya/services/feeschedule"
	logsvc "github.com/trezcool/vidyalaya/services/logger"
	"github.com/trezcool/vidyalaya/services/spreadsheet"
	"github.com/trezcool/vidyalaya/storage/database"
	boiledrepos "github.com/trezcool/vidyalaya/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/vidyalaya/storage/database/sqlx"
)

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZapLogger("API", conf.Debug)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer zl.Sync()

	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)

	dbZl, err := logsvc.NewZapLogger("DB", conf.Debug)
	if err != nil {
		logger.Fatal("building DB logger", err)
	}
	dbLogger := logsvc.NewRollbarLogger(dbZl, conf)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	studentRepo := sqlxrepos.NewStudentRepository(db)
	ledgerRepo := boiledrepos.NewLedgerRepository(db)

	// set up services
	schedule, err := feeschedule.Load(conf.School.FeeSchedulePath)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading fee schedule: %v", err), err)
	}
	archives, err := archivesvc.NewFSStore(conf.Promotion.ArchiveDir)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening archive directory: %v", err), err)
	}
	if conf.Promotion.SecretHash == "" {
		logger.Warn("no promotion secret configured: every promotion will be denied")
	}
	mailSvc := emailsvc.NewService(conf, logger)
	codec := spreadsheet.NewExcelCodec()

	studentSvc := student.NewService(studentRepo, conf)
	rosterSvc := roster.NewService(studentRepo, codec, logger, conf)
	ledgerSvc := ledger.NewService(ledgerRepo, studentRepo, schedule, logger, conf)
	promotionSvc := promotion.NewEngine(promotion.Deps{
		Conf:       conf,
		Logger:     logger,
		Students:   studentRepo,
		Transactor: database.NewTransactor(db),
		Archives:   archives,
		Codec:      codec,
		Authorizer: access.NewSecretAuthorizer(conf.Promotion.SecretHash),
		MailSvc:    mailSvc,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	student.InitValidators(validate, translator, conf.School.Sections)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("school").Set(conf.School.Name)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			StudentSvc:   studentSvc,
			RosterSvc:    rosterSvc,
			LedgerSvc:    ledgerSvc,
			PromotionSvc: promotionSvc,
			Validate:     validate,
			Translator:   translator,
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
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		return nil, err
	}
	return db, nil
}
