package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/access"
	"github.com/trezcool/vidyalaya/core/promotion"
	"github.com/trezcool/vidyalaya/core/roster"
	archivesvc "github.com/trezcool/vidyalaya/services/archive"
	emailsvc "github.com/trezcool/vidyalaya/services/email"
	logsvc "github.com/trezcool/vidyalaya/services/logger"
	"github.com/trezcool/vidyalaya/services/spreadsheet"
	"github.com/trezcool/vidyalaya/storage/database"
	sqlxrepos "github.com/trezcool/vidyalaya/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger("ADMIN", conf.Debug)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	archives, err := archivesvc.NewFSStore(conf.Promotion.ArchiveDir)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening archive directory: %v", err), err)
	}
	studentRepo := sqlxrepos.NewStudentRepository(db)
	codec := spreadsheet.NewExcelCodec()

	// start CLI
	cli := commandLine{
		conf:   conf,
		db:     db,
		roster: roster.NewService(studentRepo, codec, logger, conf),
		promotion: promotion.NewEngine(promotion.Deps{
			Conf:       conf,
			Logger:     logger,
			Students:   studentRepo,
			Transactor: database.NewTransactor(db),
			Archives:   archives,
			Codec:      codec,
			Authorizer: access.NewSecretAuthorizer(conf.Promotion.SecretHash),
			MailSvc:    emailsvc.NewService(conf, logger),
		}),
		out: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	zl.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
