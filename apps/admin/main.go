package main

import (
	"log"
	"os"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/storage/database"
	sqlxrepos "github.com/AbuAli85/business-services-hub-sub009/storage/database/sqlx"
)

func main() {
	logger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err)
	}

	// start CLI
	cli := commandLine{
		db:         db.DB,
		conf:       conf,
		profileSvc: profile.NewService(sqlxrepos.NewProfileRepository(db)),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
