package main

import (
	"context"
	"fmt"
	"os"

	"github.com/humanistchoir/members/apps/shared"
	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger("ADMIN : ", conf)
	defer logger.Close()

	// set up DB; migrations are left to the migrate command
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	svcs, err := shared.NewServices(context.Background(), conf, logger, db)
	if err != nil {
		_ = db.Close()
		logger.Fatal(fmt.Sprintf("setting up services: %v", err), err)
	}

	cli := newCommandLine(conf, svcs, os.Stdin, os.Stdout)
	err = cli.run(os.Args[1:])
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
