package main

import (
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/humanistchoir/members/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	engine := cli.conf.Database.Engine
	if err := database.SetupGoose(engine); err != nil {
		return err
	}
	return gooseRunFunc(args[0], cli.svcs.DB.DB, database.MigrationsDir(engine), args[1:]...)
}
