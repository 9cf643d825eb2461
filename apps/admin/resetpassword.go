package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/humanistchoir/members/core"
)

func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the new password is prompted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			return cli.resetPassword(email, pwd)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email address")
	return cmd
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.svcs.UserSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	_, err = cli.svcs.UserSvc.SetPassword(ctx, usr, pwd)
	return err
}
