package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/user"
)

func (cli *commandLine) inviteCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "invite EMAIL...",
		Short: "Invite new members by email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return cli.invite(from, args...)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Email of the admin sending the invitations")
	return cmd
}

// invite sends one invitation per address, reporting rejected addresses without stopping.
func (cli *commandLine) invite(from string, emails ...string) error {
	ctx := context.Background()
	inviter := user.User{FirstName: cli.conf.AppName}
	if from != "" {
		usr, err := cli.svcs.UserSvc.GetByEmail(ctx, from)
		if err != nil {
			return err
		}
		inviter = usr
	}

	var failed int
	for _, email := range emails {
		inv, err := cli.svcs.InvitationSvc.Create(ctx, invitation.NewInvitation{Email: email}, inviter)
		if err != nil {
			fields, ok := core.FieldErrors(err)
			if !ok {
				return err
			}
			failed++
			fmt.Fprintf(cli.out, "%s: %s\n", email, fields["email"])
			continue
		}
		fmt.Fprintf(cli.out, "invited %s\n", inv.Email)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d invitations failed", failed, len(emails))
	}
	return nil
}
