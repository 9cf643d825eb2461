package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/user"
)

func (cli *commandLine) addUserCommand() *cobra.Command {
	var email, first, last string
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user; the password is prompted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			usr, err := cli.addUser(email, first, last, pwd, isAdmin)
			if err != nil {
				return err
			}
			cmd.Printf("saved user %d: %s\n", usr.ID, usr.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email address")
	cmd.Flags().StringVar(&first, "first", "", "First name")
	cmd.Flags().StringVar(&last, "last", "", "Last name")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Make the user a site owner")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, first, last, pwd string, isAdmin bool) (user.User, error) {
	ctx := context.Background()
	repo := cli.svcs.UserRepo
	email = core.CleanString(email, true /* lower */)
	now := core.NowFunc().UTC().Truncate(time.Second)

	usr, err := repo.GetUserByEmail(ctx, email)
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{Email: email, Roles: []string{user.RoleMember}, CreatedAt: now}
	}
	if first = core.CleanString(first); first != "" {
		usr.FirstName = first
	}
	if last = core.CleanString(last); last != "" {
		usr.LastName = last
	}
	if isAdmin {
		usr.Roles = []string{user.RoleAdminOwner}
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	if exists {
		return repo.UpdateUser(ctx, usr)
	}
	return repo.CreateUser(ctx, usr)
}
