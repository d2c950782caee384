package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage admin api users",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List admin api users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := backs.Users.List()
			if err != nil {
				return err
			}
			return printJSON(cmd, users)
		},
	}

	var password, displayName string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an admin api user",
		Long:  "Create an admin api user. The admin api is open as long as no user exists.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("a password is required")
			}
			user, err := backs.Users.Create(args[0], password, displayName)
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
	create.Flags().StringVarP(&password, "password", "p", "", "the password of the new user")
	create.Flags().StringVar(&displayName, "display-name", "", "the display name of the new user")

	del := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an admin api user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := backs.Users.Delete(args[0]); err != nil {
				return err
			}
			cmd.Printf("deleted user %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}
