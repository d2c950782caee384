package main

import (
	"github.com/spf13/cobra"
)

func statementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Manage the entity statement cache",
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired entity statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := reg.Issuer().Purge()
			if err != nil {
				return err
			}
			cmd.Printf("purged %d expired statements\n", n)
			return nil
		},
	}

	invalidate := &cobra.Command{
		Use:   "invalidate <entity_id>",
		Short: "Drop the cached statement of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == reg.EntityID() {
				return reg.InvalidateEntityConfiguration()
			}
			return reg.Issuer().Invalidate(args[0])
		},
	}

	cmd.AddCommand(purge, invalidate)
	return cmd
}
