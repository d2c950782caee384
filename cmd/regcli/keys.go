package main

import (
	"time"

	"github.com/spf13/cobra"
)

type keyInfo struct {
	KID       string    `json:"kid"`
	Algorithm string    `json:"alg"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the federation signing keys",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List active and retained signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := backs.Keys.All()
			if err != nil {
				return err
			}
			infos := make([]keyInfo, len(records))
			for i, k := range records {
				infos[i] = keyInfo{
					KID:       k.KID,
					Algorithm: k.Algorithm,
					Active:    k.IsActive(),
					CreatedAt: k.CreatedAt,
				}
			}
			return printJSON(cmd, infos)
		},
	}

	jwks := &cobra.Command{
		Use:   "jwks",
		Short: "Print the public key set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := reg.Keys().PublicKeySet()
			if err != nil {
				return err
			}
			return printJSON(cmd, set)
		},
	}

	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Generate a new active signing key and retain the current one",
		Long: "Generate a new active signing key and retain the current one. " +
			"A running registrar picks up the new key after a restart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := reg.Keys().Rotate()
			if err != nil {
				return err
			}
			if err = reg.InvalidateEntityConfiguration(); err != nil {
				return err
			}
			return printJSON(
				cmd, keyInfo{
					KID:       key.KID,
					Algorithm: key.Algorithm,
					Active:    true,
					CreatedAt: key.CreatedAt,
				},
			)
		},
	}

	cmd.AddCommand(list, jwks, rotate)
	return cmd
}
