package main

import (
	"github.com/spf13/cobra"

	"github.com/go-oidfed/registrar/storage/model"
)

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Manage registered entities",
	}

	var listType, listStatus string
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status *model.Status
			if listStatus != "" {
				s, err := model.ParseStatus(listStatus)
				if err != nil {
					return err
				}
				status = &s
			}
			entities, err := reg.Registry().List(model.EntityType(listType), status)
			if err != nil {
				return err
			}
			summaries := make([]model.EntitySummary, len(entities))
			for i, e := range entities {
				summaries[i] = e.Summary()
			}
			return printJSON(cmd, summaries)
		},
	}
	list.Flags().StringVar(&listType, "entity-type", "", "only entities of type OP or RP")
	list.Flags().StringVar(&listStatus, "status", "", "only entities with this status")

	show := &cobra.Command{
		Use:   "show <entity_id>",
		Short: "Show a registered entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := reg.Registry().Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, entity)
		},
	}

	setStatus := &cobra.Command{
		Use:   "set-status <entity_id> <status>",
		Short: "Change the status of a registered entity",
		Long:  "Change the status of a registered entity; its cached subordinate statement is dropped",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			if err = reg.Registry().SetStatus(args[0], status); err != nil {
				return err
			}
			if err = reg.Issuer().Invalidate(args[0]); err != nil {
				return err
			}
			cmd.Printf("%s is now %s\n", args[0], status)
			return nil
		},
	}

	cmd.AddCommand(list, show, setStatus)
	return cmd
}
