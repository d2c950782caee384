package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-oidfed/registrar/storage/model"
	"github.com/go-oidfed/registrar/validation"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage validation rules",
	}

	var listType string
	var listAll bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List validation rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := backs.Rules.List(model.RuleEntityType(listType), !listAll)
			if err != nil {
				return err
			}
			return printJSON(cmd, rules)
		},
	}
	list.Flags().StringVar(&listType, "entity-type", "", "only rules applying to OP or RP")
	list.Flags().BoolVar(&listAll, "all", false, "include inactive rules")

	var rule model.ValidationRule
	var entityType, validationType string
	var inactive bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a validation rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rule.EntityType = model.RuleEntityType(entityType)
			rule.ValidationType = model.ValidationType(validationType)
			rule.IsActive = !inactive
			if err := validation.CheckRule(rule); err != nil {
				return errors.WithMessage(err, "invalid rule")
			}
			if err := backs.Rules.Create(&rule); err != nil {
				return err
			}
			return printJSON(cmd, rule)
		},
	}
	create.Flags().StringVar(&rule.RuleName, "name", "", "unique rule name")
	create.Flags().StringVar(&entityType, "entity-type", string(model.RuleEntityTypeBoth), "OP, RP, or BOTH")
	create.Flags().StringVar(&rule.FieldPath, "field-path", "", "dotted path into the entity metadata")
	create.Flags().StringVar(&validationType, "type", string(model.ValidationRequired), "required, exists, exact_value, regex, or range")
	create.Flags().StringVar(&rule.ValidationValue, "value", "", "value for exact_value, regex, and range rules")
	create.Flags().StringVar(&rule.ErrorMessage, "message", "", "error message reported on violation")
	create.Flags().BoolVar(&inactive, "inactive", false, "create the rule inactive")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("field-path")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a validation rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 0)
			if err != nil {
				return errors.Errorf("invalid rule id '%s'", args[0])
			}
			if err = backs.Rules.Delete(uint(id)); err != nil {
				return err
			}
			cmd.Printf("deleted rule %d\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}
