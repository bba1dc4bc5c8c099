package main

import (
	"github.com/spf13/cobra"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/domain"
)

func newSuggestCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest group or assignment filter names",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "groups <prefix>",
			Short: "Groups whose name starts with prefix",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := rt.openSession(cmd.Context()); err != nil {
					return err
				}
				items, err := rt.suggestions().SuggestGroups(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return rt.printNamed(items)
			},
		},
		&cobra.Command{
			Use:   "filters <text>",
			Short: "Assignment filters whose name contains text",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := rt.openSession(cmd.Context()); err != nil {
					return err
				}
				items, err := rt.suggestions().SuggestFilters(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return rt.printNamed(items)
			},
		},
	)
	return cmd
}

func (rt *runtime) printNamed(items []domain.NamedObject) error {
	if rt.jsonOut {
		for _, it := range items {
			if err := writeJSONLine(rt.out, map[string]string{"id": it.ID, "name": it.DisplayName}); err != nil {
				return err
			}
		}
		return nil
	}
	t := newTable(rt.out, "Name", "Id")
	for _, it := range items {
		t.AppendRow([]any{it.DisplayName, it.ID})
	}
	t.Render()
	return nil
}
