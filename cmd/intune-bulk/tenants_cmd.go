package main

import (
	"github.com/spf13/cobra"
)

func newTenantsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List the tenants of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenants := rt.tenants().List()
			if rt.jsonOut {
				for _, d := range tenants {
					if err := writeJSONLine(rt.out, d); err != nil {
						return err
					}
				}
				return nil
			}
			t := newTable(rt.out, "Name", "Tenant", "Client Id")
			for _, d := range tenants {
				t.AppendRow([]any{d.DisplayName(), d.Tenant, d.ClientID})
			}
			t.Render()
			return nil
		},
	}
}
