package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
)

type appRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Publisher   string   `json:"publisher"`
	Platform    string   `json:"platform"`
	Type        string   `json:"type"`
	Assignments []string `json:"assignments,omitempty"`
}

func newAppsCmd(rt *runtime) *cobra.Command {
	var sel appSelection
	var withAssignments bool

	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List managed apps of the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := rt.openSession(cmd.Context())
			if err != nil {
				return err
			}
			apps := sel.filter().Apply(sess.Apps())
			if withAssignments {
				ids := make([]string, 0, len(apps))
				for _, a := range apps {
					ids = append(ids, a.ID)
				}
				if err := rt.sessions().LoadSelection(cmd.Context(), ids); err != nil {
					return err
				}
			}

			rows := make([]appRow, 0, len(apps))
			for _, a := range apps {
				row := appRow{ID: a.ID, Name: a.Name(), Publisher: a.Publisher, Platform: a.Platform().Label(), Type: a.TypeName()}
				if withAssignments {
					row.Assignments = assignmentLabels(sess, a.ID)
				}
				rows = append(rows, row)
			}
			return rt.printApps(rows, withAssignments)
		},
	}
	cmd.Flags().StringVar(&sel.platform, "platform", "", "Only apps of this platform (android|windows|ios|macos|other)")
	cmd.Flags().StringVar(&sel.match, "match", "", "Only apps whose name or publisher contains this text")
	cmd.Flags().BoolVar(&withAssignments, "assignments", false, "Load and show current assignments")
	return cmd
}

func assignmentLabels(sess *services.Session, appID string) []string {
	var labels []string
	for _, a := range sess.Assignments.Get(appID) {
		labels = append(labels, string(a.Intent)+": "+a.Target.Label(sess))
	}
	return labels
}

func (rt *runtime) printApps(rows []appRow, withAssignments bool) error {
	if rt.jsonOut {
		for _, r := range rows {
			if err := writeJSONLine(rt.out, r); err != nil {
				return err
			}
		}
		return nil
	}
	header := []any{"Name", "Platform", "Type", "Publisher", "Id"}
	if withAssignments {
		header = append(header, "Assignments")
	}
	t := newTable(rt.out, header...)
	for _, r := range rows {
		row := []any{r.Name, r.Platform, r.Type, r.Publisher, r.ID}
		if withAssignments {
			row = append(row, strings.Join(r.Assignments, "\n"))
		}
		t.AppendRow(row)
	}
	t.AppendFooter([]any{"", "", "", "Total", len(rows)})
	t.Render()
	return nil
}
