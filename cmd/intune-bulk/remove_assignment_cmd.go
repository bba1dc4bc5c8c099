package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveAssignmentCmd(rt *runtime) *cobra.Command {
	var appID, assignmentID string

	cmd := &cobra.Command{
		Use:   "remove-assignment",
		Short: "Delete one assignment by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := rt.openSession(ctx); err != nil {
				return err
			}
			if err := rt.sessions().LoadSelection(ctx, []string{appID}); err != nil {
				return err
			}
			if err := rt.bulk().RemoveAssignment(ctx, appID, assignmentID); err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSONLine(rt.out, map[string]string{"status": "removed", "appId": appID, "assignmentId": assignmentID})
			}
			_, err := fmt.Fprintf(rt.out, "Removed assignment %s from app %s.\n", assignmentID, appID)
			return err
		},
	}
	cmd.Flags().StringVar(&appID, "app", "", "App id (required)")
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "Assignment id (required)")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}
