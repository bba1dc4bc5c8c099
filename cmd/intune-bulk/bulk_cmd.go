package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rafallz10100/IntuneAppBulkAssignment/modules/intune/services"
)

type bulkOptions struct {
	sel        appSelection
	intent     string
	targetType string
	group      string
	groupMode  string
	filter     string
	filterMode string
	yes        bool
}

func (o bulkOptions) request(op services.OperationKind, appIDs []string) services.BulkRequest {
	return services.BulkRequest{
		Operation:  op,
		Intent:     o.intent,
		TargetType: o.targetType,
		GroupName:  o.group,
		GroupMode:  o.groupMode,
		FilterMode: o.filterMode,
		FilterName: o.filter,
		AppIDs:     appIDs,
	}
}

func newBulkCmd(rt *runtime, op services.OperationKind) *cobra.Command {
	var opts bulkOptions

	use, short := "assign", "Assign the selected apps to a target"
	if op == services.OperationRemove {
		use, short = "unassign", "Remove the matching assignment from the selected apps"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sel.empty() {
				return withCode(exitUsage, errors.New("select apps with --app, --platform or --match"))
			}
			return rt.runBulk(cmd.Context(), op, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.sel.ids, "app", nil, "App id (repeatable)")
	flags.StringVar(&opts.sel.platform, "platform", "", "Select every app of this platform")
	flags.StringVar(&opts.sel.match, "match", "", "Select every app whose name or publisher contains this text")
	flags.StringVar(&opts.intent, "intent", "required", "required|available|uninstall")
	flags.StringVar(&opts.targetType, "target", "group", "allDevices|allUsers|group")
	flags.StringVar(&opts.group, "group", "", "Group name or id")
	flags.StringVar(&opts.groupMode, "group-mode", "include", "include|exclude")
	flags.StringVar(&opts.filter, "filter", "", "Assignment filter name or id")
	flags.StringVar(&opts.filterMode, "filter-mode", "none", "none|include|exclude")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Confirm without prompting")
	return cmd
}

func (rt *runtime) runBulk(ctx context.Context, op services.OperationKind, opts bulkOptions) error {
	sess, err := rt.openSession(ctx)
	if err != nil {
		return err
	}
	appIDs := opts.sel.resolve(sess)
	if len(appIDs) == 0 {
		return withCode(exitValidation, errors.New("no apps match the selection"))
	}
	if err := rt.sessions().LoadSelection(ctx, appIDs); err != nil {
		return err
	}

	req := opts.request(op, appIDs)
	res, err := rt.bulk().Submit(ctx, req)
	if err != nil {
		return err
	}
	if res.Status == services.BulkPrepared {
		if !opts.yes {
			ok, err := rt.confirm(res.Message)
			if err != nil {
				return withCode(exitGeneric, err)
			}
			if !ok {
				_, err := fmt.Fprintln(rt.errOut, "Cancelled.")
				return err
			}
		}
		// The identical second submission is the confirmation.
		if res, err = rt.bulk().Submit(ctx, req); err != nil {
			return err
		}
	}
	return rt.printBulkResult(res)
}

func (rt *runtime) printBulkResult(res services.BulkResult) error {
	if rt.jsonOut {
		if err := writeJSONLine(rt.out, res); err != nil {
			return err
		}
	} else {
		if res.ConflictSummary != "" {
			fmt.Fprintln(rt.out, res.ConflictSummary)
		}
		fmt.Fprintln(rt.out, res.Message)
		if res.Outcome != nil && len(res.Outcome.Failures) > 0 {
			t := newTable(rt.out, "App", "Assignment", "Status", "Error")
			for _, f := range res.Outcome.Failures {
				t.AppendRow([]any{f.AppName, f.AssignmentID, f.Status, f.Message})
			}
			t.Render()
		}
		if res.Outcome != nil && res.Outcome.RefreshError != "" {
			fmt.Fprintln(rt.errOut, "warning: view refresh failed:", res.Outcome.RefreshError)
		}
	}

	switch {
	case res.Status == services.BulkAborted:
		return withCode(exitValidation, errors.New(res.Message))
	case res.Outcome != nil && res.Outcome.ErrorCount > 0:
		return withCode(exitPartial, fmt.Errorf("%d of %d operations failed", res.Outcome.ErrorCount,
			res.Outcome.ErrorCount+res.Outcome.SuccessCount))
	}
	return nil
}
