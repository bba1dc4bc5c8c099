package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newExportCmd(rt *runtime) *cobra.Command {
	var sel appSelection
	var outputDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export apps and their assignments to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := rt.openSession(cmd.Context()); err != nil {
				return err
			}
			exp, err := rt.exporter().Export(cmd.Context(), sel.filter())
			if err != nil {
				return err
			}
			defer func() { _ = exp.Close() }()

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return withCode(exitGeneric, err)
			}
			path := filepath.Join(outputDir, exp.FileName)
			f, err := os.Create(path)
			if err != nil {
				return withCode(exitGeneric, err)
			}
			if _, err := exp.WriteTo(f); err != nil {
				_ = f.Close()
				return withCode(exitGeneric, fmt.Errorf("write %s: %w", path, err))
			}
			if err := f.Close(); err != nil {
				return withCode(exitGeneric, err)
			}

			if rt.jsonOut {
				return writeJSONLine(rt.out, map[string]any{"status": "exported", "file": path, "rows": exp.Rows})
			}
			_, err = fmt.Fprintf(rt.out, "Exported %d rows to %s\n", exp.Rows, path)
			return err
		},
	}
	cmd.Flags().StringVar(&sel.platform, "platform", "", "Only apps of this platform")
	cmd.Flags().StringVar(&sel.match, "match", "", "Only apps whose name or publisher contains this text")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	return cmd
}
