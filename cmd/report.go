package cmd

import (
	"os"

	"github.com/signalnine/flakebench/internal/config"
	"github.com/signalnine/flakebench/internal/report"
	"github.com/signalnine/flakebench/internal/viewer"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var (
		output string
		format string
		noOpen bool
	)
	cmd := &cobra.Command{
		Use:   "report <artifact.json>...",
		Short: "Visualize score instability across benchmark result files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			var opener viewer.Opener = viewer.Default()
			if noOpen {
				opener = viewer.Nop{}
			}
			_, err = report.Generate(&report.Options{
				Artifacts: args,
				Output:    output,
				Format:    format,
				Summary:   os.Stdout,
				Opener:    opener,
				Logger:    log,
			})
			return err
		},
	}
	d := config.Default()
	cmd.Flags().StringVarP(&output, "output", "o", d.Report.Output, "output image path")
	cmd.Flags().StringVar(&format, "format", d.Report.Format, "summary format (table, markdown, json, none)")
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "do not open the image in the default viewer")
	return cmd
}
