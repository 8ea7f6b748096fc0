package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/signalnine/flakebench/internal/result"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <artifact.json>...",
		Short: "Check result files against the result format",
		Long:  "Load each result file with the same schema checks the reporter uses and print its run and assignment counts. Stops at the first malformed file.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ARTIFACT\tRUNS\tAGENTS\tASSIGNMENTS")
			total := 0
			for _, path := range args {
				recs, err := result.LoadArtifact(path)
				if err != nil {
					tw.Flush()
					return err
				}
				agents := map[string]bool{}
				assignments := 0
				for _, r := range recs {
					agents[r.Agent] = true
					assignments += len(r.Scores)
				}
				total += len(recs)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", path, len(recs), len(agents), assignments)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if total == 0 {
				return result.ErrEmptyDataset
			}
			return nil
		},
	}
}
