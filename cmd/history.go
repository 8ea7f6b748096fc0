package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/signalnine/flakebench/internal/config"
	"github.com/signalnine/flakebench/internal/ledger"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		ledgerPath string
		session    string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded orchestration sessions and attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ledgerPath == "" {
				cfg, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				ledgerPath = cfg.Ledger
			}
			if ledgerPath == "" {
				return fmt.Errorf("no ledger configured; pass --ledger")
			}
			store, err := ledger.Open(ledgerPath)
			if err != nil {
				return err
			}
			defer store.Close()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			if session != "" {
				attempts, err := store.Attempts(session)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "RUN\tATTEMPT\tEXIT CODE\tTIMED OUT\tDURATION")
				for _, a := range attempts {
					fmt.Fprintf(tw, "%d\t%d\t%d\t%v\t%s\n", a.RunIndex, a.Attempt, a.ExitCode, a.TimedOut, a.Duration.Round(time.Second))
				}
				return tw.Flush()
			}

			rows, err := store.Sessions()
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "SESSION\tSTARTED\tEVAL\tRUNS\tATTEMPTS\tFAILURES\tSTATUS")
			fmt.Fprintln(tw, strings.Repeat("-", 100))
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Eval, r.Runs, r.Attempts, r.Failures, r.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "SQLite ledger file")
	cmd.Flags().StringVar(&session, "session", "", "show the attempts of one session")
	return cmd
}
