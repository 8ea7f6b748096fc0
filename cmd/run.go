package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/signalnine/flakebench/internal/config"
	"github.com/signalnine/flakebench/internal/docker"
	"github.com/signalnine/flakebench/internal/ledger"
	"github.com/signalnine/flakebench/internal/report"
	"github.com/signalnine/flakebench/internal/result"
	"github.com/signalnine/flakebench/internal/runner"
	"github.com/signalnine/flakebench/internal/viewer"
	"github.com/spf13/cobra"
)

type runFlags struct {
	runs           int
	maxRetries     int
	outputPrefix   string
	outputDir      string
	eval           string
	visualize      bool
	visualizeCmd   string
	reportOutput   string
	attemptTimeout time.Duration
	executor       string
	image          string
	ledger         string
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark command until the target number of runs succeed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, f, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			return runBenchmark(cmd.Context(), cfg, log)
		},
	}
	bindRunFlags(cmd, f)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	d := config.Default()
	cmd.Flags().IntVar(&f.runs, "runs", d.Runs, "number of successful benchmark runs to collect")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", d.MaxRetries, "maximum attempts per run before aborting")
	cmd.Flags().StringVar(&f.outputPrefix, "output-prefix", d.OutputPrefix, "prefix for the generated result files")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", d.OutputDir, "directory for the result files")
	cmd.Flags().StringVar(&f.eval, "eval", d.Eval, "target repository passed to the benchmark command")
	cmd.Flags().BoolVar(&f.visualize, "visualize", false, "render the instability report after collecting runs")
	cmd.Flags().StringVar(&f.visualizeCmd, "visualize-cmd", "", "external reporter to run instead of the built-in one")
	cmd.Flags().StringVar(&f.reportOutput, "report-output", d.Report.Output, "image path for the built-in reporter")
	cmd.Flags().DurationVar(&f.attemptTimeout, "attempt-timeout", 0, "bound on a single attempt (0 waits forever)")
	cmd.Flags().StringVar(&f.executor, "executor", d.Executor.Kind, "where to run the command (local, docker)")
	cmd.Flags().StringVar(&f.image, "image", "", "container image for the docker executor")
	cmd.Flags().StringVar(&f.ledger, "ledger", "", "SQLite file recording every attempt")
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, f *runFlags, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("runs") {
		cfg.Runs = f.runs
	}
	if set("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if set("output-prefix") {
		cfg.OutputPrefix = f.outputPrefix
	}
	if set("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if set("eval") {
		cfg.Eval = f.eval
	}
	if set("visualize") {
		cfg.Report.Enabled = f.visualize
	}
	if set("visualize-cmd") {
		cfg.Report.Command = f.visualizeCmd
	}
	if set("report-output") {
		cfg.Report.Output = f.reportOutput
	}
	if set("attempt-timeout") {
		cfg.AttemptTimeout = f.attemptTimeout
	}
	if set("executor") {
		cfg.Executor.Kind = f.executor
	}
	if set("image") {
		cfg.Executor.Image = f.image
	}
	if set("ledger") {
		cfg.Ledger = f.ledger
	}
}

func runBenchmark(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := cfg.CommandEnv(os.Environ())
	if err != nil {
		return err
	}
	secrets, err := cfg.SecretValues()
	if err != nil {
		return err
	}
	executor, err := newExecutor(cfg, secrets)
	if err != nil {
		return err
	}

	orch := &runner.Orchestrator{
		Runs:        cfg.Runs,
		MaxAttempts: cfg.MaxRetries,
		OutputDir:   cfg.OutputDir,
		Check: func() error {
			return cfg.CheckEnvironment(os.LookupEnv)
		},
		Build: func(idx int, dir string) (*runner.Invocation, error) {
			artifact := result.ArtifactPath(dir, cfg.OutputPrefix, idx)
			return &runner.Invocation{
				Command:  cfg.BuildCommand(artifact, idx),
				Env:      env,
				Artifact: artifact,
			}, nil
		},
		Executor:       executor,
		Logger:         log,
		AttemptTimeout: cfg.AttemptTimeout,
	}

	var session *ledger.Session
	if cfg.Ledger != "" {
		store, err := ledger.Open(cfg.Ledger)
		if err != nil {
			return err
		}
		defer store.Close()
		session, err = store.Begin(cfg.Eval, cfg.Runs, cfg.MaxRetries)
		if err != nil {
			return err
		}
		orch.Recorder = session
		log = log.With("session", session.ID)
		orch.Logger = log
	}

	out, err := orch.Execute(ctx)
	if session != nil {
		status := ledger.StatusSucceeded
		if err != nil {
			status = ledger.StatusFailed
		}
		if ferr := session.Finish(status); ferr != nil {
			log.Warn("closing ledger session", "err", ferr)
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("Collected %d runs in %s\n", len(out.Artifacts), out.OutputDir)

	if !cfg.Report.Enabled {
		return nil
	}
	if cfg.Report.Command != "" {
		runExternalReporter(cfg.Report.Command, out.Artifacts, log)
		return nil
	}
	opener := viewer.Opener(viewer.Nop{})
	if cfg.Report.Open {
		opener = viewer.Default()
	}
	_, err = report.Generate(&report.Options{
		Artifacts: out.Artifacts,
		Output:    cfg.Report.Output,
		Format:    cfg.Report.Format,
		Summary:   os.Stdout,
		Opener:    opener,
		Logger:    log,
	})
	return err
}

func newExecutor(cfg *config.Config, secrets map[string]string) (runner.Executor, error) {
	if cfg.Executor.Kind != "docker" {
		return runner.LocalExecutor{}, nil
	}
	mem, err := cfg.Executor.MemoryBytes()
	if err != nil {
		return nil, err
	}
	pass := append([]string(nil), cfg.RequiredEnv...)
	for k := range secrets {
		pass = append(pass, k)
	}
	mounts := make([]docker.Mount, len(cfg.Executor.Mounts))
	for i, m := range cfg.Executor.Mounts {
		mounts[i] = docker.Mount{Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly}
	}
	return runner.DockerExecutor{
		Image:       cfg.Executor.Image,
		PassEnv:     pass,
		CPUs:        cfg.Executor.CPUs,
		MemoryBytes: mem,
		Mounts:      mounts,
	}, nil
}

// runExternalReporter hands the artifacts to a separate reporting program.
// Its failures are reported but do not fail the run.
func runExternalReporter(command string, artifacts []string, log *slog.Logger) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		fmt.Printf("Visualization command not found at %s. Skipping visualization.\n", fields[0])
		return
	}
	args := append(fields[1:], artifacts...)
	fmt.Println("Running visualization:", fields[0], strings.Join(args, " "))
	c := exec.Command(fields[0], args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		log.Warn("visualization command exited with an error", "err", err)
	}
}
