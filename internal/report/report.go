package report

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/signalnine/flakebench/internal/result"
	"github.com/signalnine/flakebench/internal/viewer"
)

type Options struct {
	Artifacts []string
	Output    string
	// Format selects the text summary written to Summary: table,
	// markdown, json or none.
	Format  string
	Summary io.Writer
	Sink    Sink
	Opener  viewer.Opener
	Logger  *slog.Logger
}

// Report is what Generate produced.
type Report struct {
	Output    string
	Views     []AgentView
	Summaries []AgentSummary
	Rows      int
}

// Generate loads the artifacts, renders the instability report and then
// tries to open it. Opening is best effort and never fails the report.
func Generate(opts *Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(opts.Artifacts) == 0 {
		return nil, result.ErrEmptyDataset
	}

	records, err := result.LoadArtifacts(opts.Artifacts)
	if err != nil {
		return nil, err
	}
	rows, err := result.Flatten(records)
	if err != nil {
		return nil, err
	}

	views := BuildViews(rows)
	rep := &Report{Output: opts.Output, Views: views, Summaries: Summarize(views), Rows: len(rows)}

	sink := opts.Sink
	if sink == nil {
		sink = PNGSink{}
	}
	if err := sink.Render(views, opts.Output); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	log.Info("saved visualization", "output", opts.Output, "agents", len(views), "rows", len(rows))

	if opts.Summary != nil {
		if err := WriteSummary(rep.Summaries, opts.Format, opts.Summary); err != nil {
			return nil, err
		}
	}

	if opts.Opener != nil {
		if err := opts.Opener.Open(opts.Output); err != nil {
			log.Warn("could not open report automatically", "output", opts.Output, "err", err)
		}
	}
	return rep, nil
}
