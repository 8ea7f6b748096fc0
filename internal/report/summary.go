package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
)

// AgentSummary describes how much an agent's final score moved between runs.
type AgentSummary struct {
	Agent  string  `json:"agent"`
	Runs   int     `json:"runs"`
	Mean   float64 `json:"mean_final_score"`
	StdDev float64 `json:"stddev_final_score"`
	Min    float64 `json:"min_final_score"`
	Max    float64 `json:"max_final_score"`
	Spread float64 `json:"spread"`
}

// Summarize computes population statistics over each view's final scores.
func Summarize(views []AgentView) []AgentSummary {
	out := make([]AgentSummary, 0, len(views))
	for _, v := range views {
		s := AgentSummary{Agent: v.Agent, Runs: len(v.FinalScores)}
		if s.Runs == 0 {
			out = append(out, s)
			continue
		}
		s.Min, s.Max = math.Inf(1), math.Inf(-1)
		var sum float64
		for _, p := range v.FinalScores {
			sum += p.FinalScore
			s.Min = math.Min(s.Min, p.FinalScore)
			s.Max = math.Max(s.Max, p.FinalScore)
		}
		s.Mean = sum / float64(s.Runs)
		var sq float64
		for _, p := range v.FinalScores {
			d := p.FinalScore - s.Mean
			sq += d * d
		}
		s.StdDev = math.Sqrt(sq / float64(s.Runs))
		s.Spread = s.Max - s.Min
		out = append(out, s)
	}
	return out
}

// WriteSummary renders summaries as table, markdown or json. "none"
// writes nothing.
func WriteSummary(summaries []AgentSummary, format string, w io.Writer) error {
	switch format {
	case "none":
		return nil
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	case "table", "":
		return writeTable(summaries, w)
	default:
		return fmt.Errorf("unknown summary format %q", format)
	}
}

func writeTable(summaries []AgentSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tRUNS\tMEAN\tSTDDEV\tMIN\tMAX\tSPREAD")
	fmt.Fprintln(tw, strings.Repeat("-", 64))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			s.Agent, s.Runs, s.Mean, s.StdDev, s.Min, s.Max, s.Spread)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []AgentSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Agent | Runs | Mean | StdDev | Min | Max | Spread |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %.3f | %.3f | %.3f | %.3f | %.3f |\n",
			s.Agent, s.Runs, s.Mean, s.StdDev, s.Min, s.Max, s.Spread)
	}
	return nil
}

func writeJSON(summaries []AgentSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
