package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EnsureOutputDir resolves dir to an absolute path and creates it if absent.
func EnsureOutputDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	return abs, nil
}

// ArtifactPath is the result file for a given run. It is known before the
// run executes.
func ArtifactPath(dir, prefix string, runIndex int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d.json", prefix, runIndex))
}

// WriteArtifact serializes records in the benchmark result format.
func WriteArtifact(path string, records []RunRecord) error {
	art := Artifact{Runs: make([]ArtifactRun, 0, len(records))}
	for _, r := range records {
		names := make([]string, 0, len(r.Scores))
		for name := range r.Scores {
			names = append(names, name)
		}
		sort.Strings(names)
		run := ArtifactRun{
			Model:   r.Agent,
			Summary: ArtifactSummary{FinalScore: r.FinalScore},
			Scores:  make([]ArtifactScore, 0, len(names)),
		}
		for _, name := range names {
			run.Scores = append(run.Scores, ArtifactScore{
				Assignment:   ArtifactAssignment{Name: name},
				AverageScore: r.Scores[name],
			})
		}
		art.Runs = append(art.Runs, run)
	}
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
