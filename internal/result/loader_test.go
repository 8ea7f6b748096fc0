package result_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/flakebench/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const twoRuns = `{
  "runs": [
    {"model": "gpt", "summary": {"finalScore": 0.8},
     "scores": [{"assignment": {"name": "lint"}, "averageScore": 0.9},
                {"assignment": {"name": "test"}, "averageScore": 0.7}]},
    {"model": "claude", "summary": {"finalScore": 0.6},
     "scores": []}
  ]
}`

func TestLoadArtifact(t *testing.T) {
	path := writeFile(t, "bench-1.json", twoRuns)

	recs, err := result.LoadArtifact(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "gpt", recs[0].Agent)
	assert.Equal(t, 0.8, recs[0].FinalScore)
	assert.Equal(t, map[string]float64{"lint": 0.9, "test": 0.7}, recs[0].Scores)
	assert.Equal(t, "bench-1.json", recs[0].Source)
	assert.Equal(t, 0, recs[0].SequenceInSource)

	assert.Equal(t, "claude", recs[1].Agent)
	assert.Empty(t, recs[1].Scores)
	assert.Equal(t, 1, recs[1].SequenceInSource)
}

func TestLoadArtifactMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"missing runs", `{"results": []}`, "runs"},
		{"runs not array", `{"runs": {}}`, "runs"},
		{"missing scores", `{"runs": [{"model": "gpt", "summary": {"finalScore": 0.5}}]}`, "scores"},
		{"missing final score", `{"runs": [{"model": "gpt", "summary": {}, "scores": []}]}`, "finalScore"},
		{"model not string", `{"runs": [{"model": 7, "summary": {"finalScore": 0.5}, "scores": []}]}`, "model"},
		{"missing assignment name", `{"runs": [{"model": "gpt", "summary": {"finalScore": 0.5},
			"scores": [{"assignment": {}, "averageScore": 0.1}]}]}`, "name"},
		{"score not number", `{"runs": [{"model": "gpt", "summary": {"finalScore": 0.5},
			"scores": [{"assignment": {"name": "lint"}, "averageScore": "high"}]}]}`, "averageScore"},
		{"duplicate assignment", `{"runs": [{"model": "gpt", "summary": {"finalScore": 0.5},
			"scores": [{"assignment": {"name": "lint"}, "averageScore": 0.1},
			           {"assignment": {"name": "lint"}, "averageScore": 0.2}]}]}`, "assignment.name"},
		{"not json", `{"runs": [`, "(root)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "broken.json", tt.content)

			recs, err := result.LoadArtifact(path)
			require.Error(t, err)
			assert.Nil(t, recs)

			var perr *result.ParseError
			require.True(t, errors.As(err, &perr), "want ParseError, got %T", err)
			assert.Equal(t, path, perr.Artifact)
			assert.Contains(t, perr.Field, tt.field)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadArtifactMissingScoresOnSecondRun(t *testing.T) {
	path := writeFile(t, "partial.json", `{"runs": [
		{"model": "gpt", "summary": {"finalScore": 0.5}, "scores": []},
		{"model": "gpt", "summary": {"finalScore": 0.6}}
	]}`)

	recs, err := result.LoadArtifact(path)
	require.Error(t, err)
	assert.Nil(t, recs, "no records may escape a malformed artifact")

	var perr *result.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "runs.1.scores", perr.Field)
}

func TestLoadArtifactMissingFile(t *testing.T) {
	_, err := result.LoadArtifact(filepath.Join(t.TempDir(), "nope.json"))
	var perr *result.ParseError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadArtifactsStopsAtFirstFailure(t *testing.T) {
	good := writeFile(t, "a.json", twoRuns)
	bad := writeFile(t, "b.json", `{"runs": [{"model": "gpt"}]}`)

	recs, err := result.LoadArtifacts([]string{good, bad})
	require.Error(t, err)
	assert.Nil(t, recs)
	assert.Contains(t, err.Error(), bad)
}
