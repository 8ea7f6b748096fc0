package report_test

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/flakebench/internal/report"
	"github.com/signalnine/flakebench/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	views  []report.AgentView
	output string
}

func (c *captureSink) Render(views []report.AgentView, output string) error {
	c.views, c.output = views, output
	return nil
}

type failingOpener struct{ called bool }

func (f *failingOpener) Open(string) error {
	f.called = true
	return errors.New("no display")
}

func writeArtifact(t *testing.T, dir, name string, recs ...result.RunRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, result.WriteArtifact(path, recs))
	return path
}

func fixtureAB(t *testing.T) []string {
	dir := t.TempDir()
	return []string{
		writeArtifact(t, dir, "A", result.RunRecord{Agent: "gpt", FinalScore: 0.80, Scores: map[string]float64{"lint": 0.9, "test": 0.7}}),
		writeArtifact(t, dir, "B", result.RunRecord{Agent: "gpt", FinalScore: 0.60, Scores: map[string]float64{"lint": 0.5, "test": 0.65}}),
	}
}

func TestGenerateTwoArtifacts(t *testing.T) {
	sink := &captureSink{}
	opener := &failingOpener{}
	var summary bytes.Buffer

	rep, err := report.Generate(&report.Options{
		Artifacts: fixtureAB(t),
		Output:    "out.png",
		Format:    "table",
		Summary:   &summary,
		Sink:      sink,
		Opener:    opener,
	})
	require.NoError(t, err, "viewer failures must not fail the report")
	assert.True(t, opener.called)
	assert.Equal(t, 4, rep.Rows)
	assert.Equal(t, "out.png", sink.output)

	require.Len(t, sink.views, 1)
	v := sink.views[0]
	assert.Equal(t, "gpt", v.Agent)
	assert.Equal(t, []report.FinalScorePoint{{Source: "A", FinalScore: 0.80}, {Source: "B", FinalScore: 0.60}}, v.FinalScores)
	assert.Equal(t, []string{"lint", "test"}, v.Grid.Assignments)
	assert.Equal(t, []string{"A", "B"}, v.Grid.Sources)
	assert.InDelta(t, 0.9, v.Grid.Cells[0][0].Mean, 1e-9)
	assert.InDelta(t, 0.5, v.Grid.Cells[0][1].Mean, 1e-9)
	assert.InDelta(t, 0.7, v.Grid.Cells[1][0].Mean, 1e-9)
	assert.InDelta(t, 0.65, v.Grid.Cells[1][1].Mean, 1e-9)

	assert.Contains(t, summary.String(), "gpt")
	assert.Contains(t, summary.String(), "0.700")
}

func TestGenerateEmpty(t *testing.T) {
	sink := &captureSink{}
	_, err := report.Generate(&report.Options{Output: "out.png", Sink: sink})
	assert.ErrorIs(t, err, result.ErrEmptyDataset)

	dir := t.TempDir()
	a := writeArtifact(t, dir, "a.json")
	b := writeArtifact(t, dir, "b.json")
	_, err = report.Generate(&report.Options{Artifacts: []string{a, b}, Output: "out.png", Sink: sink})
	assert.ErrorIs(t, err, result.ErrEmptyDataset)
	assert.Nil(t, sink.views, "sink must not run for an empty dataset")
}

func TestGenerateParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"runs": [{"model": "gpt", "summary": {"finalScore": 1}}]}`), 0o644))

	_, err := report.Generate(&report.Options{Artifacts: []string{path}, Output: "out.png", Sink: &captureSink{}})
	var perr *result.ParseError
	require.ErrorAs(t, err, &perr)
	assert.NotErrorIs(t, err, result.ErrEmptyDataset)
}

func TestGeneratePNG(t *testing.T) {
	dir := t.TempDir()
	paths := fixtureAB(t)
	paths = append(paths, writeArtifact(t, dir, "C",
		result.RunRecord{Agent: "claude", FinalScore: 0.4, Scores: map[string]float64{"docs": 0.2}},
		result.RunRecord{Agent: "claude", FinalScore: 0.5, Scores: map[string]float64{"docs": 0.6, "lint": 1}},
	))
	out := filepath.Join(dir, "nested", "instability.png")

	_, err := report.Generate(&report.Options{Artifacts: paths, Output: out})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 2*320)
	assert.Greater(t, img.Bounds().Dy(), 200)
}
