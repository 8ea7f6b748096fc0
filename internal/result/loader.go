package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ParseError reports an artifact that is unreadable, not JSON, or missing
// a field of the result format.
type ParseError struct {
	Artifact string
	Field    string
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parsing %s: %s: %s: %v", e.Artifact, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("parsing %s: %s: %s", e.Artifact, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// LoadArtifact parses one result file into run records. The load is
// atomic: either every run is returned or the error names what was wrong.
func LoadArtifact(path string) ([]RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Artifact: path, Field: rootField, Message: "reading artifact", Cause: err}
	}
	return ParseArtifact(path, data)
}

// ParseArtifact is LoadArtifact for content already in memory. source is
// used for error messages and, by base name, as the records' Source.
func ParseArtifact(source string, data []byte) ([]RunRecord, error) {
	if !json.Valid(data) {
		return nil, &ParseError{Artifact: source, Field: rootField, Message: "not valid JSON"}
	}
	field, msg, err := schemaViolation(data)
	if err != nil {
		return nil, &ParseError{Artifact: source, Field: rootField, Message: "validating artifact", Cause: err}
	}
	if field != "" {
		return nil, &ParseError{Artifact: source, Field: field, Message: msg}
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, &ParseError{Artifact: source, Field: rootField, Message: "decoding artifact", Cause: err}
	}

	name := filepath.Base(source)
	records := make([]RunRecord, 0, len(art.Runs))
	for i, run := range art.Runs {
		scores := make(map[string]float64, len(run.Scores))
		for j, s := range run.Scores {
			if _, dup := scores[s.Assignment.Name]; dup {
				return nil, &ParseError{
					Artifact: source,
					Field:    fmt.Sprintf("runs.%d.scores.%d.assignment.name", i, j),
					Message:  fmt.Sprintf("duplicate assignment %q", s.Assignment.Name),
				}
			}
			scores[s.Assignment.Name] = s.AverageScore
		}
		records = append(records, RunRecord{
			Agent:            run.Model,
			FinalScore:       run.Summary.FinalScore,
			Scores:           scores,
			Source:           name,
			SequenceInSource: i,
		})
	}
	return records, nil
}

// LoadArtifacts loads every path in order and stops at the first failure.
func LoadArtifacts(paths []string) ([]RunRecord, error) {
	var records []RunRecord
	for _, p := range paths {
		recs, err := LoadArtifact(p)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}
