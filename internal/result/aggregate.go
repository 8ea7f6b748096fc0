package result

import (
	"errors"
	"sort"
)

// ErrEmptyDataset means the artifacts loaded cleanly but held no scores.
var ErrEmptyDataset = errors.New("no runs found in the provided artifacts")

// Flatten turns run records into the long-form dataset, one row per
// (record, assignment). Assignments are emitted in name order.
func Flatten(records []RunRecord) ([]LongRecord, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	var rows []LongRecord
	for _, r := range records {
		names := make([]string, 0, len(r.Scores))
		for name := range r.Scores {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rows = append(rows, LongRecord{
				Agent:        r.Agent,
				Source:       r.Source,
				Assignment:   name,
				AverageScore: r.Scores[name],
				FinalScore:   r.FinalScore,
			})
		}
	}
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	return rows, nil
}
