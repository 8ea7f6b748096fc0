package result

// RunRecord is one element of an artifact's "runs" array.
type RunRecord struct {
	Agent            string
	FinalScore       float64
	Scores           map[string]float64
	Source           string
	SequenceInSource int
}

// LongRecord is one (run, assignment) pair of the long-form dataset.
type LongRecord struct {
	Agent        string  `json:"agent"`
	Source       string  `json:"source"`
	Assignment   string  `json:"assignment"`
	AverageScore float64 `json:"averageScore"`
	FinalScore   float64 `json:"finalScore"`
}

// Artifact mirrors the JSON written by the benchmark command.
type Artifact struct {
	Runs []ArtifactRun `json:"runs"`
}

type ArtifactRun struct {
	Model   string          `json:"model"`
	Summary ArtifactSummary `json:"summary"`
	Scores  []ArtifactScore `json:"scores"`
}

type ArtifactSummary struct {
	FinalScore float64 `json:"finalScore"`
}

type ArtifactScore struct {
	Assignment   ArtifactAssignment `json:"assignment"`
	AverageScore float64            `json:"averageScore"`
}

type ArtifactAssignment struct {
	Name string `json:"name"`
}
