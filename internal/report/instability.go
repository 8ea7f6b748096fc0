package report

import (
	"sort"

	"github.com/signalnine/flakebench/internal/result"
)

// FinalScorePoint is one bar of an agent's final-score series.
type FinalScorePoint struct {
	Source     string  `json:"source"`
	FinalScore float64 `json:"final_score"`
}

// Cell aggregates every averageScore for one (assignment, source).
// Count is zero when the assignment never appeared in that source.
type Cell struct {
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Grid is assignments (rows) by sources (columns).
type Grid struct {
	Assignments []string `json:"assignments"`
	Sources     []string `json:"sources"`
	Cells       [][]Cell `json:"cells"`
}

// At returns the cell for assignment and source, if present.
func (g *Grid) At(assignment, source string) (Cell, bool) {
	r := sort.SearchStrings(g.Assignments, assignment)
	c := sort.SearchStrings(g.Sources, source)
	if r == len(g.Assignments) || g.Assignments[r] != assignment || c == len(g.Sources) || g.Sources[c] != source {
		return Cell{}, false
	}
	return g.Cells[r][c], true
}

// AgentView is everything rendered for one agent.
type AgentView struct {
	Agent       string            `json:"agent"`
	FinalScores []FinalScorePoint `json:"final_scores"`
	Grid        Grid              `json:"grid"`
}

// BuildViews groups the long-form dataset by agent, in agent order.
func BuildViews(rows []result.LongRecord) []AgentView {
	byAgent := map[string][]result.LongRecord{}
	for _, r := range rows {
		byAgent[r.Agent] = append(byAgent[r.Agent], r)
	}
	agents := make([]string, 0, len(byAgent))
	for a := range byAgent {
		agents = append(agents, a)
	}
	sort.Strings(agents)

	views := make([]AgentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, AgentView{
			Agent:       a,
			FinalScores: finalScoreSeries(byAgent[a]),
			Grid:        assignmentGrid(byAgent[a]),
		})
	}
	return views
}

// finalScoreSeries emits one point per source. Identical final scores within
// a source collapse first, then the remaining distinct scores are averaged.
func finalScoreSeries(rows []result.LongRecord) []FinalScorePoint {
	type key struct {
		source string
		score  float64
	}
	seen := map[key]bool{}
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range rows {
		k := key{r.Source, r.FinalScore}
		if seen[k] {
			continue
		}
		seen[k] = true
		sums[r.Source] += r.FinalScore
		counts[r.Source]++
	}
	points := make([]FinalScorePoint, 0, len(counts))
	for src, n := range counts {
		points = append(points, FinalScorePoint{Source: src, FinalScore: sums[src] / float64(n)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Source < points[j].Source })
	return points
}

func assignmentGrid(rows []result.LongRecord) Grid {
	assignments := distinct(rows, func(r result.LongRecord) string { return r.Assignment })
	sources := distinct(rows, func(r result.LongRecord) string { return r.Source })
	rowOf := indexOf(assignments)
	colOf := indexOf(sources)

	sums := make([][]float64, len(assignments))
	cells := make([][]Cell, len(assignments))
	for i := range cells {
		sums[i] = make([]float64, len(sources))
		cells[i] = make([]Cell, len(sources))
	}
	for _, r := range rows {
		i, j := rowOf[r.Assignment], colOf[r.Source]
		sums[i][j] += r.AverageScore
		cells[i][j].Count++
	}
	for i := range cells {
		for j := range cells[i] {
			if n := cells[i][j].Count; n > 0 {
				cells[i][j].Mean = sums[i][j] / float64(n)
			}
		}
	}
	return Grid{Assignments: assignments, Sources: sources, Cells: cells}
}

func distinct(rows []result.LongRecord, key func(result.LongRecord) string) []string {
	set := map[string]bool{}
	var out []string
	for _, r := range rows {
		k := key(r)
		if !set[k] {
			set[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func indexOf(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}
