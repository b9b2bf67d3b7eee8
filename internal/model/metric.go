package model

// Metric pairs the optimizer's row estimate with the row count observed at execution time.
type Metric struct {
	Estimated float64
	Actual    float64
	NodeType  string
	Relation  string
}

// QueryMetrics holds everything extracted from one query file's plan.
type QueryMetrics struct {
	File  string
	Whole Metric
	// Nodes follows the descent path in root-to-leaf order. The root is not repeated here.
	Nodes []Metric
}

// Estimates returns the estimated row counts of the path nodes.
func (q *QueryMetrics) Estimates() []float64 {
	out := make([]float64, 0, len(q.Nodes))
	for _, n := range q.Nodes {
		out = append(out, n.Estimated)
	}
	return out
}

// Actuals returns the actual row counts of the path nodes.
func (q *QueryMetrics) Actuals() []float64 {
	out := make([]float64, 0, len(q.Nodes))
	for _, n := range q.Nodes {
		out = append(out, n.Actual)
	}
	return out
}
