package model

// Explain represents the root of a PostgreSQL EXPLAIN (FORMAT JSON) document.
type Explain struct {
	Plan          *PlanNode
	PlanningTime  float64
	ExecutionTime float64
	// Extra carries top-level fields such as AQO's "Using aqo" or "Query hash".
	Extra map[string]any
}

// PlanNode captures one node in the execution plan tree.
type PlanNode struct {
	ID                 string
	NodeType           string
	RelationName       string
	Schema             string
	Alias              string
	ParentRelationship string
	JoinType           string
	IndexName          string
	PlanRows           float64
	ActualRows         float64
	ActualLoops        float64
	ActualTotalTime    float64
	Extra              map[string]any
	Children           []*PlanNode
}

// IsLeaf reports whether the node carries no child plans.
func (n *PlanNode) IsLeaf() bool {
	return n == nil || len(n.Children) == 0
}
