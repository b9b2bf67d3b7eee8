package extract

import (
	"errors"
	"fmt"

	"github.com/mickamy/cardscope/internal/model"
)

// ErrMalformedPlan is returned when the plan root has no child plan to descend into.
var ErrMalformedPlan = errors.New("malformed plan")

// Extract collects the root metric pair and the metric pairs along a single descent path.
//
// The root is recorded separately as Whole. Path collection starts at the child the policy picks
// from the root and stops at the first node without children. A nil policy means LeftmostChild.
func Extract(explain *model.Explain, policy Descent) (*model.QueryMetrics, error) {
	if explain == nil || explain.Plan == nil {
		return nil, fmt.Errorf("extract: missing plan: %w", ErrMalformedPlan)
	}
	if policy == nil {
		policy = LeftmostChild{}
	}

	root := explain.Plan
	current := policy.Next(root)
	if current == nil {
		return nil, fmt.Errorf("extract: root %q has no child plans: %w", root.NodeType, ErrMalformedPlan)
	}

	out := &model.QueryMetrics{Whole: metricOf(root)}
	for current != nil {
		out.Nodes = append(out.Nodes, metricOf(current))
		if current.IsLeaf() {
			break
		}
		current = policy.Next(current)
	}
	return out, nil
}

func metricOf(node *model.PlanNode) model.Metric {
	return model.Metric{
		Estimated: node.PlanRows,
		Actual:    node.ActualRows,
		NodeType:  node.NodeType,
		Relation:  node.RelationName,
	}
}
