package extract

import (
	"fmt"
	"strings"

	"github.com/mickamy/cardscope/internal/model"
)

// Descent picks which child the extractor follows from a node.
// Next returns nil when the node has no children.
type Descent interface {
	Name() string
	Next(node *model.PlanNode) *model.PlanNode
}

// LeftmostChild only ever follows the first child and ignores siblings.
// It matches plans whose interesting structure is a single chain; branchy plans
// (hash joins with two large inputs, appends) are only partially covered.
type LeftmostChild struct{}

func (LeftmostChild) Name() string { return "leftmost" }

func (LeftmostChild) Next(node *model.PlanNode) *model.PlanNode {
	if node.IsLeaf() {
		return nil
	}
	return node.Children[0]
}

// LargestActual follows the child with the most rows over all its loops (Actual Rows times
// Actual Loops). Ties go to the earlier child.
type LargestActual struct{}

func (LargestActual) Name() string { return "largest-actual" }

func (LargestActual) Next(node *model.PlanNode) *model.PlanNode {
	if node.IsLeaf() {
		return nil
	}
	best := node.Children[0]
	for _, child := range node.Children[1:] {
		if child.ActualRows*loops(child) > best.ActualRows*loops(best) {
			best = child
		}
	}
	return best
}

func loops(node *model.PlanNode) float64 {
	if node.ActualLoops <= 0 {
		return 1
	}
	return node.ActualLoops
}

// ParseDescent resolves a policy by name. Empty selects LeftmostChild.
func ParseDescent(name string) (Descent, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "leftmost":
		return LeftmostChild{}, nil
	case "largest-actual", "largest":
		return LargestActual{}, nil
	default:
		return nil, fmt.Errorf("extract: unknown descent policy %q (expected leftmost or largest-actual)", name)
	}
}
