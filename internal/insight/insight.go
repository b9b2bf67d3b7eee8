package insight

import (
	"fmt"
	"math"

	"github.com/mickamy/cardscope/internal/config"
	"github.com/mickamy/cardscope/internal/extract"
	"github.com/mickamy/cardscope/internal/model"
)

// Severity expresses the urgency of an insight message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message represents an observation about one query's estimates.
type Message struct {
	Severity Severity
	Text     string
	Anchor   string
}

// BuildMessages derives human-readable messages for the node metrics of one block of file.
// block is the position of the block in its table and keeps anchors unique.
func BuildMessages(file string, block int, nodes []model.Metric) []Message {
	if len(nodes) == 0 {
		return nil
	}
	var out []Message

	if msg := worstMessage(file, block, nodes); msg != nil {
		out = append(out, *msg)
	}
	if msg := directionMessage(file, block, nodes); msg != nil {
		out = append(out, *msg)
	}
	if msg := zeroMessage(file, block, nodes); msg != nil {
		out = append(out, *msg)
	}
	return out
}

func worstMessage(file string, block int, nodes []model.Metric) *Message {
	idx := extract.Worst(nodes)
	node := nodes[idx]
	q := extract.QError(node)
	severity := SeverityFor(q)
	if severity == SeverityInfo {
		return nil
	}
	text := fmt.Sprintf("Estimate drift: %s expected %.0f got %.0f (%s)", NodeLabel(idx, node), node.Estimated, node.Actual, FormatQError(q))
	return &Message{Severity: severity, Text: text, Anchor: AnchorID(file, block, idx)}
}

// directionMessage flags a path whose estimates err consistently in one direction.
func directionMessage(file string, block int, nodes []model.Metric) *Message {
	if len(nodes) < 2 {
		return nil
	}
	var under, over int
	for _, n := range nodes {
		switch {
		case n.Actual > n.Estimated:
			under++
		case n.Actual < n.Estimated:
			over++
		}
	}
	if under == len(nodes) {
		return &Message{Severity: SeverityInfo, Text: fmt.Sprintf("All %d nodes underestimated", under), Anchor: AnchorID(file, block, 0)}
	}
	if over == len(nodes) {
		return &Message{Severity: SeverityInfo, Text: fmt.Sprintf("All %d nodes overestimated", over), Anchor: AnchorID(file, block, 0)}
	}
	return nil
}

func zeroMessage(file string, block int, nodes []model.Metric) *Message {
	for i, n := range nodes {
		if n.Actual == 0 && n.Estimated > 0 {
			text := fmt.Sprintf("%s returned no rows but %.0f were expected", NodeLabel(i, n), n.Estimated)
			return &Message{Severity: SeverityWarning, Text: text, Anchor: AnchorID(file, block, i)}
		}
	}
	return nil
}

// RootMessage reports a misestimated root. The result table only keeps the descent path, so the
// root pair is judged while the query is measured.
func RootMessage(file string, whole model.Metric) (Message, bool) {
	q := extract.QError(whole)
	severity := SeverityFor(q)
	if severity == SeverityInfo {
		return Message{}, false
	}
	text := fmt.Sprintf("Root misestimate: %s expected %.0f got %.0f (%s)", file, whole.Estimated, whole.Actual, FormatQError(q))
	return Message{Severity: severity, Text: text}, true
}

// SeverityFor grades a q-error against the active thresholds.
func SeverityFor(q float64) Severity {
	cfg := config.Active().Insights
	switch {
	case q >= cfg.QErrorCritical:
		return SeverityCritical
	case q >= cfg.QErrorWarning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// FormatQError renders a q-error, using ∞ for unbounded values.
func FormatQError(q float64) string {
	if math.IsInf(q, 1) {
		return "q ∞"
	}
	return fmt.Sprintf("q %.2f", q)
}

// NodeLabel builds a descriptive label for the node at position idx of the path.
func NodeLabel(idx int, node model.Metric) string {
	label := fmt.Sprintf("#%d", idx)
	if node.NodeType != "" {
		label += " " + node.NodeType
	}
	if node.Relation != "" {
		label += " " + node.Relation
	}
	return label
}

// AnchorID returns an HTML anchor for node idx of the block-th block, recorded for file.
func AnchorID(file string, block, idx int) string {
	anchor := make([]rune, 0, len(file))
	for _, r := range file {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			anchor = append(anchor, r)
		default:
			anchor = append(anchor, '-')
		}
	}
	return fmt.Sprintf("%s-b%d-%d", string(anchor), block, idx)
}
