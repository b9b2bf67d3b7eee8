package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mickamy/cardscope/internal/model"
)

var known = map[string]struct{}{
	"Node Type":           {},
	"Relation Name":       {},
	"Schema":              {},
	"Alias":               {},
	"Parent Relationship": {},
	"Join Type":           {},
	"Index Name":          {},
	"Plan Rows":           {},
	"Actual Rows":         {},
	"Actual Loops":        {},
	"Actual Total Time":   {},
	"Plans":               {},
}

// ParseJSON reads a PostgreSQL EXPLAIN (FORMAT JSON) document and produces an Explain structure.
func ParseJSON(r io.Reader) (*model.Explain, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode explain json: %w", err)
	}

	entry, err := pickFirstEntry(payload)
	if err != nil {
		return nil, err
	}

	planMapVal, ok := entry["Plan"]
	if !ok {
		return nil, errors.New("explain json: missing Plan root")
	}

	planMap, err := asObject(planMapVal)
	if err != nil {
		return nil, fmt.Errorf("explain json: invalid Plan node: %w", err)
	}

	root, err := parsePlanNode(planMap, "0")
	if err != nil {
		return nil, err
	}

	explain := &model.Explain{
		Plan:          root,
		PlanningTime:  asFloat(entry["Planning Time"]),
		ExecutionTime: asFloat(entry["Execution Time"]),
		Extra:         map[string]any{},
	}
	for k, v := range entry {
		if k == "Plan" || k == "Planning Time" || k == "Execution Time" {
			continue
		}
		explain.Extra[k] = v
	}

	return explain, nil
}

func pickFirstEntry(payload any) (map[string]any, error) {
	switch v := payload.(type) {
	case []any:
		if len(v) == 0 {
			return nil, errors.New("explain json: empty payload")
		}
		obj, err := asObject(v[0])
		if err != nil {
			return nil, fmt.Errorf("explain json: invalid entry: %w", err)
		}
		return obj, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("explain json: unexpected top-level type %T", payload)
	}
}

func parsePlanNode(data map[string]any, path string) (*model.PlanNode, error) {
	node := &model.PlanNode{
		ID:                 path,
		NodeType:           asString(data["Node Type"]),
		RelationName:       asString(data["Relation Name"]),
		Schema:             asString(data["Schema"]),
		Alias:              asString(data["Alias"]),
		ParentRelationship: asString(data["Parent Relationship"]),
		JoinType:           asString(data["Join Type"]),
		IndexName:          asString(data["Index Name"]),
		PlanRows:           asFloat(data["Plan Rows"]),
		ActualRows:         asFloat(data["Actual Rows"]),
		ActualLoops:        asFloat(data["Actual Loops"]),
		ActualTotalTime:    asFloat(data["Actual Total Time"]),
		Extra:              map[string]any{},
	}

	for i, childVal := range asSlice(data["Plans"]) {
		childMap, err := asObject(childVal)
		if err != nil {
			return nil, fmt.Errorf("parse child plan (%s.%d): %w", path, i, err)
		}

		child, err := parsePlanNode(childMap, fmt.Sprintf("%s.%d", path, i))
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	for k, v := range data {
		if _, ok := known[k]; ok {
			continue
		}
		node.Extra[k] = v
	}

	return node, nil
}

func asObject(val any) (map[string]any, error) {
	if val == nil {
		return nil, errors.New("nil object")
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", val)
	}
	return obj, nil
}

func asSlice(val any) []any {
	v, ok := val.([]any)
	if !ok {
		return nil
	}
	return v
}

func asString(val any) string {
	if val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func asFloat(val any) float64 {
	if val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		if v == "" {
			return 0
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
