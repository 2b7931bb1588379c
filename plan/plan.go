// Package plan defines the structured spreadsheet command produced from a
// single voice utterance, and the per-action field rules that make one valid.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action selects which spreadsheet operation a plan performs.
type Action string

const (
	ActionWrite        Action = "write"
	ActionDeleteCell   Action = "delete_cell"
	ActionInsertRow    Action = "insert_row"
	ActionInsertColumn Action = "insert_column"
	ActionSum          Action = "sum"
	ActionStdDev       Action = "stddev"
	ActionAverage      Action = "average"
	ActionBold         Action = "bold"
	ActionSort         Action = "sort"
	ActionFilter       Action = "filter"
	ActionCreateChart  Action = "create_chart"
)

// Actions lists every recognized action in a stable order.
func Actions() []Action {
	return []Action{
		ActionWrite, ActionDeleteCell, ActionInsertRow, ActionInsertColumn,
		ActionSum, ActionStdDev, ActionAverage, ActionBold, ActionSort,
		ActionFilter, ActionCreateChart,
	}
}

// Known reports whether a is one of the recognized actions.
func (a Action) Known() bool {
	for _, k := range Actions() {
		if a == k {
			return true
		}
	}
	return false
}

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Plan is the flat record a planner returns. Only the fields required by
// Action need to be set; the rest are ignored.
type Plan struct {
	Action Action `json:"action" yaml:"action"`

	Cell  string `json:"cell,omitempty" yaml:"cell,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`

	Row    int    `json:"row,omitempty" yaml:"row,omitempty"`
	Column string `json:"column,omitempty" yaml:"column,omitempty"`

	Range     string `json:"range,omitempty" yaml:"range,omitempty"`
	Order     string `json:"order,omitempty" yaml:"order,omitempty"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	XColumn string `json:"x_column,omitempty" yaml:"x_column,omitempty"`
	YColumn string `json:"y_column,omitempty" yaml:"y_column,omitempty"`

	// Target and Confidence come from the planner and are kept for logging.
	Target     string   `json:"target,omitempty" yaml:"target,omitempty"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Decode parses a JSON plan. Unknown fields are ignored so newer planners
// can add fields without breaking older interpreters.
func Decode(data []byte) (Plan, error) {
	var p Plan
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		// A mistyped field still leaves the action decoded, so report it
		// the way Validate reports a malformed field.
		var terr *json.UnmarshalTypeError
		action := Action(strings.TrimSpace(string(p.Action)))
		if errors.As(err, &terr) && terr.Field != "" && terr.Field != "action" && action.Known() {
			return Plan{}, invalid(action, terr.Field, typeReason(terr))
		}
		return Plan{}, fmt.Errorf("decoding plan: %w", err)
	}
	p.Value = normalizeValue(p.Value)
	p.Action = Action(strings.TrimSpace(string(p.Action)))
	return p, nil
}

func typeReason(terr *json.UnmarshalTypeError) string {
	if terr.Field == "row" {
		return rowReason
	}
	return fmt.Sprintf("expected %s, got %s", terr.Type, terr.Value)
}

// DecodeYAML parses a YAML plan.
func DecodeYAML(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("decoding plan: %w", err)
	}
	p.Value = normalizeValue(p.Value)
	p.Action = Action(strings.TrimSpace(string(p.Action)))
	return p, nil
}

// normalizeValue maps decoded scalars onto string, float64, int64, bool or nil.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	default:
		return v
	}
}
