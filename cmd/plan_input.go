package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/witanlabs/voicesheet/plan"
	"golang.org/x/term"
)

var (
	termIsTerminal           = term.IsTerminal
	stdin          io.Reader = os.Stdin
)

// planSource collects the flags that supply a plan. Exactly one of --plan,
// --plan-file, positional key=value pairs or piped stdin is used.
type planSource struct {
	inline string
	file   string
}

func (s *planSource) register(fs *pflag.FlagSet) {
	fs.StringVar(&s.inline, "plan", "", "Plan as a JSON object")
	fs.StringVar(&s.file, "plan-file", "", "Read the plan from a .json or .yaml file (- for stdin)")
}

func (s *planSource) reset() {
	s.inline, s.file = "", ""
}

func (s *planSource) read(pairs []string) (plan.Plan, error) {
	given := 0
	for _, set := range []bool{s.inline != "", s.file != "", len(pairs) > 0} {
		if set {
			given++
		}
	}
	if given > 1 {
		return plan.Plan{}, errors.New("use only one of --plan, --plan-file or key=value arguments")
	}

	switch {
	case s.inline != "":
		return plan.Decode([]byte(s.inline))
	case s.file == "-":
		return readPlanStream(stdin)
	case s.file != "":
		return readPlanFile(s.file)
	case len(pairs) > 0:
		return parsePlanArgs(pairs)
	}

	if f, ok := stdin.(*os.File); ok && isTerminal(f) {
		return plan.Plan{}, errors.New("no plan given: pass key=value arguments, --plan, --plan-file, or pipe JSON on stdin")
	}
	return readPlanStream(stdin)
}

func readPlanStream(r io.Reader) (plan.Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("reading plan from stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return plan.Plan{}, errors.New("no plan given on stdin")
	}
	return plan.Decode(data)
}

func readPlanFile(path string) (plan.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("reading plan file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return plan.DecodeYAML(data)
	default:
		return plan.Decode(data)
	}
}

// coercedKeys are the plan fields whose positional values are typed.
var coercedKeys = map[string]bool{"value": true, "row": true, "confidence": true}

// parsePlanArgs builds a plan from "key=value" pairs such as
// action=write cell=A1 value=42. Values of value, row and confidence are
// coerced: number → bool → null → string. Other fields stay strings.
func parsePlanArgs(pairs []string) (plan.Plan, error) {
	fields := make(map[string]json.RawMessage, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return plan.Plan{}, fmt.Errorf("invalid plan argument %q: expected key=value", pair)
		}
		if _, dup := fields[key]; dup {
			return plan.Plan{}, fmt.Errorf("plan field %q given twice", key)
		}
		if coercedKeys[key] {
			fields[key] = coerceValue(value)
		} else {
			fields[key] = quote(value)
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("encoding plan: %w", err)
	}
	return plan.Decode(data)
}

// coerceValue renders a positional value as a JSON literal.
func coerceValue(v string) json.RawMessage {
	if _, err := strconv.ParseFloat(v, 64); err == nil && json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	lower := strings.ToLower(v)
	if lower == "true" || lower == "false" || lower == "null" {
		return json.RawMessage(lower)
	}
	return quote(v)
}

func quote(v string) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
