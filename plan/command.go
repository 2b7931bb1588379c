package plan

import (
	"strings"

	"github.com/witanlabs/voicesheet/internal"
)

// Command is the typed form of a valid plan: exactly one variant per action.
// Obtain one with Plan.Command.
type Command interface {
	// Action reports the tag the command was built from.
	Action() Action
	// Accept calls the Handler method matching the variant.
	Accept(h Handler) error
}

// Handler receives one call per command variant. Adding an action adds a
// method here, so every implementation must handle it to compile.
type Handler interface {
	Write(Write) error
	DeleteCell(DeleteCell) error
	InsertRow(InsertRow) error
	InsertColumn(InsertColumn) error
	Aggregate(Aggregate) error
	Bold(Bold) error
	Sort(Sort) error
	Filter(Filter) error
	CreateChart(CreateChart) error
}

// Write sets a single cell's value.
type Write struct {
	Cell  string
	Value any // nil writes the empty string
}

// DeleteCell clears a cell's contents and keeps its formatting.
type DeleteCell struct {
	Cell string
}

// InsertRow inserts a row at Row, shifting rows at and below it down.
type InsertRow struct {
	Row int
}

// InsertColumn inserts a column at Column, shifting columns at and after it right.
type InsertColumn struct {
	Column string
}

// AggregateFunc is the worksheet function an aggregate writes.
type AggregateFunc string

const (
	FuncSum     AggregateFunc = "SUM"
	FuncAverage AggregateFunc = "AVERAGE"
	FuncStdDevS AggregateFunc = "STDEV.S"
)

var aggregateFuncs = map[Action]AggregateFunc{
	ActionSum:     FuncSum,
	ActionAverage: FuncAverage,
	ActionStdDev:  FuncStdDevS,
}

// Aggregate writes FUNC(col1:colN) below the last occupied row of the
// column named by Range.
type Aggregate struct {
	Kind  Action
	Func  AggregateFunc
	Range string
}

// Bold sets the font of every cell in Range to bold.
type Bold struct {
	Range string
}

// Sort orders the rows of Range by its first column. The first row is never
// treated as a header.
type Sort struct {
	Range     string
	Ascending bool
}

// Filter applies Condition as a custom criterion on the first column of Range.
type Filter struct {
	Range     string
	Condition string
}

// CreateChart adds a clustered column chart over XColumn..YColumn.
type CreateChart struct {
	XColumn string
	YColumn string
}

func (Write) Action() Action        { return ActionWrite }
func (DeleteCell) Action() Action   { return ActionDeleteCell }
func (InsertRow) Action() Action    { return ActionInsertRow }
func (InsertColumn) Action() Action { return ActionInsertColumn }
func (a Aggregate) Action() Action  { return a.Kind }
func (Bold) Action() Action         { return ActionBold }
func (Sort) Action() Action         { return ActionSort }
func (Filter) Action() Action       { return ActionFilter }
func (CreateChart) Action() Action  { return ActionCreateChart }

func (c Write) Accept(h Handler) error        { return h.Write(c) }
func (c DeleteCell) Accept(h Handler) error   { return h.DeleteCell(c) }
func (c InsertRow) Accept(h Handler) error    { return h.InsertRow(c) }
func (c InsertColumn) Accept(h Handler) error { return h.InsertColumn(c) }
func (c Aggregate) Accept(h Handler) error    { return h.Aggregate(c) }
func (c Bold) Accept(h Handler) error         { return h.Bold(c) }
func (c Sort) Accept(h Handler) error         { return h.Sort(c) }
func (c Filter) Accept(h Handler) error       { return h.Filter(c) }
func (c CreateChart) Accept(h Handler) error  { return h.CreateChart(c) }

const rowReason = "must be a row number between 1 and 1048576"

// Validate checks the fields required by the plan's action. It returns a
// *ValidationError for a missing or malformed field and an
// *UnknownActionError for an unrecognized action.
func Validate(p Plan) error {
	_, err := p.Command()
	return err
}

// Command validates the plan and converts it to its typed variant.
func (p Plan) Command() (Command, error) {
	a := p.Action
	switch a {
	case ActionWrite:
		if blank(p.Cell) {
			return nil, missing(a, "cell")
		}
		return Write{Cell: strings.TrimSpace(p.Cell), Value: p.Value}, nil

	case ActionDeleteCell:
		if blank(p.Cell) {
			return nil, missing(a, "cell")
		}
		return DeleteCell{Cell: strings.TrimSpace(p.Cell)}, nil

	case ActionInsertRow:
		if p.Row == 0 {
			return nil, missing(a, "row")
		}
		if p.Row < 0 || p.Row > internal.MaxRows {
			return nil, invalid(a, "row", rowReason)
		}
		return InsertRow{Row: p.Row}, nil

	case ActionInsertColumn:
		col, err := columnField(a, "column", p.Column)
		if err != nil {
			return nil, err
		}
		return InsertColumn{Column: col}, nil

	case ActionSum, ActionAverage, ActionStdDev:
		if blank(p.Range) {
			return nil, missing(a, "range")
		}
		return Aggregate{Kind: a, Func: aggregateFuncs[a], Range: strings.TrimSpace(p.Range)}, nil

	case ActionBold:
		if blank(p.Range) {
			return nil, missing(a, "range")
		}
		return Bold{Range: strings.TrimSpace(p.Range)}, nil

	case ActionSort:
		if blank(p.Range) {
			return nil, missing(a, "range")
		}
		return Sort{Range: strings.TrimSpace(p.Range), Ascending: p.Order != OrderDesc}, nil

	case ActionFilter:
		if blank(p.Range) {
			return nil, missing(a, "range")
		}
		if blank(p.Condition) {
			return nil, missing(a, "condition")
		}
		return Filter{Range: strings.TrimSpace(p.Range), Condition: strings.TrimSpace(p.Condition)}, nil

	case ActionCreateChart:
		x, err := columnField(a, "x_column", p.XColumn)
		if err != nil {
			return nil, err
		}
		y, err := columnField(a, "y_column", p.YColumn)
		if err != nil {
			return nil, err
		}
		return CreateChart{XColumn: x, YColumn: y}, nil

	default:
		return nil, &UnknownActionError{Action: a}
	}
}

// columnField requires a bare column label such as "C" or "AB".
func columnField(a Action, field, v string) (string, error) {
	if blank(v) {
		return "", missing(a, field)
	}
	col := strings.ToUpper(strings.TrimSpace(v))
	if _, err := internal.ColumnNumber(col); err != nil {
		return "", invalid(a, field, "must be a column label like \"C\"")
	}
	return col, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
