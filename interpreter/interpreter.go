// Package interpreter applies validated plans to a workbook. Each Execute
// validates the plan, optionally reads the document to derive coordinates,
// queues the writes and commits them with a single Sync.
package interpreter

import (
	"context"
	"errors"

	"github.com/witanlabs/voicesheet/internal"
	"github.com/witanlabs/voicesheet/internal/logging"
	"github.com/witanlabs/voicesheet/plan"
	"github.com/witanlabs/voicesheet/workbook"
)

// DefaultChartTitle is the title given to charts created by create_chart.
const DefaultChartTitle = "Generated Chart"

// Book runs a batch against a document. *workbook.Workbook implements it.
type Book interface {
	Run(ctx context.Context, fn func(*workbook.Batch) error) error
}

// Options tunes an Interpreter. The zero value is usable.
type Options struct {
	// ChartTitle overrides DefaultChartTitle.
	ChartTitle string
	// HideLegend creates charts without a legend.
	HideLegend bool
}

// Interpreter executes plans against one Book.
type Interpreter struct {
	book   Book
	logger *logging.Logger
	opts   Options
}

// New creates an Interpreter. A nil logger discards log output.
func New(book Book, logger *logging.Logger, opts Options) *Interpreter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.ChartTitle == "" {
		opts.ChartTitle = DefaultChartTitle
	}
	return &Interpreter{book: book, logger: logger, opts: opts}
}

// Result describes what an Execute call did.
type Result struct {
	Action plan.Action `json:"action"`
	// Target is the cell or range the plan wrote to.
	Target string `json:"target,omitempty"`
	// Formula is set for aggregates.
	Formula string `json:"formula,omitempty"`
	// Changes is the cell diff of the commit, when the workbook tracks changes.
	Changes []internal.CellChange `json:"changes,omitempty"`
	// Skipped is true when the plan named an unknown action and was ignored.
	Skipped bool `json:"skipped,omitempty"`
}

// Execute applies p. A plan with a missing or malformed field returns a
// *plan.ValidationError and touches nothing. A plan with an unknown action is
// logged and skipped. Workbook failures are returned as *AccessError and
// leave the document as it was.
func (in *Interpreter) Execute(ctx context.Context, p plan.Plan) (*Result, error) {
	log := in.logger.With("action", string(p.Action))
	log.Debug("executing plan", "target", p.Target, "range", p.Range, "cell", p.Cell)

	cmd, err := p.Command()
	if err != nil {
		var unknown *plan.UnknownActionError
		if errors.As(err, &unknown) {
			log.Warn("ignoring plan", "error", err)
			return &Result{Action: p.Action, Skipped: true}, nil
		}
		log.Info("plan rejected", "error", err)
		return nil, err
	}

	res := &Result{Action: cmd.Action()}
	h := &handler{opts: in.opts, result: res, phase: "queue"}
	err = in.book.Run(ctx, func(b *workbook.Batch) error {
		h.batch = b
		if err := cmd.Accept(h); err != nil {
			return err
		}
		h.phase = "commit"
		if err := b.Sync(); err != nil {
			return err
		}
		res.Changes = b.Changes()
		return nil
	})
	if err != nil {
		aerr := accessError(cmd.Action(), h.phase, err)
		log.Error("plan failed", "op", aerr.Op, "error", aerr.Err)
		return nil, aerr
	}

	log.Info("plan applied", "target", res.Target, "changes", len(res.Changes))
	return res, nil
}

// handler implements plan.Handler by queueing writes on one batch.
type handler struct {
	batch  *workbook.Batch
	opts   Options
	result *Result
	phase  string
}

var _ plan.Handler = (*handler)(nil)

func (h *handler) Write(c plan.Write) error {
	h.result.Target = c.Cell
	h.batch.SetValue(c.Cell, c.Value)
	return nil
}

func (h *handler) DeleteCell(c plan.DeleteCell) error {
	h.result.Target = c.Cell
	h.batch.ClearContents(c.Cell)
	return nil
}

func (h *handler) InsertRow(c plan.InsertRow) error {
	h.result.Target = internal.Ref{StartRow: c.Row, EndRow: c.Row}.String()
	h.batch.InsertRow(c.Row)
	return nil
}

func (h *handler) InsertColumn(c plan.InsertColumn) error {
	h.result.Target = c.Column + ":" + c.Column
	h.batch.InsertColumn(c.Column)
	return nil
}

func (h *handler) Aggregate(c plan.Aggregate) error {
	h.phase = "read"
	probe, err := probeColumn(h.batch, c.Range)
	if err != nil {
		return err
	}
	h.phase = "queue"
	target, formula := writeAggregate(h.batch, c.Func, probe)
	h.result.Target = target
	h.result.Formula = formula
	return nil
}

func (h *handler) Bold(c plan.Bold) error {
	h.result.Target = c.Range
	h.batch.SetBold(c.Range)
	return nil
}

// Sort orders by the first column of the range; no row is treated as a header.
func (h *handler) Sort(c plan.Sort) error {
	h.result.Target = c.Range
	h.batch.Sort(c.Range, 0, c.Ascending, false)
	return nil
}

func (h *handler) Filter(c plan.Filter) error {
	h.result.Target = c.Range
	h.batch.ApplyFilter(c.Range, 0, c.Condition)
	return nil
}

func (h *handler) CreateChart(c plan.CreateChart) error {
	h.result.Target = c.XColumn + ":" + c.YColumn
	h.batch.AddChart(c.XColumn, c.YColumn, workbook.ChartOptions{
		Title:      h.opts.ChartTitle,
		ShowLegend: !h.opts.HideLegend,
	})
	return nil
}
