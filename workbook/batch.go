package workbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/witanlabs/voicesheet/internal"
	"github.com/xuri/excelize/v2"
)

// Load holds the result of a queued read. It is filled by the next Sync.
type Load[T any] struct {
	value  T
	loaded bool
}

// Value returns the loaded value, or ErrNotLoaded before the filling Sync.
func (l *Load[T]) Value() (T, error) {
	if !l.loaded {
		var zero T
		return zero, ErrNotLoaded
	}
	return l.value, nil
}

// Cell is one cell as read by a batch.
type Cell struct {
	Value   string // formatted value, "" when empty
	Formula string // formula text with a leading "=", "" when none
}

// Empty reports whether the cell holds neither a value nor a formula.
func (c Cell) Empty() bool { return c.Value == "" && c.Formula == "" }

// Column is a column read from row 1 through the sheet's used-row count.
type Column struct {
	Letter   string
	UsedRows int
	Cells    []Cell // len(Cells) == UsedRows
}

// ChartOptions configures Batch.AddChart.
type ChartOptions struct {
	Title      string
	ShowLegend bool
}

type op struct {
	name  string
	write bool
	run   func(f *excelize.File, sheet string) error
}

// Batch queues reads and writes against one sheet. Queued operations run in
// order at Sync; an address that fails to parse at queue time is reported by
// the next Sync before anything runs.
type Batch struct {
	ctx   context.Context
	file  *excelize.File
	sheet string
	track bool

	queue []op
	err   error
	syncs int

	checkpoint []byte
	before     internal.Grid
	changes    []internal.CellChange
}

// Sheet returns the name of the sheet the batch operates on.
func (b *Batch) Sheet() string { return b.sheet }

// Pending returns the number of queued operations not yet synced.
func (b *Batch) Pending() int { return len(b.queue) }

// Syncs returns how many times Sync has been called.
func (b *Batch) Syncs() int { return b.syncs }

// Changes returns the cells changed by this batch's synced writes. It is
// only populated when the workbook has TrackChanges set.
func (b *Batch) Changes() []internal.CellChange { return b.changes }

// Sync runs every queued operation. Reads fill their Loads; writes take
// effect on the document. On error the remaining queue is dropped.
func (b *Batch) Sync() error {
	b.syncs++
	queue := b.queue
	b.queue = nil

	if b.err != nil {
		err := b.err
		b.err = nil
		return err
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}

	wrote := false
	for _, o := range queue {
		if o.write && !wrote {
			if err := b.beginWrites(); err != nil {
				return err
			}
			wrote = true
		}
		if err := o.run(b.file, b.sheet); err != nil {
			return &OpError{Op: o.name, Err: err}
		}
	}
	if wrote && b.track {
		after, err := snapshot(b.file, b.sheet)
		if err != nil {
			return err
		}
		b.changes = internal.DiffGrids(b.before, after)
	}
	return nil
}

// beginWrites checkpoints the document before the batch's first write.
func (b *Batch) beginWrites() error {
	if b.checkpoint != nil {
		return nil
	}
	buf, err := b.file.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("checkpointing workbook: %w", err)
	}
	b.checkpoint = buf.Bytes()
	if b.track {
		if b.before, err = snapshot(b.file, b.sheet); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) enqueue(name string, write bool, run func(f *excelize.File, sheet string) error) {
	b.queue = append(b.queue, op{name: name, write: write, run: run})
}

// fail records the first queue-time error; it is returned by the next Sync.
func (b *Batch) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// ref parses an address and checks that any sheet prefix names the batch sheet.
func (b *Batch) ref(address string) (internal.Ref, bool) {
	ref, err := internal.ParseRef(address)
	if err != nil {
		b.fail(fmt.Errorf("%w: %v", ErrInvalidAddress, err))
		return internal.Ref{}, false
	}
	if ref.Sheet != "" && !strings.EqualFold(ref.Sheet, b.sheet) {
		b.fail(fmt.Errorf("%w: %q is not the active sheet %q", ErrSheetNotFound, ref.Sheet, b.sheet))
		return internal.Ref{}, false
	}
	return ref, true
}

func (b *Batch) cell(address string) (string, bool) {
	ref, ok := b.ref(address)
	if !ok {
		return "", false
	}
	if !ref.SingleCell() {
		b.fail(fmt.Errorf("%w: %q is not a single cell", ErrInvalidAddress, address))
		return "", false
	}
	return ref.String(), true
}

// UsedColumn queues a read of the used-row count and of column col's cells
// for rows 1 through that count.
func (b *Batch) UsedColumn(col string) *Load[Column] {
	l := &Load[Column]{}
	letters := strings.ToUpper(strings.TrimSpace(col))
	if _, err := internal.ColumnNumber(letters); err != nil {
		b.fail(fmt.Errorf("%w: %v", ErrInvalidAddress, err))
		return l
	}
	b.enqueue("read column", false, func(f *excelize.File, sheet string) error {
		rows, _, err := usedExtent(f, sheet)
		if err != nil {
			return err
		}
		out := Column{Letter: letters, UsedRows: rows, Cells: make([]Cell, rows)}
		for r := 1; r <= rows; r++ {
			name := letters + fmt.Sprint(r)
			if out.Cells[r-1], err = readCell(f, sheet, name); err != nil {
				return err
			}
		}
		l.value, l.loaded = out, true
		return nil
	})
	return l
}

// SetValue queues writing v to a single cell. nil writes the empty string;
// a string starting with "=" is written as a formula.
func (b *Batch) SetValue(address string, v any) {
	cell, ok := b.cell(address)
	if !ok {
		return
	}
	b.enqueue("set value", true, func(f *excelize.File, sheet string) error {
		return setValue(f, sheet, cell, v)
	})
}

// SetFormula queues writing a formula ("=SUM(A1:A4)") to a single cell.
func (b *Batch) SetFormula(address, formula string) {
	cell, ok := b.cell(address)
	if !ok {
		return
	}
	b.enqueue("set formula", true, func(f *excelize.File, sheet string) error {
		return f.SetCellFormula(sheet, cell, storedFormula(formula))
	})
}

// ClearContents queues clearing values and formulas in a range. Formatting
// is kept.
func (b *Batch) ClearContents(address string) {
	ref, ok := b.ref(address)
	if !ok {
		return
	}
	b.enqueue("clear contents", true, func(f *excelize.File, sheet string) error {
		return eachCell(f, sheet, ref, func(cell string) error {
			return clearCell(f, sheet, cell)
		})
	})
}

// InsertRow queues inserting one row at row, shifting rows at and below it down.
func (b *Batch) InsertRow(row int) {
	if row < 1 || row > internal.MaxRows {
		b.fail(fmt.Errorf("%w: row %d", ErrInvalidAddress, row))
		return
	}
	b.enqueue("insert row", true, func(f *excelize.File, sheet string) error {
		return f.InsertRows(sheet, row, 1)
	})
}

// InsertColumn queues inserting one column at col, shifting columns at and
// after it right.
func (b *Batch) InsertColumn(col string) {
	letters := strings.ToUpper(strings.TrimSpace(col))
	if _, err := internal.ColumnNumber(letters); err != nil {
		b.fail(fmt.Errorf("%w: %v", ErrInvalidAddress, err))
		return
	}
	b.enqueue("insert column", true, func(f *excelize.File, sheet string) error {
		return f.InsertCols(sheet, letters, 1)
	})
}

// SetBold queues setting the font of every cell in a range to bold. Other
// style attributes of each cell are kept.
func (b *Batch) SetBold(address string) {
	ref, ok := b.ref(address)
	if !ok {
		return
	}
	b.enqueue("set bold", true, func(f *excelize.File, sheet string) error {
		return setBold(f, sheet, ref)
	})
}

// Sort queues sorting the rows of a range by the column at key (0-based
// within the range). With hasHeaders the first row stays in place.
func (b *Batch) Sort(address string, key int, ascending, hasHeaders bool) {
	ref, ok := b.ref(address)
	if !ok {
		return
	}
	b.enqueue("sort", true, func(f *excelize.File, sheet string) error {
		return sortRange(f, sheet, ref, key, ascending, hasHeaders)
	})
}

// ApplyFilter queues an auto filter on a range with a custom criterion such
// as ">10" on the column at column (0-based within the range).
func (b *Batch) ApplyFilter(address string, column int, criterion string) {
	ref, ok := b.ref(address)
	if !ok {
		return
	}
	expr, err := filterExpression(criterion)
	if err != nil {
		b.fail(err)
		return
	}
	b.enqueue("apply filter", true, func(f *excelize.File, sheet string) error {
		return applyFilter(f, sheet, ref, column, expr)
	})
}

// AddChart queues a clustered column chart whose data spans columns
// fromCol..toCol of the used rows.
func (b *Batch) AddChart(fromCol, toCol string, opts ChartOptions) {
	from, err1 := internal.ColumnNumber(strings.TrimSpace(fromCol))
	to, err2 := internal.ColumnNumber(strings.TrimSpace(toCol))
	if err1 != nil || err2 != nil {
		b.fail(fmt.Errorf("%w: chart columns %q..%q", ErrInvalidAddress, fromCol, toCol))
		return
	}
	b.enqueue("add chart", true, func(f *excelize.File, sheet string) error {
		return addChart(f, sheet, min(from, to), max(from, to), opts)
	})
}

// OpError reports a queued operation that failed while syncing.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }
