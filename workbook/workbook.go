// Package workbook is the spreadsheet access capability: it opens an OOXML
// workbook with excelize and exposes batched reads and writes against the
// active sheet. Nothing queued on a Batch touches the document until Sync.
package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/witanlabs/voicesheet/internal"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrInvalidAddress is returned for cell or range addresses that do not parse.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrSheetNotFound is returned when the active or named sheet is unavailable.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrUnsupportedFormat is returned for legacy binary (.xls) workbooks.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
	// ErrNotLoaded is returned when a Load is read before the Sync that fills it.
	ErrNotLoaded = errors.New("value not loaded: call Sync first")
	// ErrUncommitted is returned when a batch ends with operations still queued.
	ErrUncommitted = errors.New("batch ended with uncommitted operations")
	// ErrTooLarge is returned when an operation would touch too many cells.
	ErrTooLarge = errors.New("range exceeds cell limit")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("workbook is closed")
)

// MaxCellsPerOp bounds the cells a single range operation may touch.
const MaxCellsPerOp = 1_000_000

// Workbook is a long-lived spreadsheet document shared by successive batches.
// Batches are serialized: one Run holds the document until it returns.
type Workbook struct {
	mu   sync.Mutex
	file *excelize.File
	path string

	// TrackChanges makes each committing Sync record the cell diff it caused.
	TrackChanges bool
}

// New creates an empty in-memory workbook with a single sheet.
func New() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// FromFile wraps an already open excelize file.
func FromFile(f *excelize.File) *Workbook {
	return &Workbook{file: f}
}

// Open opens an .xlsx/.xlsm workbook from disk.
func Open(path string) (*Workbook, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	if format == FormatOLE2 {
		return nil, fmt.Errorf("%s: %w: legacy binary .xls files are not supported, save as .xlsx", filepath.Base(path), ErrUnsupportedFormat)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	return &Workbook{file: f, path: path}, nil
}

// Path returns the file the workbook was opened from, if any.
func (w *Workbook) Path() string { return w.path }

// ActiveSheet returns the name of the currently active sheet.
func (w *Workbook) ActiveSheet() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return "", ErrClosed
	}
	return activeSheet(w.file)
}

func activeSheet(f *excelize.File) (string, error) {
	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		return "", ErrSheetNotFound
	}
	return name, nil
}

// Run opens a batch on the active sheet and calls fn with it. fn must commit
// with Batch.Sync; operations still queued when fn returns are discarded and
// reported as ErrUncommitted. If fn fails after a Sync already applied writes,
// the document is restored to its state before the batch.
func (w *Workbook) Run(ctx context.Context, fn func(*Batch) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sheet, err := activeSheet(w.file)
	if err != nil {
		return err
	}

	b := &Batch{ctx: ctx, file: w.file, sheet: sheet, track: w.TrackChanges}
	err = fn(b)
	if err == nil && b.Pending() > 0 {
		err = ErrUncommitted
	}
	if err != nil {
		if rerr := w.rollback(b); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// rollback restores the checkpoint taken before the batch's first write.
func (w *Workbook) rollback(b *Batch) error {
	if b.checkpoint == nil {
		return nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(b.checkpoint))
	if err != nil {
		return fmt.Errorf("restoring workbook: %w", err)
	}
	_ = w.file.Close()
	w.file = f
	return nil
}

// Inspect calls fn with the underlying file and active sheet while holding
// the workbook. fn must not modify the file.
func (w *Workbook) Inspect(fn func(f *excelize.File, sheet string) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ErrClosed
	}
	sheet, err := activeSheet(w.file)
	if err != nil {
		return err
	}
	return fn(w.file, sheet)
}

// Snapshot returns the active sheet's cells.
func (w *Workbook) Snapshot() (internal.Grid, error) {
	var g internal.Grid
	err := w.Inspect(func(f *excelize.File, sheet string) error {
		var err error
		g, err = snapshot(f, sheet)
		return err
	})
	return g, err
}

// Save writes the workbook back to the path it was opened from.
func (w *Workbook) Save() error {
	if w.path == "" {
		return errors.New("workbook has no path: use SaveAs")
	}
	return w.SaveAs(w.path)
}

// SaveAs writes the workbook to path and makes it the workbook's path.
// The file is written to a temp file first and renamed into place.
func (w *Workbook) SaveAs(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ErrClosed
	}

	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serializing workbook: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing workbook: %w", err)
	}
	w.path = path
	return nil
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// snapshot reads every value and formula in the used extent of sheet, plus
// one trailing row and column so formulas written just below or beside the
// data are captured even before they have a cached value.
func snapshot(f *excelize.File, sheet string) (internal.Grid, error) {
	rows, cols, err := usedExtent(f, sheet)
	if err != nil {
		return nil, err
	}
	g := make(internal.Grid)
	for r := 1; r <= rows+1; r++ {
		for c := 1; c <= cols+1; c++ {
			name, _ := excelize.CoordinatesToCellName(c, r)
			text, err := cellText(f, sheet, name)
			if err != nil {
				return nil, err
			}
			if text != "" {
				g[name] = text
			}
		}
	}
	return g, nil
}

// cellText is the snapshot form of a cell: "=FORMULA" for formulas, else
// the formatted value.
func cellText(f *excelize.File, sheet, cell string) (string, error) {
	formula, err := f.GetCellFormula(sheet, cell)
	if err != nil {
		return "", err
	}
	if formula != "" {
		return "=" + displayFormula(formula), nil
	}
	return f.GetCellValue(sheet, cell)
}

// usedExtent returns the number of rows from row 1 through the last row
// holding a value or formula, and the widest such row's column count.
// GetRows walks every row element of the sheet and keeps formula cells that
// have no cached value, so formulas after blank gaps are counted.
func usedExtent(f *excelize.File, sheet string) (rows, cols int, err error) {
	data, err := f.GetRows(sheet)
	if err != nil {
		return 0, 0, sheetErr(sheet, err)
	}
	rows = len(data)
	for _, row := range data {
		cols = max(cols, len(row))
	}
	return rows, cols, nil
}

func sheetErr(sheet string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "does not exist") {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	return err
}
