package workbook

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/witanlabs/voicesheet/internal"
	"github.com/xuri/excelize/v2"
)

// xlfnFunctions are worksheet functions newer than the original file format;
// OOXML stores them with an "_xlfn." prefix.
var xlfnFunctions = []string{"STDEV.S", "STDEV.P", "VAR.S", "VAR.P"}

// storedFormula converts "=STDEV.S(A1:A4)" to the OOXML form "_xlfn.STDEV.S(A1:A4)".
func storedFormula(formula string) string {
	out := strings.TrimPrefix(strings.TrimSpace(formula), "=")
	for _, fn := range xlfnFunctions {
		out = strings.ReplaceAll(out, fn+"(", "_xlfn."+fn+"(")
	}
	return strings.ReplaceAll(out, "_xlfn._xlfn.", "_xlfn.")
}

// displayFormula is the inverse of storedFormula, without the leading "=".
func displayFormula(stored string) string {
	return strings.ReplaceAll(strings.TrimPrefix(stored, "="), "_xlfn.", "")
}

func readCell(f *excelize.File, sheet, cell string) (Cell, error) {
	formula, err := f.GetCellFormula(sheet, cell)
	if err != nil {
		return Cell{}, err
	}
	value, err := f.GetCellValue(sheet, cell)
	if err != nil {
		return Cell{}, err
	}
	c := Cell{Value: value}
	if formula != "" {
		c.Formula = "=" + displayFormula(formula)
	}
	return c, nil
}

func setValue(f *excelize.File, sheet, cell string, v any) error {
	if s, ok := v.(string); ok && len(s) > 1 && strings.HasPrefix(s, "=") {
		return f.SetCellFormula(sheet, cell, storedFormula(s))
	}
	if err := f.SetCellFormula(sheet, cell, ""); err != nil {
		return err
	}
	if v == nil {
		v = ""
	}
	return f.SetCellValue(sheet, cell, v)
}

func clearCell(f *excelize.File, sheet, cell string) error {
	if err := f.SetCellFormula(sheet, cell, ""); err != nil {
		return err
	}
	return f.SetCellDefault(sheet, cell, "")
}

// bounded resolves whole-row and whole-column references against the used
// extent and enforces MaxCellsPerOp.
func bounded(f *excelize.File, sheet string, ref internal.Ref) (internal.Ref, error) {
	rows, cols, err := usedExtent(f, sheet)
	if err != nil {
		return internal.Ref{}, err
	}
	ref = ref.Bounded(rows, cols)
	if n := (ref.EndRow - ref.StartRow + 1) * (ref.EndCol - ref.StartCol + 1); n > MaxCellsPerOp {
		return internal.Ref{}, fmt.Errorf("%w: %d > %d cells", ErrTooLarge, n, MaxCellsPerOp)
	}
	return ref, nil
}

func eachCell(f *excelize.File, sheet string, ref internal.Ref, fn func(cell string) error) error {
	ref, err := bounded(f, sheet, ref)
	if err != nil {
		return err
	}
	for r := ref.StartRow; r <= ref.EndRow; r++ {
		for c := ref.StartCol; c <= ref.EndCol; c++ {
			name, _ := excelize.CoordinatesToCellName(c, r)
			if err := fn(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// boldStyles derives bold variants of existing style ids, one NewStyle per
// distinct source style.
type boldStyles struct {
	f     *excelize.File
	cache map[int]int
}

func (s *boldStyles) of(id int) (int, error) {
	if bold, ok := s.cache[id]; ok {
		return bold, nil
	}
	style, err := s.f.GetStyle(id)
	if err != nil {
		return 0, err
	}
	if style.Font == nil {
		style.Font = &excelize.Font{}
	}
	style.Font.Bold = true
	bold, err := s.f.NewStyle(style)
	if err != nil {
		return 0, err
	}
	s.cache[id] = bold
	return bold, nil
}

func setBold(f *excelize.File, sheet string, ref internal.Ref) error {
	styles := &boldStyles{f: f, cache: make(map[int]int)}

	// Capture cell styles first: column and row styles may be pushed down
	// onto existing cells.
	cellStyles := make(map[string]int)
	if err := eachCell(f, sheet, ref, func(cell string) error {
		id, err := f.GetCellStyle(sheet, cell)
		cellStyles[cell] = id
		return err
	}); err != nil {
		return err
	}

	switch {
	case ref.WholeColumns():
		for c := ref.StartCol; c <= ref.EndCol; c++ {
			col := internal.ColToLetter(c)
			id, err := f.GetColStyle(sheet, col)
			if err != nil {
				return err
			}
			bold, err := styles.of(id)
			if err != nil {
				return err
			}
			if err := f.SetColStyle(sheet, col, bold); err != nil {
				return err
			}
		}
	case ref.WholeRows():
		bold, err := styles.of(0)
		if err != nil {
			return err
		}
		if err := f.SetRowStyle(sheet, ref.StartRow, ref.EndRow, bold); err != nil {
			return err
		}
	}

	for cell, id := range cellStyles {
		bold, err := styles.of(id)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, bold); err != nil {
			return err
		}
	}
	return nil
}

// sortCell is a cell lifted out of the sheet while its row is reordered.
type sortCell struct {
	raw     string
	formula string
	kind    excelize.CellType
	style   int
}

func (c sortCell) blank() bool { return c.raw == "" && c.formula == "" }

func (c sortCell) number() (float64, bool) {
	if c.kind == excelize.CellTypeSharedString || c.kind == excelize.CellTypeInlineString || c.kind == excelize.CellTypeBool {
		return 0, false
	}
	n, err := strconv.ParseFloat(c.raw, 64)
	return n, err == nil
}

// sortRank orders value classes the way Excel does: numbers, text, logicals.
func (c sortCell) sortRank() int {
	if _, ok := c.number(); ok {
		return 0
	}
	if c.kind == excelize.CellTypeBool {
		return 2
	}
	return 1
}

// less compares sort keys ascending. Blanks are handled by the caller.
func (c sortCell) less(o sortCell) bool {
	if ra, rb := c.sortRank(), o.sortRank(); ra != rb {
		return ra < rb
	}
	if a, ok := c.number(); ok {
		b, _ := o.number()
		return a < b
	}
	return strings.ToLower(c.raw) < strings.ToLower(o.raw)
}

func sortRange(f *excelize.File, sheet string, ref internal.Ref, key int, ascending, hasHeaders bool) error {
	ref, err := bounded(f, sheet, ref)
	if err != nil {
		return err
	}
	width := ref.EndCol - ref.StartCol + 1
	if key < 0 || key >= width {
		return fmt.Errorf("sort key %d outside a %d-column range", key, width)
	}

	first := ref.StartRow
	if hasHeaders {
		first++
	}
	if first >= ref.EndRow {
		return nil
	}

	rows := make([][]sortCell, 0, ref.EndRow-first+1)
	for r := first; r <= ref.EndRow; r++ {
		row := make([]sortCell, width)
		for i := range row {
			name, _ := excelize.CoordinatesToCellName(ref.StartCol+i, r)
			if row[i], err = liftCell(f, sheet, name); err != nil {
				return err
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][key], rows[j][key]
		// Blanks sort last in either direction.
		if a.blank() || b.blank() {
			return !a.blank() && b.blank()
		}
		if ascending {
			return a.less(b)
		}
		return b.less(a)
	})

	for i, row := range rows {
		for j, c := range row {
			name, _ := excelize.CoordinatesToCellName(ref.StartCol+j, first+i)
			if err := placeCell(f, sheet, name, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func liftCell(f *excelize.File, sheet, cell string) (sortCell, error) {
	var c sortCell
	var err error
	if c.raw, err = f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true}); err != nil {
		return c, err
	}
	if c.formula, err = f.GetCellFormula(sheet, cell); err != nil {
		return c, err
	}
	if c.kind, err = f.GetCellType(sheet, cell); err != nil {
		return c, err
	}
	if c.style, err = f.GetCellStyle(sheet, cell); err != nil {
		return c, err
	}
	return c, nil
}

func placeCell(f *excelize.File, sheet, cell string, c sortCell) error {
	if err := f.SetCellFormula(sheet, cell, ""); err != nil {
		return err
	}
	var err error
	switch {
	case c.formula != "":
		err = f.SetCellFormula(sheet, cell, c.formula)
	case c.raw == "":
		err = f.SetCellDefault(sheet, cell, "")
	case c.kind == excelize.CellTypeBool:
		err = f.SetCellBool(sheet, cell, c.raw == "1" || strings.EqualFold(c.raw, "true"))
	default:
		if n, ok := c.number(); ok {
			err = f.SetCellValue(sheet, cell, n)
		} else {
			err = f.SetCellStr(sheet, cell, c.raw)
		}
	}
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, c.style)
}

// filterOperators maps spreadsheet criterion operators to auto filter
// expression operators, longest first.
var filterOperators = []struct{ in, out string }{
	{">=", ">="}, {"<=", "<="}, {"<>", "!="}, {"!=", "!="}, {"==", "=="},
	{">", ">"}, {"<", "<"}, {"=", "=="},
}

// filterExpression turns a custom criterion such as ">10", "<>0" or "apple"
// into an auto filter expression ("x > 10").
func filterExpression(criterion string) (string, error) {
	c := strings.TrimSpace(criterion)
	if c == "" {
		return "", fmt.Errorf("empty filter criterion")
	}
	for _, op := range filterOperators {
		if rest, ok := strings.CutPrefix(c, op.in); ok {
			value := strings.TrimSpace(rest)
			if value == "" {
				return "", fmt.Errorf("filter criterion %q has no value", criterion)
			}
			return "x " + op.out + " " + filterToken(value), nil
		}
	}
	return "x == " + filterToken(c), nil
}

// filterToken double-quotes a value holding spaces or quotes so the auto
// filter parser reads it as one token. Inner quotes are doubled.
func filterToken(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value
	}
	if !strings.ContainsAny(value, " \t\"") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func applyFilter(f *excelize.File, sheet string, ref internal.Ref, column int, expr string) error {
	ref, err := bounded(f, sheet, ref)
	if err != nil {
		return err
	}
	if column < 0 || ref.StartCol+column > ref.EndCol {
		return fmt.Errorf("filter column %d outside range %s", column, ref)
	}
	return f.AutoFilter(sheet, ref.String(), []excelize.AutoFilterOptions{{
		Column:     internal.ColToLetter(ref.StartCol + column),
		Expression: expr,
	}})
}

// addChart builds a clustered column chart over columns from..to. With more
// than one column the first supplies categories and the rest are series.
// A non-numeric first row is used for series names.
func addChart(f *excelize.File, sheet string, from, to int, opts ChartOptions) error {
	rows, _, err := usedExtent(f, sheet)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("no data to chart in %s:%s", internal.ColToLetter(from), internal.ColToLetter(to))
	}

	valueStart := from
	if to > from {
		valueStart = from + 1
	}
	header := false
	if rows > 1 {
		top, err := f.GetCellValue(sheet, internal.ColToLetter(valueStart)+"1", excelize.Options{RawCellValue: true})
		if err != nil {
			return err
		}
		if _, perr := strconv.ParseFloat(top, 64); top != "" && perr != nil {
			header = true
		}
	}
	firstData := 1
	if header {
		firstData = 2
	}

	series := make([]excelize.ChartSeries, 0, to-valueStart+1)
	for c := valueStart; c <= to; c++ {
		s := excelize.ChartSeries{
			Values: internal.AbsoluteAddress(sheet, firstData, c, rows, c),
		}
		if header {
			s.Name = internal.AbsoluteAddress(sheet, 1, c, 1, c)
		}
		if valueStart > from {
			s.Categories = internal.AbsoluteAddress(sheet, firstData, from, rows, from)
		}
		series = append(series, s)
	}

	legend := excelize.ChartLegend{Position: "right"}
	if !opts.ShowLegend {
		legend.Position = "none"
	}
	chart := &excelize.Chart{
		Type:   excelize.Col,
		Series: series,
		Legend: legend,
	}
	if opts.Title != "" {
		chart.Title = []excelize.RichTextRun{{Text: opts.Title}}
	}

	anchor, _ := excelize.CoordinatesToCellName(to+2, 1)
	return f.AddChart(sheet, anchor, chart)
}
