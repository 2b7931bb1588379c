package internal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Worksheet limits of the OOXML format.
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

var (
	// cellRefRe matches a cell reference like A1, $B$2, AA100
	cellRefRe = regexp.MustCompile(`^\$?([A-Z]{1,3})\$?(\d+)$`)
	// colRefRe matches a whole-column reference like B or $AB
	colRefRe = regexp.MustCompile(`^\$?([A-Z]{1,3})$`)
	// rowRefRe matches a whole-row reference like 3 or $12
	rowRefRe = regexp.MustCompile(`^\$?(\d+)$`)
)

// Ref is a parsed A1 reference, 1-indexed and normalized so Start <= End.
// Whole-column references ("B:D") leave StartRow/EndRow zero; whole-row
// references ("2:4") leave StartCol/EndCol zero.
type Ref struct {
	Sheet    string
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// WholeColumns reports whether the reference spans entire columns.
func (r Ref) WholeColumns() bool { return r.StartRow == 0 && r.StartCol > 0 }

// WholeRows reports whether the reference spans entire rows.
func (r Ref) WholeRows() bool { return r.StartCol == 0 && r.StartRow > 0 }

// SingleCell reports whether the reference names exactly one cell.
func (r Ref) SingleCell() bool {
	return r.StartRow > 0 && r.StartCol > 0 && r.StartRow == r.EndRow && r.StartCol == r.EndCol
}

// Bounded returns the reference clipped to rows 1..usedRows and columns
// 1..usedCols for whole-column and whole-row references.
func (r Ref) Bounded(usedRows, usedCols int) Ref {
	out := r
	if r.WholeColumns() {
		out.StartRow, out.EndRow = 1, max(usedRows, 1)
	}
	if r.WholeRows() {
		out.StartCol, out.EndCol = 1, max(usedCols, 1)
	}
	return out
}

// String renders the reference without its sheet, e.g. "A1:C3", "B:B", "2:2".
func (r Ref) String() string {
	switch {
	case r.WholeColumns():
		return ColToLetter(r.StartCol) + ":" + ColToLetter(r.EndCol)
	case r.WholeRows():
		return strconv.Itoa(r.StartRow) + ":" + strconv.Itoa(r.EndRow)
	case r.SingleCell():
		return ColToLetter(r.StartCol) + strconv.Itoa(r.StartRow)
	default:
		return ColToLetter(r.StartCol) + strconv.Itoa(r.StartRow) + ":" + ColToLetter(r.EndCol) + strconv.Itoa(r.EndRow)
	}
}

// ParseRef parses addresses like "A1", "Sheet1!A1:Z50", "B:B", "2:4" or
// "'My Sheet'!$C$3". The sheet prefix is optional.
func ParseRef(address string) (Ref, error) {
	var ref Ref
	rangePart := strings.TrimSpace(address)
	if sheetPart, rest, ok := cutSheet(rangePart); ok {
		ref.Sheet = sheetPart
		rangePart = rest
	}
	if rangePart == "" {
		return Ref{}, fmt.Errorf("empty address %q", address)
	}

	fromRef, toRef, hasColon := strings.Cut(rangePart, ":")
	if !hasColon {
		toRef = fromRef
	}
	fromRef = strings.ToUpper(strings.TrimSpace(fromRef))
	toRef = strings.ToUpper(strings.TrimSpace(toRef))

	switch {
	case cellRefRe.MatchString(fromRef) && cellRefRe.MatchString(toRef):
		var err error
		if ref.StartCol, ref.StartRow, err = parseRef(fromRef); err != nil {
			return Ref{}, fmt.Errorf("invalid start of range %q: %w", fromRef, err)
		}
		if ref.EndCol, ref.EndRow, err = parseRef(toRef); err != nil {
			return Ref{}, fmt.Errorf("invalid end of range %q: %w", toRef, err)
		}
	case hasColon && colRefRe.MatchString(fromRef) && colRefRe.MatchString(toRef):
		var err error
		if ref.StartCol, err = ColumnNumber(strings.TrimPrefix(fromRef, "$")); err != nil {
			return Ref{}, err
		}
		if ref.EndCol, err = ColumnNumber(strings.TrimPrefix(toRef, "$")); err != nil {
			return Ref{}, err
		}
	case hasColon && rowRefRe.MatchString(fromRef) && rowRefRe.MatchString(toRef):
		var err error
		if ref.StartRow, err = rowNumber(fromRef); err != nil {
			return Ref{}, err
		}
		if ref.EndRow, err = rowNumber(toRef); err != nil {
			return Ref{}, err
		}
	default:
		return Ref{}, fmt.Errorf("invalid cell reference %q", address)
	}

	// Normalize order
	if ref.StartRow > ref.EndRow {
		ref.StartRow, ref.EndRow = ref.EndRow, ref.StartRow
	}
	if ref.StartCol > ref.EndCol {
		ref.StartCol, ref.EndCol = ref.EndCol, ref.StartCol
	}
	return ref, nil
}

// LeadingColumn returns the sheet prefix, if any, and the column letters at
// the start of the part of address before any ':', e.g. "A" for "A:A", "B"
// for "B2:B9", ("Data", "C") for "Data!C:C".
func LeadingColumn(address string) (sheet, col string, err error) {
	first, _, _ := strings.Cut(strings.TrimSpace(address), ":")
	if s, rest, ok := cutSheet(first); ok {
		sheet, first = s, rest
	}
	first = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(first), "$"))
	end := 0
	for end < len(first) && first[end] >= 'A' && first[end] <= 'Z' {
		end++
	}
	letters := first[:end]
	if _, err := ColumnNumber(letters); err != nil {
		return "", "", fmt.Errorf("no column in %q", address)
	}
	return sheet, letters, nil
}

// ColToLetter converts a 1-indexed column number to Excel letter(s)
func ColToLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// ColumnNumber converts column letters ("A", "xfd") to a 1-indexed number.
func ColumnNumber(letters string) (int, error) {
	letters = strings.ToUpper(letters)
	if letters == "" || len(letters) > 3 {
		return 0, fmt.Errorf("invalid column %q", letters)
	}
	col := 0
	for _, c := range letters {
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("invalid column %q", letters)
		}
		col = col*26 + int(c-'A'+1)
	}
	if col > MaxColumns {
		return 0, fmt.Errorf("column %q is beyond %s", letters, ColToLetter(MaxColumns))
	}
	return col, nil
}

// AbsoluteAddress builds an absolute reference like "'My Sheet'!$A$1:$A$9",
// the form chart series expect.
func AbsoluteAddress(sheet string, startRow, startCol, endRow, endCol int) string {
	return fmt.Sprintf("%s!$%s$%d:$%s$%d", QuoteSheet(sheet),
		ColToLetter(startCol), startRow, ColToLetter(endCol), endRow)
}

// QuoteSheet wraps a sheet name in single quotes when it needs them.
func QuoteSheet(sheet string) string {
	if sheet == "" || strings.IndexFunc(sheet, needsQuote) < 0 {
		return sheet
	}
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func needsQuote(r rune) bool {
	return !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '.')
}

func cutSheet(address string) (sheet, rest string, ok bool) {
	idx := strings.LastIndexByte(address, '!')
	if idx < 0 {
		return "", address, false
	}
	sheet = address[:idx]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, address[idx+1:], true
}

func parseRef(ref string) (col, row int, err error) {
	m := cellRefRe.FindStringSubmatch(ref)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	if col, err = ColumnNumber(m[1]); err != nil {
		return 0, 0, err
	}
	if row, err = rowNumber(m[2]); err != nil {
		return 0, 0, err
	}
	return col, row, nil
}

func rowNumber(s string) (int, error) {
	row, err := strconv.Atoi(strings.TrimPrefix(s, "$"))
	if err != nil || row < 1 || row > MaxRows {
		return 0, fmt.Errorf("invalid row %q", s)
	}
	return row, nil
}
