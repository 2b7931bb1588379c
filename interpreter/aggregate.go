package interpreter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/witanlabs/voicesheet/internal"
	"github.com/witanlabs/voicesheet/plan"
	"github.com/witanlabs/voicesheet/workbook"
)

// columnProbe is the read-phase result of an aggregate: the column the
// aggregate runs over and its last occupied row.
type columnProbe struct {
	Column   string
	UsedRows int
	// LastRow is 0 when no cell in rows 1..UsedRows holds a value.
	LastRow int
}

// probeColumn flushes one read of the column named at the start of address
// and scans it for the last occupied row. Blank cells above the last value
// do not end the scan.
func probeColumn(b *workbook.Batch, address string) (columnProbe, error) {
	sheet, col, err := internal.LeadingColumn(address)
	if err != nil {
		return columnProbe{}, fmt.Errorf("%w: %v", workbook.ErrInvalidAddress, err)
	}
	if sheet != "" && !strings.EqualFold(sheet, b.Sheet()) {
		return columnProbe{}, fmt.Errorf("%w: %q is not the active sheet %q", workbook.ErrSheetNotFound, sheet, b.Sheet())
	}
	load := b.UsedColumn(col)
	if err := b.Sync(); err != nil {
		return columnProbe{}, err
	}
	data, err := load.Value()
	if err != nil {
		return columnProbe{}, err
	}

	probe := columnProbe{Column: data.Letter, UsedRows: data.UsedRows}
	for i, c := range data.Cells {
		if !c.Empty() {
			probe.LastRow = i + 1
		}
	}
	return probe, nil
}

// writeAggregate queues FUNC(colFirst:colLast) one row below the probe's
// last occupied row. An empty column yields FUNC(X1:X0) in X1.
func writeAggregate(b *workbook.Batch, fn plan.AggregateFunc, probe columnProbe) (target, formula string) {
	target = probe.Column + strconv.Itoa(probe.LastRow+1)
	formula = fmt.Sprintf("=%s(%s1:%s%d)", fn, probe.Column, probe.Column, probe.LastRow)
	b.SetFormula(target, formula)
	return target, formula
}
