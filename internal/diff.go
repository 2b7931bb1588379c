package internal

import (
	"fmt"
	"sort"
	"strconv"
)

// Grid is a sheet snapshot keyed by cell name ("A1"). Formula cells hold
// their formula text with a leading "=".
type Grid map[string]string

// CellChange is one cell whose content differs between two snapshots.
type CellChange struct {
	Cell   string `json:"cell"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// DiffGrids compares two snapshots and returns the changed cells in row-major
// order. A cell missing from one side compares as empty.
func DiffGrids(before, after Grid) []CellChange {
	var changes []CellChange
	for cell, b := range before {
		if a := after[cell]; a != b {
			changes = append(changes, CellChange{Cell: cell, Before: b, After: a})
		}
	}
	for cell, a := range after {
		if _, ok := before[cell]; !ok && a != "" {
			changes = append(changes, CellChange{Cell: cell, Before: "", After: a})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		ri, ci := splitCell(changes[i].Cell)
		rj, cj := splitCell(changes[j].Cell)
		if ri != rj {
			return ri < rj
		}
		return ci < cj
	})
	return changes
}

// FormatDiffSummary returns a human-readable diff summary string.
func FormatDiffSummary(changes []CellChange) string {
	switch len(changes) {
	case 0:
		return "diff: no cell changes"
	case 1:
		return fmt.Sprintf("diff: 1 cell changed (%s)", changes[0].Cell)
	default:
		return fmt.Sprintf("diff: %d cells changed (%s..%s)", len(changes), changes[0].Cell, changes[len(changes)-1].Cell)
	}
}

// splitCell returns (row, col) for ordering; malformed names sort first.
func splitCell(cell string) (int, int) {
	i := 0
	for i < len(cell) && (cell[i] < '0' || cell[i] > '9') {
		i++
	}
	col, err := ColumnNumber(cell[:i])
	if err != nil {
		return 0, 0
	}
	row, err := strconv.Atoi(cell[i:])
	if err != nil {
		return 0, 0
	}
	return row, col
}
