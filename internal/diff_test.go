package internal

import (
	"strings"
	"testing"
)

func TestDiffGrids_Identical(t *testing.T) {
	g := Grid{"A1": "1", "B2": "=SUM(A1:A1)"}
	if changes := DiffGrids(g, g); len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
}

func TestDiffGrids_AddedChangedCleared(t *testing.T) {
	before := Grid{"A1": "1", "A2": "2", "C1": "old"}
	after := Grid{"A1": "1", "A2": "20", "B1": "new", "AA1": "wide"}

	changes := DiffGrids(before, after)
	if len(changes) != 4 {
		t.Fatalf("expected 4 changes, got %d: %+v", len(changes), changes)
	}

	// Row-major: row 1 by column (B1, C1, AA1), then A2.
	wantOrder := []string{"B1", "C1", "AA1", "A2"}
	for i, want := range wantOrder {
		if changes[i].Cell != want {
			t.Errorf("changes[%d].Cell = %q, want %q", i, changes[i].Cell, want)
		}
	}
	if changes[1].Before != "old" || changes[1].After != "" {
		t.Errorf("cleared cell should go old -> empty, got %+v", changes[1])
	}
	if changes[3].Before != "2" || changes[3].After != "20" {
		t.Errorf("changed cell wrong: %+v", changes[3])
	}
}

func TestDiffGrids_EmptyAddedCellIgnored(t *testing.T) {
	changes := DiffGrids(Grid{}, Grid{"A1": ""})
	if len(changes) != 0 {
		t.Errorf("empty cells should not count as changes, got %+v", changes)
	}
}

func TestFormatDiffSummary(t *testing.T) {
	if got := FormatDiffSummary(nil); got != "diff: no cell changes" {
		t.Errorf("unexpected summary: %q", got)
	}
	one := []CellChange{{Cell: "A5", After: "=SUM(A1:A4)"}}
	if got := FormatDiffSummary(one); !strings.Contains(got, "1 cell changed (A5)") {
		t.Errorf("unexpected summary: %q", got)
	}
	many := []CellChange{{Cell: "A1"}, {Cell: "A2"}, {Cell: "B3"}}
	if got := FormatDiffSummary(many); got != "diff: 3 cells changed (A1..B3)" {
		t.Errorf("unexpected summary: %q", got)
	}
}
