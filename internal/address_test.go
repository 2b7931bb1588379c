package internal

import (
	"testing"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		input                              string
		sheet                              string
		startRow, startCol, endRow, endCol int
		wantErr                            bool
	}{
		{"Sheet1!A1:Z50", "Sheet1", 1, 1, 50, 26, false},
		{"A1:B2", "", 1, 1, 2, 2, false},
		{"a1", "", 1, 1, 1, 1, false},
		{"'My Sheet'!C3:D4", "My Sheet", 3, 3, 4, 4, false},
		{"Sheet1!$A$1:$B$2", "Sheet1", 1, 1, 2, 2, false},
		{"B:B", "", 0, 2, 0, 2, false},
		{"C:A", "", 0, 1, 0, 3, false},
		{"3:3", "", 3, 0, 3, 0, false},
		// reversed range should normalize
		{"Sheet1!B2:A1", "Sheet1", 1, 1, 2, 2, false},
		{"", "", 0, 0, 0, 0, true},
		{"A0", "", 0, 0, 0, 0, true},
		{"B", "", 0, 0, 0, 0, true},
		{"A1:B", "", 0, 0, 0, 0, true},
		{"XFE1", "", 0, 0, 0, 0, true},
		{"A1048577", "", 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := ParseRef(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
			if ref.Sheet != tt.sheet || ref.StartRow != tt.startRow || ref.StartCol != tt.startCol || ref.EndRow != tt.endRow || ref.EndCol != tt.endCol {
				t.Errorf("ParseRef(%q) = %+v, want (%q, %d, %d, %d, %d)",
					tt.input, ref, tt.sheet, tt.startRow, tt.startCol, tt.endRow, tt.endCol)
			}
		})
	}
}

func TestRefShape(t *testing.T) {
	col, _ := ParseRef("B:C")
	if !col.WholeColumns() || col.WholeRows() || col.SingleCell() {
		t.Errorf("B:C shape wrong: %+v", col)
	}
	if got := col.Bounded(7, 3).String(); got != "B1:C7" {
		t.Errorf("Bounded(B:C) = %q, want B1:C7", got)
	}
	if got := col.Bounded(0, 0).String(); got != "B1:C1" {
		t.Errorf("Bounded(B:C) on empty sheet = %q, want B1:C1", got)
	}

	row, _ := ParseRef("2:2")
	if !row.WholeRows() {
		t.Errorf("2:2 should be whole rows: %+v", row)
	}
	if got := row.Bounded(5, 4).String(); got != "A2:D2" {
		t.Errorf("Bounded(2:2) = %q, want A2:D2", got)
	}

	cell, _ := ParseRef("$c$4")
	if !cell.SingleCell() || cell.String() != "C4" {
		t.Errorf("$c$4 = %+v (%s)", cell, cell.String())
	}
}

func TestLeadingColumn(t *testing.T) {
	tests := []struct {
		input     string
		wantSheet string
		want      string
		wantErr   bool
	}{
		{"A:A", "", "A", false},
		{"b:b", "", "B", false},
		{"C2:C10", "", "C", false},
		{"AB", "", "AB", false},
		{"Sheet1!$D$1:$D$4", "Sheet1", "D", false},
		{"'My Data'!E:E", "My Data", "E", false},
		{"", "", "", true},
		{"12:12", "", "", true},
	}
	for _, tt := range tests {
		sheet, got, err := LeadingColumn(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("LeadingColumn(%q) expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil || got != tt.want || sheet != tt.wantSheet {
			t.Errorf("LeadingColumn(%q) = %q, %q, %v; want %q, %q", tt.input, sheet, got, err, tt.wantSheet, tt.want)
		}
	}
}

func TestColToLetter(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{702, "ZZ"},
		{16384, "XFD"},
	}
	for _, tt := range tests {
		if got := ColToLetter(tt.col); got != tt.want {
			t.Errorf("ColToLetter(%d) = %q, want %q", tt.col, got, tt.want)
		}
		if got, err := ColumnNumber(tt.want); err != nil || got != tt.col {
			t.Errorf("ColumnNumber(%q) = %d, %v; want %d", tt.want, got, err, tt.col)
		}
	}
}

func TestAbsoluteAddress(t *testing.T) {
	got := AbsoluteAddress("Q1 Sales", 2, 1, 9, 1)
	want := "'Q1 Sales'!$A$2:$A$9"
	if got != want {
		t.Errorf("AbsoluteAddress = %q, want %q", got, want)
	}

	got = AbsoluteAddress("Sheet1", 1, 2, 1, 2)
	want = "Sheet1!$B$1:$B$1"
	if got != want {
		t.Errorf("AbsoluteAddress = %q, want %q", got, want)
	}
}
