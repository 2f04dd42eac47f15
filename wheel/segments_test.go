package wheel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	if table.Len() != 18 {
		t.Errorf("expected 18 segments, got %d", table.Len())
	}

	for i, seg := range table.All() {
		if seg.Order != i {
			t.Errorf("expected segment at index %d to have order %d, got %d", i, i, seg.Order)
		}
	}

	respin, ok := table.Respin()
	if !ok {
		t.Fatalf("expected a respin segment")
	}
	if !respin.IsZeroCost() {
		t.Errorf("expected respin segment to be zero cost")
	}
}

func TestSegmentTableValidation(t *testing.T) {
	valid := func() []Segment {
		return []Segment{
			{ID: "a", Order: 0, Type: SegmentCash, Cost: decimal.NewFromInt(1), Enabled: true},
			{ID: "b", Order: 1, Type: SegmentNoWin, Cost: decimal.Zero, Enabled: true},
		}
	}

	tests := []struct {
		name    string
		mutate  func([]Segment) []Segment
		wantErr bool
	}{
		{
			name:    "valid table",
			mutate:  func(s []Segment) []Segment { return s },
			wantErr: false,
		},
		{
			name:    "empty table",
			mutate:  func(s []Segment) []Segment { return nil },
			wantErr: true,
		},
		{
			name: "duplicate id",
			mutate: func(s []Segment) []Segment {
				s[1].ID = "a"
				return s
			},
			wantErr: true,
		},
		{
			name: "order does not match index",
			mutate: func(s []Segment) []Segment {
				s[1].Order = 5
				return s
			},
			wantErr: true,
		},
		{
			name: "negative cost",
			mutate: func(s []Segment) []Segment {
				s[0].Cost = decimal.NewFromInt(-1)
				return s
			},
			wantErr: true,
		},
		{
			name: "no zero-cost segment",
			mutate: func(s []Segment) []Segment {
				s[1].Cost = decimal.NewFromInt(2)
				return s
			},
			wantErr: true,
		},
		{
			name: "fewer than two enabled",
			mutate: func(s []Segment) []Segment {
				s[0].Enabled = false
				return s
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSegmentTable(tt.mutate(valid()))
			if tt.wantErr && err == nil {
				t.Errorf("expected validation error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestRewardValue(t *testing.T) {
	tests := []struct {
		name     string
		segment  Segment
		expected string
		isNil    bool
	}{
		{
			name:     "cash formats as dollars",
			segment:  Segment{Type: SegmentCash, Value: decimal.NewFromInt(5)},
			expected: "$5.00",
		},
		{
			name:     "percent formats with suffix",
			segment:  Segment{Type: SegmentPercent, Value: decimal.NewFromInt(10)},
			expected: "10%",
		},
		{
			name:    "no win has no value",
			segment: Segment{Type: SegmentNoWin},
			isNil:   true,
		},
		{
			name:    "respin has no value",
			segment: Segment{Type: SegmentRespin},
			isNil:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.segment.RewardValue()
			if tt.isNil {
				if got != nil {
					t.Errorf("expected nil reward value, got %q", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected reward value %q, got nil", tt.expected)
			}
			if *got != tt.expected {
				t.Errorf("expected reward value %q, got %q", tt.expected, *got)
			}
		})
	}
}

func TestByOrderAndByID(t *testing.T) {
	table := DefaultTable()

	seg, ok := table.ByOrder(6)
	if !ok {
		t.Fatalf("expected segment at order 6")
	}
	if seg.ID != "seg-06" {
		t.Errorf("expected seg-06 at order 6, got %s", seg.ID)
	}

	if _, ok := table.ByOrder(99); ok {
		t.Errorf("expected no segment at order 99")
	}

	byID, ok := table.ByID("seg-12")
	if !ok {
		t.Fatalf("expected segment seg-12")
	}
	if byID.Type != SegmentPercent {
		t.Errorf("expected seg-12 to be percent_bonus, got %s", byID.Type)
	}

	if _, ok := table.ByID("missing"); ok {
		t.Errorf("expected no segment with id missing")
	}
}

func TestLoadSegmentTable(t *testing.T) {
	content := `segments:
  - id: s0
    order: 0
    type: cash
    label: "$1 Bonus"
    value: 1
    cost: "1.50"
    color: "#fff"
    enabled: true
  - id: s1
    order: 1
    type: no_win
    label: "Try Again"
    value: 0
    cost: 0
    color: "#000"
    enabled: true
`
	path := filepath.Join(t.TempDir(), "segments.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write segment file: %v", err)
	}

	table, err := LoadSegmentTable(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 segments, got %d", table.Len())
	}

	seg, _ := table.ByID("s0")
	if !seg.Cost.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("expected cost 1.5 from string, got %s", seg.Cost)
	}
}

func TestLoadSegmentTableMissingFile(t *testing.T) {
	if _, err := LoadSegmentTable("does-not-exist.yaml"); err == nil {
		t.Errorf("expected error for missing file")
	}
}
