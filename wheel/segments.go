package wheel

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// SegmentType classifies a wheel slice by its reward kind
type SegmentType string

const (
	SegmentCash    SegmentType = "cash"
	SegmentPercent SegmentType = "percent_bonus"
	SegmentRespin  SegmentType = "respin"
	SegmentNoWin   SegmentType = "no_win"
)

// Segment is one fixed slice of the wheel. Order is the position on the
// rendered wheel and is referenced by the UI for landing alignment, so
// entries must never be reordered without a coordinated front-end change.
type Segment struct {
	ID      string          `mapstructure:"id" json:"id"`
	Order   int             `mapstructure:"order" json:"order"`
	Type    SegmentType     `mapstructure:"type" json:"type"`
	Label   string          `mapstructure:"label" json:"label"`
	Value   decimal.Decimal `mapstructure:"value" json:"value"`
	Cost    decimal.Decimal `mapstructure:"cost" json:"cost"`
	Color   string          `mapstructure:"color" json:"color"`
	Enabled bool            `mapstructure:"enabled" json:"enabled"`
}

// IsZeroCost reports whether winning this segment charges nothing to the budget
func (s *Segment) IsZeroCost() bool {
	return s.Cost.IsZero()
}

// RewardValue returns the user-facing value string for monetary segments,
// nil for no-win and respin segments
func (s *Segment) RewardValue() *string {
	switch s.Type {
	case SegmentCash:
		v := "$" + s.Value.StringFixed(2)
		return &v
	case SegmentPercent:
		v := s.Value.StringFixed(0) + "%"
		return &v
	default:
		return nil
	}
}

// SegmentTable is the ordered, read-only list of wheel segments.
// It is loaded once at process start and never mutated afterwards.
type SegmentTable struct {
	segments []Segment
}

// NewSegmentTable validates and wraps a segment list
func NewSegmentTable(segments []Segment) (*SegmentTable, error) {
	t := &SegmentTable{segments: segments}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *SegmentTable) validate() error {
	if len(t.segments) == 0 {
		return fmt.Errorf("segment table is empty")
	}

	seenOrders := make(map[int]bool)
	seenIDs := make(map[string]bool)
	for i := range t.segments {
		s := &t.segments[i]
		if s.ID == "" {
			return fmt.Errorf("segment at index %d has no id", i)
		}
		if seenIDs[s.ID] {
			return fmt.Errorf("duplicate segment id %q", s.ID)
		}
		seenIDs[s.ID] = true
		if s.Order != i {
			return fmt.Errorf("segment %q has order %d but sits at index %d", s.ID, s.Order, i)
		}
		if seenOrders[s.Order] {
			return fmt.Errorf("duplicate segment order %d", s.Order)
		}
		seenOrders[s.Order] = true
		if s.Cost.IsNegative() {
			return fmt.Errorf("segment %q has negative cost %s", s.ID, s.Cost)
		}
	}

	enabled := t.Enabled()
	if len(enabled) < 2 {
		return fmt.Errorf("need at least 2 enabled segments, got %d", len(enabled))
	}
	zeroCost := lo.Filter(enabled, func(s Segment, _ int) bool { return s.IsZeroCost() })
	if len(zeroCost) == 0 {
		return fmt.Errorf("need at least one enabled zero-cost segment")
	}

	return nil
}

// All returns every segment in wheel order, including disabled ones
func (t *SegmentTable) All() []Segment {
	return t.segments
}

// Enabled returns the enabled segments in wheel order
func (t *SegmentTable) Enabled() []Segment {
	return lo.Filter(t.segments, func(s Segment, _ int) bool { return s.Enabled })
}

// ByOrder returns the segment at the given wheel position
func (t *SegmentTable) ByOrder(order int) (*Segment, bool) {
	if order < 0 || order >= len(t.segments) {
		return nil, false
	}
	return &t.segments[order], true
}

// ByID looks up a segment by its identifier
func (t *SegmentTable) ByID(id string) (*Segment, bool) {
	for i := range t.segments {
		if t.segments[i].ID == id {
			return &t.segments[i], true
		}
	}
	return nil, false
}

// Respin returns the free-respin segment if present
func (t *SegmentTable) Respin() (*Segment, bool) {
	for i := range t.segments {
		if t.segments[i].Type == SegmentRespin {
			return &t.segments[i], true
		}
	}
	return nil, false
}

// Len returns the number of segments on the wheel
func (t *SegmentTable) Len() int {
	return len(t.segments)
}

// segmentFile mirrors the YAML segment configuration
type segmentFile struct {
	Segments []Segment `mapstructure:"segments"`
}

// LoadSegmentTable reads the segment table from a YAML file
func LoadSegmentTable(path string) (*SegmentTable, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read segment file %s: %w", path, err)
	}

	var file segmentFile
	if err := v.Unmarshal(&file, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segment file: %w", err)
	}

	return NewSegmentTable(file.Segments)
}

// decimalDecodeHook converts YAML numbers and strings into decimal.Decimal
func decimalDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(decimal.Decimal{}) {
			return data, nil
		}
		switch v := data.(type) {
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case string:
			return decimal.NewFromString(v)
		default:
			return data, nil
		}
	}
}

// DefaultTable returns the reference 18-segment wheel layout, paid
// segments interspersed with zero-cost ones.
func DefaultTable() *SegmentTable {
	mk := func(order int, typ SegmentType, label string, value, cost int64, color string) Segment {
		return Segment{
			ID:      fmt.Sprintf("seg-%02d", order),
			Order:   order,
			Type:    typ,
			Label:   label,
			Value:   decimal.NewFromInt(value),
			Cost:    decimal.NewFromInt(cost),
			Color:   color,
			Enabled: true,
		}
	}

	segments := []Segment{
		mk(0, SegmentCash, "$1 Bonus", 1, 1, "#f6c344"),
		mk(1, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
		mk(2, SegmentCash, "$5 Bonus", 5, 5, "#e2574c"),
		mk(3, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
		mk(4, SegmentCash, "$2 Bonus", 2, 2, "#f6c344"),
		mk(5, SegmentRespin, "Free Spin", 0, 0, "#53b0ae"),
		mk(6, SegmentCash, "$10 Bonus", 10, 10, "#9b59b6"),
		mk(7, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
		mk(8, SegmentCash, "$1 Bonus", 1, 1, "#f6c344"),
		mk(9, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
		mk(10, SegmentCash, "$3 Bonus", 3, 3, "#e2574c"),
		mk(11, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
		mk(12, SegmentPercent, "10% Bonus", 10, 8, "#2980b9"),
		mk(13, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
		mk(14, SegmentCash, "$2 Bonus", 2, 2, "#f6c344"),
		mk(15, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
		mk(16, SegmentCash, "$5 Bonus", 5, 5, "#e2574c"),
		mk(17, SegmentNoWin, "Try Again", 0, 0, "#3b3f4a"),
	}

	table, err := NewSegmentTable(segments)
	if err != nil {
		// the built-in layout is known valid
		panic(err)
	}
	return table
}
