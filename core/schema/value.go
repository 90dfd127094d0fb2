package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind discriminates the typed column value union.
type ValueKind int

const (
	// KindNull marks a SQL NULL.
	KindNull ValueKind = iota
	// KindText marks a string value.
	KindText
	// KindNumber marks a numeric value.
	KindNumber
	// KindDate marks a timestamp value.
	KindDate
	// KindBool marks a boolean value.
	KindBool
)

// Value is a typed column value used in journal snapshots and compensating
// writes. Keeping the union typed avoids feeding untyped strings back into
// SQL when an undo is replayed.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Date   time.Time
	Bool   bool
}

// Null returns a NULL value.
func Null() Value { return Value{Kind: KindNull} }

// TextValue returns a string value.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// NumberValue returns a numeric value.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// DateValue returns a timestamp value.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Any returns the value in the representation GORM expects for a write.
func (v Value) Any() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return v.Number
	case KindDate:
		return v.Date
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// MarshalJSON encodes the value as plain JSON (string, number, bool, null).
// Dates serialize as RFC3339 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindNumber:
		return json.Marshal(v.Number)
	case KindDate:
		return json.Marshal(v.Date.Format(time.RFC3339))
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a plain JSON value into the typed union. Every
// string decodes as text, even one shaped like a timestamp: a free-text
// column may legitimately hold "2024-01-02", and guessing here would
// rewrite it on undo. DecodeSnapshot recovers typed dates, but only for
// columns the table schema declares as dates.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = BoolValue(t)
	case float64:
		*v = NumberValue(t)
	case string:
		*v = TextValue(t)
	default:
		return fmt.Errorf("unsupported snapshot value type %T", raw)
	}
	return nil
}

// parseDate accepts the two string forms a serialized date may take.
func parseDate(s string) (time.Time, bool) {
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, true
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// Changeset maps column names to typed values.
type Changeset map[string]Value

// SQLMap converts the changeset to the map form GORM's Updates/Create take.
func (c Changeset) SQLMap() map[string]any {
	out := make(map[string]any, len(c))
	for col, val := range c {
		out[col] = val.Any()
	}
	return out
}
