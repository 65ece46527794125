package types

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NullableDecimal tracks whether a money field was present in a JSON body.
// An explicit null is present with a nil Value.
type NullableDecimal struct {
	Valid bool
	Value *decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler. Numbers and numeric strings
// are both accepted.
func (n *NullableDecimal) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var parsed decimal.Decimal
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

func (n NullableDecimal) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Or returns the value, zero when null, or fallback when absent.
func (n NullableDecimal) Or(fallback decimal.Decimal) decimal.Decimal {
	if !n.Valid {
		return fallback
	}
	if n.Value == nil {
		return decimal.Zero
	}
	return *n.Value
}

// Of returns a present NullableDecimal holding d.
func Of(d decimal.Decimal) NullableDecimal {
	return NullableDecimal{Valid: true, Value: &d}
}
