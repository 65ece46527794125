package dbtypes

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Customization is the canonical modifier attached to an order item.
type Customization struct {
	Name            string          `json:"name"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	Group           string          `json:"group,omitempty"`
}

// customizationWire accepts both the canonical and the legacy object shapes.
type customizationWire struct {
	Name            string              `json:"name"`
	PriceAdjustment decimal.NullDecimal `json:"price_adjustment"`
	Price           decimal.NullDecimal `json:"price"`
	Group           string              `json:"group"`
	GroupName       string              `json:"group_name"`
}

// UnmarshalJSON normalizes a bare string, a legacy {name, price, group_name}
// object or the canonical shape into a Customization.
func (c *Customization) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Customization{}
		return nil
	}

	if trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return fmt.Errorf("customization: %w", err)
		}
		*c = Customization{Name: strings.TrimSpace(name), PriceAdjustment: decimal.Zero}
		return nil
	}

	var wire customizationWire
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return fmt.Errorf("customization: %w", err)
	}

	out := Customization{Name: strings.TrimSpace(wire.Name), PriceAdjustment: decimal.Zero}
	switch {
	case wire.PriceAdjustment.Valid:
		out.PriceAdjustment = wire.PriceAdjustment.Decimal
	case wire.Price.Valid:
		out.PriceAdjustment = wire.Price.Decimal
	}
	out.Group = wire.Group
	if out.Group == "" {
		out.Group = wire.GroupName
	}
	*c = out
	return nil
}

// Customizations is stored as a jsonb array of canonical entries.
type Customizations []Customization

// Total sums every price adjustment.
func (cs Customizations) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		total = total.Add(c.PriceAdjustment)
	}
	return total
}

// Names lists customization names in order, skipping blanks.
func (cs Customizations) Names() []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.Name != "" {
			out = append(out, c.Name)
		}
	}
	return out
}

func (cs *Customizations) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*cs = Customizations{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("Customizations: unsupported Scan type %T", src)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		*cs = Customizations{}
		return nil
	}
	var out Customizations
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("Customizations: %w", err)
	}
	*cs = out
	return nil
}

func (cs Customizations) Value() (driver.Value, error) {
	if cs == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]Customization(cs))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
