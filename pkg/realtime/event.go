package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dinein-backend/pkg/enums"
)

// ChangeEvent is one row change delivered to subscribers. New is empty for
// deletes and Old is empty for inserts.
type ChangeEvent struct {
	ID              uuid.UUID        `json:"id"`
	Table           string           `json:"table"`
	Type            enums.ChangeType `json:"type"`
	New             json.RawMessage  `json:"new,omitempty"`
	Old             json.RawMessage  `json:"old,omitempty"`
	CommitTimestamp time.Time        `json:"commit_timestamp"`
}

// Row returns the payload filters are evaluated against: the old row for
// deletes, the new row otherwise.
func (e ChangeEvent) Row() json.RawMessage {
	if e.Type == enums.ChangeDelete {
		return e.Old
	}
	return e.New
}

// DecodeNew unmarshals the new row into dst.
func (e ChangeEvent) DecodeNew(dst any) error {
	if len(e.New) == 0 {
		return fmt.Errorf("%s %s event has no new row", e.Table, e.Type)
	}
	return json.Unmarshal(e.New, dst)
}

// DecodeOld unmarshals the old row into dst.
func (e ChangeEvent) DecodeOld(dst any) error {
	if len(e.Old) == 0 {
		return fmt.Errorf("%s %s event has no old row", e.Table, e.Type)
	}
	return json.Unmarshal(e.Old, dst)
}

// Filter is an equality filter over one column. The zero Filter matches every row.
type Filter struct {
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Eq builds a column equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: fmt.Sprint(value)}
}

func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return "*"
	}
	return f.Column + "=eq." + f.Value
}

// Matches evaluates the filter against the event's row.
func (f Filter) Matches(e ChangeEvent) bool {
	if f.IsZero() {
		return true
	}
	row := e.Row()
	if len(row) == 0 {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return false
	}
	value, ok := fields[f.Column]
	if !ok || value == nil {
		return false
	}
	switch v := value.(type) {
	case float64:
		// json numbers decode as float64; table numbers are integral
		if v == float64(int64(v)) {
			return fmt.Sprint(int64(v)) == f.Value
		}
	}
	return fmt.Sprint(value) == f.Value
}
