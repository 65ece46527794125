package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// IntArray stores table numbers as a postgres int[] literal.
type IntArray []int

func (a *IntArray) Scan(src any) error {
	if src == nil {
		*a = IntArray{}
		return nil
	}
	switch v := src.(type) {
	case string:
		return a.parse(v)
	case []byte:
		return a.parse(string(v))
	default:
		return fmt.Errorf("IntArray: unsupported Scan type %T", src)
	}
}

func (a IntArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, len(a))
	for _, n := range a {
		parts = append(parts, strconv.Itoa(n))
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func (a *IntArray) parse(s string) error {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if strings.TrimSpace(s) == "" {
		*a = IntArray{}
		return nil
	}
	raw := strings.Split(s, ",")
	out := make(IntArray, 0, len(raw))
	for _, r := range raw {
		n, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return fmt.Errorf("IntArray: parse %q: %w", r, err)
		}
		out = append(out, n)
	}
	*a = out
	return nil
}

func (a IntArray) Contains(n int) bool {
	for _, v := range a {
		if v == n {
			return true
		}
	}
	return false
}

// Sorted returns an ascending copy.
func (a IntArray) Sorted() IntArray {
	out := append(IntArray(nil), a...)
	sort.Ints(out)
	return out
}
