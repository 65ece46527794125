package enums

import (
	"fmt"
	"strings"
)

// ItemStatus is the kitchen progress of one order item.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusSent      ItemStatus = "SENT"
	ItemStatusPreparing ItemStatus = "PREPARING"
	ItemStatusReady     ItemStatus = "READY"
	ItemStatusServed    ItemStatus = "SERVED"
)

var itemStatusRank = map[ItemStatus]int{
	ItemStatusPending:   0,
	ItemStatusSent:      1,
	ItemStatusPreparing: 2,
	ItemStatusReady:     3,
	ItemStatusServed:    4,
}

func (s ItemStatus) String() string {
	return string(s)
}

func (s ItemStatus) IsValid() bool {
	_, ok := itemStatusRank[s]
	return ok
}

// Rank orders statuses along the kitchen flow; unknown values rank -1.
func (s ItemStatus) Rank() int {
	if rank, ok := itemStatusRank[s]; ok {
		return rank
	}
	return -1
}

// CanAdvanceTo reports whether next is strictly further along the flow.
func (s ItemStatus) CanAdvanceTo(next ItemStatus) bool {
	return next.IsValid() && next.Rank() > s.Rank()
}

func ParseItemStatus(value string) (ItemStatus, error) {
	normalized := ItemStatus(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid item status %q", value)
}
