package enums

import "fmt"

// TabStatus tracks a customer tab (split-billing sub-ledger).
type TabStatus string

const (
	TabStatusActive    TabStatus = "active"
	TabStatusPaid      TabStatus = "paid"
	TabStatusCancelled TabStatus = "cancelled"
)

var validTabStatuses = []TabStatus{TabStatusActive, TabStatusPaid, TabStatusCancelled}

func (s TabStatus) String() string {
	return string(s)
}

func (s TabStatus) IsValid() bool {
	for _, candidate := range validTabStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseTabStatus(value string) (TabStatus, error) {
	for _, candidate := range validTabStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tab status %q", value)
}
