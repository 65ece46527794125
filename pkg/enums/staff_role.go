package enums

import (
	"fmt"
	"strings"
)

// StaffRole is the role carried in a staff bearer token.
type StaffRole string

const (
	StaffRoleServer  StaffRole = "server"
	StaffRoleKitchen StaffRole = "kitchen"
	StaffRoleManager StaffRole = "manager"
	// StaffRoleDevice identifies a table-side terminal rather than a person.
	StaffRoleDevice StaffRole = "device"
)

func (r StaffRole) IsValid() bool {
	switch r {
	case StaffRoleServer, StaffRoleKitchen, StaffRoleManager, StaffRoleDevice:
		return true
	}
	return false
}

func ParseStaffRole(value string) (StaffRole, error) {
	r := StaffRole(strings.ToLower(strings.TrimSpace(value)))
	if r.IsValid() {
		return r, nil
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
