package models

import "strings"

// TenantID identifies a marketplace tenant. Values are normalized once when
// they enter the system so queries never branch on representation.
type TenantID string

// ParseTenantID trims and lower-cases raw.
func ParseTenantID(raw string) TenantID {
	return TenantID(strings.ToLower(strings.TrimSpace(raw)))
}

func (t TenantID) String() string { return string(t) }

func (t TenantID) IsZero() bool { return t == "" }
