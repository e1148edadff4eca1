// Package ids defines the 128-bit tenant and timeline identifiers used
// throughout the storage layer (spec §3: "Tenant. Identified by a
// 128-bit id", "Timeline. Identified by a 128-bit id"). Both are plain
// UUIDs; they are given distinct Go types so a tenant id can never be
// passed where a timeline id is expected, the same defense-in-depth
// the teacher applies to its own hash-shaped identifiers (common.Hash,
// common.Address) being distinct named types over the same underlying
// array.
package ids

import "github.com/google/uuid"

// TenantID identifies a tenant.
type TenantID uuid.UUID

// TimelineID identifies a timeline within a tenant.
type TimelineID uuid.UUID

// NewTenantID generates a fresh random tenant id.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewTimelineID generates a fresh random timeline id.
func NewTimelineID() TimelineID { return TimelineID(uuid.New()) }

// String renders the id in canonical UUID form.
func (t TenantID) String() string { return uuid.UUID(t).String() }

// String renders the id in canonical UUID form.
func (t TimelineID) String() string { return uuid.UUID(t).String() }

// ParseTenantID parses a canonical UUID string.
func ParseTenantID(s string) (TenantID, error) {
	u, err := uuid.Parse(s)
	return TenantID(u), err
}

// ParseTimelineID parses a canonical UUID string.
func ParseTimelineID(s string) (TimelineID, error) {
	u, err := uuid.Parse(s)
	return TimelineID(u), err
}
