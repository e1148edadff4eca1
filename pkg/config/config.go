// Package config holds the per-tenant configuration overrides listed in
// spec §6, merged against process-level defaults. It intentionally does
// not parse CLI flags or config files (out of scope per spec §1); it is
// the ambient surface that remains once that front end is stripped
// away, in the same shape the teacher's own tenant/database config
// structs take (optional pointer overrides merged onto a defaults
// struct).
package config

import "time"

// TenantConfig is the fully resolved configuration for one tenant,
// after merging overrides onto process defaults.
type TenantConfig struct {
	CheckpointDistance                           uint64
	CheckpointTimeout                             time.Duration
	CompactionTargetSize                          uint64
	CompactionPeriod                              time.Duration
	CompactionThreshold                           int
	GCHorizon                                      uint64
	GCPeriod                                       time.Duration
	ImageCreationThreshold                        int
	PitrInterval                                   time.Duration
	WalreceiverConnectTimeout                      time.Duration
	LaggingWalTimeout                              time.Duration
	MaxLsnWalLag                                   uint64
	TraceReadRequests                             bool
	EvictionPolicy                                 string
	MinResidentSizeOverride                        uint64
	EvictionsLowResidenceDurationMetricThreshold  time.Duration
}

// Default returns the process-level defaults applied when a tenant has
// no override for a given field.
func Default() TenantConfig {
	return TenantConfig{
		CheckpointDistance:         256 << 20, // 256 MiB
		CheckpointTimeout:          10 * time.Minute,
		CompactionTargetSize:       128 << 20,
		CompactionPeriod:           20 * time.Second,
		CompactionThreshold:        10,
		GCHorizon:                  64 << 20,
		GCPeriod:                   1 * time.Minute,
		ImageCreationThreshold:     3,
		PitrInterval:               7 * 24 * time.Hour,
		WalreceiverConnectTimeout:  10 * time.Second,
		LaggingWalTimeout:          10 * time.Second,
		MaxLsnWalLag:               256 << 20,
		TraceReadRequests:          false,
		EvictionPolicy:             "layer-access-threshold",
		MinResidentSizeOverride:    0,
		EvictionsLowResidenceDurationMetricThreshold: 24 * time.Hour,
	}
}

// Override carries only the fields a tenant has explicitly set; nil
// fields fall back to the process default. Every field is a pointer, so
// a non-nil zero is a real override value (e.g. disabling compaction),
// mirroring the teacher's `*uint64`-style tenant conf overrides.
// WalreceiverConnectTimeout, LaggingWalTimeout, MaxLsnWalLag and
// EvictionsLowResidenceDurationMetricThreshold have no Override field:
// they always take the value from the base config passed to Merge.
type Override struct {
	CheckpointDistance      *uint64
	CheckpointTimeout       *time.Duration
	CompactionTargetSize    *uint64
	CompactionPeriod        *time.Duration
	CompactionThreshold     *int
	GCHorizon               *uint64
	GCPeriod                *time.Duration
	ImageCreationThreshold  *int
	PitrInterval            *time.Duration
	TraceReadRequests       *bool
	EvictionPolicy          *string
	MinResidentSizeOverride *uint64
}

// Merge applies o onto base, returning the resolved configuration.
func Merge(base TenantConfig, o Override) TenantConfig {
	out := base
	if o.CheckpointDistance != nil {
		out.CheckpointDistance = *o.CheckpointDistance
	}
	if o.CheckpointTimeout != nil {
		out.CheckpointTimeout = *o.CheckpointTimeout
	}
	if o.CompactionTargetSize != nil {
		out.CompactionTargetSize = *o.CompactionTargetSize
	}
	if o.CompactionPeriod != nil {
		out.CompactionPeriod = *o.CompactionPeriod
	}
	if o.CompactionThreshold != nil {
		out.CompactionThreshold = *o.CompactionThreshold
	}
	if o.GCHorizon != nil {
		out.GCHorizon = *o.GCHorizon
	}
	if o.GCPeriod != nil {
		out.GCPeriod = *o.GCPeriod
	}
	if o.ImageCreationThreshold != nil {
		out.ImageCreationThreshold = *o.ImageCreationThreshold
	}
	if o.PitrInterval != nil {
		out.PitrInterval = *o.PitrInterval
	}
	if o.TraceReadRequests != nil {
		out.TraceReadRequests = *o.TraceReadRequests
	}
	if o.EvictionPolicy != nil {
		out.EvictionPolicy = *o.EvictionPolicy
	}
	if o.MinResidentSizeOverride != nil {
		out.MinResidentSizeOverride = *o.MinResidentSizeOverride
	}
	return out
}
