// Package redo defines the interface to the external WAL redo
// executor: the collaborator that applies a stack of WAL records onto
// a base page image to produce the requested page (spec §1, §4.1).
// Decoding WAL records and running Postgres's own redo routines is
// explicitly out of scope for this module; callers supply a Manager
// implementation (typically a pooled subprocess talking the Postgres
// wire protocol, as the pageserver this module is modeled on does),
// and the timeline read path treats it as an opaque, fallible
// dependency.
package redo

import (
	"context"
	"errors"

	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/value"
)

// ErrNotImplemented is returned by Stub, the zero-value Manager used in
// tests and in configurations that never expect a read to require
// redo (e.g. image-only workloads).
var ErrNotImplemented = errors.New("redo: manager not configured")

// Manager applies a base image plus a record stack (oldest first) and
// returns the reconstructed page. Implementations must be safe for
// concurrent use from multiple timelines; pooling and process
// lifecycle are the implementation's concern, not the caller's.
type Manager interface {
	// Apply reconstructs the page at k as of the LSN implied by the
	// newest record in records. state.BaseImage may be nil, in which
	// case records must fully determine the page (a valid Postgres
	// WAL stream never does this for a non-init page, but the
	// interface does not assume that invariant).
	Apply(ctx context.Context, k key.Key, state value.ReconstructState) ([]byte, error)
}

// Stub is a Manager that returns the base image unchanged for
// image-only reads (state.Terminated() with no records) and fails with
// ErrNotImplemented for everything else, for wiring call sites before a
// real redo executor is plugged in.
type Stub struct{}

// Apply implements Manager.
func (Stub) Apply(ctx context.Context, k key.Key, state value.ReconstructState) ([]byte, error) {
	if state.Terminated() && len(state.RecordsNewest) == 0 {
		return state.BaseImage, nil
	}
	return nil, ErrNotImplemented
}

var _ Manager = Stub{}

// Request bundles the key, read LSN and reconstruct state of one redo
// call, for implementations that batch or log requests. The timeline
// read path calls Manager.Apply directly and does not build one.
type Request struct {
	Key   key.Key
	Lsn   lsn.Lsn
	State value.ReconstructState
}
