// Package layermap implements the in-memory index from (key, lsn) to
// the historic (delta or image) layer covering it, per spec §4.4. The
// map is organized as a segment index over LSN ranges — entries kept
// sorted by descending end LSN — plus a linear key-range probe within
// the LSN segment a candidate LSN falls into; since layers produced by
// flush/compaction form a small number of LSN generations in practice,
// this gives the "newest covering layer" search a binary-search entry
// point instead of scanning the whole historic set, while staying
// correct under the exact rectangle semantics the spec requires.
package layermap

import (
	"sort"
	"sync"
	"time"

	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/layer"
	"github.com/coredao-org/pageserver/pkg/lsn"

	"github.com/ethereum/go-ethereum/metrics"
)

var (
	searchTimer = metrics.NewRegisteredTimer("pageserver/layermap/search", nil)
	insertMeter = metrics.NewRegisteredMeter("pageserver/layermap/insert", nil)
	removeMeter = metrics.NewRegisteredMeter("pageserver/layermap/remove", nil)
)

// Entry pairs a historic layer with its descriptor for fast rectangle
// checks without re-deriving them from the layer interface.
type Entry struct {
	Descriptor layer.Descriptor
	Layer      layer.Layer
}

// Map is the per-timeline index over historic layers. It is guarded by
// a reader-writer lock: readers (point reads, enumeration) take shared
// access, while insert/remove (used by flush and by compaction's atomic
// swap) take exclusive access only for the duration of the mutation.
type Map struct {
	mu sync.RWMutex
	// entries is kept sorted by descending Descriptor.LsnHi so Search
	// can binary-search for the first layer ending at or below a given
	// LSN and scan only the newer layers before that point.
	entries []Entry
}

// New builds an empty layer map.
func New() *Map { return &Map{} }

// Insert adds layer l with descriptor d to the map. Safe to call
// concurrently with Search; excludes other Insert/Remove calls.
func (m *Map) Insert(d layer.Descriptor, l layer.Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(d, l)
	insertMeter.Mark(1)
}

func (m *Map) insertLocked(d layer.Descriptor, l layer.Layer) {
	e := Entry{Descriptor: d, Layer: l}
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Descriptor.LsnHi <= d.LsnHi })
	m.entries = append(m.entries, Entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
}

// Remove drops the entry whose descriptor matches d exactly (by file
// name). It is a no-op if no such entry is present.
func (m *Map) Remove(d layer.Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(d)
}

func (m *Map) removeLocked(d layer.Descriptor) {
	name := d.FileName()
	for i, e := range m.entries {
		if e.Descriptor.FileName() == name {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			removeMeter.Mark(1)
			return
		}
	}
}

// Swap atomically removes the layers in out and inserts the layers in
// in, under a single write-lock acquisition, satisfying the compaction
// commit step's "atomic swap" requirement (spec §4.5/§5): readers never
// observe a state with neither the old nor the new layers, or both.
func (m *Map) Swap(out []layer.Descriptor, in []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range out {
		m.removeLocked(d)
	}
	for _, e := range in {
		m.insertLocked(e.Descriptor, e.Layer)
	}
}

// Search returns the newest historic layer covering (k, at), or ok=false
// if none does. Ties at equal end LSN are broken by layer.
// TieBreakBetterThan (image beats delta).
func (m *Map) Search(k key.Key, at lsn.Lsn) (Entry, bool) {
	start := time.Now()
	defer func() { searchTimer.UpdateSince(start) }()

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Entries are sorted by descending LsnHi. A layer can only cover at
	// if its LsnHi is strictly greater than at (LsnHi is exclusive), so
	// every candidate lies in the prefix of the array before LsnHi
	// drops to at-or-below; binary search finds that cutoff.
	endIdx := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Descriptor.LsnHi <= at })

	var best Entry
	found := false
	for i := 0; i < endIdx; i++ {
		d := m.entries[i].Descriptor
		if !d.Keys.Contains(k) || !d.Rectangle().Lsns.Contains(at) {
			continue
		}
		if !found {
			best = m.entries[i]
			found = true
			continue
		}
		if betterCandidate(m.entries[i].Descriptor, best.Descriptor) {
			best = m.entries[i]
		}
	}
	return best, found
}

// betterCandidate reports whether candidate should replace current as
// the "newest" covering layer: a strictly larger end LSN wins outright;
// an equal end LSN falls back to the kind tie-break.
func betterCandidate(candidate, current layer.Descriptor) bool {
	if candidate.LsnHi != current.LsnHi {
		return candidate.LsnHi > current.LsnHi
	}
	return layer.TieBreakBetterThan(candidate.Kind, current.Kind)
}

// IterHistoricLayers calls fn for every historic layer in deterministic
// (descending end-LSN) order, for enumeration and dumps. fn must not
// call back into the map.
func (m *Map) IterHistoricLayers(fn func(Entry)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		fn(e)
	}
}

// Len reports the number of historic layers tracked.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// NextOpenLayerAt returns the LSN at which the next ephemeral layer
// should start: the end LSN of the newest historic layer, or fallback
// if the map is empty (the timeline's initdb_lsn, supplied by the
// caller since the map itself has no notion of it).
func (m *Map) NextOpenLayerAt(fallback lsn.Lsn) lsn.Lsn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return fallback
	}
	return m.entries[0].Descriptor.LsnHi
}
