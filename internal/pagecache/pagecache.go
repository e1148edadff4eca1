// Package pagecache implements the process-global page cache described
// in spec §5: a single cache shared across tenants, sized once at
// process start. It is a thin wrapper over fastcache, the same
// GC-friendly off-heap cache the teacher uses for clean trie nodes in
// triedb/pathdb's diskLayer.cleans.
package pagecache

import (
	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	hitMeter  = metrics.NewRegisteredMeter("pageserver/pagecache/hit", nil)
	missMeter = metrics.NewRegisteredMeter("pageserver/pagecache/miss", nil)
)

// Cache is the global, process-wide page cache.
type Cache struct {
	c *fastcache.Cache
}

// New allocates a cache of the given byte size. It is intended to be
// constructed once at process start and shared by every tenant.
func New(maxBytes int) *Cache {
	return &Cache{c: fastcache.New(maxBytes)}
}

// Key identifies a cached page body by its layer file name and the
// blob offset within it, since the same key/lsn can appear in at most
// one layer but the cache is shared across every open layer.
type Key struct {
	LayerName string
	Offset    int64
}

func (k Key) bytes() []byte {
	b := make([]byte, 0, len(k.LayerName)+8)
	b = append(b, k.LayerName...)
	b = append(b, byte(k.Offset), byte(k.Offset>>8), byte(k.Offset>>16), byte(k.Offset>>24),
		byte(k.Offset>>32), byte(k.Offset>>40), byte(k.Offset>>48), byte(k.Offset>>56))
	return b
}

// Get returns the cached bytes for k, if present.
func (c *Cache) Get(k Key) ([]byte, bool) {
	v := c.c.GetBig(nil, k.bytes())
	if len(v) == 0 {
		missMeter.Mark(1)
		return nil, false
	}
	hitMeter.Mark(1)
	return v, true
}

// Set stores v under k.
func (c *Cache) Set(k Key, v []byte) {
	c.c.SetBig(k.bytes(), v)
}

// Reset discards every cached entry.
func (c *Cache) Reset() { c.c.Reset() }
