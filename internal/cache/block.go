package cache

import "github.com/yfsfs/yfsd/internal/disk"

// BlockCache is a fixed-capacity LRU of sector-sized buffers keyed by
// sector number, with write-back on eviction.
type BlockCache struct {
	disk *disk.Disk
	lru  *LRU[[]byte]
}

// NewBlockCache creates a block cache of the given capacity backed by d.
func NewBlockCache(d *disk.Disk, capacity int) *BlockCache {
	return &BlockCache{disk: d, lru: New[[]byte](capacity)}
}

// Get returns the buffer for sector n, reading it from disk on a miss and
// evicting (writing back if dirty) the least-recently-used entry if the
// cache is full. The returned slice is valid until the next call to Get
// that could trigger a new read on a full cache; callers must not retain
// it across such a call.
func (c *BlockCache) Get(n int) (buf []byte, err error) {
	if buf, ok := c.lru.Get(n); ok {
		return buf, nil
	}

	buf, err = c.disk.ReadSector(n)
	if err != nil {
		return nil, err
	}

	c.lru.Put(n, buf, c.writeBackOnEvict)
	return buf, nil
}

func (c *BlockCache) writeBackOnEvict(n int, buf []byte, dirty bool) {
	if dirty {
		c.disk.WriteSector(n, buf)
	}
}

// MarkDirty marks the cached entry for sector n dirty. The entry must
// already be present (i.e. obtained via Get).
func (c *BlockCache) MarkDirty(n int) {
	c.lru.MarkDirty(n)
}

// FlushAll writes back every dirty entry to disk, MRU to LRU order, and
// clears their dirty bits.
func (c *BlockCache) FlushAll() error {
	var firstErr error
	c.lru.FlushAll(func(n int, buf []byte) {
		if err := c.disk.WriteSector(n, buf); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// Len reports the number of cached sectors.
func (c *BlockCache) Len() int { return c.lru.Len() }

// Dirty reports whether sector n's cached copy is dirty.
func (c *BlockCache) Dirty(n int) bool { return c.lru.Dirty(n) }
