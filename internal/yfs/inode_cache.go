package yfs

import (
	"github.com/yfsfs/yfsd/internal/cache"
)

// InodeCache is a fixed-capacity LRU of inode working copies keyed by
// inode number. It is layered on top of a BlockCache: a miss falls through
// to the containing block, and an eviction (or flush) of a dirty entry
// merges the inode back into its block and marks that block dirty. This
// lets many small inode mutations coalesce into a single block write.
type InodeCache struct {
	blocks *cache.BlockCache
	layout Layout
	lru    *cache.LRU[Inode]
}

// NewInodeCache creates an inode cache of the given capacity layered on
// top of blocks.
func NewInodeCache(blocks *cache.BlockCache, layout Layout, capacity int) *InodeCache {
	return &InodeCache{blocks: blocks, layout: layout, lru: cache.New[Inode](capacity)}
}

func (c *InodeCache) mergeIntoBlock(inum int, in Inode) {
	blockNum, offset := c.layout.InodeBlockAndOffset(inum)
	block, err := c.blocks.Get(blockNum)
	if err != nil {
		// The inode block must already exist on a formatted disk; a failure
		// here means the disk itself is broken, which we cannot recover from
		// inside a cache write-back.
		panic(err)
	}
	encodeInodeAt(block, offset, in)
	c.blocks.MarkDirty(blockNum)
}

// Get returns a copy of inode inum, reading through to the block cache on
// a miss. The containing block is never held past this call.
func (c *InodeCache) Get(inum int) (Inode, error) {
	if in, ok := c.lru.Get(inum); ok {
		return in, nil
	}

	blockNum, offset := c.layout.InodeBlockAndOffset(inum)
	block, err := c.blocks.Get(blockNum)
	if err != nil {
		return Inode{}, err
	}

	in := decodeInodeAt(block, offset)
	c.lru.Put(inum, in, c.writeBackOnEvict)
	return in, nil
}

// Put installs (or replaces) the working copy for inum, at MRU position,
// without marking it dirty. Use Set to also mark it dirty.
func (c *InodeCache) Put(inum int, in Inode) {
	c.lru.Put(inum, in, c.writeBackOnEvict)
}

// Set installs the working copy for inum and marks it dirty, mirroring the
// common "load, mutate, mark dirty" sequence used throughout the file and
// directory operations.
func (c *InodeCache) Set(inum int, in Inode) {
	c.lru.Put(inum, in, c.writeBackOnEvict)
	c.lru.MarkDirty(inum)
}

func (c *InodeCache) writeBackOnEvict(inum int, in Inode, dirty bool) {
	if dirty {
		c.mergeIntoBlock(inum, in)
	}
}

// FlushAll merges every dirty inode into its containing block (marking
// that block dirty), then flushes the block cache to disk.
func (c *InodeCache) FlushAll() error {
	c.lru.FlushAll(c.mergeIntoBlock)
	return c.blocks.FlushAll()
}
