// Package yfs implements the core of the file system server: the on-disk
// data model, the two-level write-back LRU cache, free-list construction,
// directory and file operations, and the request dispatcher.
package yfs

import (
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/yfsfs/yfsd/internal/cache"
	"github.com/yfsfs/yfsd/internal/disk"
)

// Default cache capacities. Overridable via ServerConfig for tests that
// want to exercise eviction without allocating a large disk image.
const (
	DefaultBlockCacheSize = 64
	DefaultInodeCacheSize = 32
)

// Server bundles every piece of mutable server state into one context
// value, per the design ("bind into one server context value that every
// handler receives; no ambient globals").
type Server struct {
	// mu guards every field below. Acquired for the full duration of one
	// request's processing. There is never contention under the design
	// single-threaded model; the InvariantMutex wrapper runs checkInvariants
	// after release under the `invariants` build tag and is a no-op otherwise.
	mu syncutil.InvariantMutex

	disk   *disk.Disk
	layout Layout

	blocks *cache.BlockCache
	inodes *InodeCache

	freeInodes *ringBuffer
	freeBlocks *ringBuffer

	clock timeutil.Clock

	logger *debugLogger
}

// ServerConfig controls cache sizing; the zero value selects the defaults.
type ServerConfig struct {
	BlockCacheSize int
	InodeCacheSize int
}

// Boot opens an already-formatted disk image, reads its header, builds the
// free-inode and free-block lists by scanning every inode,
// and returns a ready-to-serve Server.
func Boot(d *disk.Disk, cfg ServerConfig) (s *Server, err error) {
	headerBuf, err := d.ReadSector(HeaderSector)
	if err != nil {
		return nil, fmt.Errorf("yfs: read header: %w", err)
	}
	header := DecodeHeader(headerBuf, d.SectorSize())

	layout, err := NewLayout(header)
	if err != nil {
		return nil, err
	}

	blockCacheSize := cfg.BlockCacheSize
	if blockCacheSize == 0 {
		blockCacheSize = DefaultBlockCacheSize
	}
	inodeCacheSize := cfg.InodeCacheSize
	if inodeCacheSize == 0 {
		inodeCacheSize = DefaultInodeCacheSize
	}

	s = &Server{
		disk:   d,
		layout: layout,
		clock:  timeutil.RealClock(),
		logger: newDebugLogger(),
	}
	s.blocks = cache.NewBlockCache(d, blockCacheSize)
	s.inodes = NewInodeCache(s.blocks, layout, inodeCacheSize)

	s.freeInodes, s.freeBlocks, err = buildFreeLists(s.inodes, layout)
	if err != nil {
		return nil, fmt.Errorf("yfs: build free lists: %w", err)
	}

	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)

	s.logger.Printf("booted: %d inodes, %d blocks, %d free inodes, %d free blocks",
		layout.NumInodes, layout.NumBlocks, s.freeInodes.Len(), s.freeBlocks.Len())

	return s, nil
}

// Layout exposes the server's derived layout constants, e.g. for clients
// computing MaxFileSize locally.
func (s *Server) Layout() Layout { return s.layout }

// FreeInodeCount and FreeBlockCount report the current size of the
// free-inode and free-block buffers, mainly for tests checking that a
// create/delete sequence returns the disk to its prior occupancy.
func (s *Server) FreeInodeCount() int { return s.freeInodes.Len() }
func (s *Server) FreeBlockCount() int { return s.freeBlocks.Len() }

// allocateBlock pops a free block number, zeroes it in the block cache,
// and marks it dirty. Callers must have already checked there is a free
// block available.
func (s *Server) allocateBlock() (int, error) {
	n, ok := s.freeBlocks.Pop()
	if !ok {
		return 0, fmt.Errorf("yfs: allocateBlock: free block buffer unexpectedly empty")
	}

	buf, err := s.blocks.Get(n)
	if err != nil {
		return 0, err
	}
	for i := range buf {
		buf[i] = 0
	}
	s.blocks.MarkDirty(n)

	return n, nil
}

// freeBlock returns a block to the free-block buffer. It does not zero the
// block; the next allocation will.
func (s *Server) freeBlock(n int32) {
	if n != 0 {
		s.freeBlocks.Push(int(n))
	}
}
