package yfs_test

import (
	"os"
	"path/filepath"

	"github.com/kylelemons/godebug/pretty"

	"github.com/yfsfs/yfsd/internal/disk"
	"github.com/yfsfs/yfsd/internal/yfs"
)

// diffBytes renders a human-readable diff between two byte slices, empty
// when they're equal. Meant for the large read/write payloads in this
// package's tests, where a plain boolean equality check leaves a failure
// with nothing to look at.
func diffBytes(got, want []byte) string {
	return pretty.Compare(got, want)
}

// formatImage creates a fresh image the same way cmd/yfsfmt does and
// returns its path.
func formatImage(dir string, numInodes, numBlocks, sectorSize int) (string, error) {
	path := filepath.Join(dir, "image")

	d, err := disk.Format(path, sectorSize, numBlocks)
	if err != nil {
		return "", err
	}
	defer d.Close()

	header := yfs.Header{NumInodes: numInodes, NumBlocks: numBlocks, SectorSize: sectorSize}
	layout, err := yfs.NewLayout(header)
	if err != nil {
		return "", err
	}

	if err := d.WriteSector(yfs.BootSector, make([]byte, sectorSize)); err != nil {
		return "", err
	}
	if err := d.WriteSector(yfs.HeaderSector, yfs.EncodeHeader(header, sectorSize)); err != nil {
		return "", err
	}
	for b := yfs.HeaderSector + 1; b < layout.FirstDataBlock; b++ {
		if err := d.WriteSector(b, make([]byte, sectorSize)); err != nil {
			return "", err
		}
	}

	rootBlock := layout.FirstDataBlock
	block := make([]byte, sectorSize)
	yfs.EncodeRootDirBlock(block, yfs.RootInum)
	if err := d.WriteSector(rootBlock, block); err != nil {
		return "", err
	}

	inodeBlock, offset := layout.InodeBlockAndOffset(yfs.RootInum)
	b, err := d.ReadSector(inodeBlock)
	if err != nil {
		return "", err
	}
	yfs.EncodeRootInode(b, offset, int32(rootBlock), sectorSize)
	if err := d.WriteSector(inodeBlock, b); err != nil {
		return "", err
	}

	for blk := rootBlock + 1; blk < numBlocks; blk++ {
		if err := d.WriteSector(blk, make([]byte, sectorSize)); err != nil {
			return "", err
		}
	}

	return path, d.Sync()
}

// bootTestServer formats a small image in a fresh temp directory and boots
// a Server against it.
func bootTestServer(numInodes, numBlocks, sectorSize int) (*yfs.Server, func(), error) {
	s, _, cleanup, err := bootTestServerAt(numInodes, numBlocks, sectorSize)
	return s, cleanup, err
}

// bootTestServerAt is bootTestServer plus the image's path and sector size,
// for tests that need to close and reopen the same image.
func bootTestServerAt(numInodes, numBlocks, sectorSize int) (*yfs.Server, string, func(), error) {
	dir, err := os.MkdirTemp("", "yfs-test")
	if err != nil {
		return nil, "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path, err := formatImage(dir, numInodes, numBlocks, sectorSize)
	if err != nil {
		cleanup()
		return nil, "", nil, err
	}

	d, err := disk.Open(path, sectorSize)
	if err != nil {
		cleanup()
		return nil, "", nil, err
	}

	s, err := yfs.Boot(d, yfs.ServerConfig{})
	if err != nil {
		d.Close()
		cleanup()
		return nil, "", nil, err
	}

	return s, path, func() {
		d.Close()
		cleanup()
	}, nil
}

// reopenServer opens a fresh disk handle on an already-formatted image and
// boots a second, independent Server over it, simulating a process restart.
// The caller's previous Server must already be shut down (the disk lock is
// exclusive).
func reopenServer(path string, sectorSize int) (*yfs.Server, func(), error) {
	d, err := disk.Open(path, sectorSize)
	if err != nil {
		return nil, nil, err
	}
	s, err := yfs.Boot(d, yfs.ServerConfig{})
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	return s, func() { d.Close() }, nil
}
