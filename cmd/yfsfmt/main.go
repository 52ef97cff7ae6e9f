// Command yfsfmt creates a fresh yfs disk image: a zeroed boot sector, a
// header sector, an empty inode table with the root directory preallocated at inode 1, and
// the remaining sectors left for file data.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/yfsfs/yfsd/internal/disk"
	"github.com/yfsfs/yfsd/internal/yfs"
)

func main() {
	path := flag.String("image", "", "path to the disk image to create")
	numInodes := flag.Int("inodes", 512, "number of inodes")
	numBlocks := flag.Int("blocks", 4096, "number of sectors in the image")
	sectorSize := flag.Int("sector-size", 512, "sector size in bytes")
	flag.Parse()

	if *path == "" {
		log.Fatal("yfsfmt: -image is required")
	}

	if err := format(*path, *numInodes, *numBlocks, *sectorSize); err != nil {
		log.Fatalf("yfsfmt: %v", err)
	}
}

func format(path string, numInodes, numBlocks, sectorSize int) error {
	d, err := disk.Format(path, sectorSize, numBlocks)
	if err != nil {
		return err
	}
	defer d.Close()

	header := yfs.Header{NumInodes: numInodes, NumBlocks: numBlocks, SectorSize: sectorSize}
	layout, err := yfs.NewLayout(header)
	if err != nil {
		return err
	}

	if err := d.WriteSector(yfs.HeaderSector-1, make([]byte, sectorSize)); err != nil {
		return err
	}
	if err := d.WriteSector(yfs.HeaderSector, yfs.EncodeHeader(header, sectorSize)); err != nil {
		return err
	}

	for b := yfs.HeaderSector + 1; b < layout.FirstDataBlock; b++ {
		if err := d.WriteSector(b, make([]byte, sectorSize)); err != nil {
			return err
		}
	}

	if err := writeRootInode(d, layout); err != nil {
		return err
	}

	for b := layout.FirstDataBlock + 1; b < numBlocks; b++ {
		if err := d.WriteSector(b, make([]byte, sectorSize)); err != nil {
			return err
		}
	}

	fmt.Printf("yfsfmt: formatted %s: %d inodes, %d blocks, %d-byte sectors\n", path, numInodes, numBlocks, sectorSize)
	return d.Sync()
}

// writeRootInode sets up the root directory at inode 1 with "." and ".."
// both pointing at itself, occupying the first data block.
func writeRootInode(d *disk.Disk, layout yfs.Layout) error {
	rootBlock := layout.FirstDataBlock
	block := make([]byte, layout.SectorSize)
	yfs.EncodeRootDirBlock(block, yfs.RootInum)
	if err := d.WriteSector(rootBlock, block); err != nil {
		return err
	}

	inodeBlock, offset := layout.InodeBlockAndOffset(yfs.RootInum)
	b, err := d.ReadSector(inodeBlock)
	if err != nil {
		return err
	}
	yfs.EncodeRootInode(b, offset, int32(rootBlock), layout.SectorSize)
	return d.WriteSector(inodeBlock, b)
}
