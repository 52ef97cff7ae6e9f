package yfs

import (
	"encoding/binary"
	"fmt"

	"github.com/yfsfs/yfsd/internal/wire"
)

// Fixed parameters of the on-disk format.
const (
	NumDirect  = 12
	DirNameLen = wire.DirNameLen

	// HeaderSector is where fs_header and the inode table begin.
	HeaderSector = 1

	// BootSector is reserved and never allocated.
	BootSector = 0

	// RootInum is the pre-allocated root directory's inode number. Inode 0
	// is reserved, so the root is inode 1.
	RootInum = 1
)

// inodeOnDiskSize is the packed byte size of one inode record: type,
// nlink, reuse, size, NumDirect direct pointers, and the indirect pointer,
// all int32.
const inodeOnDiskSize = 4*4 + 4*NumDirect + 4

// dirEntryOnDiskSize is the packed byte size of one directory entry: a
// 4-byte inum followed by the DirNameLen-byte name field.
const dirEntryOnDiskSize = 4 + DirNameLen

// Header is the fs_header read once at startup from HeaderSector, and the
// layout constants it derives.
type Header struct {
	NumInodes int
	NumBlocks int
	SectorSize int
}

// Layout bundles a Header with the constants it derives.
type Layout struct {
	Header

	InodesPerBlock int
	DirPerBlock    int
	MaxDirectSize  int
	MaxIndirectSize int
	MaxFileSize    int

	// InodeBlocks is the number of sectors the inode table occupies.
	InodeBlocks int

	// FirstDataBlock is the first sector number available for file data,
	// immediately after the inode table.
	FirstDataBlock int
}

// NewLayout derives a Layout from a Header.
func NewLayout(h Header) (l Layout, err error) {
	if h.SectorSize <= 0 || h.NumInodes <= 0 || h.NumBlocks <= 0 {
		err = fmt.Errorf("yfs: invalid header %+v", h)
		return
	}

	l.Header = h
	l.InodesPerBlock = h.SectorSize / inodeOnDiskSize
	if l.InodesPerBlock == 0 {
		err = fmt.Errorf("yfs: sector size %d too small for an inode (%d bytes)", h.SectorSize, inodeOnDiskSize)
		return
	}
	l.DirPerBlock = h.SectorSize / dirEntryOnDiskSize
	l.MaxDirectSize = h.SectorSize * NumDirect
	l.MaxIndirectSize = h.SectorSize * (h.SectorSize / 4)
	l.MaxFileSize = l.MaxDirectSize + l.MaxIndirectSize

	l.InodeBlocks = (h.NumInodes + l.InodesPerBlock - 1) / l.InodesPerBlock
	l.FirstDataBlock = HeaderSector + 1 + l.InodeBlocks

	if l.FirstDataBlock >= h.NumBlocks {
		err = fmt.Errorf("yfs: %d inode blocks leave no room for data in a %d-block disk", l.InodeBlocks, h.NumBlocks)
		return
	}

	return
}

// InodeBlockAndOffset returns the sector holding inum, and its index
// within that sector's array of inodes. The inode table begins the sector
// after the header, which holds nothing else.
func (l Layout) InodeBlockAndOffset(inum int) (block, offset int) {
	block = HeaderSector + 1 + inum/l.InodesPerBlock
	offset = inum % l.InodesPerBlock
	return
}

// EncodeHeader writes h into the first bytes of a sector-sized buffer.
func EncodeHeader(h Header, sectorSize int) []byte {
	buf := make([]byte, sectorSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.NumInodes))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.NumBlocks))
	return buf
}

// DecodeHeader reads a Header out of sector 1's bytes.
func DecodeHeader(buf []byte, sectorSize int) Header {
	return Header{
		NumInodes:  int(binary.LittleEndian.Uint32(buf[0:4])),
		NumBlocks:  int(binary.LittleEndian.Uint32(buf[4:8])),
		SectorSize: sectorSize,
	}
}
