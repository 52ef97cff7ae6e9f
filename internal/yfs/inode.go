package yfs

import "encoding/binary"

// InodeType is the type tag of an inode.
type InodeType int32

const (
	Free InodeType = iota
	Regular
	Directory
)

// Inode is the in-memory working copy of one on-disk inode record: type,
// link count, a monotone per-slot recycle counter, size in bytes, and
// direct + single-indirect block pointers. A pointer value of 0 means
// either "reserved/absent" (Indirect) or "hole" (an entry of Direct).
type Inode struct {
	Type     InodeType
	Nlink    int32
	Reuse    int32
	Size     int32
	Direct   [NumDirect]int32
	Indirect int32
}

// BlocksUsed returns the number of data blocks this inode's Size implies
// are allocated (ceil(Size/S)), the boundary used throughout the
// read/write/truncate algorithms.
func (in Inode) BlocksUsed(sectorSize int) int {
	if in.Size == 0 {
		return 0
	}
	return (int(in.Size) + sectorSize - 1) / sectorSize
}

// encodeInodeAt packs in into block[offset*inodeOnDiskSize:...].
func encodeInodeAt(block []byte, offset int, in Inode) {
	b := block[offset*inodeOnDiskSize:]
	binary.LittleEndian.PutUint32(b[0:4], uint32(in.Type))
	binary.LittleEndian.PutUint32(b[4:8], uint32(in.Nlink))
	binary.LittleEndian.PutUint32(b[8:12], uint32(in.Reuse))
	binary.LittleEndian.PutUint32(b[12:16], uint32(in.Size))
	o := 16
	for i := 0; i < NumDirect; i++ {
		binary.LittleEndian.PutUint32(b[o:o+4], uint32(in.Direct[i]))
		o += 4
	}
	binary.LittleEndian.PutUint32(b[o:o+4], uint32(in.Indirect))
}

// decodeInodeAt unpacks the inode stored at block[offset*inodeOnDiskSize:...].
func decodeInodeAt(block []byte, offset int) (in Inode) {
	b := block[offset*inodeOnDiskSize:]
	in.Type = InodeType(binary.LittleEndian.Uint32(b[0:4]))
	in.Nlink = int32(binary.LittleEndian.Uint32(b[4:8]))
	in.Reuse = int32(binary.LittleEndian.Uint32(b[8:12]))
	in.Size = int32(binary.LittleEndian.Uint32(b[12:16]))
	o := 16
	for i := 0; i < NumDirect; i++ {
		in.Direct[i] = int32(binary.LittleEndian.Uint32(b[o : o+4]))
		o += 4
	}
	in.Indirect = int32(binary.LittleEndian.Uint32(b[o : o+4]))
	return
}
