package yfs

import (
	"encoding/binary"

	"github.com/yfsfs/yfsd/internal/wire"
)

// DirEntry is one slot of a directory's data: {inum, name}. Inum == 0
// means the slot is vacant.
type DirEntry struct {
	Inum int32
	Name [DirNameLen]byte
}

func (e DirEntry) vacant() bool { return e.Inum == 0 }

func newDirEntry(inum int32, name string) DirEntry {
	return DirEntry{Inum: inum, Name: wire.EncodeName(name)}
}

func encodeDirEntryAt(block []byte, offset int, e DirEntry) {
	b := block[offset*dirEntryOnDiskSize:]
	binary.LittleEndian.PutUint32(b[0:4], uint32(e.Inum))
	copy(b[4:4+DirNameLen], e.Name[:])
}

func decodeDirEntryAt(block []byte, offset int) (e DirEntry) {
	b := block[offset*dirEntryOnDiskSize:]
	e.Inum = int32(binary.LittleEndian.Uint32(b[0:4]))
	copy(e.Name[:], b[4:4+DirNameLen])
	return
}
