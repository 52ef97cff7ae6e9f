package yfs

// searchDirectory looks for name among dir's populated entries, returning
// the child inum or 0 if not found.
func (s *Server) searchDirectory(dir Inode, name string) (int32, error) {
	count := int(dir.Size) / dirEntryOnDiskSize

	var indirectBlock []byte
	if dir.Size > int32(s.layout.MaxDirectSize) && dir.Indirect != 0 {
		var err error
		indirectBlock, err = s.blocks.Get(int(dir.Indirect))
		if err != nil {
			return 0, err
		}
	}

	for idx := 0; idx < count; idx++ {
		outer := idx / s.layout.DirPerBlock
		inner := idx % s.layout.DirPerBlock

		var blockNum int32
		if outer < NumDirect {
			blockNum = dir.Direct[outer]
		} else if indirectBlock != nil {
			blockNum = readIndirectEntry(indirectBlock, outer-NumDirect)
		}
		if blockNum == 0 {
			continue
		}

		block, err := s.blocks.Get(int(blockNum))
		if err != nil {
			return 0, err
		}

		e := decodeDirEntryAt(block, inner)
		if e.vacant() {
			continue
		}
		if wireNamesEqual(e.Name, name) {
			return e.Inum, nil
		}
	}

	return 0, nil
}

func wireNamesEqual(field [DirNameLen]byte, name string) bool {
	for i, b := range field {
		if b == 0 {
			return string(field[:i]) == name
		}
	}
	return string(field[:]) == name
}

// registerResult reports whether register changed the parent's on-disk
// size (an "append") or only rewrote a vacant slot in place.
type registerResult int

const (
	parentNotModified registerResult = iota
	parentModified
)

// registerDirectory adds an entry for newInum/name to dir, reusing a
// vacant slot if one exists; otherwise it appends, growing direct blocks,
// then allocating the indirect block, then growing indirect blocks as
// needed. dir is the caller's copy; the updated copy is returned along
// with whether its Size changed.
func (s *Server) registerDirectory(dirInum int, dir Inode, newInum int32, name string) (Inode, registerResult, error) {
	count := int(dir.Size) / dirEntryOnDiskSize

	var indirectBlock []byte
	if dir.Size > int32(s.layout.MaxDirectSize) && dir.Indirect != 0 {
		var err error
		indirectBlock, err = s.blocks.Get(int(dir.Indirect))
		if err != nil {
			return dir, parentNotModified, err
		}
	}

	// First pass: look for a vacant slot to reuse.
	for idx := 0; idx < count; idx++ {
		outer := idx / s.layout.DirPerBlock
		inner := idx % s.layout.DirPerBlock

		var blockNum int32
		if outer < NumDirect {
			blockNum = dir.Direct[outer]
		} else if indirectBlock != nil {
			blockNum = readIndirectEntry(indirectBlock, outer-NumDirect)
		}
		if blockNum == 0 {
			continue
		}

		block, err := s.blocks.Get(int(blockNum))
		if err != nil {
			return dir, parentNotModified, err
		}
		if decodeDirEntryAt(block, inner).vacant() {
			encodeDirEntryAt(block, inner, newDirEntry(newInum, name))
			s.blocks.MarkDirty(int(blockNum))
			return dir, parentNotModified, nil
		}
	}

	// No vacant slot: append. idx is the new entry's index.
	idx := count
	outer := idx / s.layout.DirPerBlock
	inner := idx % s.layout.DirPerBlock

	// Crossing into the indirect region for the first time.
	if int32(dir.Size) == int32(s.layout.MaxDirectSize) && dir.Indirect == 0 {
		n, err := s.allocateBlock()
		if err != nil {
			return dir, parentNotModified, err
		}
		dir.Indirect = int32(n)
	}

	var blockNum int32
	if outer < NumDirect {
		blockNum = dir.Direct[outer]
	} else {
		if dir.Indirect == 0 {
			n, err := s.allocateBlock()
			if err != nil {
				return dir, parentNotModified, err
			}
			dir.Indirect = int32(n)
		}
		indirectBlock, err := s.blocks.Get(int(dir.Indirect))
		if err != nil {
			return dir, parentNotModified, err
		}
		blockNum = readIndirectEntry(indirectBlock, outer-NumDirect)
	}

	// A fresh data block is needed whenever idx falls at the start of a
	// block that hasn't been allocated yet.
	if inner == 0 && blockNum == 0 {
		n, err := s.allocateBlock()
		if err != nil {
			return dir, parentNotModified, err
		}
		blockNum = int32(n)

		if outer < NumDirect {
			dir.Direct[outer] = blockNum
		} else {
			indirectBlock, err := s.blocks.Get(int(dir.Indirect))
			if err != nil {
				return dir, parentNotModified, err
			}
			writeIndirectEntry(indirectBlock, outer-NumDirect, blockNum)
			s.blocks.MarkDirty(int(dir.Indirect))
		}
	}

	block, err := s.blocks.Get(int(blockNum))
	if err != nil {
		return dir, parentNotModified, err
	}
	encodeDirEntryAt(block, inner, newDirEntry(newInum, name))
	s.blocks.MarkDirty(int(blockNum))

	dir.Size += int32(dirEntryOnDiskSize)
	return dir, parentModified, nil
}

// unregisterDirectory zeroes the first slot matching targetInum. It
// returns false if no such entry existed.
func (s *Server) unregisterDirectory(dir Inode, targetInum int32) (bool, error) {
	count := int(dir.Size) / dirEntryOnDiskSize

	var indirectBlock []byte
	if dir.Size > int32(s.layout.MaxDirectSize) && dir.Indirect != 0 {
		var err error
		indirectBlock, err = s.blocks.Get(int(dir.Indirect))
		if err != nil {
			return false, err
		}
	}

	for idx := 0; idx < count; idx++ {
		outer := idx / s.layout.DirPerBlock
		inner := idx % s.layout.DirPerBlock

		var blockNum int32
		if outer < NumDirect {
			blockNum = dir.Direct[outer]
		} else if indirectBlock != nil {
			blockNum = readIndirectEntry(indirectBlock, outer-NumDirect)
		}
		if blockNum == 0 {
			continue
		}

		block, err := s.blocks.Get(int(blockNum))
		if err != nil {
			return false, err
		}
		e := decodeDirEntryAt(block, inner)
		if e.vacant() || e.Inum != targetInum {
			continue
		}

		encodeDirEntryAt(block, inner, DirEntry{})
		s.blocks.MarkDirty(int(blockNum))
		return true, nil
	}

	return false, nil
}

// cleanDirectory trims trailing vacant slots from dir, starting at the
// last entry and stopping at the first non-vacant one (never before index
// 1, preserving "."). Whole trailing data blocks that become unused are
// returned to the free-block buffer; if the first freed block sits at
// position NumDirect, the indirect block itself is freed too.
func (s *Server) cleanDirectory(dir Inode) (Inode, error) {
	count := int(dir.Size) / dirEntryOnDiskSize

	var indirectBlock []byte
	loadIndirect := func() ([]byte, error) {
		if indirectBlock == nil && dir.Indirect != 0 {
			var err error
			indirectBlock, err = s.blocks.Get(int(dir.Indirect))
			if err != nil {
				return nil, err
			}
		}
		return indirectBlock, nil
	}

	trimmed := 0
	for idx := count - 1; idx >= 1; idx-- {
		outer := idx / s.layout.DirPerBlock
		inner := idx % s.layout.DirPerBlock

		var blockNum int32
		if outer < NumDirect {
			blockNum = dir.Direct[outer]
		} else {
			ib, err := loadIndirect()
			if err != nil {
				return dir, err
			}
			if ib != nil {
				blockNum = readIndirectEntry(ib, outer-NumDirect)
			}
		}

		if blockNum != 0 {
			block, err := s.blocks.Get(int(blockNum))
			if err != nil {
				return dir, err
			}
			if !decodeDirEntryAt(block, inner).vacant() {
				break
			}
		}

		trimmed++

		// If this was the last entry in its block and the rest of the block
		// (indices < inner within this outer) are all vacant too, free the
		// block once we reach its first slot.
		if inner == 0 && blockNum != 0 {
			s.freeBlock(blockNum)
			if outer < NumDirect {
				dir.Direct[outer] = 0
			} else {
				ib, err := loadIndirect()
				if err != nil {
					return dir, err
				}
				writeIndirectEntry(ib, outer-NumDirect, 0)
				s.blocks.MarkDirty(int(dir.Indirect))
			}
			if outer == NumDirect && dir.Indirect != 0 {
				s.freeBlock(dir.Indirect)
				dir.Indirect = 0
			}
		}
	}

	dir.Size -= int32(trimmed) * int32(dirEntryOnDiskSize)
	return dir, nil
}
