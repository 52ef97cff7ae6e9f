package yfs

import "fmt"

// FileRecord is the {inum, type, size, nlink, reuse} tuple returned by
// GetFile, SearchFile, CreateFile and CreateDir.
type FileRecord struct {
	Inum  int32
	Type  InodeType
	Size  int32
	Nlink int32
	Reuse int32
}

func recordOf(inum int, in Inode) FileRecord {
	return FileRecord{Inum: int32(inum), Type: in.Type, Size: in.Size, Nlink: in.Nlink, Reuse: in.Reuse}
}

// createFileInode recycles inode newInum into a fresh REGULAR or
// DIRECTORY inode, bumping its reuse counter. For a directory it also
// allocates the data block holding "." and "..".
func (s *Server) createFileInode(newInum, parentInum int, typ InodeType) (Inode, error) {
	in, err := s.inodes.Get(newInum)
	if err != nil {
		return Inode{}, err
	}

	in.Type = typ
	in.Size = 0
	in.Nlink = 0
	in.Reuse++
	in.Direct = [NumDirect]int32{}
	in.Indirect = 0

	if typ == Directory {
		blockNum, err := s.allocateBlock()
		if err != nil {
			return Inode{}, err
		}
		block, err := s.blocks.Get(blockNum)
		if err != nil {
			return Inode{}, err
		}
		encodeDirEntryAt(block, 0, newDirEntry(int32(newInum), "."))
		encodeDirEntryAt(block, 1, newDirEntry(int32(parentInum), ".."))
		s.blocks.MarkDirty(blockNum)

		in.Direct[0] = int32(blockNum)
		in.Size = 2 * int32(dirEntryOnDiskSize)
		in.Nlink = 1
	}

	s.inodes.Set(newInum, in)
	return in, nil
}

// truncateFileInode frees every data block reachable from targetInum and
// resets its size to zero.
func (s *Server) truncateFileInode(targetInum int) (Inode, error) {
	in, err := s.inodes.Get(targetInum)
	if err != nil {
		return Inode{}, err
	}

	used := in.BlocksUsed(s.layout.SectorSize)
	direct := used
	if direct > NumDirect {
		direct = NumDirect
	}
	for i := 0; i < direct; i++ {
		s.freeBlock(in.Direct[i])
		in.Direct[i] = 0
	}

	if in.Indirect != 0 {
		if used > NumDirect {
			ib, gerr := s.blocks.Get(int(in.Indirect))
			if gerr != nil {
				return Inode{}, gerr
			}
			for i := 0; i < used-NumDirect; i++ {
				s.freeBlock(readIndirectEntry(ib, i))
			}
		}
		s.freeBlock(in.Indirect)
		in.Indirect = 0
	}

	in.Size = 0
	s.inodes.Set(targetInum, in)
	return in, nil
}

// SearchFile looks up name within parentInum's directory. ok is false if
// parentInum is not a directory; rec.Inum is 0 if no such entry exists.
func (s *Server) SearchFile(parentInum int, name string) (rec FileRecord, ok bool, err error) {
	parent, err := s.inodes.Get(parentInum)
	if err != nil {
		return FileRecord{}, false, err
	}
	if parent.Type != Directory {
		return FileRecord{}, false, nil
	}

	childInum, err := s.searchDirectory(parent, name)
	if err != nil {
		return FileRecord{}, true, err
	}
	if childInum == 0 {
		return FileRecord{}, true, nil
	}

	child, err := s.inodes.Get(int(childInum))
	if err != nil {
		return FileRecord{}, true, err
	}
	return recordOf(int(childInum), child), true, nil
}

// GetFile returns the current record for inum.
func (s *Server) GetFile(inum int) (FileRecord, error) {
	in, err := s.inodes.Get(inum)
	if err != nil {
		return FileRecord{}, err
	}
	return recordOf(inum, in), nil
}

// createEntry implements the shared body of CreateFile and CreateDir: the
// only difference between the two opcodes is the type of inode created.
func (s *Server) createEntry(parentInum int, name string, typ InodeType) (rec FileRecord, errCode int, err error) {
	parent, err := s.inodes.Get(parentInum)
	if err != nil {
		return
	}
	if parent.Type != Directory {
		return FileRecord{}, ErrCreateParentNotDir, nil
	}
	if parent.Size >= int32(s.layout.MaxFileSize) {
		return FileRecord{}, ErrCreateParentFull, nil
	}

	existingInum, err := s.searchDirectory(parent, name)
	if err != nil {
		return
	}

	if existingInum != 0 {
		existing, gerr := s.inodes.Get(int(existingInum))
		if gerr != nil {
			err = gerr
			return
		}
		if existing.Type == Directory {
			return FileRecord{}, ErrCreateParentNotDir, nil
		}

		existing, err = s.truncateFileInode(int(existingInum))
		if err != nil {
			return
		}
		return recordOf(int(existingInum), existing), 0, nil
	}

	if s.freeInodes.Len() == 0 {
		return FileRecord{}, ErrCreateNoFreeInode, nil
	}

	// Registering the new name in the parent may need up to two blocks (a
	// freshly grown data block, plus the indirect block itself the first
	// time the parent grows past its direct blocks); a new directory needs
	// one more for its own data block.
	blocksNeeded := 2
	if typ == Directory {
		blocksNeeded = 3
	}
	if s.freeBlocks.Len() < blocksNeeded {
		return FileRecord{}, ErrCreateNotEnoughBlocks, nil
	}

	newInumVal, ok := s.freeInodes.Pop()
	if !ok {
		return FileRecord{}, ErrCreateNoFreeInode, nil
	}

	child, err := s.createFileInode(newInumVal, parentInum, typ)
	if err != nil {
		return
	}

	if typ == Directory {
		parent.Nlink++
	}

	parent, result, err := s.registerDirectory(parentInum, parent, int32(newInumVal), name)
	if err != nil {
		return
	}
	_ = result
	s.inodes.Set(parentInum, parent)

	child.Nlink++
	s.inodes.Set(newInumVal, child)

	return recordOf(newInumVal, child), 0, nil
}

// CreateFile implements the CREATE_FILE opcode.
func (s *Server) CreateFile(parentInum int, name string) (FileRecord, int, error) {
	return s.createEntry(parentInum, name, Regular)
}

// CreateDir implements the CREATE_DIR opcode.
func (s *Server) CreateDir(parentInum int, name string) (FileRecord, int, error) {
	return s.createEntry(parentInum, name, Directory)
}

// ReadFile implements READ_FILE: copy up to size bytes starting at pos out
// of inum's contents, treating holes as zeros.
func (s *Server) ReadFile(inum int, pos, size int, reuse int32) (data []byte, errCode int, err error) {
	in, err := s.inodes.Get(inum)
	if err != nil {
		return nil, 0, err
	}

	if in.Reuse != reuse {
		return nil, ErrReadReuseMismatch, nil
	}
	if in.Type == Free {
		return nil, ErrReadInodeFree, nil
	}

	if pos >= int(in.Size) {
		return nil, 0, nil
	}
	if pos+size > int(in.Size) {
		size = int(in.Size) - pos
	}
	if size <= 0 {
		return nil, 0, nil
	}

	S := s.layout.SectorSize
	start := pos / S
	end := (pos + size) / S
	if (pos+size)%S == 0 {
		end--
	}

	var indirectBlock []byte
	if in.Size >= int32(s.layout.MaxDirectSize) && in.Indirect != 0 {
		indirectBlock, err = s.blocks.Get(int(in.Indirect))
		if err != nil {
			return nil, 0, err
		}
	}

	out := make([]byte, size)
	copied := 0
	zero := make([]byte, S)

	for outer := start; outer <= end; outer++ {
		var blockNum int32
		if outer < NumDirect {
			blockNum = in.Direct[outer]
		} else if indirectBlock != nil {
			blockNum = readIndirectEntry(indirectBlock, outer-NumDirect)
		}

		var src []byte
		if blockNum == 0 {
			src = zero
		} else {
			src, err = s.blocks.Get(int(blockNum))
			if err != nil {
				return nil, 0, err
			}
		}

		prefix := (pos + copied) % S
		copySize := S - prefix
		if outer == end {
			copySize = size - copied
		}

		n := copy(out[copied:copied+copySize], src[prefix:prefix+copySize])
		copied += n
	}

	return out, 0, nil
}

// WriteFile implements WRITE_FILE: write data at pos into inum's contents,
// filling holes and growing the file as needed.
func (s *Server) WriteFile(inum int, pos int, data []byte, reuse int32) (written int, errCode int, err error) {
	size := len(data)

	if pos+size > s.layout.MaxFileSize {
		return 0, ErrWritePastMaxSize, nil
	}

	in, err := s.inodes.Get(inum)
	if err != nil {
		return 0, 0, err
	}

	if in.Type != Regular {
		return 0, ErrWriteNotRegular, nil
	}
	if in.Reuse != reuse {
		return 0, ErrWriteReuseMismatch, nil
	}
	if size == 0 {
		return 0, 0, nil
	}

	S := s.layout.SectorSize
	start := pos / S
	end := (pos + size) / S
	if (pos+size)%S == 0 {
		end--
	}

	var oldIndirect []byte
	if end >= NumDirect && in.Indirect != 0 {
		if oldIndirect, err = s.blocks.Get(int(in.Indirect)); err != nil {
			return 0, 0, err
		}
	}

	extraBlocks := 0
	for outer := start; outer <= end; outer++ {
		if (outer < NumDirect && in.Direct[outer] == 0) ||
			(outer >= NumDirect && (oldIndirect == nil || readIndirectEntry(oldIndirect, outer-NumDirect) == 0)) {
			extraBlocks++
		}
	}
	if end >= NumDirect && in.Indirect == 0 {
		extraBlocks++
	}

	if s.freeBlocks.Len() < extraBlocks {
		return 0, ErrWriteNotEnoughBlocks, nil
	}

	// Allocation pass.
	if end >= NumDirect && in.Indirect == 0 {
		n, aerr := s.allocateBlock()
		if aerr != nil {
			return 0, 0, aerr
		}
		in.Indirect = int32(n)
	}

	for outer := start; outer <= end; outer++ {
		if outer < NumDirect {
			if in.Direct[outer] != 0 {
				continue
			}
			n, aerr := s.allocateBlock()
			if aerr != nil {
				return 0, 0, aerr
			}
			in.Direct[outer] = int32(n)
		} else {
			indirectBlock, gerr := s.blocks.Get(int(in.Indirect))
			if gerr != nil {
				return 0, 0, gerr
			}
			if readIndirectEntry(indirectBlock, outer-NumDirect) != 0 {
				continue
			}
			n, aerr := s.allocateBlock()
			if aerr != nil {
				return 0, 0, aerr
			}
			writeIndirectEntry(indirectBlock, outer-NumDirect, int32(n))
			s.blocks.MarkDirty(int(in.Indirect))
		}
	}

	// Copy pass.
	var indirectBlock []byte
	if in.Indirect != 0 {
		indirectBlock, err = s.blocks.Get(int(in.Indirect))
		if err != nil {
			return 0, 0, err
		}
	}

	copied := 0
	for outer := start; outer <= end; outer++ {
		var blockNum int32
		if outer < NumDirect {
			blockNum = in.Direct[outer]
		} else {
			blockNum = readIndirectEntry(indirectBlock, outer-NumDirect)
		}
		if blockNum == 0 {
			return 0, 0, fmt.Errorf("yfs: write: block %d unexpectedly a hole after allocation", outer)
		}

		block, gerr := s.blocks.Get(int(blockNum))
		if gerr != nil {
			return 0, 0, gerr
		}

		prefix := (pos + copied) % S
		copySize := S - prefix
		if remaining := size - copied; copySize > remaining {
			copySize = remaining
		}

		n := copy(block[prefix:prefix+copySize], data[copied:copied+copySize])
		s.blocks.MarkDirty(int(blockNum))
		copied += n
	}

	newSize := pos + copied
	if newSize > int(in.Size) {
		in.Size = int32(newSize)
	}
	s.inodes.Set(inum, in)

	return copied, 0, nil
}

// Link implements the LINK opcode: add a directory entry for an existing
// regular file.
func (s *Server) Link(targetInum, parentInum int, name string) (errCode int, err error) {
	target, err := s.inodes.Get(targetInum)
	if err != nil {
		return 0, err
	}
	if target.Type != Regular {
		return ErrLinkNotRegular, nil
	}

	parent, err := s.inodes.Get(parentInum)
	if err != nil {
		return 0, err
	}
	if parent.Type != Directory {
		return ErrLinkParentNotDir, nil
	}

	if s.freeBlocks.Len() < 2 {
		return ErrLinkNotEnoughBlocks, nil
	}

	parent, _, err = s.registerDirectory(parentInum, parent, int32(targetInum), name)
	if err != nil {
		return 0, err
	}
	s.inodes.Set(parentInum, parent)

	target.Nlink++
	s.inodes.Set(targetInum, target)

	return 0, nil
}

// Unlink implements the UNLINK opcode.
func (s *Server) Unlink(targetInum, parentInum int) (errCode int, err error) {
	parent, err := s.inodes.Get(parentInum)
	if err != nil {
		return 0, err
	}
	if parent.Type != Directory {
		return ErrUnlinkParentNotDir, nil
	}

	found, err := s.unregisterDirectory(parent, int32(targetInum))
	if err != nil {
		return 0, err
	}
	if !found {
		return ErrUnlinkNotInParent, nil
	}

	target, err := s.inodes.Get(targetInum)
	if err != nil {
		return 0, err
	}
	target.Nlink--
	if target.Nlink == 0 {
		target, err = s.truncateFileInode(targetInum)
		if err != nil {
			return 0, err
		}
		target.Type = Free
		s.freeInodes.Push(targetInum)
	}
	s.inodes.Set(targetInum, target)

	parent, err = s.cleanDirectory(parent)
	if err != nil {
		return 0, err
	}
	s.inodes.Set(parentInum, parent)

	return 0, nil
}

// Rmdir implements the DELETE_DIR opcode.
func (s *Server) Rmdir(targetInum, parentInum int) (errCode int, err error) {
	if targetInum == RootInum {
		return ErrRmdirTargetIsRoot, nil
	}

	parent, err := s.inodes.Get(parentInum)
	if err != nil {
		return 0, err
	}
	if parent.Type != Directory {
		return ErrRmdirParentNotDir, nil
	}

	target, err := s.inodes.Get(targetInum)
	if err != nil {
		return 0, err
	}
	if target.Type != Directory {
		return ErrRmdirTargetNotDir, nil
	}
	if target.Size != 2*int32(dirEntryOnDiskSize) {
		return ErrRmdirNotEmpty, nil
	}

	found, err := s.unregisterDirectory(parent, int32(targetInum))
	if err != nil {
		return 0, err
	}
	if !found {
		return ErrRmdirNotInParent, nil
	}

	target, err = s.truncateFileInode(targetInum)
	if err != nil {
		return 0, err
	}
	target.Type = Free
	target.Nlink = 0
	s.inodes.Set(targetInum, target)
	s.freeInodes.Push(targetInum)

	parent.Nlink--
	parent, err = s.cleanDirectory(parent)
	if err != nil {
		return 0, err
	}
	s.inodes.Set(parentInum, parent)

	return 0, nil
}
