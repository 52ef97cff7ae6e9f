package yfs

import "fmt"

// checkInvariants is wired into the server's InvariantMutex: under the
// `invariants` build tag it runs after every Unlock and panics on
// violation. It verifies the partition and size properties that must hold
// after every request completes.
func (s *Server) checkInvariants() {
	if err := s.verifyInvariants(); err != nil {
		panic(err)
	}
}

// VerifyInvariants re-derives the reachable-block and reachable-inode sets
// from scratch and checks them against the live free lists. It is exposed
// for tests and is equivalent to what checkInvariants enforces on every
// unlock in an invariants build.
func (s *Server) VerifyInvariants() error {
	return s.verifyInvariants()
}

func (s *Server) verifyInvariants() error {
	reachableBlocks := make(map[int]int) // block -> owning inum, to catch double-reachability
	liveInodes := make(map[int]bool)

	for inum := 0; inum < s.layout.NumInodes; inum++ {
		in, err := s.inodes.Get(inum)
		if err != nil {
			return fmt.Errorf("invariant: read inode %d: %w", inum, err)
		}

		if in.Type == Free {
			continue
		}
		liveInodes[inum] = true

		if in.Size < 0 || int(in.Size) > s.layout.MaxFileSize {
			return fmt.Errorf("invariant: inode %d size %d exceeds MaxFileSize %d", inum, in.Size, s.layout.MaxFileSize)
		}

		if in.Type == Directory {
			if in.Size < 2*dirEntryOnDiskSize {
				return fmt.Errorf("invariant: directory inode %d size %d below two entries", inum, in.Size)
			}
			if int(in.Size)%dirEntryOnDiskSize != 0 {
				return fmt.Errorf("invariant: directory inode %d size %d not a multiple of entry size", inum, in.Size)
			}
		}

		used := in.BlocksUsed(s.layout.SectorSize)
		direct := used
		if direct > NumDirect {
			direct = NumDirect
		}
		for i := 0; i < direct; i++ {
			b := int(in.Direct[i])
			if b == 0 {
				continue
			}
			if err := s.claim(reachableBlocks, b, inum); err != nil {
				return err
			}
		}

		if in.Size > int32(s.layout.MaxDirectSize) && in.Indirect != 0 {
			if err := s.claim(reachableBlocks, int(in.Indirect), inum); err != nil {
				return err
			}

			block, err := s.blocks.Get(int(in.Indirect))
			if err != nil {
				return err
			}
			for i := 0; i < used-NumDirect; i++ {
				b := int(readIndirectEntry(block, i))
				if b == 0 {
					continue
				}
				if err := s.claim(reachableBlocks, b, inum); err != nil {
					return err
				}
			}
		}
	}

	// Free-inode buffer ⊎ live inodes == {0..NumInodes-1} apart from inode 0.
	freeSeen := make(map[int]bool)
	s.freeInodes.each(func(v int) { freeSeen[v] = true })
	for inum := 1; inum < s.layout.NumInodes; inum++ {
		if liveInodes[inum] && freeSeen[inum] {
			return fmt.Errorf("invariant: inode %d both live and free", inum)
		}
		if !liveInodes[inum] && !freeSeen[inum] {
			return fmt.Errorf("invariant: inode %d neither live nor free", inum)
		}
	}

	// Free-block buffer ⊎ reachable ⊎ metadata == {0..NumBlocks-1}.
	freeBlockSeen := make(map[int]bool)
	s.freeBlocks.each(func(v int) { freeBlockSeen[v] = true })
	for b := s.layout.FirstDataBlock; b < s.layout.NumBlocks; b++ {
		_, reachable := reachableBlocks[b]
		if reachable && freeBlockSeen[b] {
			return fmt.Errorf("invariant: block %d both reachable and free", b)
		}
		if !reachable && !freeBlockSeen[b] {
			return fmt.Errorf("invariant: block %d neither reachable nor free", b)
		}
	}
	for b := 0; b < s.layout.FirstDataBlock; b++ {
		if freeBlockSeen[b] {
			return fmt.Errorf("invariant: metadata block %d present in free list", b)
		}
	}

	return nil
}

func (s *Server) claim(reachable map[int]int, block, inum int) error {
	if owner, ok := reachable[block]; ok {
		return fmt.Errorf("invariant: block %d reachable from both inode %d and inode %d", block, owner, inum)
	}
	reachable[block] = inum
	return nil
}

func (r *ringBuffer) each(fn func(int)) {
	n := r.Len()
	i := r.out
	for k := 0; k < n; k++ {
		fn(r.b[i])
		i++
		if i >= len(r.b) {
			i = 0
		}
	}
}
