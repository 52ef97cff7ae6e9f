package yfs

// ringBuffer is the fixed-capacity circular FIFO of ints the design
// describes for the free-inode and free-block buffers.
type ringBuffer struct {
	b          []int
	in, out    int
	full, empt bool
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{b: make([]int, capacity), empt: true}
}

func (r *ringBuffer) Len() int {
	switch {
	case r.empt:
		return 0
	case r.full:
		return len(r.b)
	case r.in > r.out:
		return r.in - r.out
	default:
		return len(r.b) - r.out + r.in
	}
}

// Push enqueues v. It silently drops the value if the buffer is already
// full, matching the original integer buffer's behavior (the caller is
// responsible for sizing the buffer to never need this).
func (r *ringBuffer) Push(v int) {
	if r.full {
		return
	}
	r.b[r.in] = v
	r.in++
	if r.in >= len(r.b) {
		r.in = 0
	}
	r.empt = false
	if r.in == r.out {
		r.full = true
	}
}

// Pop dequeues the oldest value. ok is false if the buffer is empty.
func (r *ringBuffer) Pop() (v int, ok bool) {
	if r.empt {
		return 0, false
	}
	v = r.b[r.out]
	r.out++
	if r.out >= len(r.b) {
		r.out = 0
	}
	r.full = false
	if r.out == r.in {
		r.empt = true
	}
	return v, true
}

// buildFreeLists scans every inode once at boot to construct the free
// inode buffer and the free block buffer.
//
// The free-block scan starts from the full candidate sequence of data
// blocks and removes every block reachable from a live inode using the
// "swap with busy prefix" trick: a prefix of length k of the candidate
// array holds blocks already marked busy; to mark block b busy, find it at
// or after position k and swap it into position k, then grow k by one.
// After the walk the free blocks are exactly positions [k:].
func buildFreeLists(ic *InodeCache, layout Layout) (freeInodes, freeBlocks *ringBuffer, err error) {
	freeInodes = newRingBuffer(layout.NumInodes)
	freeBlocks = newRingBuffer(layout.NumBlocks)

	candidates := make([]int, 0, layout.NumBlocks-layout.FirstDataBlock)
	for b := layout.FirstDataBlock; b < layout.NumBlocks; b++ {
		candidates = append(candidates, b)
	}
	pos := make(map[int]int, len(candidates))
	for i, b := range candidates {
		pos[b] = i
	}
	busy := 0

	markBusy := func(b int) {
		i, ok := pos[b]
		if !ok || i < busy {
			return
		}
		candidates[i], candidates[busy] = candidates[busy], candidates[i]
		pos[candidates[i]] = i
		pos[candidates[busy]] = busy
		busy++
	}

	for inum := 0; inum < layout.NumInodes; inum++ {
		in, gerr := ic.Get(inum)
		if gerr != nil {
			err = gerr
			return
		}

		if in.Type == Free {
			if inum != 0 {
				freeInodes.Push(inum)
			}
			continue
		}

		used := in.BlocksUsed(layout.SectorSize)
		direct := used
		if direct > NumDirect {
			direct = NumDirect
		}
		for i := 0; i < direct; i++ {
			if in.Direct[i] != 0 {
				markBusy(int(in.Direct[i]))
			}
		}

		if in.Size > int32(layout.MaxDirectSize) {
			if in.Indirect != 0 {
				markBusy(int(in.Indirect))

				indirectEntries := used - NumDirect
				block, berr := ic.blocks.Get(int(in.Indirect))
				if berr != nil {
					err = berr
					return
				}
				for i := 0; i < indirectEntries; i++ {
					if ptr := readIndirectEntry(block, i); ptr != 0 {
						markBusy(int(ptr))
					}
				}
			}
		}
	}

	for i := busy; i < len(candidates); i++ {
		freeBlocks.Push(candidates[i])
	}

	return
}
