package yfs

// EncodeRootDirBlock writes "." and ".." entries into block, both pointing
// at rootInum, for use by a formatting tool setting up a fresh image.
func EncodeRootDirBlock(block []byte, rootInum int32) {
	encodeDirEntryAt(block, 0, newDirEntry(rootInum, "."))
	encodeDirEntryAt(block, 1, newDirEntry(rootInum, ".."))
}

// EncodeRootInode packs the root directory's inode record at offset within
// block, pointing its sole direct block at rootBlock.
func EncodeRootInode(block []byte, offset int, rootBlock int32, sectorSize int) {
	in := Inode{
		Type:  Directory,
		Nlink: 1,
		Reuse: 0,
		Size:  2 * int32(dirEntryOnDiskSize),
	}
	in.Direct[0] = rootBlock
	encodeInodeAt(block, offset, in)
}
