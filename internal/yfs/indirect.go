package yfs

import "encoding/binary"

// An indirect block is interpreted as a flat array of int32 block
// numbers.

func readIndirectEntry(block []byte, i int) int32 {
	return int32(binary.LittleEndian.Uint32(block[i*4 : i*4+4]))
}

func writeIndirectEntry(block []byte, i int, blockNum int32) {
	binary.LittleEndian.PutUint32(block[i*4:i*4+4], uint32(blockNum))
}
