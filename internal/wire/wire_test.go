package wire_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/yfsfs/yfsd/internal/wire"
)

func TestWire(t *testing.T) { RunTests(t) }

type WireTest struct {
}

func init() { RegisterTestSuite(&WireTest{}) }

func (t *WireTest) FilePacketRoundTrip() {
	p := wire.FilePacket{
		Op:    wire.OpCreateFile,
		Inum:  17,
		Type:  wire.TypeRegular,
		Size:  4096,
		Nlink: 2,
		Reuse: 9,
	}

	buf := wire.EncodeFilePacket(p)
	ExpectEq(wire.PacketSize, len(buf))

	got, err := wire.DecodeFilePacket(buf)
	AssertEq(nil, err)
	ExpectThat(got, DeepEquals(p))
}

func (t *WireTest) DataPacketRoundTrip() {
	p := wire.DataPacket{
		Op:          wire.OpWriteFile,
		Arg1:        3,
		Arg2:        512,
		Arg3:        128,
		Arg4:        2,
		HasPayload:  true,
		PayloadSize: 128,
	}

	buf := wire.EncodeDataPacket(p)
	ExpectEq(wire.PacketSize, len(buf))

	got, err := wire.DecodeDataPacket(buf)
	AssertEq(nil, err)
	ExpectThat(got, DeepEquals(p))
}

func (t *WireTest) DataPacketWithoutPayload() {
	p := wire.DataPacket{Op: wire.OpSync}
	buf := wire.EncodeDataPacket(p)

	got, err := wire.DecodeDataPacket(buf)
	AssertEq(nil, err)
	ExpectFalse(got.HasPayload)
	ExpectEq(int32(0), got.PayloadSize)
}

func (t *WireTest) PeekOpcode() {
	buf := wire.EncodeDataPacket(wire.DataPacket{Op: wire.OpUnlink})
	op, err := wire.PeekOpcode(buf)
	AssertEq(nil, err)
	ExpectEq(wire.OpUnlink, op)
}

func (t *WireTest) PeekOpcodeShortFrame() {
	_, err := wire.PeekOpcode([]byte{1, 2, 3})
	ExpectNe(nil, err)
}

func (t *WireTest) OpcodeStringsAreDistinct() {
	ops := []wire.Opcode{
		wire.OpGetFile, wire.OpSearchFile, wire.OpCreateFile, wire.OpReadFile,
		wire.OpWriteFile, wire.OpCreateDir, wire.OpDeleteDir, wire.OpLink,
		wire.OpUnlink, wire.OpSync,
	}
	seen := make(map[string]bool)
	for _, op := range ops {
		s := op.String()
		ExpectFalse(seen[s])
		seen[s] = true
	}
}

func (t *WireTest) NameRoundTrip() {
	field := wire.EncodeName("bin")
	ExpectTrue(wire.NamesEqual(field, "bin"))
	ExpectFalse(wire.NamesEqual(field, "sbin"))
	ExpectEq("bin", wire.DecodeName(field))
}
