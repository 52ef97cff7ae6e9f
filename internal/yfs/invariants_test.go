package yfs_test

import (
	"testing"

	. "github.com/jacobsa/ogletest"

	"github.com/yfsfs/yfsd/internal/yfs"
)

func TestInvariants(t *testing.T) { RunTests(t) }

// InvariantsTest drives VerifyInvariants after varied request sequences,
// the same disjointness/partition properties an `invariants`-tagged build
// checks automatically on every unlock.
type InvariantsTest struct {
	s       *yfs.Server
	cleanup func()
}

func init() { RegisterTestSuite(&InvariantsTest{}) }

func (t *InvariantsTest) SetUp(ti *TestInfo) {
	var err error
	t.s, t.cleanup, err = bootTestServer(32, 128, 512)
	AssertEq(nil, err)
}

func (t *InvariantsTest) TearDown() {
	t.cleanup()
}

func (t *InvariantsTest) HoldAfterBoot() {
	AssertEq(nil, t.s.VerifyInvariants())
}

func (t *InvariantsTest) HoldAfterCreatingFilesAndDirectories() {
	for i := 0; i < 5; i++ {
		_, code, err := t.s.CreateFile(yfs.RootInum, entryName(i))
		AssertEq(nil, err)
		AssertEq(0, code)
	}
	d, code, err := t.s.CreateDir(yfs.RootInum, "sub")
	AssertEq(nil, err)
	AssertEq(0, code)
	_, code, err = t.s.CreateFile(int(d.Inum), "nested")
	AssertEq(nil, err)
	AssertEq(0, code)

	AssertEq(nil, t.s.VerifyInvariants())
}

func (t *InvariantsTest) HoldAfterWritesSpanningTheIndirectBoundary() {
	f, _, err := t.s.CreateFile(yfs.RootInum, "spanning")
	AssertEq(nil, err)

	_, code, err := t.s.WriteFile(int(f.Inum), 0, make([]byte, 7000), f.Reuse)
	AssertEq(nil, err)
	AssertEq(0, code)

	AssertEq(nil, t.s.VerifyInvariants())
}

func (t *InvariantsTest) HoldAfterLinkAndUnlinkCycles() {
	f, _, err := t.s.CreateFile(yfs.RootInum, "shared")
	AssertEq(nil, err)

	code, err := t.s.Link(int(f.Inum), yfs.RootInum, "shared2")
	AssertEq(nil, err)
	AssertEq(0, code)

	code, err = t.s.Unlink(int(f.Inum), yfs.RootInum)
	AssertEq(nil, err)
	AssertEq(0, code)

	AssertEq(nil, t.s.VerifyInvariants())

	code, err = t.s.Unlink(int(f.Inum), yfs.RootInum)
	AssertEq(nil, err)
	AssertEq(0, code)

	AssertEq(nil, t.s.VerifyInvariants())
}

func (t *InvariantsTest) HoldAfterCreateUnlinkChurnAcrossTheFreeList() {
	for round := 0; round < 3; round++ {
		var inums []int32
		for i := 0; i < 10; i++ {
			rec, code, err := t.s.CreateFile(yfs.RootInum, entryName(i))
			AssertEq(nil, err)
			AssertEq(0, code)
			inums = append(inums, rec.Inum)
		}
		for _, inum := range inums {
			code, err := t.s.Unlink(int(inum), yfs.RootInum)
			AssertEq(nil, err)
			AssertEq(0, code)
		}
		AssertEq(nil, t.s.VerifyInvariants())
	}
}

func (t *InvariantsTest) HoldAfterRmdirOfANestedTree() {
	d, code, err := t.s.CreateDir(yfs.RootInum, "tree")
	AssertEq(nil, err)
	AssertEq(0, code)

	f, code, err := t.s.CreateFile(int(d.Inum), "leaf")
	AssertEq(nil, err)
	AssertEq(0, code)

	code, err = t.s.Unlink(int(f.Inum), int(d.Inum))
	AssertEq(nil, err)
	AssertEq(0, code)

	code, err = t.s.Rmdir(int(d.Inum), yfs.RootInum)
	AssertEq(nil, err)
	AssertEq(0, code)

	AssertEq(nil, t.s.VerifyInvariants())
}
