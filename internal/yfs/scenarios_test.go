package yfs_test

import (
	"bytes"
	"testing"

	. "github.com/jacobsa/ogletest"

	"github.com/yfsfs/yfsd/internal/yfs"
)

func TestScenarios(t *testing.T) { RunTests(t) }

// ScenariosTest walks the same fresh 64-inode, 128-block, 512-byte-sector
// image through one continuous sequence of operations on a single file and
// a single directory, checking the state after each step.
type ScenariosTest struct {
	s       *yfs.Server
	cleanup func()
}

func init() { RegisterTestSuite(&ScenariosTest{}) }

func (t *ScenariosTest) SetUp(ti *TestInfo) {
	var err error
	t.s, t.cleanup, err = bootTestServer(64, 128, 512)
	AssertEq(nil, err)
}

func (t *ScenariosTest) TearDown() {
	t.cleanup()
}

func (t *ScenariosTest) FullLifecycleOfAFileAndADirectory() {
	rootBefore, err := t.s.GetFile(yfs.RootInum)
	AssertEq(nil, err)

	// 1. Create /a: a fresh regular file, root grows by one entry, root's
	// own link count is untouched by a non-directory child.
	a, code, err := t.s.CreateFile(yfs.RootInum, "a")
	AssertEq(nil, err)
	AssertEq(0, code)
	ExpectTrue(a.Inum > 0)
	ExpectEq(yfs.Regular, a.Type)
	ExpectEq(int32(0), a.Size)
	ExpectEq(int32(1), a.Nlink)

	rootAfterCreate, err := t.s.GetFile(yfs.RootInum)
	AssertEq(nil, err)
	ExpectEq(rootBefore.Size+20, rootAfterCreate.Size)
	ExpectEq(rootBefore.Nlink, rootAfterCreate.Nlink)

	// 2. Write 1000 bytes of 0xAB at the front: exactly two direct blocks
	// get touched.
	payload := bytes.Repeat([]byte{0xAB}, 1000)
	n, code, err := t.s.WriteFile(int(a.Inum), 0, payload, a.Reuse)
	AssertEq(nil, err)
	AssertEq(0, code)
	ExpectEq(1000, n)

	got, err := t.s.GetFile(int(a.Inum))
	AssertEq(nil, err)
	ExpectEq(int32(1000), got.Size)

	// 3. Reading 600 bytes starting at 500 only has 500 bytes of file left
	// to give back, all of it 0xAB.
	out, code, err := t.s.ReadFile(int(a.Inum), 500, 600, a.Reuse)
	AssertEq(nil, err)
	AssertEq(0, code)
	AssertEq(500, len(out))
	ExpectTrue(bytes.Equal(out, bytes.Repeat([]byte{0xAB}, 500)))

	// 4. A single byte written at the direct/indirect boundary grows the
	// file past MaxDirectSize; everything strictly between the original
	// write and the new byte remains a hole and reads back as zero.
	n, code, err = t.s.WriteFile(int(a.Inum), 6144, []byte{0x01}, a.Reuse)
	AssertEq(nil, err)
	AssertEq(0, code)
	ExpectEq(1, n)

	got, err = t.s.GetFile(int(a.Inum))
	AssertEq(nil, err)
	ExpectEq(int32(6145), got.Size)

	out, code, err = t.s.ReadFile(int(a.Inum), 1000, 5144, a.Reuse)
	AssertEq(nil, err)
	AssertEq(0, code)
	AssertEq(5144, len(out))
	ExpectTrue(bytes.Equal(out, make([]byte, 5144)))

	// 5. A directory created, populated, and torn back down returns the
	// free-inode and free-block buffers to their prior sizes.
	freeInodesBefore := t.s.FreeInodeCount()
	freeBlocksBefore := t.s.FreeBlockCount()

	d, code, err := t.s.CreateDir(yfs.RootInum, "d")
	AssertEq(nil, err)
	AssertEq(0, code)

	f, code, err := t.s.CreateFile(int(d.Inum), "f")
	AssertEq(nil, err)
	AssertEq(0, code)

	code, err = t.s.Unlink(int(f.Inum), int(d.Inum))
	AssertEq(nil, err)
	AssertEq(0, code)

	code, err = t.s.Rmdir(int(d.Inum), yfs.RootInum)
	AssertEq(nil, err)
	AssertEq(0, code)

	AssertEq(nil, t.s.Sync())
	ExpectEq(freeInodesBefore, t.s.FreeInodeCount())
	ExpectEq(freeBlocksBefore, t.s.FreeBlockCount())

	// 6. A reuse counter captured before deletion no longer matches after
	// the inode is recycled under a new name.
	staleReuse := a.Reuse
	code, err = t.s.Unlink(int(a.Inum), yfs.RootInum)
	AssertEq(nil, err)
	AssertEq(0, code)

	recreated, code, err := t.s.CreateFile(yfs.RootInum, "a")
	AssertEq(nil, err)
	AssertEq(0, code)
	ExpectEq(a.Inum, recreated.Inum)

	_, code, err = t.s.ReadFile(int(recreated.Inum), 0, 10, staleReuse)
	AssertEq(nil, err)
	ExpectEq(yfs.ErrReadReuseMismatch, code)
}
