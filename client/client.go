// Package client is a real implementation of the wire protocol's other
// endpoint: path resolution, an open-file table, and translation of the
// server's negative wire codes into diagnostic errors.
package client

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/yfsfs/yfsd/internal/wire"
)

// FileInfo mirrors the {inum, type, size, nlink, reuse} record the server
// hands back for GET_FILE, SEARCH_FILE, CREATE_FILE and CREATE_DIR.
type FileInfo struct {
	Inum  int32
	Type  int32
	Size  int32
	Nlink int32
	Reuse int32
}

// IsDir reports whether Type is a directory.
func (fi FileInfo) IsDir() bool { return fi.Type == wire.TypeDirectory }

// Client is a connection to a yfs server plus a table of open files.
type Client struct {
	conn net.Conn

	mu      sync.Mutex
	nextFd  int
	openFds map[int]*openFile
}

type openFile struct {
	inum     int32
	reuse    int32
	position int
}

// Dial connects to a yfs server listening at addr over network (e.g.
// "unix", "/var/run/yfs.sock").
func Dial(network, addr string) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s %s: %w", network, addr, err)
	}
	return &Client{conn: conn, openFds: make(map[int]*openFile)}, nil
}

// Close closes the underlying connection. Any open file descriptors become
// invalid.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) roundTrip(req wire.DataPacket, payload []byte) (wire.DataPacket, []byte, error) {
	if payload != nil {
		req.HasPayload = true
		req.PayloadSize = int32(len(payload))
	}

	if _, err := c.conn.Write(wire.EncodeDataPacket(req)); err != nil {
		return wire.DataPacket{}, nil, fmt.Errorf("client: write request: %w", err)
	}
	if len(payload) > 0 {
		if _, err := c.conn.Write(payload); err != nil {
			return wire.DataPacket{}, nil, fmt.Errorf("client: write payload: %w", err)
		}
	}

	raw := make([]byte, wire.PacketSize)
	if _, err := io.ReadFull(c.conn, raw); err != nil {
		return wire.DataPacket{}, nil, fmt.Errorf("client: read reply: %w", err)
	}
	resp, err := wire.DecodeDataPacket(raw)
	if err != nil {
		return wire.DataPacket{}, nil, err
	}

	var respPayload []byte
	if resp.HasPayload && resp.PayloadSize > 0 {
		respPayload = make([]byte, resp.PayloadSize)
		if _, err := io.ReadFull(c.conn, respPayload); err != nil {
			return wire.DataPacket{}, nil, fmt.Errorf("client: read reply payload: %w", err)
		}
	}
	return resp, respPayload, nil
}

func (c *Client) fileRoundTrip(req wire.DataPacket) (FileInfo, error) {
	if _, err := c.conn.Write(wire.EncodeDataPacket(req)); err != nil {
		return FileInfo{}, fmt.Errorf("client: write request: %w", err)
	}

	raw := make([]byte, wire.PacketSize)
	if _, err := io.ReadFull(c.conn, raw); err != nil {
		return FileInfo{}, fmt.Errorf("client: read reply: %w", err)
	}
	fp, err := wire.DecodeFilePacket(raw)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{Inum: fp.Inum, Type: fp.Type, Size: fp.Size, Nlink: fp.Nlink, Reuse: fp.Reuse}, nil
}

func (c *Client) nameRoundTrip(op wire.Opcode, parent int32, name string) (FileInfo, error) {
	payload, err := encodeName(name)
	if err != nil {
		return FileInfo{}, err
	}

	req := wire.DataPacket{Op: op, Arg1: parent, HasPayload: true, PayloadSize: int32(len(payload))}
	if _, werr := c.conn.Write(wire.EncodeDataPacket(req)); werr != nil {
		return FileInfo{}, fmt.Errorf("client: write request: %w", werr)
	}
	if _, werr := c.conn.Write(payload); werr != nil {
		return FileInfo{}, fmt.Errorf("client: write payload: %w", werr)
	}

	raw := make([]byte, wire.PacketSize)
	if _, rerr := io.ReadFull(c.conn, raw); rerr != nil {
		return FileInfo{}, fmt.Errorf("client: read reply: %w", rerr)
	}
	fp, derr := wire.DecodeFilePacket(raw)
	if derr != nil {
		return FileInfo{}, derr
	}
	return FileInfo{Inum: fp.Inum, Type: fp.Type, Size: fp.Size, Nlink: fp.Nlink, Reuse: fp.Reuse}, nil
}

func encodeName(name string) ([]byte, error) {
	if len(name) >= wire.DirNameLen {
		return nil, fmt.Errorf("client: name %q exceeds %d bytes", name, wire.DirNameLen-1)
	}
	return []byte(name), nil
}

// GetFile returns the current record for inum.
func (c *Client) GetFile(inum int32) (FileInfo, error) {
	return c.fileRoundTrip(wire.DataPacket{Op: wire.OpGetFile, Arg1: inum})
}

// searchOne looks up name in dirInum's directory.
func (c *Client) searchOne(dirInum int32, name string) (FileInfo, error) {
	return c.nameRoundTrip(wire.OpSearchFile, dirInum, name)
}

// Resolve walks path (slash-separated, relative to the root inode) one
// component at a time via repeated SearchFile calls, mirroring how the
// original shell's path lookup worked without a dedicated server-side
// path-walk opcode.
func (c *Client) Resolve(rootInum int32, path string) (FileInfo, error) {
	cur := FileInfo{Inum: rootInum, Type: wire.TypeDirectory}

	path = strings.Trim(path, "/")
	if path == "" {
		return c.GetFile(rootInum)
	}

	for _, comp := range strings.Split(path, "/") {
		if comp == "" {
			continue
		}
		if !cur.IsDir() {
			return FileInfo{}, &Error{Op: "resolve", Detail: fmt.Sprintf("%q is not a directory", comp)}
		}

		next, err := c.searchOne(cur.Inum, comp)
		if err != nil {
			return FileInfo{}, err
		}
		if next.Inum == 0 {
			return FileInfo{}, &Error{Op: "resolve", Detail: fmt.Sprintf("no such entry %q", comp)}
		}
		cur = next
	}

	return cur, nil
}

// CreateFile creates (or truncates, if it already exists) a regular file
// named name inside parentInum.
func (c *Client) CreateFile(parentInum int32, name string) (FileInfo, error) {
	fi, err := c.nameRoundTrip(wire.OpCreateFile, parentInum, name)
	if err != nil {
		return FileInfo{}, err
	}
	if fi.Inum < 0 {
		return FileInfo{}, newErrorFromCode("create", int(fi.Inum))
	}
	return fi, nil
}

// Mkdir creates a directory named name inside parentInum.
func (c *Client) Mkdir(parentInum int32, name string) (FileInfo, error) {
	fi, err := c.nameRoundTrip(wire.OpCreateDir, parentInum, name)
	if err != nil {
		return FileInfo{}, err
	}
	if fi.Inum < 0 {
		return FileInfo{}, newErrorFromCode("mkdir", int(fi.Inum))
	}
	return fi, nil
}

// Search looks up name inside parentInum without creating anything. A
// zero Inum in the result means no such entry exists.
func (c *Client) Search(parentInum int32, name string) (FileInfo, error) {
	return c.searchOne(parentInum, name)
}

// Read reads up to len(buf) bytes from inum at pos, returning the number
// of bytes actually read.
func (c *Client) Read(inum int32, pos int, buf []byte, reuse int32) (int, error) {
	req := wire.DataPacket{Op: wire.OpReadFile, Arg1: inum, Arg2: int32(pos), Arg3: int32(len(buf)), Arg4: reuse}
	resp, data, err := c.roundTrip(req, nil)
	if err != nil {
		return 0, err
	}
	if resp.Arg1 != 0 {
		return 0, newErrorFromCode("read", int(resp.Arg1))
	}
	return copy(buf, data), nil
}

// Write writes data to inum at pos, returning the number of bytes
// actually written.
func (c *Client) Write(inum int32, pos int, data []byte, reuse int32) (int, error) {
	req := wire.DataPacket{Op: wire.OpWriteFile, Arg1: inum, Arg2: int32(pos), Arg4: reuse}
	resp, _, err := c.roundTrip(req, data)
	if err != nil {
		return 0, err
	}
	if resp.Arg1 != 0 {
		return 0, newErrorFromCode("write", int(resp.Arg1))
	}
	return int(resp.Arg2), nil
}

// Link adds a directory entry for targetInum, an existing regular file,
// named name inside parentInum.
func (c *Client) Link(targetInum, parentInum int32, name string) error {
	payload, err := encodeName(name)
	if err != nil {
		return err
	}
	req := wire.DataPacket{Op: wire.OpLink, Arg1: targetInum, Arg2: parentInum}
	resp, _, err := c.roundTrip(req, payload)
	if err != nil {
		return err
	}
	if resp.Arg1 != 0 {
		return newErrorFromCode("link", int(resp.Arg1))
	}
	return nil
}

// Unlink removes targetInum's entry from parentInum's directory.
func (c *Client) Unlink(targetInum, parentInum int32) error {
	req := wire.DataPacket{Op: wire.OpUnlink, Arg1: targetInum, Arg2: parentInum}
	resp, _, err := c.roundTrip(req, nil)
	if err != nil {
		return err
	}
	if resp.Arg1 != 0 {
		return newErrorFromCode("unlink", int(resp.Arg1))
	}
	return nil
}

// Rmdir removes the empty directory targetInum from parentInum.
func (c *Client) Rmdir(targetInum, parentInum int32) error {
	req := wire.DataPacket{Op: wire.OpDeleteDir, Arg1: targetInum, Arg2: parentInum}
	resp, _, err := c.roundTrip(req, nil)
	if err != nil {
		return err
	}
	if resp.Arg1 != 0 {
		return newErrorFromCode("rmdir", int(resp.Arg1))
	}
	return nil
}

// Sync flushes all server-side dirty state to the disk image.
func (c *Client) Sync() error {
	req := wire.DataPacket{Op: wire.OpSync}
	_, _, err := c.roundTrip(req, nil)
	return err
}

// Open assigns a file descriptor for inum, snapshotting its current reuse
// counter so subsequent reads/writes are rejected server-side if the inode
// is recycled out from under this handle.
func (c *Client) Open(fi FileInfo) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	fd := c.nextFd
	c.nextFd++
	c.openFds[fd] = &openFile{inum: fi.Inum, reuse: fi.Reuse}
	return fd
}

// CloseFd releases a file descriptor obtained from Open.
func (c *Client) CloseFd(fd int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.openFds, fd)
}

// ReadFd reads from fd at its current position, advancing it by the
// number of bytes actually read.
func (c *Client) ReadFd(fd int, buf []byte) (int, error) {
	c.mu.Lock()
	f, ok := c.openFds[fd]
	c.mu.Unlock()
	if !ok {
		return 0, &Error{Op: "read", Detail: "bad file descriptor"}
	}

	n, err := c.Read(f.inum, f.position, buf, f.reuse)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	f.position += n
	c.mu.Unlock()
	return n, nil
}

// WriteFd writes to fd at its current position, advancing it by the
// number of bytes actually written.
func (c *Client) WriteFd(fd int, data []byte) (int, error) {
	c.mu.Lock()
	f, ok := c.openFds[fd]
	c.mu.Unlock()
	if !ok {
		return 0, &Error{Op: "write", Detail: "bad file descriptor"}
	}

	n, err := c.Write(f.inum, f.position, data, f.reuse)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	f.position += n
	c.mu.Unlock()
	return n, nil
}

// SeekFd repositions fd's read/write offset, following io.Seeker's whence
// convention (io.SeekStart/io.SeekCurrent/io.SeekEnd), and returns the
// resulting offset. It rejects the request if the inode behind fd was
// recycled since fd was opened (detected via GetFile's current reuse
// counter, the same staleness check Read/Write rely on) or if the
// resulting offset would be negative, mirroring the original client
// library's Seek.
func (c *Client) SeekFd(fd int, offset int, whence int) (int, error) {
	c.mu.Lock()
	f, ok := c.openFds[fd]
	c.mu.Unlock()
	if !ok {
		return 0, &Error{Op: "seek", Detail: "bad file descriptor"}
	}

	fi, err := c.GetFile(f.inum)
	if err != nil {
		return 0, err
	}
	if fi.Reuse != f.reuse {
		return 0, &Error{Op: "seek", Detail: "stale file handle: inode was reused since it was opened"}
	}

	c.mu.Lock()
	curPos := f.position
	c.mu.Unlock()

	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = curPos + offset
	case io.SeekEnd:
		newPos = int(fi.Size) + offset
	default:
		return 0, &Error{Op: "seek", Detail: "invalid whence"}
	}
	if newPos < 0 {
		return 0, &Error{Op: "seek", Detail: "resulting offset would be negative"}
	}

	c.mu.Lock()
	f.position = newPos
	c.mu.Unlock()
	return newPos, nil
}
