package client

import "fmt"

// Error is returned for any operation that failed, either because the
// server replied with a negative wire code or because the client itself
// rejected the call before sending it. The raw wire code is never exposed
// to callers; Error carries a human-readable Detail instead.
type Error struct {
	Op     string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("yfs %s: %s", e.Op, e.Detail)
}

var readCodes = map[int]string{
	-1: "stale file handle: inode was reused since it was opened",
	-2: "inode is free",
}

var writeCodes = map[int]string{
	-1: "write would exceed the maximum file size",
	-2: "not a regular file",
	-3: "stale file handle: inode was reused since it was opened",
	-4: "not enough free blocks",
}

var createCodes = map[int]string{
	-1: "parent is not a directory, or name already names a directory",
	-2: "parent directory is full",
	-3: "no free inodes available",
	-4: "not enough free blocks",
}

var rmdirCodes = map[int]string{
	-1: "refusing to remove the root directory",
	-2: "parent is not a directory",
	-3: "target is not a directory",
	-4: "directory is not empty",
	-5: "target is not an entry of parent",
}

var linkCodes = map[int]string{
	-1: "name exceeds the maximum length",
	-2: "target is not a regular file",
	-3: "parent is not a directory",
	-4: "not enough free blocks",
}

var unlinkCodes = map[int]string{
	-1: "parent is not a directory",
	-2: "target is not an entry of parent",
}

func newErrorFromCode(op string, code int) error {
	var table map[int]string
	switch op {
	case "read":
		table = readCodes
	case "write":
		table = writeCodes
	case "create", "mkdir":
		table = createCodes
	case "rmdir":
		table = rmdirCodes
	case "link":
		table = linkCodes
	case "unlink":
		table = unlinkCodes
	}

	detail, ok := table[code]
	if !ok {
		detail = fmt.Sprintf("unrecognized server error code %d", code)
	}
	return &Error{Op: op, Detail: detail}
}
