// Command yfsclient is a small line-oriented shell exercising the client
// library end-to-end: ls, cat, write, mkdir, rm, open, close, seek, stat,
// sync.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/yfsfs/yfsd/client"
	"github.com/yfsfs/yfsd/internal/yfs"
)

func main() {
	network := flag.String("network", "unix", "server network: unix or tcp")
	addr := flag.String("addr", "/tmp/yfs.sock", "server address")
	flag.Parse()

	if n := os.Getenv("YFS_NETWORK"); n != "" {
		*network = n
	}
	if a := os.Getenv("YFS_ADDR"); a != "" {
		*addr = a
	}

	c, err := client.Dial(*network, *addr)
	if err != nil {
		log.Fatalf("yfsclient: %v", err)
	}
	defer c.Close()

	sh := &shell{c: c, cwd: int32(yfs.RootInum)}
	sh.run(os.Stdin, os.Stdout)
}

type shell struct {
	c   *client.Client
	cwd int32
}

func (sh *shell) run(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "yfs> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := sh.exec(line, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func (sh *shell) exec(line string, out io.Writer) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "ls":
		return sh.ls(args, out)
	case "cat":
		return sh.cat(args, out)
	case "write":
		return sh.write(args)
	case "mkdir":
		return sh.mkdir(args)
	case "rm":
		return sh.rm(args)
	case "open":
		return sh.open(args, out)
	case "close":
		return sh.closeFd(args)
	case "seek":
		return sh.seek(args, out)
	case "stat":
		return sh.stat(args, out)
	case "sync":
		return sh.c.Sync()
	case "exit", "quit":
		os.Exit(0)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (sh *shell) resolve(path string) (client.FileInfo, error) {
	if strings.HasPrefix(path, "/") {
		return sh.c.Resolve(int32(yfs.RootInum), path)
	}
	return sh.c.Resolve(sh.cwd, path)
}

func (sh *shell) ls(args []string, out io.Writer) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	fi, err := sh.resolve(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		fmt.Fprintln(out, path)
		return nil
	}
	fmt.Fprintf(out, "inum=%d type=dir size=%d nlink=%d\n", fi.Inum, fi.Size, fi.Nlink)
	return nil
}

func (sh *shell) cat(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <path>")
	}
	fi, err := sh.resolve(args[0])
	if err != nil {
		return err
	}

	buf := make([]byte, fi.Size)
	n, err := sh.c.Read(fi.Inum, 0, buf, fi.Reuse)
	if err != nil {
		return err
	}
	_, err = out.Write(buf[:n])
	return err
}

func (sh *shell) write(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: write <path> <text...>")
	}
	path := args[0]
	data := []byte(strings.Join(args[1:], " "))

	dir, base := splitPath(path)
	parent, err := sh.resolve(dir)
	if err != nil {
		return err
	}
	fi, err := sh.c.CreateFile(parent.Inum, base)
	if err != nil {
		return err
	}
	_, err = sh.c.Write(fi.Inum, 0, data, fi.Reuse)
	return err
}

func (sh *shell) mkdir(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mkdir <path>")
	}
	dir, base := splitPath(args[0])
	parent, err := sh.resolve(dir)
	if err != nil {
		return err
	}
	_, err = sh.c.Mkdir(parent.Inum, base)
	return err
}

func (sh *shell) rm(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rm <path>")
	}
	dir, base := splitPath(args[0])
	parent, err := sh.resolve(dir)
	if err != nil {
		return err
	}
	target, err := sh.c.Search(parent.Inum, base)
	if err != nil {
		return err
	}
	if target.Inum == 0 {
		return fmt.Errorf("no such entry %q", base)
	}
	if target.IsDir() {
		return sh.c.Rmdir(target.Inum, parent.Inum)
	}
	return sh.c.Unlink(target.Inum, parent.Inum)
}

// open resolves path and prints a file descriptor number that later
// seek/close commands (and a future read/write-by-fd command) can refer to.
func (sh *shell) open(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: open <path>")
	}
	fi, err := sh.resolve(args[0])
	if err != nil {
		return err
	}
	fd := sh.c.Open(fi)
	fmt.Fprintf(out, "fd=%d\n", fd)
	return nil
}

func (sh *shell) closeFd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: close <fd>")
	}
	fd, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("usage: close <fd>")
	}
	sh.c.CloseFd(fd)
	return nil
}

// seek repositions an open fd's offset: "seek <fd> <offset> <set|cur|end>".
func (sh *shell) seek(args []string, out io.Writer) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: seek <fd> <offset> <set|cur|end>")
	}
	fd, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("usage: seek <fd> <offset> <set|cur|end>")
	}
	offset, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("usage: seek <fd> <offset> <set|cur|end>")
	}
	var whence int
	switch args[2] {
	case "set":
		whence = io.SeekStart
	case "cur":
		whence = io.SeekCurrent
	case "end":
		whence = io.SeekEnd
	default:
		return fmt.Errorf("seek: whence must be set, cur, or end")
	}

	pos, err := sh.c.SeekFd(fd, offset, whence)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "pos=%d\n", pos)
	return nil
}

func (sh *shell) stat(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stat <path>")
	}
	fi, err := sh.resolve(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "inum=%d type=%d size=%d nlink=%d reuse=%d\n",
		fi.Inum, fi.Type, fi.Size, fi.Nlink, fi.Reuse)
	return nil
}

func splitPath(path string) (dir, base string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ".", path
	}
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}
