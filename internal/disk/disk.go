// Package disk provides the sector-addressable backing store for a file
// system image: a regular file opened for random access, read and written
// one fixed-size sector at a time.
package disk

import (
	"fmt"
	"os"

	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"
)

// Disk is a sector-addressable file.
type Disk struct {
	f          *os.File
	sectorSize int
	numSectors int
	locked     bool
}

// Open opens an existing disk image at path. The image must already have
// been created with Format. The caller gets an exclusive lock on the file
// for as long as the Disk is open, so two servers can never run against
// the same image at once.
func Open(path string, sectorSize int) (d *Disk, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		err = fmt.Errorf("disk: open %s: %w", path, err)
		return
	}

	if err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		err = fmt.Errorf("disk: flock %s: %w (is another server already running against this image?)", path, err)
		return
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		err = fmt.Errorf("disk: stat %s: %w", path, err)
		return
	}

	d = &Disk{
		f:          f,
		sectorSize: sectorSize,
		numSectors: int(fi.Size()) / sectorSize,
		locked:     true,
	}
	return
}

// Format creates a new disk image of the given size, preallocating the
// full file so later writes never fail with ENOSPC partway through a
// request (which would violate the design all-or-nothing write
// contract). The image starts out zeroed; callers are responsible for
// writing the header and initial inode table before first use.
func Format(path string, sectorSize, numSectors int) (d *Disk, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		err = fmt.Errorf("disk: create %s: %w", path, err)
		return
	}

	size := int64(sectorSize) * int64(numSectors)
	if err = fallocate.Fallocate(f, 0, size); err != nil {
		// Some filesystems (notably tmpfs-backed test directories on certain
		// platforms) reject fallocate; fall back to Truncate, which still
		// gives us the right size even if it doesn't guarantee the blocks
		// are physically reserved.
		if truncErr := f.Truncate(size); truncErr != nil {
			f.Close()
			err = fmt.Errorf("disk: allocate %s: %w", path, err)
			return
		}
		err = nil
	}

	if err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		err = fmt.Errorf("disk: flock %s: %w", path, err)
		return
	}

	d = &Disk{f: f, sectorSize: sectorSize, numSectors: numSectors, locked: true}
	return
}

// SectorSize returns the fixed size of one sector.
func (d *Disk) SectorSize() int { return d.sectorSize }

// NumSectors returns the number of addressable sectors.
func (d *Disk) NumSectors() int { return d.numSectors }

// ReadSector reads sector n into a freshly allocated buffer.
func (d *Disk) ReadSector(n int) (buf []byte, err error) {
	if n < 0 || n >= d.numSectors {
		err = fmt.Errorf("disk: sector %d out of range [0,%d)", n, d.numSectors)
		return
	}

	buf = make([]byte, d.sectorSize)
	_, err = d.f.ReadAt(buf, int64(n)*int64(d.sectorSize))
	if err != nil {
		err = fmt.Errorf("disk: read sector %d: %w", n, err)
	}
	return
}

// WriteSector writes buf (which must be exactly SectorSize bytes) to
// sector n.
func (d *Disk) WriteSector(n int, buf []byte) (err error) {
	if n < 0 || n >= d.numSectors {
		return fmt.Errorf("disk: sector %d out of range [0,%d)", n, d.numSectors)
	}
	if len(buf) != d.sectorSize {
		return fmt.Errorf("disk: write sector %d: buffer is %d bytes, want %d", n, len(buf), d.sectorSize)
	}

	if _, err = d.f.WriteAt(buf, int64(n)*int64(d.sectorSize)); err != nil {
		err = fmt.Errorf("disk: write sector %d: %w", n, err)
	}
	return
}

// Sync flushes the underlying file to stable storage.
func (d *Disk) Sync() error {
	return d.f.Sync()
}

// Close releases the lock and closes the underlying file.
func (d *Disk) Close() error {
	if d.locked {
		unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
		d.locked = false
	}
	return d.f.Close()
}
