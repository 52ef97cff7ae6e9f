package yfs

// Sync flushes every dirty inode and block through to the backing disk
// image and fsyncs it. It implements the SYNC opcode and is also what
// Shutdown calls before closing the disk.
func (s *Server) Sync() error {
	if err := s.inodes.FlushAll(); err != nil {
		return err
	}
	return s.disk.Sync()
}

// Shutdown flushes all dirty state and closes the underlying disk image.
// The Server must not be used afterward.
func (s *Server) Shutdown() error {
	if err := s.Sync(); err != nil {
		s.disk.Close()
		return err
	}
	return s.disk.Close()
}
