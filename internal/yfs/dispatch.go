package yfs

import (
	"context"
	"fmt"

	"github.com/jacobsa/reqtrace"
	"golang.org/x/net/trace"

	"github.com/yfsfs/yfsd/internal/transport"
	"github.com/yfsfs/yfsd/internal/wire"
)

// Serve drains l.Requests until it is closed or ctx is done, handling
// exactly one request at a time: the single dispatch goroutine required by
// the cooperative, unlocked-state concurrency model. Concurrent client
// connections are still accepted by l; their requests simply queue here.
func (s *Server) Serve(ctx context.Context, l *transport.Listener) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-l.Requests:
			if !ok {
				return nil
			}
			s.dispatch(ctx, req)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *transport.Request) {
	tr := trace.New("yfs.request", req.Opcode.String())
	defer tr.Finish()

	var raw, payload []byte
	err := reqtrace.Trace(ctx, req.Opcode.String(), func(ctx context.Context) error {
		var herr error
		raw, payload, herr = s.handle(req)
		return herr
	})

	if err != nil {
		tr.SetError()
		tr.LazyPrintf("error: %v", err)
		s.logger.Printf("%s: internal error: %v", req.Opcode, err)
		raw = wire.EncodeDataPacket(wire.DataPacket{Op: req.Opcode, Arg1: -1})
		payload = nil
	}

	req.Respond(raw, payload)
}

// handle performs the mutex-guarded request body: decode args, run the
// operation, encode a reply. Panics from an invariants build's
// InvariantMutex propagate out of Lock/Unlock, not from here.
func (s *Server) handle(req *transport.Request) (raw, payload []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Opcode {
	case wire.OpGetFile:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		rec, gerr := s.GetFile(int(dp.Arg1))
		if gerr != nil {
			return nil, nil, gerr
		}
		return encodeFileReply(req.Opcode, rec), nil, nil

	case wire.OpSearchFile:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		name, nerr := decodeNamePayload(req.Payload)
		if nerr != nil {
			return nil, nil, nerr
		}
		rec, _, serr := s.SearchFile(int(dp.Arg1), name)
		if serr != nil {
			return nil, nil, serr
		}
		return encodeFileReply(req.Opcode, rec), nil, nil

	case wire.OpCreateFile:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		name, nerr := decodeNamePayload(req.Payload)
		if nerr != nil {
			return nil, nil, nerr
		}
		rec, code, cerr := s.CreateFile(int(dp.Arg1), name)
		if cerr != nil {
			return nil, nil, cerr
		}
		s.logger.logOp(req.Opcode, int32(code))
		if code != 0 {
			return encodeFileReply(req.Opcode, FileRecord{Inum: int32(code)}), nil, nil
		}
		return encodeFileReply(req.Opcode, rec), nil, nil

	case wire.OpCreateDir:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		name, nerr := decodeNamePayload(req.Payload)
		if nerr != nil {
			return nil, nil, nerr
		}
		rec, code, cerr := s.CreateDir(int(dp.Arg1), name)
		if cerr != nil {
			return nil, nil, cerr
		}
		s.logger.logOp(req.Opcode, int32(code))
		if code != 0 {
			return encodeFileReply(req.Opcode, FileRecord{Inum: int32(code)}), nil, nil
		}
		return encodeFileReply(req.Opcode, rec), nil, nil

	case wire.OpReadFile:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		data, code, rerr := s.ReadFile(int(dp.Arg1), int(dp.Arg2), int(dp.Arg3), dp.Arg4)
		if rerr != nil {
			return nil, nil, rerr
		}
		s.logger.logOp(req.Opcode, int32(code))
		reply := wire.DataPacket{Op: req.Opcode, Arg1: int32(code), Arg2: int32(len(data))}
		if len(data) > 0 {
			reply.HasPayload = true
			reply.PayloadSize = int32(len(data))
		}
		return wire.EncodeDataPacket(reply), data, nil

	case wire.OpWriteFile:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		n, code, werr := s.WriteFile(int(dp.Arg1), int(dp.Arg2), req.Payload, dp.Arg4)
		if werr != nil {
			return nil, nil, werr
		}
		s.logger.logOp(req.Opcode, int32(code))
		reply := wire.DataPacket{Op: req.Opcode, Arg1: int32(code), Arg2: int32(n)}
		return wire.EncodeDataPacket(reply), nil, nil

	case wire.OpLink:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		name, nerr := decodeNamePayload(req.Payload)
		if nerr != nil {
			return nil, nil, nerr
		}
		code, lerr := s.Link(int(dp.Arg1), int(dp.Arg2), name)
		if lerr != nil {
			return nil, nil, lerr
		}
		s.logger.logOp(req.Opcode, int32(code))
		return wire.EncodeDataPacket(wire.DataPacket{Op: req.Opcode, Arg1: int32(code)}), nil, nil

	case wire.OpUnlink:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		code, uerr := s.Unlink(int(dp.Arg1), int(dp.Arg2))
		if uerr != nil {
			return nil, nil, uerr
		}
		s.logger.logOp(req.Opcode, int32(code))
		return wire.EncodeDataPacket(wire.DataPacket{Op: req.Opcode, Arg1: int32(code)}), nil, nil

	case wire.OpDeleteDir:
		dp, derr := wire.DecodeDataPacket(req.Raw)
		if derr != nil {
			return nil, nil, derr
		}
		code, rerr := s.Rmdir(int(dp.Arg1), int(dp.Arg2))
		if rerr != nil {
			return nil, nil, rerr
		}
		s.logger.logOp(req.Opcode, int32(code))
		return wire.EncodeDataPacket(wire.DataPacket{Op: req.Opcode, Arg1: int32(code)}), nil, nil

	case wire.OpSync:
		if serr := s.Sync(); serr != nil {
			return nil, nil, serr
		}
		return wire.EncodeDataPacket(wire.DataPacket{Op: req.Opcode}), nil, nil

	default:
		return nil, nil, fmt.Errorf("yfs: unknown opcode %v", req.Opcode)
	}
}

func encodeFileReply(op wire.Opcode, rec FileRecord) []byte {
	return wire.EncodeFilePacket(wire.FilePacket{
		Op:    op,
		Inum:  rec.Inum,
		Type:  int32(rec.Type),
		Size:  rec.Size,
		Nlink: rec.Nlink,
		Reuse: rec.Reuse,
	})
}

func decodeNamePayload(payload []byte) (string, error) {
	var field [DirNameLen]byte
	if len(payload) > len(field) {
		return "", fmt.Errorf("yfs: name payload of %d bytes exceeds %d-byte field", len(payload), len(field))
	}
	copy(field[:], payload)
	for i, b := range field {
		if b == 0 {
			return string(field[:i]), nil
		}
	}
	return string(field[:]), nil
}
