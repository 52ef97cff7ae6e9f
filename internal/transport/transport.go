// Package transport is the message-passing primitive that carries wire
// packets between client and server: a net.Listener accepting any number of
// concurrent client connections, each drained by its own goroutine, feeding
// a single shared channel of requests so that one dispatch goroutine sees
// the requests from every connection in strict FIFO arrival order. A
// request's payload (a name, or read/write data) is read in full off the
// connection before the request is handed to the dispatcher, standing in
// for the original protocol's cross-address-space CopyIn.
package transport

import (
	"fmt"
	"io"
	"net"

	"github.com/yfsfs/yfsd/internal/wire"
)

// Request is one decoded frame awaiting a reply. Handlers obtained from a
// Listener's Requests channel must call Respond exactly once.
type Request struct {
	Opcode  wire.Opcode
	Raw     []byte // the 32-byte frame, in the request's native shape
	Payload []byte // the trailing payload, already read in full, if any

	conn net.Conn
	done chan error
}

// Respond writes raw (and payload, if non-empty) back to the client that
// sent this request as the reply frame.
func (r *Request) Respond(raw []byte, payload []byte) {
	_, err := r.conn.Write(raw)
	if err == nil && len(payload) > 0 {
		_, err = r.conn.Write(payload)
	}
	r.done <- err
}

// Listener accepts client connections and multiplexes their requests onto
// Requests.
type Listener struct {
	nl       net.Listener
	Requests chan *Request
}

// Listen starts accepting connections on network/addr (e.g. "unix",
// "/var/run/yfs.sock", or "tcp", "127.0.0.1:0" for tests).
func Listen(network, addr string) (*Listener, error) {
	nl, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s %s: %w", network, addr, err)
	}

	l := &Listener{
		nl:       nl,
		Requests: make(chan *Request),
	}
	return l, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr { return l.nl.Addr() }

// Close stops accepting new connections. In-flight connections are left to
// drain naturally when their clients disconnect.
func (l *Listener) Close() error { return l.nl.Close() }

// Serve accepts connections until the listener is closed, spawning one
// goroutine per connection to read frames and push them onto Requests.
func (l *Listener) Serve() error {
	for {
		c, err := l.nl.Accept()
		if err != nil {
			return err
		}
		go l.readConn(c)
	}
}

func (l *Listener) readConn(c net.Conn) {
	defer c.Close()

	for {
		raw := make([]byte, wire.PacketSize)
		if _, err := io.ReadFull(c, raw); err != nil {
			return
		}

		op, err := wire.PeekOpcode(raw)
		if err != nil {
			return
		}

		var payload []byte
		if hasPayload(raw) {
			dp, err := wire.DecodeDataPacket(raw)
			if err != nil {
				return
			}
			if dp.HasPayload && dp.PayloadSize > 0 {
				payload = make([]byte, dp.PayloadSize)
				if _, err := io.ReadFull(c, payload); err != nil {
					return
				}
			}
		}

		req := &Request{
			Opcode:  op,
			Raw:     raw,
			Payload: payload,
			conn:    c,
			done:    make(chan error, 1),
		}
		l.Requests <- req
		if err := <-req.done; err != nil {
			return
		}
	}
}

// hasPayload reports whether a request frame might carry a trailing
// payload, i.e. whether it should be parsed as a DataPacket at all (a
// FilePacket-shaped frame has no HasPayload field to read).
func hasPayload(raw []byte) bool {
	op, err := wire.PeekOpcode(raw)
	if err != nil {
		return false
	}
	switch op {
	case wire.OpCreateFile, wire.OpCreateDir, wire.OpSearchFile,
		wire.OpWriteFile, wire.OpLink:
		return true
	default:
		return false
	}
}
