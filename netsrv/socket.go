// Package netsrv is the server-side half of the connection endpoint
// (spec §4.B): it owns the listening socket, per-connection framing,
// the login handshake, allow-list gating and write serialization.
package netsrv

import (
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/computesrv/connstate"
	"github.com/cppla/computesrv/framing"
	"github.com/cppla/computesrv/netaddr"
)

// AuthTimeout bounds how long a freshly accepted socket has to send its
// login frame before it is closed (§4.B, §5).
const AuthTimeout = 3 * time.Second

// WriteTimeout bounds the backpressure-detection wait on a single
// frame write (§4.B, §5).
const WriteTimeout = 1 * time.Second

// Handler receives the events a server socket produces. Implementations
// are invoked from the socket's own per-connection goroutine; the
// dispatcher (4.F) is expected to hand work elsewhere rather than block
// here for long.
type Handler interface {
	OnStateChange(peer netaddr.AddressPair, state connstate.State)
	OnAuthorized(username string, peer netaddr.AddressPair)
	OnMessage(peer netaddr.AddressPair, payload []byte)
	OnDisconnected(peer netaddr.AddressPair)
	OnError(peer netaddr.AddressPair, kind string, detail error)
}

// socket is one accepted connection: its own framing state, write lock
// and authorization status. Reads and writes to the same socket are
// always serialized with respect to themselves (§5).
type socket struct {
	conn     net.Conn
	peer     netaddr.AddressPair
	reasm    framing.Reassembler
	writeMu  sync.Mutex
	username string
	authed   bool
}

func peerOf(conn net.Conn) netaddr.AddressPair {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return netaddr.AddressPair{IP: conn.RemoteAddr().String()}
	}
	port, _ := strconv.Atoi(portStr)
	return netaddr.AddressPair{IP: host, Port: port}
}

// send writes one frame to the socket, fully flushed before returning,
// applying the 1-second write-backpressure wait (§4.B "Write
// discipline"). It returns the number of payload bytes accepted.
func (s *socket) send(frame []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	n, err := s.conn.Write(frame)
	_ = s.conn.SetWriteDeadline(time.Time{})
	if n > framing.HeaderLen {
		return n - framing.HeaderLen, err
	}
	return 0, err
}

func (s *socket) close() { _ = s.conn.Close() }

// loggerFields is a small helper matching the teacher's inline
// zap.String("ruleName", ...) style of ad hoc structured fields.
func loggerFields(peer netaddr.AddressPair) []zap.Field {
	return []zap.Field{zap.String("remoteAddr", peer.String())}
}
