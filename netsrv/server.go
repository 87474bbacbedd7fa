package netsrv

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/cppla/computesrv/connstate"
	"github.com/cppla/computesrv/framing"
	"github.com/cppla/computesrv/netaddr"
	"github.com/cppla/computesrv/protocol"
)

// ErrIncorrectEndpoint wraps any bind/listen failure from Open/Reopen (§4.B, §7).
var ErrIncorrectEndpoint = errors.New("netsrv: incorrect endpoint")

// acceptRate tracks accept attempts per source IP over a fixed
// 30-second window that starts at the first attempt, the same flood guard the teacher applies to
// inbound proxy connections before routing them (moto/controller
// ipCache); here it protects the accept path and the per-socket
// handshake timer from being exhausted by a connection flood.
var acceptRate = cache.New(30*time.Second, 1*time.Minute)

const maxAcceptsPerWindow = 200

// Config configures one listening endpoint.
type Config struct {
	ListenAddr       string
	Credentials      []protocol.Credential
	AllowListEnabled bool
	AllowList        []string
}

// Server owns a listening socket and every connection accepted from it.
// Reads happen on the accept-path goroutine and on per-socket goroutines;
// writes go through Send from whichever goroutine calls it, serialized
// per socket. The shared maps below are guarded by mu, the
// same posture the teacher applies to its package-level ipCache (§5:
// "per-owner task map... owned by the dispatcher scheduler unit").
type Server struct {
	handler Handler
	logger  *zap.Logger

	mu          sync.Mutex
	cfg         Config
	listener    net.Listener
	sockets     map[netaddr.AddressPair]*socket
	byUsername  map[string]netaddr.AddressPair
	credentials map[string]string
	allowList   map[string]bool
}

// NewServer builds a server endpoint bound to cfg. Call Open to start
// listening.
func NewServer(cfg Config, handler Handler, logger *zap.Logger) *Server {
	s := &Server{
		handler: handler,
		logger:  logger,
		sockets: make(map[netaddr.AddressPair]*socket),
		byUsername: make(map[string]netaddr.AddressPair),
	}
	s.applyConfig(cfg)
	return s
}

func (s *Server) applyConfig(cfg Config) {
	s.cfg = cfg
	creds := make(map[string]string, len(cfg.Credentials))
	for _, c := range cfg.Credentials {
		creds[c.Username] = c.Password
	}
	s.credentials = creds

	allow := make(map[string]bool, len(cfg.AllowList))
	for _, ip := range cfg.AllowList {
		allow[ip] = true
	}
	s.allowList = allow
}

// Open binds and starts listening, spawning the accept loop. Failure is
// returned synchronously and surfaced to the handler as an Unconnected
// state-change event with an empty peer (§7); the endpoint remains
// alive and Open/Reopen may be retried.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.logger.Error("failed to listen", zap.String("addr", s.cfg.ListenAddr), zap.Error(err))
		s.handler.OnStateChange(netaddr.AddressPair{}, connstate.Unconnected)
		return fmt.Errorf("%w: %v", ErrIncorrectEndpoint, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("listening", zap.String("addr", s.cfg.ListenAddr))
	go s.acceptLoop(ln)
	return nil
}

// Reopen closes the current listener (if any) and re-applies cfg before
// opening a fresh one.
func (s *Server) Reopen(cfg Config) error {
	_ = s.Close()
	s.applyConfig(cfg)
	return s.Open()
}

// Close stops accepting new connections and tears down every live socket.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	socks := make([]*socket, 0, len(s.sockets))
	for _, sock := range s.sockets {
		socks = append(socks, sock)
	}
	s.mu.Unlock()

	for _, sock := range socks {
		sock.close()
	}
	if ln != nil {
		return ln.Close()
	}
	return nil
}

// Send writes frame to the socket owned by peer, if still connected.
func (s *Server) Send(peer netaddr.AddressPair, frame []byte) (int, error) {
	s.mu.Lock()
	sock, ok := s.sockets[peer]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("netsrv: no live socket for %s", peer)
	}
	return sock.send(frame)
}

// RemoveAllowed drops ip from the allow-list and closes every live
// socket currently connected from it (§4.B "Allow-list").
func (s *Server) RemoveAllowed(ip string) {
	s.mu.Lock()
	delete(s.allowList, ip)
	var toClose []*socket
	for peer, sock := range s.sockets {
		if peer.IP == ip {
			toClose = append(toClose, sock)
		}
	}
	s.mu.Unlock()

	for _, sock := range toClose {
		sock.close()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.logger.Error("accept failed", zap.Error(err))
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	peer := peerOf(conn)

	s.mu.Lock()
	allowEnabled := s.cfg.AllowListEnabled
	allowed := s.allowList[peer.IP]
	s.mu.Unlock()

	if allowEnabled && !allowed {
		s.logger.Info("rejected peer not in allow-list", loggerFields(peer)...)
		conn.Close()
		return
	}

	if count, found := acceptRate.Get(peer.IP); found && count.(int) >= maxAcceptsPerWindow {
		s.logger.Warn("too many connection attempts, dropping", loggerFields(peer)...)
		conn.Close()
		return
	} else if found {
		acceptRate.Increment(peer.IP, 1)
	} else {
		acceptRate.Set(peer.IP, 1, cache.DefaultExpiration)
	}

	s.handler.OnStateChange(peer, connstate.Connected)

	sock := &socket{conn: conn, peer: peer}
	if !s.authenticate(sock) {
		conn.Close()
		return
	}

	s.mu.Lock()
	s.sockets[peer] = sock
	s.mu.Unlock()

	s.handler.OnAuthorized(sock.username, peer)
	s.readLoop(sock)
}

// authenticate runs the in-band login handshake: the first payload on
// the socket must decode as a Credential within AuthTimeout (§4.B,
// §6). No reply is sent either way — success is silent, failure closes
// the socket.
func (s *Server) authenticate(sock *socket) bool {
	type result struct {
		cred protocol.Credential
		err  error
	}
	done := make(chan result, 1)

	go func() {
		buf := make([]byte, 4096)
		var reasm framing.Reassembler
		for {
			n, err := sock.conn.Read(buf)
			if n > 0 {
				for _, payload := range reasm.Feed(buf[:n]) {
					cred, derr := protocol.DecodeCredential(payload)
					done <- result{cred: cred, err: derr}
					return
				}
			}
			if err != nil {
				done <- result{err: err}
				return
			}
		}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			s.logger.Info("login decode failed, closing socket", loggerFields(sock.peer)...)
			return false
		}
		return s.checkCredential(sock, r.cred)
	case <-afterAuthTimeout():
		s.logger.Info("auth timeout, closing socket", loggerFields(sock.peer)...)
		return false
	}
}

func (s *Server) checkCredential(sock *socket, cred protocol.Credential) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pass, known := s.credentials[cred.Username]
	if !known || pass != cred.Password {
		s.logger.Info("rejected credential", zap.String("username", cred.Username))
		return false
	}
	if _, taken := s.byUsername[cred.Username]; taken {
		s.logger.Info("rejected duplicate username", zap.String("username", cred.Username))
		return false
	}

	sock.username = cred.Username
	sock.authed = true
	s.byUsername[cred.Username] = sock.peer
	return true
}

func (s *Server) readLoop(sock *socket) {
	defer s.disconnect(sock)

	buf := make([]byte, 64*1024)
	for {
		n, err := sock.conn.Read(buf)
		if n > 0 {
			for _, payload := range sock.reasm.Feed(buf[:n]) {
				s.handler.OnMessage(sock.peer, payload)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) disconnect(sock *socket) {
	s.mu.Lock()
	delete(s.sockets, sock.peer)
	if sock.username != "" {
		delete(s.byUsername, sock.username)
	}
	s.mu.Unlock()

	sock.close()
	s.handler.OnStateChange(sock.peer, connstate.Closing)
	s.handler.OnDisconnected(sock.peer)
}
