// Package netcli is the client-side half of the connection endpoint
// (spec §4.B): dialing, the login handshake, write serialization and
// optional reconnection.
package netcli

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/computesrv/connstate"
	"github.com/cppla/computesrv/framing"
	"github.com/cppla/computesrv/protocol"
)

// WriteTimeout bounds the backpressure-detection wait on a single frame
// write (§4.B, §5).
const WriteTimeout = 1 * time.Second

// DefaultReconnectInterval is the wait between reconnect attempts when
// enabled (§5).
const DefaultReconnectInterval = 60 * time.Second

// DefaultConnectWait bounds Open's wait for the initial connection
// (§5).
const DefaultConnectWait = 10 * time.Second

// ErrIncorrectEndpoint wraps a dial failure (§4.B, §7).
var ErrIncorrectEndpoint = fmt.Errorf("netcli: incorrect endpoint")

// Handler receives the events a client socket produces.
type Handler interface {
	OnStateChange(state connstate.State)
	OnMessage(payload []byte)
	OnError(kind string, detail error)
}

// Config configures the dial target, local bind, credential and
// reconnection behavior.
type Config struct {
	DialAddr          string
	LocalAddr         string
	Credential        protocol.Credential
	Reconnect         bool
	ReconnectInterval time.Duration
	ConnectWait       time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ConnectWait <= 0 {
		c.ConnectWait = DefaultConnectWait
	}
}

// Client owns one client-side socket and its reconnection loop.
type Client struct {
	cfg     Config
	handler Handler
	logger  *zap.Logger

	mu      sync.Mutex
	conn    net.Conn
	reasm   framing.Reassembler
	writeMu sync.Mutex
	closing bool
}

// NewClient builds a client endpoint. Call Open to connect.
func NewClient(cfg Config, handler Handler, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, handler: handler, logger: logger}
}

// Open dials the server, performs the login handshake, and starts the
// read loop. It blocks up to cfg.ConnectWait for the initial connect
// attempt; if Reconnect is enabled, subsequent drops are retried on
// cfg.ReconnectInterval in the background.
func (c *Client) Open() error {
	c.handler.OnStateChange(connstate.Connecting)

	connCh := make(chan error, 1)
	go func() { connCh <- c.dialAndAuth() }()

	select {
	case err := <-connCh:
		if err != nil {
			return err
		}
	case <-time.After(c.cfg.ConnectWait):
		return fmt.Errorf("%w: timed out waiting for connection", ErrIncorrectEndpoint)
	}

	go c.readLoop()
	return nil
}

func (c *Client) dialAndAuth() error {
	var dialer net.Dialer
	if c.cfg.LocalAddr != "" {
		if local, err := net.ResolveTCPAddr("tcp", c.cfg.LocalAddr); err == nil {
			dialer.LocalAddr = local
		}
	}

	conn, err := dialer.Dial("tcp", c.cfg.DialAddr)
	if err != nil {
		c.handler.OnStateChange(connstate.Unconnected)
		return fmt.Errorf("%w: %v", ErrIncorrectEndpoint, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	login := protocol.EncodeCredential(c.cfg.Credential)
	if _, err := c.writeRaw(framing.EncodeFrame(login)); err != nil {
		conn.Close()
		return fmt.Errorf("%w: login write failed: %v", ErrIncorrectEndpoint, err)
	}

	c.handler.OnStateChange(connstate.Connected)
	return nil
}

// Send writes one already-encoded frame to the server, fully flushed
// before returning.
func (c *Client) Send(frame []byte) (int, error) {
	return c.writeRaw(frame)
}

func (c *Client) writeRaw(frame []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("netcli: not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	n, err := conn.Write(frame)
	_ = conn.SetWriteDeadline(time.Time{})
	if n > framing.HeaderLen {
		return n - framing.HeaderLen, err
	}
	return 0, err
}

func (c *Client) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, payload := range c.reasm.Feed(buf[:n]) {
				c.handler.OnMessage(payload)
			}
		}
		if err != nil {
			c.handleDisconnect()
			return
		}
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()

	c.handler.OnStateChange(connstate.Closing)
	if closing || !c.cfg.Reconnect {
		c.handler.OnStateChange(connstate.Unconnected)
		return
	}

	time.AfterFunc(c.cfg.ReconnectInterval, func() {
		c.mu.Lock()
		stillClosing := c.closing
		c.mu.Unlock()
		if stillClosing {
			return
		}
		if err := c.Open(); err != nil {
			c.logger.Error("reconnect attempt failed", zap.Error(err))
		}
	})
}

// Close tears down the socket and disables reconnection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
