package client

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/computesrv/connstate"
	"github.com/cppla/computesrv/netcli"
	"github.com/cppla/computesrv/protocol"
)

// ErrNoSink is returned by Submit when no ProgressSink has been
// attached via Track.
var ErrNoSink = errors.New("client: no progress sink attached")

// Session drives one netcli.Client connection on behalf of a single
// interactive caller: it decodes incoming frames back into protocol
// requests and forwards them to whichever ProgressSink is currently
// tracking the one task this connection may run at a time (spec §4.F,
// "at most one task per owner").
type Session struct {
	conn   *netcli.Client
	logger *zap.Logger

	mu   sync.Mutex
	sink ProgressSink
}

// NewSession dials cfg and returns a ready Session. The caller attaches
// a ProgressSink with Track before calling Submit.
func NewSession(cfg netcli.Config, logger *zap.Logger) (*Session, error) {
	s := &Session{logger: logger}
	s.conn = netcli.NewClient(cfg, s, logger)
	if err := s.conn.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Track attaches sink as the receiver of the next task's progress and
// result events, replacing any previous sink.
func (s *Session) Track(sink ProgressSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Submit encodes and sends req, the caller's one task for this
// connection.
func (s *Session) Submit(req protocol.Request) error {
	s.mu.Lock()
	hasSink := s.sink != nil
	s.mu.Unlock()
	if !hasSink {
		return ErrNoSink
	}

	frame, err := protocol.Encode(req)
	if err != nil {
		return err
	}
	_, err = s.conn.Send(frame)
	return err
}

// Cancel requests cancellation of the connection's current task and
// notifies the tracked sink that a cancel is in flight.
func (s *Session) Cancel() error {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink.Cancelling()
	}

	frame, err := protocol.Encode(protocol.CancelCurrentTaskMsg{})
	if err != nil {
		return err
	}
	_, err = s.conn.Send(frame)
	return err
}

// Close tears down the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// --- netcli.Handler ---

func (s *Session) OnStateChange(state connstate.State) {
	s.logger.Debug("session state change", zap.String("state", state.String()))
}

func (s *Session) OnError(kind string, detail error) {
	s.logger.Error("session error", zap.String("kind", kind), zap.Error(detail))
}

func (s *Session) OnMessage(payload []byte) {
	req, err := protocol.Decode(payload)
	if err != nil {
		s.deliver(nil, err)
		return
	}

	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink == nil {
		return
	}

	switch m := req.(type) {
	case protocol.ProgressRangeMsg:
		sink.SetRange(m.Minimum, m.Maximum)
	case protocol.ProgressValueMsg:
		sink.SetValue(m.Value)
	case protocol.InvalidRequestMsg:
		s.deliver(nil, errors.New(m.ErrorText))
	case protocol.CancelCurrentTaskMsg:
		s.deliver(m, nil)
	case protocol.SortArrayMsg, protocol.FindPrimeNumbersMsg, protocol.CalculateFunctionMsg:
		s.deliver(m, nil)
	}
}

func (s *Session) deliver(result protocol.Request, err error) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink.Done(result, err)
	}
}
