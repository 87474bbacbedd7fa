// Package dispatch ties the connection endpoint (4.B), frame codec
// (4.A), task executor (4.D) and result cache (4.E) together, enforcing
// the per-owner task invariant and the wire error taxonomy (spec §4.F).
package dispatch

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/computesrv/auditlog"
	"github.com/cppla/computesrv/connstate"
	"github.com/cppla/computesrv/executor"
	"github.com/cppla/computesrv/metricsx"
	"github.com/cppla/computesrv/netaddr"
	"github.com/cppla/computesrv/protocol"
	"github.com/cppla/computesrv/rescache"
)

// Transport is whatever can deliver an already-encoded frame to a
// connected owner. netsrv.Server and netsrvquic.Server both satisfy it,
// letting the dispatcher stay transport-agnostic (spec §5, "transport
// is pluggable below the frame codec").
type Transport interface {
	Send(peer netaddr.AddressPair, frame []byte) (int, error)
}

// Dispatcher implements the inbound-frame Handler shape both netsrv and
// netsrvquic expect, and executor.Sink (outbound task events). Inbound
// events arrive on each connection's own goroutine and Sink calls arrive
// on executor goroutines; the submit-time map is guarded by submitMu.
type Dispatcher struct {
	server  Transport
	manager *executor.Manager
	cache   *rescache.Cache
	logger  *zap.Logger

	audit *auditlog.Recorder

	submitMu  sync.Mutex
	submitted map[netaddr.AddressPair]time.Time
}

// New builds a dispatcher. The caller must still call SetServer once
// the netsrv.Server referencing this dispatcher as its Handler exists
// (the two are mutually referential). audit may be nil when no audit
// trail is configured.
func New(cache *rescache.Cache, logger *zap.Logger, audit *auditlog.Recorder) *Dispatcher {
	d := &Dispatcher{cache: cache, logger: logger, audit: audit, submitted: make(map[netaddr.AddressPair]time.Time)}
	d.manager = executor.NewManager(d, logger)
	return d
}

// SetServer wires the transport this dispatcher sends frames through.
func (d *Dispatcher) SetServer(s Transport) { d.server = s }

// Close stops the task executor's worker pool.
func (d *Dispatcher) Close() { d.manager.Close() }

// --- netsrv.Handler ---

func (d *Dispatcher) OnStateChange(peer netaddr.AddressPair, state connstate.State) {
	d.logger.Debug("connection state change", zap.String("remoteAddr", peer.String()), zap.String("state", state.String()))
}

func (d *Dispatcher) OnAuthorized(username string, peer netaddr.AddressPair) {
	d.logger.Info("client authorized", zap.String("username", username), zap.String("remoteAddr", peer.String()))
}

func (d *Dispatcher) OnDisconnected(peer netaddr.AddressPair) {
	d.manager.OwnerDisconnected(peer)
	d.logger.Info("client disconnected", zap.String("remoteAddr", peer.String()))
}

func (d *Dispatcher) OnError(peer netaddr.AddressPair, kind string, detail error) {
	d.logger.Error("connection error", zap.String("remoteAddr", peer.String()), zap.String("kind", kind), zap.Error(detail))
}

func (d *Dispatcher) OnMessage(peer netaddr.AddressPair, payload []byte) {
	req, err := protocol.Decode(payload)
	if err != nil {
		d.sendError(peer, protocol.ErrCorruptedData, err.Error())
		return
	}

	switch req.Type() {
	case protocol.CancelCurrentTask:
		d.handleCancel(peer)
	case protocol.SortArray, protocol.FindPrimeNumbers, protocol.CalculateFunction:
		d.handleSubmission(peer, payload, req)
	default:
		d.sendError(peer, protocol.ErrInvalidRequestType, "unrecognized request type")
	}
}

func (d *Dispatcher) handleCancel(peer netaddr.AddressPair) {
	if err := d.manager.Cancel(peer); err != nil {
		if errors.Is(err, executor.ErrNotRunning) {
			d.logger.Info("cancel received with no running task", zap.String("remoteAddr", peer.String()))
			d.send(peer, protocol.CancelCurrentTaskMsg{})
		}
	}
}

func (d *Dispatcher) handleSubmission(peer netaddr.AddressPair, payload []byte, req protocol.Request) {
	fp := protocol.FingerprintPayload(payload)
	if cached, ok := d.cache.Lookup(fp); ok {
		metricsx.CacheHit()
		if d.audit != nil {
			_ = d.audit.Record(peer.String(), req.Type(), fp, true, 0)
		}
		if d.server != nil {
			_, _ = d.server.Send(peer, cached)
		}
		return
	}
	metricsx.CacheMiss()

	d.submitMu.Lock()
	d.submitted[peer] = time.Now()
	d.submitMu.Unlock()

	metricsx.TaskSubmitted()
	if err := d.manager.Submit(peer, req, fp); err != nil {
		if errors.Is(err, executor.ErrAlreadyRunning) {
			d.sendError(peer, protocol.ErrAlreadyRunningTask, "a task is already running for this client")
		}
	}
}

func (d *Dispatcher) takeSubmitDuration(owner netaddr.AddressPair) time.Duration {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	start, ok := d.submitted[owner]
	if !ok {
		return 0
	}
	delete(d.submitted, owner)
	return time.Since(start)
}

func (d *Dispatcher) sendError(peer netaddr.AddressPair, code protocol.ErrorCode, text string) {
	d.send(peer, protocol.InvalidRequestMsg{ErrorCode: code, ErrorText: text})
}

func (d *Dispatcher) send(peer netaddr.AddressPair, req protocol.Request) {
	frame, err := protocol.Encode(req)
	if err != nil {
		d.logger.Error("failed to encode outgoing frame", zap.Error(err))
		return
	}
	if d.server != nil {
		_, _ = d.server.Send(peer, frame)
	}
}

// --- executor.Sink ---

func (d *Dispatcher) SendProgressRange(owner netaddr.AddressPair, minimum, maximum int32) {
	d.send(owner, protocol.ProgressRangeMsg{Minimum: minimum, Maximum: maximum})
}

func (d *Dispatcher) SendProgressValue(owner netaddr.AddressPair, value int32) {
	d.send(owner, protocol.ProgressValueMsg{Value: value})
}

func (d *Dispatcher) SendResult(owner netaddr.AddressPair, fp protocol.Fingerprint, result protocol.Request) {
	frame, err := protocol.Encode(result)
	if err != nil {
		d.logger.Error("failed to encode task result", zap.Error(err))
		return
	}
	d.cache.Insert(fp, frame, len(frame))
	metricsx.TaskCompleted()
	dur := d.takeSubmitDuration(owner)
	if d.audit != nil {
		_ = d.audit.Record(owner.String(), result.Type(), fp, false, dur)
	}
	if d.server != nil {
		_, _ = d.server.Send(owner, frame)
	}
}

func (d *Dispatcher) SendCancelAck(owner netaddr.AddressPair) {
	metricsx.TaskCancelled()
	d.takeSubmitDuration(owner)
	d.send(owner, protocol.CancelCurrentTaskMsg{})
}

func (d *Dispatcher) SendError(owner netaddr.AddressPair, code protocol.ErrorCode, text string) {
	metricsx.TaskFailed()
	d.takeSubmitDuration(owner)
	d.sendError(owner, code, text)
}
