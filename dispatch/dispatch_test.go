package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/computesrv/netaddr"
	"github.com/cppla/computesrv/protocol"
	"github.com/cppla/computesrv/rescache"
)

// fakeTransport records every frame sent to each peer, satisfying
// dispatch.Transport without a real socket.
type fakeTransport struct {
	mu     sync.Mutex
	frames map[netaddr.AddressPair][][]byte
	sentCh chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(map[netaddr.AddressPair][][]byte), sentCh: make(chan struct{}, 16)}
}

func (f *fakeTransport) Send(peer netaddr.AddressPair, frame []byte) (int, error) {
	f.mu.Lock()
	f.frames[peer] = append(f.frames[peer], frame)
	f.mu.Unlock()
	f.sentCh <- struct{}{}
	return len(frame), nil
}

func (f *fakeTransport) last(peer netaddr.AddressPair) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := f.frames[peer]
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

func (f *fakeTransport) waitForSend(t *testing.T) {
	t.Helper()
	select {
	case <-f.sentCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame to be sent")
	}
}

func testOwner() netaddr.AddressPair { return netaddr.AddressPair{IP: "10.0.0.5", Port: 7000} }

func TestCacheHitSkipsExecution(t *testing.T) {
	cache := rescache.New(1 << 20)
	d := New(cache, zap.NewNop(), nil)
	defer d.Close()
	transport := newFakeTransport()
	d.SetServer(transport)

	owner := testOwner()
	req := protocol.SortArrayMsg{Numbers: []int32{3, 1, 2}}
	payload, err := protocol.Encode(req)
	require.NoError(t, err)

	fp := protocol.FingerprintPayload(payload[4:])
	resultFrame, err := protocol.Encode(protocol.SortArrayMsg{Numbers: []int32{1, 2, 3}})
	require.NoError(t, err)
	cache.Insert(fp, resultFrame, len(resultFrame))

	d.OnMessage(owner, payload[4:])
	transport.waitForSend(t)

	assert.Equal(t, resultFrame, transport.last(owner))
}

func TestCancelWithNoRunningTaskSendsIdempotentAck(t *testing.T) {
	cache := rescache.New(1 << 20)
	d := New(cache, zap.NewNop(), nil)
	defer d.Close()
	transport := newFakeTransport()
	d.SetServer(transport)

	owner := testOwner()
	cancelPayload, err := protocol.Encode(protocol.CancelCurrentTaskMsg{})
	require.NoError(t, err)

	d.OnMessage(owner, cancelPayload[4:])
	transport.waitForSend(t)

	got, err := protocol.Decode(transport.last(owner)[4:])
	require.NoError(t, err)
	assert.Equal(t, protocol.CancelCurrentTaskMsg{}, got)
}

func TestUnrecognizedRequestTypeSendsInvalidRequest(t *testing.T) {
	cache := rescache.New(1 << 20)
	d := New(cache, zap.NewNop(), nil)
	defer d.Close()
	transport := newFakeTransport()
	d.SetServer(transport)

	owner := testOwner()
	progressPayload, err := protocol.Encode(protocol.ProgressValueMsg{Value: 1})
	require.NoError(t, err)

	d.OnMessage(owner, progressPayload[4:])
	transport.waitForSend(t)

	got, err := protocol.Decode(transport.last(owner)[4:])
	require.NoError(t, err)
	msg, ok := got.(protocol.InvalidRequestMsg)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrInvalidRequestType, msg.ErrorCode)
}
