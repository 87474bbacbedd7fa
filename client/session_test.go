package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/computesrv/protocol"
)

// fakeSink records every ProgressSink call made against it, for
// asserting Session.OnMessage's routing without a real connection.
type fakeSink struct {
	ranges     [][2]int32
	values     []int32
	cancelling int
	doneResult interface{}
	doneErr    error
	doneCalls  int
}

func (f *fakeSink) SetRange(minimum, maximum int32) { f.ranges = append(f.ranges, [2]int32{minimum, maximum}) }
func (f *fakeSink) SetValue(value int32)            { f.values = append(f.values, value) }
func (f *fakeSink) Cancelling()                     { f.cancelling++ }
func (f *fakeSink) Done(result interface{}, err error) {
	f.doneCalls++
	f.doneResult = result
	f.doneErr = err
}

func newTestSession(sink ProgressSink) *Session {
	return &Session{logger: zap.NewNop(), sink: sink}
}

func TestOnMessageRoutesProgressRange(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink)

	payload, err := protocol.Encode(protocol.ProgressRangeMsg{Minimum: 0, Maximum: 99})
	require.NoError(t, err)
	s.OnMessage(payload[4:])

	require.Len(t, sink.ranges, 1)
	assert.Equal(t, [2]int32{0, 99}, sink.ranges[0])
}

func TestOnMessageRoutesProgressValue(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink)

	payload, err := protocol.Encode(protocol.ProgressValueMsg{Value: 42})
	require.NoError(t, err)
	s.OnMessage(payload[4:])

	require.Len(t, sink.values, 1)
	assert.Equal(t, int32(42), sink.values[0])
}

func TestOnMessageDeliversResultOnTaskFrame(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink)

	payload, err := protocol.Encode(protocol.SortArrayMsg{Numbers: []int32{1, 2, 3}})
	require.NoError(t, err)
	s.OnMessage(payload[4:])

	require.Equal(t, 1, sink.doneCalls)
	assert.NoError(t, sink.doneErr)
	assert.Equal(t, protocol.SortArrayMsg{Numbers: []int32{1, 2, 3}}, sink.doneResult)
}

func TestOnMessageDeliversErrorOnInvalidRequest(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink)

	payload, err := protocol.Encode(protocol.InvalidRequestMsg{ErrorCode: protocol.ErrAlreadyRunningTask, ErrorText: "busy"})
	require.NoError(t, err)
	s.OnMessage(payload[4:])

	require.Equal(t, 1, sink.doneCalls)
	require.Error(t, sink.doneErr)
	assert.Equal(t, "busy", sink.doneErr.Error())
}

func TestOnMessageDeliversCancelAck(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(sink)

	payload, err := protocol.Encode(protocol.CancelCurrentTaskMsg{})
	require.NoError(t, err)
	s.OnMessage(payload[4:])

	require.Equal(t, 1, sink.doneCalls)
	assert.NoError(t, sink.doneErr)
}

func TestOnMessageIgnoredWithoutTrackedSink(t *testing.T) {
	s := newTestSession(nil)

	payload, err := protocol.Encode(protocol.ProgressValueMsg{Value: 1})
	require.NoError(t, err)
	// Must not panic when no sink is tracked.
	s.OnMessage(payload[4:])
}

func TestSubmitWithoutTrackedSinkReturnsErrNoSink(t *testing.T) {
	s := newTestSession(nil)
	err := s.Submit(protocol.SortArrayMsg{Numbers: []int32{1}})
	assert.ErrorIs(t, err, ErrNoSink)
}
