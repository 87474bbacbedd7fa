package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/computesrv/netaddr"
	"github.com/cppla/computesrv/protocol"
)

func newTestTask() *Task {
	return newTask(netaddr.AddressPair{IP: "127.0.0.1", Port: 1}, protocol.SortArrayMsg{}, 0, 3)
}

func TestTaskStartsRunning(t *testing.T) {
	task := newTestTask()
	assert.Equal(t, Running, task.State())
	assert.False(t, task.isCancelling())
}

func TestMarkCancellingOnlySucceedsFromRunning(t *testing.T) {
	task := newTestTask()

	assert.True(t, task.markCancelling())
	assert.Equal(t, Cancelling, task.State())
	assert.True(t, task.isCancelling())

	// A second cancel request against an already-cancelling task is a
	// no-op CAS failure, not an error.
	assert.False(t, task.markCancelling())
	assert.Equal(t, Cancelling, task.State())
}

func TestMarkFinishedEndsCancelling(t *testing.T) {
	task := newTestTask()
	task.markFinished()

	assert.Equal(t, Finished, task.State())
	assert.False(t, task.isCancelling())
	// Finished tasks reject late cancel requests too.
	assert.False(t, task.markCancelling())
}

func TestCompleteChunkCounts(t *testing.T) {
	task := newTestTask()
	assert.EqualValues(t, 1, task.completeChunk())
	assert.EqualValues(t, 2, task.completeChunk())
	assert.EqualValues(t, 3, task.completeChunk())
}
