package executor

import (
	"sync/atomic"

	"github.com/cppla/computesrv/netaddr"
	"github.com/cppla/computesrv/protocol"
)

// State is a task's lifecycle stage (§3).
type State int32

const (
	Running State = iota
	Cancelling
	Finished
)

// Task is the server-side record of one active compute submission.
type Task struct {
	Owner       netaddr.AddressPair
	Request     protocol.Request
	Fingerprint protocol.Fingerprint

	state     int32 // atomic State
	total     int32
	completed int32
}

func newTask(owner netaddr.AddressPair, req protocol.Request, fp protocol.Fingerprint, totalChunks int) *Task {
	return &Task{
		Owner:       owner,
		Request:     req,
		Fingerprint: fp,
		total:       int32(totalChunks),
	}
}

// State returns the task's current lifecycle stage.
func (t *Task) State() State { return State(atomic.LoadInt32(&t.state)) }

func (t *Task) markCancelling() bool {
	return atomic.CompareAndSwapInt32(&t.state, int32(Running), int32(Cancelling))
}

func (t *Task) markFinished() {
	atomic.StoreInt32(&t.state, int32(Finished))
}

func (t *Task) isCancelling() bool {
	return t.State() == Cancelling
}

// completeChunk records one finished chunk and returns the new completed
// count, used to drive monotone ProgressValue emission (§4.D step 5).
func (t *Task) completeChunk() int32 {
	return atomic.AddInt32(&t.completed, 1)
}
