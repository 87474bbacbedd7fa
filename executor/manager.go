// Package executor owns the worker pool and per-client task lifecycle:
// chunk planning, dispatch, progress aggregation, cancellation and
// task-specific result reduction (spec §4.D).
package executor

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/computesrv/netaddr"
	"github.com/cppla/computesrv/planner"
	"github.com/cppla/computesrv/protocol"
)

// Tunables, fixed per spec §4.D step 2.
const (
	MaxChunkCount = 100
	MinChunkSize  = 100
)

var (
	// ErrAlreadyRunning is returned by Submit when owner already has a task.
	ErrAlreadyRunning = fmt.Errorf("executor: task already running for owner")
	// ErrNotRunning is returned by Cancel when owner has no task.
	ErrNotRunning = fmt.Errorf("executor: no task running for owner")
)

// Sink receives the frames a task produces as it runs. Implementations
// hand these to the connection endpoint (4.B) for the owner's socket.
type Sink interface {
	SendProgressRange(owner netaddr.AddressPair, minimum, maximum int32)
	SendProgressValue(owner netaddr.AddressPair, value int32)
	SendResult(owner netaddr.AddressPair, fp protocol.Fingerprint, result protocol.Request)
	SendCancelAck(owner netaddr.AddressPair)
	SendError(owner netaddr.AddressPair, code protocol.ErrorCode, text string)
}

// Manager owns the shared worker pool and the per-owner task index. Its
// methods may be called from any goroutine: the task index is guarded
// by mu and task state is atomic. Sink methods are called from worker
// goroutines and from the goroutine that reduces a task's results, and
// that goroutine also removes finished tasks from the index.
type Manager struct {
	pool   *Pool
	sink   Sink
	logger *zap.Logger

	mu    sync.Mutex
	tasks map[netaddr.AddressPair]*Task
}

// NewManager builds a task manager backed by a pool sized to the host's
// logical processor count.
func NewManager(sink Sink, logger *zap.Logger) *Manager {
	return &Manager{
		pool:   NewPool(defaultPoolSize()),
		sink:   sink,
		logger: logger,
		tasks:  make(map[netaddr.AddressPair]*Task),
	}
}

// Close stops the worker pool, waiting for in-flight chunks to drain.
func (m *Manager) Close() { m.pool.Close() }

// TaskFor returns the active task for owner, if any.
func (m *Manager) TaskFor(owner netaddr.AddressPair) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[owner]
	return t, ok
}

// Submit begins executing req on behalf of owner. It fails with
// ErrAlreadyRunning if a task is already active for that owner (§4.D
// step 1).
func (m *Manager) Submit(owner netaddr.AddressPair, req protocol.Request, fp protocol.Fingerprint) error {
	m.mu.Lock()
	if _, exists := m.tasks[owner]; exists {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}

	chunks := planChunks(req)
	task := newTask(owner, req, fp, len(chunks))
	m.tasks[owner] = task
	m.mu.Unlock()

	m.sink.SendProgressRange(owner, 0, int32(len(chunks)))
	m.sink.SendProgressValue(owner, 0)

	if len(chunks) == 0 {
		// Empty plan: treat as a completed no-op (§7).
		m.finish(task, emptyResult(req), nil)
		return nil
	}

	m.runChunks(task, chunks)
	return nil
}

// Cancel marks owner's task Cancelling. The cancel acknowledgement is
// sent once the last in-flight chunk returns (§4.D step 6).
func (m *Manager) Cancel(owner netaddr.AddressPair) error {
	m.mu.Lock()
	task, ok := m.tasks[owner]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	task.markCancelling()
	return nil
}

// OwnerDisconnected cancels owner's task, if any, without sending a
// cancel acknowledgement (§4.D "Failure semantics").
func (m *Manager) OwnerDisconnected(owner netaddr.AddressPair) {
	m.mu.Lock()
	task, ok := m.tasks[owner]
	if ok {
		delete(m.tasks, owner)
	}
	m.mu.Unlock()
	if ok {
		task.markCancelling()
		task.markFinished()
	}
}

func (m *Manager) remove(owner netaddr.AddressPair) {
	m.mu.Lock()
	delete(m.tasks, owner)
	m.mu.Unlock()
}

// chunkResult is one worker's output slot, filled in chunk-index order
// regardless of completion order (§5 "Worker completions are observed
// in arbitrary order").
type chunkResult struct {
	sorted []int32
	primes []int32
	points []protocol.Point
	err    error
}

func (m *Manager) runChunks(task *Task, chunks []planner.Range) {
	n := len(chunks)
	results := make([]chunkResult, n)
	var progressMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)

	for i, r := range chunks {
		i, r := i, r
		m.pool.Submit(func() {
			defer func() {
				if rec := recover(); rec != nil {
					results[i].err = fmt.Errorf("chunk %d panicked: %v", i, rec)
				}
				wg.Done()
			}()

			if task.State() != Running {
				return
			}
			results[i] = runChunk(task.Request, r)

			// progressMu keeps each completed count and its ProgressValue
			// send together, so values reach the sink in increasing order.
			func() {
				progressMu.Lock()
				defer progressMu.Unlock()
				done := task.completeChunk()
				if task.State() == Running {
					m.sink.SendProgressValue(task.Owner, done)
				}
			}()
		})
	}

	go func() {
		wg.Wait()
		m.reduce(task, results)
	}()
}

func (m *Manager) reduce(task *Task, results []chunkResult) {
	if task.State() == Finished {
		// OwnerDisconnected already removed the task: late chunk results
		// are dropped and no terminal frame is sent.
		return
	}
	if task.isCancelling() {
		task.markFinished()
		m.remove(task.Owner)
		m.sink.SendCancelAck(task.Owner)
		return
	}

	for _, r := range results {
		if r.err != nil {
			task.markFinished()
			m.remove(task.Owner)
			m.sink.SendError(task.Owner, protocol.ErrUnspecified, r.err.Error())
			return
		}
	}

	result := reduceResults(task.Request, results)
	m.finish(task, result, nil)
}

func (m *Manager) finish(task *Task, result protocol.Request, err error) {
	task.markFinished()
	m.remove(task.Owner)
	if err != nil {
		m.sink.SendError(task.Owner, protocol.ErrUnspecified, err.Error())
		return
	}
	m.sink.SendResult(task.Owner, task.Fingerprint, result)
}

// planChunks computes this request's chunk plan over its task-specific
// input dimension (§4.D step 2).
func planChunks(req protocol.Request) []planner.Range {
	switch m := req.(type) {
	case protocol.SortArrayMsg:
		return planner.PlanIndices(len(m.Numbers), MaxChunkCount, MinChunkSize)
	case protocol.FindPrimeNumbersMsg:
		return planner.Plan(int64(m.XFrom), int64(m.XTo), MaxChunkCount, MinChunkSize)
	case protocol.CalculateFunctionMsg:
		return planStepped(m)
	default:
		return nil
	}
}

// planStepped plans CalculateFunction over the index space of sample
// points (0..count-1), then maps each index sub-range back to an x
// sub-range, preserving the disjoint-sub-range chunking spec §9 adopts.
func planStepped(m protocol.CalculateFunctionMsg) []planner.Range {
	if m.XStep < 1 || m.XFrom > m.XTo {
		return nil
	}
	count := (int64(m.XTo)-int64(m.XFrom))/int64(m.XStep) + 1
	if count <= 0 {
		return nil
	}
	idxChunks := planner.Plan(0, count-1, MaxChunkCount, MinChunkSize)
	out := make([]planner.Range, 0, len(idxChunks))
	for _, ic := range idxChunks {
		x0 := int64(m.XFrom) + ic.From*int64(m.XStep)
		x1 := int64(m.XFrom) + ic.To*int64(m.XStep)
		out = append(out, planner.Range{From: x0, To: x1})
	}
	return out
}

func runChunk(req protocol.Request, r planner.Range) chunkResult {
	switch m := req.(type) {
	case protocol.SortArrayMsg:
		return chunkResult{sorted: sortChunk(m.Numbers[r.From : r.To+1])}
	case protocol.FindPrimeNumbersMsg:
		return chunkResult{primes: primesInRange(int32(r.From), int32(r.To))}
	case protocol.CalculateFunctionMsg:
		step := m.XStep
		return chunkResult{points: tabulate(m.EquationType, int32(r.From), int32(r.To), step, m.A, m.B, m.C)}
	default:
		return chunkResult{err: fmt.Errorf("executor: unsupported task type %T", req)}
	}
}

func reduceResults(req protocol.Request, results []chunkResult) protocol.Request {
	switch m := req.(type) {
	case protocol.SortArrayMsg:
		chunks := make([][]int32, len(results))
		for i, r := range results {
			chunks[i] = r.sorted
		}
		return protocol.SortArrayMsg{Numbers: mergeSortedChunks(chunks)}
	case protocol.FindPrimeNumbersMsg:
		var primes []int32
		for _, r := range results {
			primes = append(primes, r.primes...)
		}
		return protocol.FindPrimeNumbersMsg{XFrom: m.XFrom, XTo: m.XTo, PrimeNumbers: primes}
	case protocol.CalculateFunctionMsg:
		var points []protocol.Point
		for _, r := range results {
			points = append(points, r.points...)
		}
		return protocol.CalculateFunctionMsg{
			EquationType: m.EquationType,
			XFrom:        m.XFrom, XTo: m.XTo, XStep: m.XStep,
			A: m.A, B: m.B, C: m.C,
			Points: points,
		}
	default:
		return req
	}
}

// emptyResult builds the output for a task whose plan came back empty
// (§7: an empty plan is a completed no-op, not an error).
func emptyResult(req protocol.Request) protocol.Request {
	switch m := req.(type) {
	case protocol.SortArrayMsg:
		return protocol.SortArrayMsg{Numbers: []int32{}}
	case protocol.FindPrimeNumbersMsg:
		return protocol.FindPrimeNumbersMsg{XFrom: m.XFrom, XTo: m.XTo, PrimeNumbers: []int32{}}
	case protocol.CalculateFunctionMsg:
		return protocol.CalculateFunctionMsg{
			EquationType: m.EquationType,
			XFrom:        m.XFrom, XTo: m.XTo, XStep: m.XStep,
			A: m.A, B: m.B, C: m.C,
			Points: []protocol.Point{},
		}
	default:
		return req
	}
}
