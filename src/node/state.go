package node

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a node: Waiting (before the init message),
// Running, or Shutdown.
type State uint32

const (
	// Waiting is the initial state, before the harness has assigned the node
	// its identity.
	Waiting State = iota
	// Running is the normal message-handling state.
	Running
	// Shutdown is terminal.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to the waitgroup. Every inbound message is
// handled through here, so there is no upper bound; Shutdown waits for all
// of them.
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	atomic.AddInt32(&b.wgCount, 1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}

func (b *state) inFlight() int32 {
	return atomic.LoadInt32(&b.wgCount)
}
