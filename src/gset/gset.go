// Package gset implements the replicated grow-only set workload: a state
// CRDT whose union merge is commutative, associative and idempotent, with a
// periodic full-state anti-entropy loop pushing snapshots to neighbors.
package gset

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/sirupsen/logrus"
)

// DefaultAntiEntropyInterval is the reference replication period.
const DefaultAntiEntropyInterval = 5 * time.Second

// Engine is a grow-only replicated set of integers.
type Engine struct {
	// setLock guards elements only; it is released before any send.
	setLock  sync.Mutex
	elements map[int64]struct{}

	interval time.Duration

	logger *logrus.Entry
}

// NewEngine returns an empty set engine replicating every interval.
func NewEngine(interval time.Duration, logger *logrus.Entry) *Engine {
	if interval <= 0 {
		interval = DefaultAntiEntropyInterval
	}
	return &Engine{
		elements: make(map[int64]struct{}),
		interval: interval,
		logger:   logger.WithField("component", "gset"),
	}
}

// Startup implements node.Application. It starts the anti-entropy loop,
// which runs for the lifetime of the process and is only stopped by node
// shutdown.
func (e *Engine) Startup(n *node.Node) error {
	go e.antiEntropy(n)
	return nil
}

// Process implements node.Application.
func (e *Engine) Process(n *node.Node, msg wire.Message) error {
	switch msg.Type() {
	case "add":
		var body elementBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return wire.NewRPCError(wire.MalformedRequest, err.Error())
		}

		e.Add(body.Element)
		e.pushOne(n, body.Element)

		return n.Reply(msg, wire.Body{Type: "add_ok"})

	case "read":
		return n.Reply(msg, readOKBody{
			Body:  wire.Body{Type: "read_ok"},
			Value: e.Snapshot(),
		})

	case "replicate_one":
		var body elementBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return wire.NewRPCError(wire.MalformedRequest, err.Error())
		}

		// Peer-to-peer merge; no reply expected or sent.
		e.MergeOne(body.Element)
		return nil

	case "replicate_full":
		var body fullSetBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return wire.NewRPCError(wire.MalformedRequest, err.Error())
		}

		e.MergeFull(body.Value)
		return nil

	default:
		e.logger.WithField("type", msg.Type()).Debug("Ignoring message")
		return nil
	}
}

// Add inserts element locally. Inserting a present element is a no-op.
func (e *Engine) Add(element int64) {
	e.setLock.Lock()
	defer e.setLock.Unlock()
	e.elements[element] = struct{}{}
}

// MergeOne merges a single element received from a peer. Identical effect
// to Add.
func (e *Engine) MergeOne(element int64) {
	e.Add(element)
}

// MergeFull unions a peer's full snapshot into local state.
func (e *Engine) MergeFull(elements []int64) {
	e.setLock.Lock()
	defer e.setLock.Unlock()
	for _, el := range elements {
		e.elements[el] = struct{}{}
	}
}

// Snapshot returns all elements, sorted. The slice is never nil.
func (e *Engine) Snapshot() []int64 {
	e.setLock.Lock()
	defer e.setLock.Unlock()

	values := make([]int64, 0, len(e.elements))
	for el := range e.elements {
		values = append(values, el)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return values
}

// Stats implements node.Application.
func (e *Engine) Stats() map[string]string {
	e.setLock.Lock()
	defer e.setLock.Unlock()

	return map[string]string{
		"set_size":             strconv.Itoa(len(e.elements)),
		"antientropy_interval": e.interval.String(),
	}
}

// pushOne eagerly propagates a locally added element to all neighbors,
// fire-and-forget. Lost pushes are repaired by the anti-entropy loop.
func (e *Engine) pushOne(n *node.Node, element int64) {
	for _, neighbor := range n.Peers().Neighbors() {
		neighbor := neighbor
		n.Go(func() {
			body := elementBody{
				Body:    wire.Body{Type: "replicate_one"},
				Element: element,
			}
			if err := n.Send(neighbor, body); err != nil {
				telemetry.ForwardsDropped.Inc()
				e.logger.WithError(err).WithField("dest", neighbor).Warn("Dropped replicate_one")
			}
		})
	}
}

// antiEntropy pushes the full snapshot to every neighbor on a fixed
// interval. The snapshot is taken under the set lock; the lock is released
// before anything is sent, so a slow peer cannot stall request handling.
func (e *Engine) antiEntropy(n *node.Node) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.replicate(n)
		case <-n.Done():
			return
		}
	}
}

func (e *Engine) replicate(n *node.Node) {
	snapshot := e.Snapshot()

	telemetry.AntiEntropyRounds.Inc()
	e.logger.WithField("set_size", len(snapshot)).Debug("Emitting replication signal")

	for _, neighbor := range n.Peers().Neighbors() {
		neighbor := neighbor
		n.Go(func() {
			body := fullSetBody{
				Body:  wire.Body{Type: "replicate_full"},
				Value: snapshot,
			}
			if err := n.Send(neighbor, body); err != nil {
				telemetry.ForwardsDropped.Inc()
				e.logger.WithError(err).WithField("dest", neighbor).Warn("Dropped replicate_full")
			}
		})
	}
}

type elementBody struct {
	wire.Body
	Element int64 `json:"element"`
}

type fullSetBody struct {
	wire.Body
	Value []int64 `json:"value"`
}

type readOKBody struct {
	wire.Body
	Value []int64 `json:"value"`
}
