// Package broadcast implements the gossip broadcast workload: a value is
// flooded to neighbors, with a seen-set bounding re-forwards to at most one
// per value per node.
package broadcast

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/sirupsen/logrus"
)

// DropHook is invoked when a fire-and-forget forward fails. Loss is
// repaired by gossip redundancy, not by retry; the hook exists so that it
// is observable.
type DropHook func(dest string, err error)

// Disseminator floods newly learned values to neighbors. Deduplication is
// keyed on the value itself, not on message identity: any re-delivery of a
// known value, from any peer, is a no-op.
type Disseminator struct {
	// seenLock guards seen only; it is released before any forwarding.
	seenLock sync.Mutex
	seen     map[int64]struct{}

	dropHook DropHook

	logger *logrus.Entry
}

// NewDisseminator returns an empty Disseminator.
func NewDisseminator(logger *logrus.Entry) *Disseminator {
	d := &Disseminator{
		seen:   make(map[int64]struct{}),
		logger: logger.WithField("component", "broadcast"),
	}
	d.dropHook = func(dest string, err error) {
		d.logger.WithError(err).WithField("dest", dest).Warn("Dropped forward")
	}
	return d
}

// SetDropHook replaces the default drop hook, which logs at warn level.
func (d *Disseminator) SetDropHook(hook DropHook) {
	d.dropHook = hook
}

// Startup implements node.Application. The disseminator has no background
// loop.
func (d *Disseminator) Startup(n *node.Node) error {
	return nil
}

// Process implements node.Application.
func (d *Disseminator) Process(n *node.Node, msg wire.Message) error {
	switch msg.Type() {
	case "broadcast":
		var body broadcastBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return wire.NewRPCError(wire.MalformedRequest, err.Error())
		}

		d.Receive(n, body.Message, msg.Src)

		return n.Reply(msg, wire.Body{Type: "broadcast_ok"})

	case "read":
		return n.Reply(msg, readOKBody{
			Body:     wire.Body{Type: "read_ok"},
			Messages: d.Snapshot(),
		})

	default:
		// Unrecognised kinds are a silent no-op; the harness treats the
		// absence of a reply as acknowledgement of receipt.
		d.logger.WithField("type", msg.Type()).Debug("Ignoring message")
		return nil
	}
}

// Receive records value in the seen-set. If it was not known before, it
// triggers an asynchronous re-broadcast to every neighbor and returns true.
// When from is another cluster node, that node is excluded from the fan-out
// to avoid echoing the value straight back; values arriving from harness
// clients go to all neighbors. Correctness does not depend on the
// exclusion, only traffic volume does.
func (d *Disseminator) Receive(n *node.Node, value int64, from string) bool {
	d.seenLock.Lock()
	if _, ok := d.seen[value]; ok {
		d.seenLock.Unlock()
		return false
	}
	d.seen[value] = struct{}{}
	d.seenLock.Unlock()

	d.logger.WithField("message", value).Debug("Learned value")

	d.forward(n, value, from)

	return true
}

// forward fans value out to the neighbor list, fire-and-forget. It runs
// with no lock held; each send is submitted to the node's goroutine pool so
// the triggering handler never waits on it.
func (d *Disseminator) forward(n *node.Node, value int64, from string) {
	topology := n.Peers()
	fromCluster := topology.Contains(from)

	for _, neighbor := range topology.Neighbors() {
		if fromCluster && neighbor == from {
			continue
		}

		neighbor := neighbor
		n.Go(func() {
			body := broadcastBody{
				Body:    wire.Body{Type: "broadcast"},
				Message: value,
			}
			if err := n.Send(neighbor, body); err != nil {
				telemetry.ForwardsDropped.Inc()
				d.dropHook(neighbor, err)
			}
		})
	}
}

// Snapshot returns all seen values. The order is unspecified but stable
// within a call; the slice is never nil.
func (d *Disseminator) Snapshot() []int64 {
	d.seenLock.Lock()
	defer d.seenLock.Unlock()

	values := make([]int64, 0, len(d.seen))
	for v := range d.seen {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return values
}

// Stats implements node.Application.
func (d *Disseminator) Stats() map[string]string {
	d.seenLock.Lock()
	defer d.seenLock.Unlock()

	return map[string]string{
		"seen_values": strconv.Itoa(len(d.seen)),
	}
}

type broadcastBody struct {
	wire.Body
	Message int64 `json:"message"`
}

type readOKBody struct {
	wire.Body
	Messages []int64 `json:"messages"`
}
