package node

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/sirupsen/logrus"
)

// HandlerFunc is the signature of a callback invoked with the reply to an
// outbound RPC.
type HandlerFunc func(msg wire.Message) error

// Application is a workload served by a Node. Exactly one application is
// registered per node process.
type Application interface {
	// Startup is called once, after the node has processed the init message
	// and before init_ok is sent. Long-lived background loops are started
	// here.
	Startup(n *Node) error

	// Process handles one inbound message. It runs on its own goroutine,
	// concurrently with other handlers. Returning a *wire.RPCError produces
	// an error reply with that code; any other error produces a Crash reply.
	// Message kinds the application does not recognise must be a silent
	// no-op, never an error.
	Process(n *Node, msg wire.Message) error

	// Stats returns application counters for the stats endpoint.
	Stats() map[string]string
}

// Node is the message dispatcher. It owns the transport, the topology view,
// and the msg_id/in_reply_to plumbing, and routes everything else to its
// Application.
type Node struct {
	state

	logger *logrus.Entry

	trans net.Transport
	netCh <-chan wire.Message

	app Application

	// coreLock guards id, topology, nextMsgID and callbacks. It is never
	// held across a transport call.
	coreLock  sync.Mutex
	id        string
	topology  *peers.Topology
	nextMsgID int
	callbacks map[int]HandlerFunc

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	start time.Time
}

// NewNode is a factory method that returns a Node instance serving app over
// trans.
func NewNode(trans net.Transport, app Application, logger *logrus.Entry) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		logger:     logger,
		trans:      trans,
		netCh:      trans.Consumer(),
		app:        app,
		callbacks:  make(map[int]HandlerFunc),
		sigintCh:   sigintCh,
		shutdownCh: make(chan struct{}),
	}

	return &node
}

// RunAsync calls Run on a separate goroutine.
func (n *Node) RunAsync() {
	go n.Run()
}

// Run invokes the main loop of the node. It returns when the inbound stream
// terminates or Shutdown is called, after all in-flight handlers have
// completed.
func (n *Node) Run() {
	n.start = time.Now()

	n.trans.Listen()

	for {
		select {
		case msg, ok := <-n.netCh:
			if !ok {
				n.waitRoutines()
				return
			}
			n.dispatch(msg)
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT")
			n.Shutdown()
		case <-n.shutdownCh:
			n.waitRoutines()
			return
		}
	}
}

// dispatch parses the reserved body fields and hands the message off. The
// init message is handled synchronously so that identity and topology are
// in place before any concurrent handler runs; everything else gets its own
// goroutine.
func (n *Node) dispatch(msg wire.Message) {
	var body wire.Body
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		n.logger.WithError(err).Error("Unmarshalling message body")
		return
	}

	telemetry.MessagesReceived.WithLabelValues(body.Type).Inc()

	if body.Type == "init" {
		n.handleInit(msg)
		return
	}

	n.goFunc(func() { n.process(msg, body) })
}

func (n *Node) process(msg wire.Message, body wire.Body) {
	// Replies to our own RPCs are routed to the registered callback.
	if body.InReplyTo != 0 {
		n.coreLock.Lock()
		h := n.callbacks[body.InReplyTo]
		delete(n.callbacks, body.InReplyTo)
		n.coreLock.Unlock()

		if h == nil {
			n.logger.WithField("in_reply_to", body.InReplyTo).
				Debug("Ignoring reply with no callback")
			return
		}

		if err := h(msg); err != nil {
			n.logger.WithError(err).Error("Processing callback")
		}
		return
	}

	var err error
	switch body.Type {
	case "topology":
		err = n.handleTopology(msg)
	default:
		if n.app == nil {
			n.logger.WithField("type", body.Type).Debug("No application registered")
			return
		}
		err = n.app.Process(n, msg)
	}

	if err == nil {
		return
	}

	// A handler error becomes an error reply; it never takes the node down.
	switch err := err.(type) {
	case *wire.RPCError:
		if rerr := n.Reply(msg, err); rerr != nil {
			n.logger.WithError(rerr).Error("Sending error reply")
		}
	default:
		n.logger.WithError(err).WithField("type", body.Type).Error("Processing message")
		if rerr := n.Reply(msg, wire.NewRPCError(wire.Crash, err.Error())); rerr != nil {
			n.logger.WithError(rerr).Error("Sending error reply")
		}
	}
}

func (n *Node) handleInit(msg wire.Message) {
	var body wire.InitBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		n.logger.WithError(err).Error("Unmarshalling init body")
		return
	}

	n.coreLock.Lock()
	n.id = body.NodeID
	n.topology = peers.NewTopology(body.NodeID, body.NodeIDs)
	n.coreLock.Unlock()

	n.logger = n.logger.WithField("this_id", body.NodeID)

	if n.app != nil {
		if err := n.app.Startup(n); err != nil {
			n.logger.WithError(err).Error("Application startup")
		}
	}

	n.setState(Running)

	n.logger.WithField("node_ids", body.NodeIDs).Debug("Node initialised")

	if err := n.Reply(msg, wire.Body{Type: "init_ok"}); err != nil {
		n.logger.WithError(err).Error("Replying to init")
	}
}

// handleTopology updates the topology view. A mapping that omits this
// node's ID is a fatal configuration error; it is surfaced as an error
// reply and an error log rather than a crash, to honour the harness
// liveness contract.
func (n *Node) handleTopology(msg wire.Message) error {
	var body wire.TopologyBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		return wire.NewRPCError(wire.MalformedRequest, err.Error())
	}

	if n.Peers() == nil {
		return wire.NewRPCError(wire.TemporarilyUnavailable, "node not initialised")
	}

	if err := n.Peers().Update(body.Topology); err != nil {
		n.logger.WithError(err).Error("Updating topology")
		return wire.NewRPCError(wire.MalformedRequest, err.Error())
	}

	n.logger.WithField("neighbors", n.Peers().Neighbors()).Debug("Topology updated")

	return n.Reply(msg, wire.Body{Type: "topology_ok"})
}

// ID returns the identifier for this node. Only valid after the init
// message has been received.
func (n *Node) ID() string {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.id
}

// Peers returns the node's topology view. Only valid after the init message
// has been received.
func (n *Node) Peers() *peers.Topology {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.topology
}

// Go submits f to the node's tracked goroutine pool. Used by applications
// for fire-and-forget fan-out, so that Shutdown can wait for it.
func (n *Node) Go(f func()) {
	n.goFunc(f)
}

// Done returns a channel closed when the node shuts down. Background loops
// select on it.
func (n *Node) Done() <-chan struct{} {
	return n.shutdownCh
}

// Send sends a message body to a given destination, fire-and-forget.
func (n *Node) Send(dest string, body interface{}) error {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return err
	}

	msg := wire.Message{
		Src:  n.ID(),
		Dest: dest,
		Body: bodyJSON,
	}

	telemetry.MessagesSent.Inc()

	return n.trans.Send(msg)
}

// Reply responds to a request, tying the response to the request's msg_id.
func (n *Node) Reply(req wire.Message, body interface{}) error {
	var reqBody wire.Body
	if err := json.Unmarshal(req.Body, &reqBody); err != nil {
		return err
	}

	// Marshal/unmarshal through a map to inject the in_reply_to field into
	// an arbitrary body type.
	b := make(map[string]interface{})
	if buf, err := json.Marshal(body); err != nil {
		return err
	} else if err := json.Unmarshal(buf, &b); err != nil {
		return err
	}
	b["in_reply_to"] = reqBody.MsgID

	return n.Send(req.Src, b)
}

// RPC sends an asynchronous request; handler is invoked when the response
// arrives.
func (n *Node) RPC(dest string, body interface{}, handler HandlerFunc) error {
	n.coreLock.Lock()
	n.nextMsgID++
	msgID := n.nextMsgID
	n.callbacks[msgID] = handler
	n.coreLock.Unlock()

	b := make(map[string]interface{})
	if buf, err := json.Marshal(body); err != nil {
		return err
	} else if err := json.Unmarshal(buf, &b); err != nil {
		return err
	}
	b["msg_id"] = msgID

	return n.Send(dest, b)
}

// SyncRPC sends a request and waits for the response or for ctx to expire.
// Protocol errors carried in the response body are returned as *wire.RPCError.
func (n *Node) SyncRPC(ctx context.Context, dest string, body interface{}) (wire.Message, error) {
	respCh := make(chan wire.Message, 1)
	if err := n.RPC(dest, body, func(m wire.Message) error {
		respCh <- m
		return nil
	}); err != nil {
		return wire.Message{}, err
	}

	select {
	case <-ctx.Done():
		return wire.Message{}, ctx.Err()
	case m := <-respCh:
		if err := m.RPCError(); err != nil {
			return m, err
		}
		return m, nil
	}
}

// Shutdown shuts the node down. Safe to call more than once.
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop background loops and wait for concurrent handlers
		close(n.shutdownCh)

		n.waitRoutines()

		//The transport is only closed once all concurrent operations are
		//finished, otherwise they would panic trying to use a closed object
		n.trans.Close()
	}
}

// GetStats returns runtime counters, merged with the application's own.
func (n *Node) GetStats() map[string]string {
	n.coreLock.Lock()
	lastMsgID := n.nextMsgID
	pending := len(n.callbacks)
	topology := n.topology
	n.coreLock.Unlock()

	numPeers := 0
	if topology != nil {
		numPeers = topology.Len()
	}

	s := map[string]string{
		"id":           n.ID(),
		"state":        n.getState().String(),
		"uptime":       fmt.Sprintf("%v", time.Since(n.start).Round(time.Millisecond)),
		"num_peers":    strconv.Itoa(numPeers),
		"last_msg_id":  strconv.Itoa(lastMsgID),
		"pending_rpcs": strconv.Itoa(pending),
		"in_flight":    strconv.Itoa(int(n.inFlight())),
	}

	if n.app != nil {
		for k, v := range n.app.Stats() {
			s[k] = v
		}
	}

	return s
}
