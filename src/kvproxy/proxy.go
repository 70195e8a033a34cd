// Package kvproxy implements the linearizable key-value workload: each
// request is translated into a call against an external consistent store
// and the store's answer is relayed to the caller. The proxy itself holds
// no key-value state.
package kvproxy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single store call.
const DefaultTimeout = 1 * time.Second

// nodeBinder is implemented by stores that talk to the harness transport
// and therefore need the node handle, which only exists after init.
type nodeBinder interface {
	Bind(n *node.Node)
}

// Proxy is the node.Application for the key-value workload.
type Proxy struct {
	store   Store
	timeout time.Duration
	logger  *logrus.Entry
}

// NewProxy returns a proxy over store. Each store call is bounded by
// timeout.
func NewProxy(store Store, timeout time.Duration, logger *logrus.Entry) *Proxy {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Proxy{
		store:   store,
		timeout: timeout,
		logger:  logger.WithField("component", "kvproxy"),
	}
}

// Startup implements node.Application.
func (p *Proxy) Startup(n *node.Node) error {
	if b, ok := p.store.(nodeBinder); ok {
		b.Bind(n)
	}
	return nil
}

// Process implements node.Application. Every branch awaits the store before
// replying; no lock is held while suspended.
func (p *Proxy) Process(n *node.Node, msg wire.Message) error {
	switch msg.Type() {
	case "read":
		var body kvReadBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return wire.NewRPCError(wire.MalformedRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		value, err := p.store.Read(ctx, body.Key)
		if err != nil {
			return p.storeError(err)
		}

		return n.Reply(msg, kvReadOKBody{
			Body:  wire.Body{Type: "read_ok"},
			Value: value,
		})

	case "write":
		var body kvWriteBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return wire.NewRPCError(wire.MalformedRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.store.Write(ctx, body.Key, body.Value); err != nil {
			return p.storeError(err)
		}

		return n.Reply(msg, wire.Body{Type: "write_ok"})

	case "cas":
		var body kvCASBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return wire.NewRPCError(wire.MalformedRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.store.CompareAndSwap(ctx, body.Key, body.From, body.To, body.CreateIfNotExists); err != nil {
			return p.storeError(err)
		}

		return n.Reply(msg, wire.Body{Type: "cas_ok"})

	default:
		p.logger.WithField("type", msg.Type()).Debug("Ignoring message")
		return nil
	}
}

// storeError maps a store failure onto a protocol error. Business errors
// pass through with their codes; caller-side cancellation is surfaced as a
// Timeout, distinctly from store-side failures, which become Crash.
func (p *Proxy) storeError(err error) error {
	switch {
	case wire.ErrorCode(err) >= 0:
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return wire.NewRPCError(wire.Timeout, err.Error())
	default:
		p.logger.WithError(err).Error("Store call failed")
		return wire.NewRPCError(wire.Crash, err.Error())
	}
}

// Stats implements node.Application.
func (p *Proxy) Stats() map[string]string {
	return map[string]string{
		"store_backend": p.store.Name(),
		"store_timeout": p.timeout.String(),
	}
}

type kvReadBody struct {
	wire.Body
	Key string `json:"key"`
}

type kvReadOKBody struct {
	wire.Body
	Value interface{} `json:"value"`
}

type kvWriteBody struct {
	wire.Body
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type kvCASBody struct {
	wire.Body
	Key               string      `json:"key"`
	From              interface{} `json:"from"`
	To                interface{} `json:"to"`
	CreateIfNotExists bool        `json:"create_if_not_exists,omitempty"`
}
