package kvproxy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// LinKVService is the address of the harness's linearizable key-value
// service.
const LinKVService = "lin-kv"

// LinKV is a Store backed by the harness's lin-kv service, reached over the
// node's own transport with synchronous RPCs. This is the default backend.
type LinKV struct {
	node    *node.Node
	service string
}

// NewLinKV returns a store client for the lin-kv service. The node handle
// is bound by the proxy at startup.
func NewLinKV() *LinKV {
	return &LinKV{
		service: LinKVService,
	}
}

// Bind implements nodeBinder.
func (s *LinKV) Bind(n *node.Node) {
	s.node = n
}

// Name implements the Store interface.
func (s *LinKV) Name() string {
	return s.service
}

// Read implements the Store interface.
func (s *LinKV) Read(ctx context.Context, key string) (interface{}, error) {
	if s.node == nil {
		return nil, errors.New("lin-kv store not bound to a node")
	}

	resp, err := s.node.SyncRPC(ctx, s.service, kvReadBody{
		Body: wire.Body{Type: "read"},
		Key:  key,
	})
	if err != nil {
		return nil, err
	}

	var body kvReadOKBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, err
	}

	// The harness workloads traffic in integers; surface them as ints.
	if f, ok := body.Value.(float64); ok {
		return int(f), nil
	}
	return body.Value, nil
}

// Write implements the Store interface.
func (s *LinKV) Write(ctx context.Context, key string, value interface{}) error {
	if s.node == nil {
		return errors.New("lin-kv store not bound to a node")
	}

	_, err := s.node.SyncRPC(ctx, s.service, kvWriteBody{
		Body:  wire.Body{Type: "write"},
		Key:   key,
		Value: value,
	})
	return err
}

// CompareAndSwap implements the Store interface.
func (s *LinKV) CompareAndSwap(ctx context.Context, key string, from, to interface{}, createIfNotExists bool) error {
	if s.node == nil {
		return errors.New("lin-kv store not bound to a node")
	}

	_, err := s.node.SyncRPC(ctx, s.service, kvCASBody{
		Body:              wire.Body{Type: "cas"},
		Key:               key,
		From:              from,
		To:                to,
		CreateIfNotExists: createIfNotExists,
	})
	return err
}
