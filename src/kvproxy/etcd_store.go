package kvproxy

import (
	"context"
	"fmt"
	"time"

	"github.com/mosaicnetworks/murmur/src/wire"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore is a Store backed by an etcd cluster, for running the
// key-value workload outside the harness against a real consistent store.
// Compare-and-swap is a single-key transaction on value equality.
type EtcdStore struct {
	cli *clientv3.Client
}

// NewEtcdStore connects to the given etcd endpoints.
func NewEtcdStore(endpoints []string) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &EtcdStore{cli: cli}, nil
}

// Name implements the Store interface.
func (s *EtcdStore) Name() string {
	return "etcd"
}

// Read implements the Store interface.
func (s *EtcdStore) Read(ctx context.Context, key string) (interface{}, error) {
	resp, err := s.cli.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if len(resp.Kvs) == 0 {
		return nil, wire.NewRPCError(wire.KeyDoesNotExist, fmt.Sprintf("key %q does not exist", key))
	}

	return decodeValue(resp.Kvs[0].Value)
}

// Write implements the Store interface.
func (s *EtcdStore) Write(ctx context.Context, key string, value interface{}) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}

	_, err = s.cli.Put(ctx, key, string(encoded))
	return err
}

// CompareAndSwap implements the Store interface. The swap is attempted as
// one transaction comparing the stored value against from; the create path
// for an absent key is a second transaction guarded on the key still being
// absent. Neither transaction is retried; a lost race surfaces as
// PreconditionFailed, per the no-internal-retry policy.
func (s *EtcdStore) CompareAndSwap(ctx context.Context, key string, from, to interface{}, createIfNotExists bool) error {
	fromEncoded, err := encodeValue(from)
	if err != nil {
		return err
	}
	toEncoded, err := encodeValue(to)
	if err != nil {
		return err
	}

	resp, err := s.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(key), "=", string(fromEncoded))).
		Then(clientv3.OpPut(key, string(toEncoded))).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return err
	}

	if resp.Succeeded {
		return nil
	}

	current := resp.Responses[0].GetResponseRange()
	if len(current.Kvs) == 0 {
		if !createIfNotExists {
			return wire.NewRPCError(wire.KeyDoesNotExist, fmt.Sprintf("key %q does not exist", key))
		}

		createResp, err := s.cli.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, string(toEncoded))).
			Commit()
		if err != nil {
			return err
		}
		if !createResp.Succeeded {
			return wire.NewRPCError(wire.PreconditionFailed, fmt.Sprintf("key %q was created concurrently", key))
		}
		return nil
	}

	return wire.NewRPCError(wire.PreconditionFailed,
		fmt.Sprintf("current value of %q does not match", key))
}

// Close releases the client connection.
func (s *EtcdStore) Close() error {
	return s.cli.Close()
}
