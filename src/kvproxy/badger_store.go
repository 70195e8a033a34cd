package kvproxy

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// BadgerStore is a Store backed by a local Badger database: durable,
// node-local, and trivially linearizable since a single process owns it.
// Useful for running the key-value workload without a harness or an etcd
// cluster.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore creates or reopens a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   db,
		path: path,
	}, nil
}

// Name implements the Store interface.
func (s *BadgerStore) Name() string {
	return "badger"
}

// Read implements the Store interface.
func (s *BadgerStore) Read(ctx context.Context, key string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out interface{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return wire.NewRPCError(wire.KeyDoesNotExist, fmt.Sprintf("key %q does not exist", key))
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			v, err := decodeValue(val)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Write implements the Store interface.
func (s *BadgerStore) Write(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encoded)
	})
}

// CompareAndSwap implements the Store interface. The read, compare, and set
// all happen inside one Badger update transaction.
func (s *BadgerStore) CompareAndSwap(ctx context.Context, key string, from, to interface{}, createIfNotExists bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fromEncoded, err := encodeValue(from)
	if err != nil {
		return err
	}
	toEncoded, err := encodeValue(to)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			if !createIfNotExists {
				return wire.NewRPCError(wire.KeyDoesNotExist, fmt.Sprintf("key %q does not exist", key))
			}
			return txn.Set([]byte(key), toEncoded)
		}
		if err != nil {
			return err
		}

		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if !bytes.Equal(current, fromEncoded) {
			return wire.NewRPCError(wire.PreconditionFailed,
				fmt.Sprintf("current value of %q does not match", key))
		}

		return txn.Set([]byte(key), toEncoded)
	})
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
