package net

import (
	"fmt"
	"sync"

	"github.com/mosaicnetworks/murmur/src/wire"
)

// InmemTransport implements the Transport interface, to allow nodes to be
// tested in-memory without going over a network. Delivery is routed on the
// envelope's Dest field.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan wire.Message
	localAddr  string
	peers      map[string]*InmemTransport
}

// NewInmemTransport is used to initialize a new transport for the node with
// the given address.
func NewInmemTransport(addr string) *InmemTransport {
	return &InmemTransport{
		consumerCh: make(chan wire.Message, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
	}
}

// Listen implements the Transport interface. There is no deferred
// initialisation for the in-memory service.
func (i *InmemTransport) Listen() {
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan wire.Message {
	return i.consumerCh
}

// LocalAddr returns the address this transport was created with.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Send implements the Transport interface. It routes the message to the
// connected peer transport named by msg.Dest and never waits for the peer
// to process it.
func (i *InmemTransport) Send(msg wire.Message) error {
	i.RLock()
	peer, ok := i.peers[msg.Dest]
	i.RUnlock()

	if !ok {
		return fmt.Errorf("failed to connect to peer: %v", msg.Dest)
	}

	peer.consumerCh <- msg

	return nil
}

// Connect is used to connect this transport to another transport for a
// given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport.
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}
