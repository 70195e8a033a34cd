package net

import (
	"github.com/mosaicnetworks/murmur/src/wire"
)

// Transport provides an interface for moving protocol envelopes in and out
// of a node.
type Transport interface {

	// Listen starts the transport reading inbound messages.
	Listen()

	// Consumer returns a channel that delivers inbound messages. The channel
	// is closed when the inbound stream terminates.
	Consumer() <-chan wire.Message

	// Send writes a single outbound message. It must be safe for concurrent
	// use and must not block on the recipient processing the message.
	Send(msg wire.Message) error

	// Close permanently closes the transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
