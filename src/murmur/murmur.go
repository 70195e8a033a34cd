// Package murmur wires a workload application, a transport, a node and the
// optional HTTP service into a runnable engine.
package murmur

import (
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/service"
)

// Murmur is the top-level engine. Transport may be preset before Init (the
// tests preset an in-memory transport); by default the engine speaks the
// harness's stdio framing.
type Murmur struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Service   *service.Service

	app node.Application
}

// NewMurmur returns an unstarted engine for the given workload.
func NewMurmur(conf *config.Config, app node.Application) *Murmur {
	return &Murmur{
		Config: conf,
		app:    app,
	}
}

// Init assembles the engine components.
func (m *Murmur) Init() error {
	logger := m.Config.Logger()

	if m.Transport == nil {
		m.Transport = net.NewStdioTransport(logger)
	}

	m.Node = node.NewNode(m.Transport, m.app, logger)

	if !m.Config.NoService {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, logger)
	}

	return nil
}

// Run starts the HTTP service, then blocks in the node's main loop until
// the inbound stream terminates or the node is shut down.
func (m *Murmur) Run() {
	if m.Service != nil {
		go m.Service.Serve()
	}

	m.Node.Run()
}
