package net

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/sirupsen/logrus"
)

// StdioTransport speaks the harness framing: one JSON-encoded envelope per
// line, inbound on stdin and outbound on stdout. Log output must therefore
// never go to stdout.
type StdioTransport struct {
	in  io.Reader
	out io.Writer

	// outLock serialises writes so that concurrent handlers cannot
	// interleave envelope fragments on the wire.
	outLock sync.Mutex

	consumerCh chan wire.Message

	closeOnce sync.Once
	closed    chan struct{}

	logger *logrus.Entry
}

// NewStdioTransport returns a transport connected to the process's stdin
// and stdout.
func NewStdioTransport(logger *logrus.Entry) *StdioTransport {
	return NewStreamTransport(os.Stdin, os.Stdout, logger)
}

// NewStreamTransport returns a stdio-framed transport over arbitrary
// streams. Used directly in tests.
func NewStreamTransport(in io.Reader, out io.Writer, logger *logrus.Entry) *StdioTransport {
	return &StdioTransport{
		in:         in,
		out:        out,
		consumerCh: make(chan wire.Message, 16),
		closed:     make(chan struct{}),
		logger:     logger.WithField("component", "stdio-transport"),
	}
}

// Listen implements the Transport interface. It scans the inbound stream
// line by line; a line that does not parse as an envelope is logged and
// skipped, never fatal.
func (t *StdioTransport) Listen() {
	go t.listen()
}

func (t *StdioTransport) listen() {
	defer close(t.consumerCh)

	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		line := scanner.Bytes()

		var msg wire.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			t.logger.WithError(err).Error("Unmarshalling inbound envelope")
			continue
		}

		select {
		case t.consumerCh <- msg:
		case <-t.closed:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		t.logger.WithError(err).Error("Reading inbound stream")
	}
}

// Consumer implements the Transport interface.
func (t *StdioTransport) Consumer() <-chan wire.Message {
	return t.consumerCh
}

// Send implements the Transport interface.
func (t *StdioTransport) Send(msg wire.Message) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	t.outLock.Lock()
	defer t.outLock.Unlock()

	if _, err := t.out.Write(buf); err != nil {
		return err
	}
	_, err = t.out.Write([]byte{'\n'})
	return err
}

// Close implements the Transport interface. The stdin scanner cannot be
// interrupted portably; Close only stops delivery.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	return nil
}
