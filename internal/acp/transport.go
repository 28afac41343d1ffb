package acp

// Transport is the byte-framed, bidirectional message carrier contract
// (spec §4's Transport layer). Concrete adapters (stdio, HTTP) are thin;
// they deliver inbound envelopes to the handler installed by SetHandler
// and accept outbound envelopes via Send.
type Transport interface {
	// Start begins reading inbound messages, invoking the handler
	// installed by SetHandler for each one.
	Start() error
	// SetHandler installs the callback invoked for every inbound message.
	// Must be called before Start.
	SetHandler(handler func(*Message))
	// Send writes a single outbound envelope.
	Send(msg *Message) error
	// Close shuts the transport down, releasing any underlying resources.
	Close() error
	// Done returns a channel closed when the transport has stopped, either
	// because Close was called or the peer went away.
	Done() <-chan struct{}
}
