// Package mocklink is a scripted transport.Link double used by session and
// bootloader tests in place of real hardware.
package mocklink

import (
	"time"

	"github.com/moffa90/psocflash/protocol"
)

// Link is a transport.Link that replays a scripted list of responses and
// records every frame sent to it.
type Link struct {
	responses [][]byte
	errs      []error
	idx       int
	sent      [][]byte
	timeout   time.Duration
	closed    bool
}

// New builds a Link with no scripted responses; add them with AddResponse
// or AddError before use.
func New() *Link {
	return &Link{}
}

// AddResponse appends a successful response frame built from statusCode and
// data, encoded with checksum.
func (l *Link) AddResponse(statusCode byte, data []byte, checksum protocol.ChecksumFunc) {
	frame, err := protocol.EncodeFrame(statusCode, data, checksum)
	if err != nil {
		panic(err)
	}
	l.responses = append(l.responses, frame)
	l.errs = append(l.errs, nil)
}

// AddRawResponse appends a pre-built (possibly malformed) response frame,
// for exercising framing-error paths.
func (l *Link) AddRawResponse(frame []byte) {
	l.responses = append(l.responses, frame)
	l.errs = append(l.errs, nil)
}

// AddError appends a Recv failure, e.g. a *protocol.LinkError for a
// simulated timeout or framing fault.
func (l *Link) AddError(err error) {
	l.responses = append(l.responses, nil)
	l.errs = append(l.errs, err)
}

func (l *Link) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.sent = append(l.sent, cp)
	return nil
}

func (l *Link) Recv() ([]byte, error) {
	if l.idx >= len(l.responses) {
		return nil, &protocol.LinkError{Reason: "mocklink: no more scripted responses"}
	}
	resp, err := l.responses[l.idx], l.errs[l.idx]
	l.idx++
	return resp, err
}

func (l *Link) Timeout() time.Duration { return l.timeout }

func (l *Link) SetTimeout(d time.Duration) { l.timeout = d }

func (l *Link) Close() error {
	l.closed = true
	return nil
}

// Sent returns every frame handed to Send, in order.
func (l *Link) Sent() [][]byte { return l.sent }

// Closed reports whether Close has been called.
func (l *Link) Closed() bool { return l.closed }
