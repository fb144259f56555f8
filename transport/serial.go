package transport

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/moffa90/psocflash/protocol"
)

// SerialLink is a Link backed by a byte-stream UART, read length-prefixed:
// 4 header bytes (start, status, length-low, length-high) followed by the
// payload, checksum, and end marker.
type SerialLink struct {
	port    serial.Port
	timeout time.Duration
}

// OpenSerial opens portName at the given baud/parity/stop-bit configuration
// and flushes both buffers before returning, discarding any garbage left
// over from a prior session.
func OpenSerial(portName string, baud int, parity serial.Parity, stopBits serial.StopBits, timeout time.Duration) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   parity,
		StopBits: stopBits,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("flush input buffer: %w", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("flush output buffer: %w", err)
	}

	return &SerialLink{port: port, timeout: timeout}, nil
}

func (l *SerialLink) Send(packet []byte) error {
	_, err := l.port.Write(packet)
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Recv reads exactly one framed packet: 4 header bytes, then the remaining
// N+3 bytes (payload + checksum + end marker) once N is known from the
// header's length field.
func (l *SerialLink) Recv() ([]byte, error) {
	header := make([]byte, 4)
	if err := l.readFull(header); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint16(header[2:4])
	rest := make([]byte, int(n)+3)
	if err := l.readFull(rest); err != nil {
		return nil, err
	}

	return append(header, rest...), nil
}

// readFull reads exactly len(buf) bytes, treating a zero-byte read with no
// error (go.bug.st/serial's timeout signal) as a terminal timeout.
func (l *SerialLink) readFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := l.port.Read(buf[read:])
		if err != nil {
			return fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			return &protocol.LinkError{Reason: "serial read timeout"}
		}
		read += n
	}
	return nil
}

func (l *SerialLink) Timeout() time.Duration {
	return l.timeout
}

func (l *SerialLink) SetTimeout(d time.Duration) {
	l.timeout = d
	_ = l.port.SetReadTimeout(d)
}

func (l *SerialLink) Close() error {
	return l.port.Close()
}
