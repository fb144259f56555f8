package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"github.com/moffa90/psocflash/protocol"
)

// CANSyncMode selects how the CAN transport paces frames within a packet.
type CANSyncMode int

const (
	// SyncEcho waits for the bus to echo each frame back before sending the
	// next one.
	SyncEcho CANSyncMode = iota
	// SyncDwell sleeps a fixed interval between frames instead.
	SyncDwell
)

// CANLink is a Link backed by a CAN bus, fragmenting packets into ≤8-byte
// frames under a fixed 11-bit arbitration ID.
type CANLink struct {
	conn     net.Conn
	tx       *socketcan.Transmitter
	rx       *socketcan.Receiver
	frameID  uint32
	sync     CANSyncMode
	waitSend time.Duration
	timeout  time.Duration
}

// OpenCAN dials a SocketCAN interface (e.g. "can0") and configures
// fragmentation under frameID.
func OpenCAN(iface string, frameID uint32, sync CANSyncMode, waitSend, timeout time.Duration) (*CANLink, error) {
	conn, err := socketcan.DialContext(context.Background(), "can", iface)
	if err != nil {
		return nil, fmt.Errorf("dial can interface %s: %w", iface, err)
	}

	return &CANLink{
		conn:     conn,
		tx:       socketcan.NewTransmitter(conn),
		rx:       socketcan.NewReceiver(conn),
		frameID:  frameID,
		sync:     sync,
		waitSend: waitSend,
		timeout:  timeout,
	}, nil
}

// Send fragments packet into ≤8-byte CAN frames and transmits them in
// order, pacing them per the configured sync mode. Any frames queued on the
// bus ahead of the first send are drained first.
func (l *CANLink) Send(packet []byte) error {
	l.drain()

	for offset := 0; offset < len(packet); offset += 8 {
		end := offset + 8
		if end > len(packet) {
			end = len(packet)
		}
		chunk := packet[offset:end]

		frame := can.Frame{ID: l.frameID, Length: uint8(len(chunk))}
		copy(frame.Data[:], chunk)

		if err := l.tx.TransmitFrame(context.Background(), frame); err != nil {
			return fmt.Errorf("transmit can frame: %w", err)
		}

		switch l.sync {
		case SyncEcho:
			if err := l.waitForEcho(chunk); err != nil {
				return err
			}
		case SyncDwell:
			time.Sleep(l.waitSend)
		}
	}
	return nil
}

// drain discards any frames already queued on the bus, using a zero-timeout
// receive so it never blocks.
func (l *CANLink) drain() {
	_ = l.conn.SetReadDeadline(time.Now())
	for l.rx.Receive() {
	}
}

func (l *CANLink) waitForEcho(sent []byte) error {
	deadline := time.Now().Add(l.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &protocol.LinkError{Reason: "CAN echo timeout"}
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(remaining))
		if !l.rx.Receive() {
			return &protocol.LinkError{Reason: "CAN echo timeout"}
		}
		frame := l.rx.Frame()
		if bytes.Equal(frame.Data[:frame.Length], sent) {
			return nil
		}
	}
}

// Recv reassembles one packet from consecutive frames: the first frame must
// carry at least 4 bytes with a leading start-of-packet marker, from which
// the declared payload length determines the total byte count to collect.
func (l *CANLink) Recv() ([]byte, error) {
	deadline := time.Now().Add(l.timeout)
	buf := make([]byte, 0, 64)
	want := -1

	for want < 0 || len(buf) < want {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &protocol.LinkError{Reason: "CAN receive timeout"}
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(remaining))
		if !l.rx.Receive() {
			return nil, &protocol.LinkError{Reason: "CAN receive timeout"}
		}

		frame := l.rx.Frame()
		if l.sync == SyncEcho && frame.ID != l.frameID {
			continue
		}

		data := frame.Data[:frame.Length]
		if len(buf) == 0 {
			if len(data) < 4 || data[0] != protocol.StartOfPacket {
				return nil, &protocol.LinkError{Reason: "CAN response does not open a packet"}
			}
			length := int(data[2]) | int(data[3])<<8
			want = 4 + length + 3
		}
		buf = append(buf, data...)
	}

	return buf[:want], nil
}

func (l *CANLink) Timeout() time.Duration {
	return l.timeout
}

func (l *CANLink) SetTimeout(d time.Duration) {
	l.timeout = d
}

func (l *CANLink) Close() error {
	return l.conn.Close()
}
