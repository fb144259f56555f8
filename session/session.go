// Package session implements typed command dispatch on top of a transport
// link: framing, checksum selection, the five-retry policy on framing
// errors, and the enter/exit sequencing the programming driver builds on.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/psocflash/cyacd"
	"github.com/moffa90/psocflash/protocol"
	"github.com/moffa90/psocflash/transport"
)

// DefaultRetryBudget is the number of transmissions attempted for a
// read-expecting command before a sustained framing error is surfaced as
// terminal.
const DefaultRetryBudget = 5

// Logger is an optional logging interface threaded through from the
// programming driver. Implementations may route to any logging framework.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Config configures a Session, assembled once at construction rather than
// through positional overloads.
type Config struct {
	// ChecksumKind selects the wire checksum function, per the image header.
	ChecksumKind cyacd.ChecksumKind

	// ChunkSize is the SendData chunk size used by ProgramRow when a row's
	// length exceeds it. Zero or a value ≥ the row length sends the row as
	// a single ProgramRow.
	ChunkSize int

	// RetryBudget is the number of transmissions attempted per command
	// before a sustained framing error becomes terminal. Zero selects
	// DefaultRetryBudget.
	RetryBudget int

	// RepeatInitSeconds bounds how long EnterBootloader is retried at 10 Hz
	// while waiting for an external reset window. Negative means unbounded.
	RepeatInitSeconds int
}

func (c Config) checksumFunc() protocol.ChecksumFunc {
	if c.ChecksumKind == cyacd.ChecksumKindCRC16 {
		return protocol.CRC16
	}
	return protocol.SumTwosComplement
}

// LinkNoisyError is the terminal error surfaced once a command has
// exhausted its retry budget against sustained framing errors.
type LinkNoisyError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *LinkNoisyError) Error() string {
	return fmt.Sprintf("%s: link unreliable after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *LinkNoisyError) Unwrap() error {
	return e.Last
}

// Session wraps a transport link plus a checksum function; it is
// single-threaded and holds no queued requests.
type Session struct {
	link       transport.Link
	cfg        Config
	checksum   protocol.ChecksumFunc
	logger     Logger
	errorCount int
}

// New constructs a Session. A zero Logger is valid; a zero RetryBudget is
// normalized to DefaultRetryBudget.
func New(link transport.Link, cfg Config, logger Logger) *Session {
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	return &Session{
		link:     link,
		cfg:      cfg,
		checksum: cfg.checksumFunc(),
		logger:   logger,
	}
}

// ErrorCount returns the cumulative number of framing errors seen over the
// session's lifetime, including the last one of a command whose retry
// budget ran out.
func (s *Session) ErrorCount() int {
	return s.errorCount
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(fmt.Sprintf(format, args...))
	}
}

// transact sends an already encoded frame, and when expectResponse is set, reads
// and decodes the response — retrying up to the configured retry budget on
// framing errors only. Status errors are never retried; they are returned
// as a successful decode with a nonzero status for the caller to interpret.
func (s *Session) transact(frame []byte, expectResponse bool) (status byte, payload []byte, err error) {
	if !expectResponse {
		return 0, nil, s.link.Send(frame)
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryBudget; attempt++ {
		if err := s.link.Send(frame); err != nil {
			return 0, nil, fmt.Errorf("transmit: %w", err)
		}

		resp, err := s.link.Recv()
		if err != nil {
			var linkErr *protocol.LinkError
			if errors.As(err, &linkErr) {
				s.errorCount++
				lastErr = err
				s.logf("framing error on attempt %d/%d: %v", attempt, s.cfg.RetryBudget, err)
				continue
			}
			return 0, nil, err
		}

		status, payload, err = protocol.DecodeFrame(resp, s.checksum)
		if err != nil {
			var linkErr *protocol.LinkError
			if errors.As(err, &linkErr) {
				s.errorCount++
				lastErr = err
				s.logf("framing error on attempt %d/%d: %v", attempt, s.cfg.RetryBudget, err)
				continue
			}
			return 0, nil, err
		}

		return status, payload, nil
	}

	return 0, nil, &LinkNoisyError{Operation: "transact", Attempts: s.cfg.RetryBudget, Last: lastErr}
}

// EnterBootloader issues a single EnterBootloader command. key may be nil.
func (s *Session) EnterBootloader(key []byte) (*protocol.DeviceInfo, error) {
	frame, err := protocol.BuildEnterBootloaderCmd(key, s.checksum)
	if err != nil {
		return nil, err
	}
	status, payload, err := s.transact(frame, true)
	if err != nil {
		return nil, err
	}
	if perr := protocol.NewProtocolError(protocol.CommandName(protocol.CmdEnterBootloader), status); perr != nil {
		return nil, perr
	}
	return protocol.ParseEnterBootloaderResponse(payload)
}

// EnterBootloaderRepeating retries EnterBootloader at 10 Hz (under a
// temporarily shortened 100ms read timeout) to ride out an external reset
// window, then always issues a fire-and-forget SyncBootloader, a 100ms
// settle sleep, and one final, authoritative EnterBootloader.
func (s *Session) EnterBootloaderRepeating(key []byte) (*protocol.DeviceInfo, error) {
	saved := s.link.Timeout()
	s.link.SetTimeout(100 * time.Millisecond)
	defer s.link.SetTimeout(saved)

	unbounded := s.cfg.RepeatInitSeconds < 0
	attempts := s.cfg.RepeatInitSeconds * 10
	for i := 0; unbounded || i < attempts; i++ {
		if _, err := s.EnterBootloader(key); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if frame, err := protocol.BuildSyncBootloaderCmd(s.checksum); err == nil {
		_, _, _ = s.transact(frame, false)
	}
	time.Sleep(100 * time.Millisecond)

	return s.EnterBootloader(key)
}

// SyncBootloader resets the bootloader to a clean state, discarding any
// buffered command.
func (s *Session) SyncBootloader() error {
	frame, err := protocol.BuildSyncBootloaderCmd(s.checksum)
	if err != nil {
		return err
	}
	status, _, err := s.transact(frame, true)
	if err != nil {
		return err
	}
	return protocol.NewProtocolError(protocol.CommandName(protocol.CmdSyncBootloader), status)
}

// GetFlashSize queries the valid row range for an array.
func (s *Session) GetFlashSize(arrayID byte) (*protocol.FlashSize, error) {
	frame, err := protocol.BuildGetFlashSizeCmd(arrayID, s.checksum)
	if err != nil {
		return nil, err
	}
	status, payload, err := s.transact(frame, true)
	if err != nil {
		return nil, err
	}
	if perr := protocol.NewProtocolError(protocol.CommandName(protocol.CmdGetFlashSize), status); perr != nil {
		return nil, perr
	}
	return protocol.ParseGetFlashSizeResponse(payload)
}

// EraseRow erases the contents of one flash row.
func (s *Session) EraseRow(arrayID byte, rowNum uint16) error {
	frame, err := protocol.BuildEraseRowCmd(arrayID, rowNum, s.checksum)
	if err != nil {
		return err
	}
	status, _, err := s.transact(frame, true)
	if err != nil {
		return err
	}
	return protocol.NewProtocolError(protocol.CommandName(protocol.CmdEraseRow), status)
}

// GetMetadata reports the device's application metadata.
func (s *Session) GetMetadata(appID byte) (*protocol.Metadata, error) {
	frame, err := protocol.BuildGetMetadataCmd(appID, s.checksum)
	if err != nil {
		return nil, err
	}
	status, payload, err := s.transact(frame, true)
	if err != nil {
		return nil, err
	}
	if perr := protocol.NewProtocolError(protocol.CommandName(protocol.CmdGetMetadata), status); perr != nil {
		return nil, perr
	}
	return protocol.ParseMetadata(payload)
}

// VerifyRow returns the device's one-byte digest for a programmed row.
func (s *Session) VerifyRow(arrayID byte, rowNum uint16) (byte, error) {
	frame, err := protocol.BuildVerifyRowCmd(arrayID, rowNum, s.checksum)
	if err != nil {
		return 0, err
	}
	status, payload, err := s.transact(frame, true)
	if err != nil {
		return 0, err
	}
	if perr := protocol.NewProtocolError(protocol.CommandName(protocol.CmdVerifyRow), status); perr != nil {
		return 0, perr
	}
	return protocol.ParseVerifyRowResponse(payload)
}

// VerifyChecksum reports whether the whole-image checksum the device holds
// is valid.
func (s *Session) VerifyChecksum() (bool, error) {
	frame, err := protocol.BuildVerifyChecksumCmd(s.checksum)
	if err != nil {
		return false, err
	}
	status, payload, err := s.transact(frame, true)
	if err != nil {
		return false, err
	}
	if perr := protocol.NewProtocolError(protocol.CommandName(protocol.CmdVerifyChecksum), status); perr != nil {
		return false, perr
	}
	return protocol.ParseVerifyChecksumResponse(payload)
}

// ExitBootloader exits the bootloader and launches the application. It is
// fire-and-forget: no response is awaited, matching the device's behavior
// of resetting before it could reply.
func (s *Session) ExitBootloader() error {
	frame, err := protocol.BuildExitBootloaderCmd(s.checksum)
	if err != nil {
		return err
	}
	_, _, err = s.transact(frame, false)
	return err
}

// ProgramRow writes data to (arrayID, rowNum), splitting it into
// ChunkSize-sized SendData chunks ahead of the final ProgramRow when the
// configured chunk size is smaller than the row.
func (s *Session) ProgramRow(arrayID byte, rowNum uint16, data []byte) error {
	chunkSize := s.cfg.ChunkSize
	if chunkSize <= 0 || chunkSize >= len(data) {
		return s.programRowFinal(arrayID, rowNum, data)
	}

	if len(data)%chunkSize != 0 {
		return fmt.Errorf("row %d: length %d is not evenly divisible by chunk size %d", rowNum, len(data), chunkSize)
	}

	chunks := len(data) / chunkSize
	for i := 0; i < chunks-1; i++ {
		chunk := data[i*chunkSize : (i+1)*chunkSize]
		frame, err := protocol.BuildSendDataCmd(chunk, s.checksum)
		if err != nil {
			return err
		}
		status, _, err := s.transact(frame, true)
		if err != nil {
			return err
		}
		if perr := protocol.NewProtocolError(protocol.CommandName(protocol.CmdSendData), status); perr != nil {
			return perr
		}
	}

	last := data[(chunks-1)*chunkSize:]
	return s.programRowFinal(arrayID, rowNum, last)
}

func (s *Session) programRowFinal(arrayID byte, rowNum uint16, data []byte) error {
	frame, err := protocol.BuildProgramRowCmd(arrayID, rowNum, data, s.checksum)
	if err != nil {
		return err
	}
	status, _, err := s.transact(frame, true)
	if err != nil {
		return err
	}
	return protocol.NewProtocolError(protocol.CommandName(protocol.CmdProgramRow), status)
}
