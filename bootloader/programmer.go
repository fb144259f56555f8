// Package bootloader drives the state machine that turns a decoded image
// into a programmed device: enter bootloader, validate flash ranges and
// metadata, optionally erase, write and verify every row, verify the whole
// image, and exit. See doc.go for usage.
package bootloader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/moffa90/psocflash/cyacd"
	"github.com/moffa90/psocflash/protocol"
	"github.com/moffa90/psocflash/session"
)

// eraseSettleDelay is how long the driver waits after a full-device erase
// for the device to settle before writing begins.
const eraseSettleDelay = 500 * time.Millisecond

// Programmer drives one programming run over a session. It holds no state
// across calls to Program; a fresh Programmer per device session is the
// expected usage.
type Programmer struct {
	session *session.Session
	config  Config
}

// New builds a Programmer over an already-constructed session.
func New(sess *session.Session, opts ...Option) *Programmer {
	if sess == nil {
		panic("session cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{session: sess, config: cfg}
}

// Program runs the full ENTER → RANGES → METADATA → (ERASE) → WRITE →
// VERIFY → EXIT sequence against img. Any failure aborts the run without
// issuing ExitBootloader; the device is left however the last successful
// step left it.
func (p *Programmer) Program(ctx context.Context, img *cyacd.Image, key []byte) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}

	start := time.Now()
	totalRows := countRows(img)

	if err := p.enter(ctx, img, key); err != nil {
		return fmt.Errorf("enter: %w", err)
	}

	ranges, err := p.ranges(ctx, img)
	if err != nil {
		return fmt.Errorf("ranges: %w", err)
	}

	if err := p.metadata(ctx, img); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}

	if p.config.Erase {
		p.reportProgress(Progress{Phase: PhaseErasing, ElapsedTime: time.Since(start)})
		if err := p.erase(ctx); err != nil {
			return fmt.Errorf("erase: %w", err)
		}
	}

	bytesWritten, err := p.write(ctx, img, ranges, totalRows, start)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	p.reportProgress(Progress{
		Phase:        PhaseVerifying,
		TotalRows:    totalRows,
		CurrentRow:   totalRows,
		BytesWritten: bytesWritten,
		Percentage:   95,
		ElapsedTime:  time.Since(start),
	})
	ok, err := p.session.VerifyChecksum()
	if err != nil {
		return fmt.Errorf("verify checksum: %w", err)
	}
	if !ok {
		return &VerificationError{Message: "application checksum is invalid"}
	}

	p.reportProgress(Progress{
		Phase:        PhaseExiting,
		TotalRows:    totalRows,
		CurrentRow:   totalRows,
		BytesWritten: bytesWritten,
		Percentage:   98,
		ElapsedTime:  time.Since(start),
	})
	if err := p.session.ExitBootloader(); err != nil {
		return fmt.Errorf("exit bootloader: %w", err)
	}

	p.logInfo("programming complete", "rows", totalRows, "bytes", bytesWritten, "elapsed", time.Since(start).String())
	p.reportProgress(Progress{
		Phase:        PhaseComplete,
		TotalRows:    totalRows,
		CurrentRow:   totalRows,
		BytesWritten: bytesWritten,
		Percentage:   100,
		ElapsedTime:  time.Since(start),
	})
	return nil
}

func (p *Programmer) enter(_ context.Context, img *cyacd.Image, key []byte) error {
	p.reportProgress(Progress{Phase: PhaseEntering})

	info, err := p.session.EnterBootloaderRepeating(key)
	if err != nil {
		return err
	}

	p.logDebug("entered bootloader",
		"silicon_id", fmt.Sprintf("0x%08X", info.SiliconID),
		"silicon_rev", fmt.Sprintf("0x%02X", info.SiliconRev))

	if info.SiliconID != img.SiliconID {
		return &DeviceMismatchError{Field: "silicon id", Expected: img.SiliconID, Actual: info.SiliconID}
	}
	if info.SiliconRev != img.SiliconRev {
		return &DeviceMismatchError{Field: "silicon rev", Expected: uint32(img.SiliconRev), Actual: uint32(info.SiliconRev)}
	}
	return nil
}

// ranges queries GetFlashSize for every array present in img and verifies
// each image row falls within the reported range.
func (p *Programmer) ranges(_ context.Context, img *cyacd.Image) (map[byte]protocol.FlashSize, error) {
	p.reportProgress(Progress{Phase: PhaseRanges})

	out := make(map[byte]protocol.FlashSize, len(img.Arrays))
	for _, arrayID := range sortedArrayIDs(img) {
		fs, err := p.session.GetFlashSize(arrayID)
		if err != nil {
			return nil, fmt.Errorf("get flash size for array %d: %w", arrayID, err)
		}
		out[arrayID] = *fs

		for _, rowNum := range sortedRowNumbers(img, arrayID) {
			if rowNum < fs.StartRow || rowNum > fs.EndRow {
				return nil, &RowOutOfRangeError{ArrayID: arrayID, RowNum: rowNum, MinRow: fs.StartRow, MaxRow: fs.EndRow}
			}
		}
	}
	return out, nil
}

// metadata compares device and image application metadata, consulting the
// configured deciders on a version downgrade or an application change.
// InvalidApp and InvalidCommand are expected on a blank or old-bootloader
// device and are swallowed; any other status error is logged and ignored,
// matching the tolerance the driver extends to this optional step.
func (p *Programmer) metadata(_ context.Context, img *cyacd.Image) error {
	p.reportProgress(Progress{Phase: PhaseMetadata})

	deviceMeta, err := p.session.GetMetadata(0)
	if err != nil {
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) && (perr.Status == protocol.StatusInvalidApp || perr.Status == protocol.StatusInvalidCommand) {
			p.logDebug("no comparable device metadata", "status", perr.Status)
			return nil
		}
		p.logError("get metadata failed, proceeding without comparison", "error", err)
		return nil
	}

	imgMeta, err := imageMetadata(img, p.config.PSoC5)
	if err != nil {
		p.logDebug("image has no embedded metadata to compare", "error", err)
		return nil
	}

	if deviceMeta.AppVersion > imgMeta.AppVersion {
		if !p.config.DowngradeDecider(deviceMeta.AppVersion, imgMeta.AppVersion) {
			return &DowngradeRejectedError{DeviceVersion: deviceMeta.AppVersion, ImageVersion: imgMeta.AppVersion}
		}
	}
	if deviceMeta.AppID != imgMeta.AppID {
		if !p.config.NewAppDecider(deviceMeta.AppID, imgMeta.AppID) {
			return &NewAppRejectedError{DeviceAppID: deviceMeta.AppID, ImageAppID: imgMeta.AppID}
		}
	}
	return nil
}

// erase walks every array the device reports, starting at 0, erasing every
// row in range, until GetFlashSize reports InvalidArray or InvalidData.
func (p *Programmer) erase(_ context.Context) error {
	for arrayID := 0; arrayID < 256; arrayID++ {
		fs, err := p.session.GetFlashSize(byte(arrayID))
		if err != nil {
			var perr *protocol.ProtocolError
			if errors.As(err, &perr) && (perr.Status == protocol.StatusInvalidArray || perr.Status == protocol.StatusInvalidData) {
				break
			}
			return fmt.Errorf("get flash size for array %d: %w", arrayID, err)
		}

		for row := uint32(fs.StartRow); row <= uint32(fs.EndRow); row++ {
			if err := p.session.EraseRow(byte(arrayID), uint16(row)); err != nil {
				return fmt.Errorf("erase array %d row %d: %w", arrayID, row, err)
			}
		}
	}

	time.Sleep(eraseSettleDelay)
	return nil
}

// write programs and verifies every row in img, in ascending (array, row)
// order, retrying a failed verification by fully re-programming the row up
// to config.RowRetries times.
func (p *Programmer) write(ctx context.Context, img *cyacd.Image, _ map[byte]protocol.FlashSize, totalRows int, start time.Time) (int, error) {
	bytesWritten := 0
	rowIndex := 0

	for _, arrayID := range sortedArrayIDs(img) {
		for _, rowNum := range sortedRowNumbers(img, arrayID) {
			if err := ctx.Err(); err != nil {
				return bytesWritten, fmt.Errorf("cancelled: %w", err)
			}

			row := img.Arrays[arrayID][rowNum]
			if err := p.writeRow(row); err != nil {
				return bytesWritten, err
			}

			bytesWritten += len(row.Data)
			rowIndex++
			p.reportProgress(Progress{
				Phase:        PhaseProgramming,
				CurrentRow:   rowIndex,
				TotalRows:    totalRows,
				Percentage:   2 + (float64(rowIndex)/float64(totalRows))*88,
				BytesWritten: bytesWritten,
				ElapsedTime:  time.Since(start),
			})
		}
	}
	return bytesWritten, nil
}

func (p *Programmer) writeRow(row *cyacd.Row) error {
	var lastDigest byte
	for attempt := 0; attempt <= p.config.RowRetries; attempt++ {
		if err := p.session.ProgramRow(row.ArrayID, row.RowNumber, row.Data); err != nil {
			return fmt.Errorf("program row %d (array %d): %w", row.RowNumber, row.ArrayID, err)
		}

		digest, err := p.session.VerifyRow(row.ArrayID, row.RowNumber)
		if err != nil {
			return fmt.Errorf("verify row %d (array %d): %w", row.RowNumber, row.ArrayID, err)
		}

		if digest == row.DeviceChecksum() {
			return nil
		}

		lastDigest = digest
		p.logDebug("row checksum mismatch, retrying", "array", row.ArrayID, "row", row.RowNumber, "attempt", attempt+1)
	}

	return &ChecksumMismatchError{ArrayID: row.ArrayID, RowNum: row.RowNumber, Expected: row.DeviceChecksum(), Actual: lastDigest}
}

func countRows(img *cyacd.Image) int {
	n := 0
	for _, rows := range img.Arrays {
		n += len(rows)
	}
	return n
}

func sortedArrayIDs(img *cyacd.Image) []byte {
	ids := make([]byte, 0, len(img.Arrays))
	for id := range img.Arrays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedRowNumbers(img *cyacd.Image, arrayID byte) []uint16 {
	rows := img.Arrays[arrayID]
	nums := make([]uint16, 0, len(rows))
	for n := range rows {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

func (p *Programmer) logDebug(msg string, kv ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, kv...)
	}
}

func (p *Programmer) logInfo(msg string, kv ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, kv...)
	}
}

func (p *Programmer) logError(msg string, kv ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, kv...)
	}
}
