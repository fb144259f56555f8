package protocol

import (
	"bytes"
	"testing"
)

func TestBuildEnterBootloaderCmd(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
		errMsg  string
	}{
		{name: "no key", key: nil, wantErr: false},
		{name: "valid 6-byte key", key: []byte{0x0A, 0x1B, 0x2C, 0x3D, 0x4E, 0x5F}, wantErr: false},
		{name: "invalid 5-byte key", key: []byte{0x0A, 0x1B, 0x2C, 0x3D, 0x4E}, wantErr: true, errMsg: "must be empty or exactly 6 bytes"},
		{name: "invalid 7-byte key", key: []byte{0x0A, 0x1B, 0x2C, 0x3D, 0x4E, 0x5F, 0x6A}, wantErr: true, errMsg: "must be empty or exactly 6 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildEnterBootloaderCmd(tt.key, SumTwosComplement)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if frame[0] != StartOfPacket || frame[1] != CmdEnterBootloader || frame[len(frame)-1] != EndOfPacket {
				t.Errorf("frame = % X, malformed", frame)
			}
			if len(tt.key) > 0 && !bytes.Equal(frame[4:4+len(tt.key)], tt.key) {
				t.Errorf("key in frame = % X, want % X", frame[4:4+len(tt.key)], tt.key)
			}
		})
	}
}

func TestBuildGetFlashSizeCmd(t *testing.T) {
	for _, arrayID := range []byte{0, 1, 255} {
		frame, err := BuildGetFlashSizeCmd(arrayID, SumTwosComplement)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if frame[1] != CmdGetFlashSize {
			t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdGetFlashSize)
		}
		if frame[4] != arrayID {
			t.Errorf("ArrayID = 0x%02X, want 0x%02X", frame[4], arrayID)
		}
	}
}

func TestBuildProgramRowCmd(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		errMsg  string
	}{
		{name: "valid small row", data: []byte{0x01, 0x02, 0x03, 0x04}, wantErr: false},
		{name: "valid large row", data: make([]byte, 128), wantErr: false},
		{name: "empty data", data: nil, wantErr: true, errMsg: "data cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildProgramRowCmd(0, 256, tt.data, SumTwosComplement)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if frame[1] != CmdProgramRow {
				t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdProgramRow)
			}
		})
	}
}

func TestBuildSendDataCmd(t *testing.T) {
	if _, err := BuildSendDataCmd(nil, SumTwosComplement); err == nil {
		t.Fatal("expected an error for empty data")
	}
	frame, err := BuildSendDataCmd([]byte{0x01, 0x02, 0x03}, SumTwosComplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != CmdSendData {
		t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdSendData)
	}
}

func TestBuildVerifyRowCmd(t *testing.T) {
	frame, err := BuildVerifyRowCmd(0, 0, SumTwosComplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != CmdVerifyRow {
		t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdVerifyRow)
	}
}

func TestBuildVerifyChecksumCmd(t *testing.T) {
	frame, err := BuildVerifyChecksumCmd(SumTwosComplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != CmdVerifyChecksum {
		t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdVerifyChecksum)
	}
}

func TestBuildEraseRowCmd(t *testing.T) {
	frame, err := BuildEraseRowCmd(0, 100, SumTwosComplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != CmdEraseRow {
		t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdEraseRow)
	}
}

func TestBuildSyncBootloaderCmd(t *testing.T) {
	frame, err := BuildSyncBootloaderCmd(SumTwosComplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != CmdSyncBootloader {
		t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdSyncBootloader)
	}
}

func TestBuildExitBootloaderCmd(t *testing.T) {
	frame, err := BuildExitBootloaderCmd(SumTwosComplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != CmdExitBootloader {
		t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdExitBootloader)
	}
}

func TestBuildGetMetadataCmd(t *testing.T) {
	frame, err := BuildGetMetadataCmd(0, SumTwosComplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != CmdGetMetadata {
		t.Errorf("CMD = 0x%02X, want 0x%02X", frame[1], CmdGetMetadata)
	}
}

func TestEnterBootloaderFrameMatchesS1(t *testing.T) {
	frame, err := BuildEnterBootloaderCmd(nil, CRC16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x01, 0x38, 0x00, 0x00, 0xA0, 0x09, 0x17}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % X, want % X", frame, want)
	}
}

func TestCommandName(t *testing.T) {
	if got := CommandName(CmdEnterBootloader); got != "EnterBootloader" {
		t.Errorf("CommandName(CmdEnterBootloader) = %q, want %q", got, "EnterBootloader")
	}
	if got := CommandName(0xFE); got == "" {
		t.Error("CommandName of an unknown opcode should not be empty")
	}
}

func BenchmarkBuildProgramRowCmd(b *testing.B) {
	data := make([]byte, 128)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildProgramRowCmd(0, 0, data, SumTwosComplement)
	}
}
