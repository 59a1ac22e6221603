// Package maestro provides a Go driver for the Pololu Maestro family of
// USB servo controllers, speaking the compact serial protocol.
//
// The controller exposes two serial ports in USB Dual Port mode: a command
// port, which only needs the 0xAA baud-rate indication byte, and a TTL
// port that carries every command and response. A Session owns one
// transport for each.
package maestro

import (
	"fmt"
	"sort"
)

// Compact protocol command bytes.
const (
	cmdSetTarget       byte = 0x84
	cmdSetSpeed        byte = 0x87
	cmdSetAcceleration byte = 0x89
	cmdGetPosition     byte = 0x90
	cmdGetMovingState  byte = 0x93
	cmdSetTargets      byte = 0x9F
	cmdGetErrors       byte = 0xA1
	cmdGoHome          byte = 0xA2
)

// baudSyncByte is sent on the command port before any other traffic when
// the controller's serial mode is "UART, detect baud rate".
const baudSyncByte byte = 0xAA

// Protocol value ceilings. Target and speed are quarter-microsecond
// quantities carried in two 7-bit data bytes; acceleration is a single
// 0-255 register. Channel indexes above 0x7F would set the high bit the
// compact protocol reserves for framing.
const (
	MaxTarget       = 16383
	MaxSpeed        = 16383
	MaxAcceleration = 255
	MaxChannel      = 0x7F
)

// encode14 splits a quarter-microsecond value into the two data bytes of
// the target/speed/acceleration commands: byte1 carries (v%32)<<2, byte2
// carries v/32 masked to 7 bits. The high bit of both bytes stays clear
// because the protocol uses it to mark command bytes. The layout is the
// controller's documented one and is not negotiable; values above 4095
// truncate in byte2 under the 7-bit mask (see decode14).
func encode14(v int) (lo, hi byte) {
	q, r := v/32, v%32
	return byte(r << 2), byte(q) & 0x7F
}

// decode14 inverts encode14. Exact only for values in [0, 4095]; beyond
// that the quotient does not survive the 7-bit mask.
func decode14(lo, hi byte) int {
	return int(hi)*32 + int(lo)>>2
}

// decodeLE16 parses a two-byte little-endian response value. Responses
// have no high-bit restriction, so this is a plain 16-bit read and is
// distinct from the 14-bit command framing.
func decodeLE16(lo, hi byte) int {
	return int(lo) | int(hi)<<8
}

// decodePosition converts a Get Position response to the same
// quarter-microsecond granularity used by Set Target. The controller
// reports positions multiplied by four; callers must not divide again.
func decodePosition(lo, hi byte) int {
	return decodeLE16(lo, hi) / 4
}

// Command builders. Each returns the complete byte sequence for one
// logical command; the session writes it with a single Write and Flush
// so the device never observes a partial command.

func goHomeCommand() []byte {
	return []byte{cmdGoHome}
}

func setTargetCommand(channel, target int) []byte {
	lo, hi := encode14(target)
	return []byte{cmdSetTarget, byte(channel), lo, hi}
}

func setSpeedCommand(channel, speed int) []byte {
	lo, hi := encode14(speed)
	return []byte{cmdSetSpeed, byte(channel), lo, hi}
}

func setAccelerationCommand(channel, accel int) []byte {
	lo, hi := encode14(accel)
	return []byte{cmdSetAcceleration, byte(channel), lo, hi}
}

func getPositionCommand(channel int) []byte {
	return []byte{cmdGetPosition, byte(channel)}
}

func getMovingStateCommand() []byte {
	return []byte{cmdGetMovingState}
}

func getErrorsCommand() []byte {
	return []byte{cmdGetErrors}
}

// setTargetsCommand builds the batched Set Targets command. The protocol
// addresses a contiguous block of channels by count and lowest channel
// number, with target pairs in ascending channel order, so the pairs are
// sorted here regardless of input order. Lengths must already be equal.
func setTargetsCommand(channels, targets []int) []byte {
	type pair struct {
		channel int
		target  int
	}

	pairs := make([]pair, len(channels))
	for i, ch := range channels {
		pairs[i] = pair{channel: ch, target: targets[i]}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].channel < pairs[j].channel
	})

	buf := make([]byte, 0, 3+2*len(pairs))
	buf = append(buf, cmdSetTargets, byte(len(pairs)), byte(pairs[0].channel))
	for _, p := range pairs {
		lo, hi := encode14(p.target)
		buf = append(buf, lo, hi)
	}
	return buf
}

// ErrorFlags is the controller's fault bitmask as returned by Get Errors.
// Reading the register clears it on the device.
type ErrorFlags uint16

const (
	ErrSerialSignal ErrorFlags = 1 << iota
	ErrSerialOverrun
	ErrSerialBufferFull
	ErrSerialCRC
	ErrSerialProtocol
	ErrSerialTimeout
	ErrScriptStack
	ErrScriptCallStack
	ErrScriptProgramCounter
)

var errorFlagNames = []string{
	"serial signal",
	"serial overrun",
	"serial buffer full",
	"serial crc",
	"serial protocol",
	"serial timeout",
	"script stack",
	"script call stack",
	"script program counter",
}

// HasError returns true if any fault bit is set.
func (e ErrorFlags) HasError() bool {
	return e != 0
}

func (e ErrorFlags) Error() string {
	if e == 0 {
		return "no error"
	}

	var msgs []string
	for i, name := range errorFlagNames {
		if e&(ErrorFlags(1)<<i) != 0 {
			msgs = append(msgs, name)
		}
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("unknown error flags: 0x%04X", uint16(e))
	}
	return fmt.Sprintf("controller error: %v", msgs)
}
