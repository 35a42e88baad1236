package domain

import (
	"fmt"

	"arena-timer/pkg/protocol"
)

// Opcode represents the WebSocket frame opcode
type Opcode byte

// WebSocket frame opcodes as defined in RFC 6455
const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

// IsControl returns true if the opcode is a control frame
func (o Opcode) IsControl() bool {
	return o >= 0x8
}

// IsData returns true if the opcode is a data frame
func (o Opcode) IsData() bool {
	return o <= 0x2
}

// IsValid reports whether the opcode is one RFC 6455 defines
func (o Opcode) IsValid() bool {
	switch o {
	case OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
		return true
	default:
		return false
	}
}

// String returns the string representation of the opcode
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "Continuation"
	case OpcodeText:
		return "Text"
	case OpcodeBinary:
		return "Binary"
	case OpcodeClose:
		return "Close"
	case OpcodePing:
		return "Ping"
	case OpcodePong:
		return "Pong"
	default:
		return fmt.Sprintf("Unknown(0x%X)", byte(o))
	}
}

// Frame represents a WebSocket frame as defined in RFC 6455.
//
// PayloadLen is the length declared on the wire; Payload holds at most the
// receive buffer's capacity of it.
type Frame struct {
	FIN        bool    // Final fragment flag
	RSV        byte    // Reserved bits, zero unless an extension is negotiated
	Opcode     Opcode  // Frame opcode
	Masked     bool    // Payload is masked
	PayloadLen uint64  // Declared payload length
	MaskingKey [4]byte // Masking key (if masked)
	Payload    []byte  // Payload data
}

// NewFrame creates a new final frame with the given opcode and payload
func NewFrame(opcode Opcode, payload []byte) *Frame {
	return &Frame{
		FIN:        true,
		Opcode:     opcode,
		PayloadLen: uint64(len(payload)),
		Payload:    payload,
	}
}

// Validate checks the header fields of a decoded frame
func (f *Frame) Validate() error {
	if !f.Opcode.IsValid() {
		return ErrInvalidOpcode
	}

	// Reserved bits must be 0; this client negotiates no extensions
	if f.RSV != 0 {
		return ErrReservedBitsSet
	}

	// Control frames must have payload length <= 125 and must not be fragmented
	if f.Opcode.IsControl() && f.PayloadLen > protocol.MaxControlFramePayloadSize {
		return ErrInvalidFrameStructure
	}
	if f.Opcode.IsControl() && !f.FIN {
		return ErrInvalidFrameStructure
	}

	return nil
}

// Truncated reports whether part of the declared payload was discarded
func (f *Frame) Truncated() bool {
	return uint64(len(f.Payload)) < f.PayloadLen
}

// Mask XORs payload in place with key, cycling every four bytes.
// Masking and unmasking are the same operation.
func Mask(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}
