package jtag

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// jtag_vpi command codes.
const (
	CmdReset            uint32 = 0
	CmdTMSSeq           uint32 = 1
	CmdScanChain        uint32 = 2
	CmdScanChainFlipTMS uint32 = 3
	CmdStopSimu         uint32 = 4
)

// RecordBufferSize is the size of each bit buffer in a record.
const RecordBufferSize = 512

// RecordSize is the wire size of a Record.
const RecordSize = 4 + 2*RecordBufferSize + 4 + 4

// MaxBits is the longest sequence a record can carry.
const MaxBits = RecordBufferSize * 8

// Record is the fixed-size jtag_vpi command exchanged in both directions.
type Record struct {
	Cmd       uint32
	BufferOut [RecordBufferSize]byte
	BufferIn  [RecordBufferSize]byte
	Length    uint32
	NbBits    uint32
}

// MarshalBinary encodes the record little-endian.
func (r *Record) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, RecordSize))
	if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
		return nil, fmt.Errorf("failed to encode jtag_vpi record: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a little-endian record.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("jtag_vpi record is %d bytes, expected %d", len(data), RecordSize)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, r); err != nil {
		return fmt.Errorf("failed to decode jtag_vpi record: %w", err)
	}
	return nil
}

// OutBit returns bit i of BufferOut.
func (r *Record) OutBit(i uint32) bool {
	return (r.BufferOut[i/8]>>(i%8))&1 == 1
}

// SetInBit sets bit i of BufferIn.
func (r *Record) SetInBit(i uint32, v bool) {
	if v {
		r.BufferIn[i/8] |= 1 << (i % 8)
	}
}

// Bits returns NbBits clipped to the buffer capacity.
func (r *Record) Bits() uint32 {
	if r.NbBits > MaxBits {
		return MaxBits
	}
	return r.NbBits
}
