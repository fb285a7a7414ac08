// Package sfdp parses the Serial Flash Discoverable Parameters table
// (JESD216) that a flash chip returns for the Read SFDP instruction.
package sfdp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Signature is the first dword of the table, "SFDP" in little endian.
const Signature = 0x50444653

// BasicTableID is the parameter ID of the JEDEC basic flash parameter table.
const BasicTableID = 0xFF00

// Dword indexes into the basic flash parameter table.
const (
	BasicDword4KiBErase  = 0
	BasicDwordDensity    = 1
	BasicDwordEraseType1 = 7 // erase types 1 and 2
	BasicDwordEraseType3 = 8 // erase types 3 and 4
	BasicDwordPageSize   = 10
)

const (
	headerSize      = 8
	paramHeaderSize = 8
)

var (
	ErrNoSFDP     = errors.New("chip does not support SFDP")
	ErrOutOfRange = errors.New("dword out of range")
)

// ReaderAt reads raw SFDP bytes from the device.
type ReaderAt interface {
	SFDPReadAt(offset uint32, out []byte) error
}

// Buffer holds an SFDP image in memory.
type Buffer []byte

// SFDPReadAt implements ReaderAt.
func (b Buffer) SFDPReadAt(offset uint32, out []byte) error {
	offset &= 0x00FFFFFF
	if int(offset)+len(out) > len(b) {
		return fmt.Errorf("sfdp: read of %d bytes at 0x%X past end of %d byte buffer", len(out), offset, len(b))
	}
	copy(out, b[offset:])
	return nil
}

// Header is the SFDP header.
type Header struct {
	Signature uint32
	MinorRev  uint8
	MajorRev  uint8
	// NumParams is the number of parameter headers.
	NumParams int
}

// Parameter is one parameter header with its table.
type Parameter struct {
	ID       uint16 // MSB:LSB
	MinorRev uint8
	MajorRev uint8
	Pointer  uint32
	Table    []uint32
}

// SFDP is a parsed SFDP table.
type SFDP struct {
	Header
	Parameters []Parameter
}

// Parse reads the header, the parameter headers and every parameter table
// from r.
func Parse(r ReaderAt) (*SFDP, error) {
	buf := make([]byte, headerSize)
	if err := r.SFDPReadAt(0, buf); err != nil {
		return nil, err
	}
	h := Header{
		Signature: binary.LittleEndian.Uint32(buf),
		MinorRev:  buf[4],
		MajorRev:  buf[5],
		NumParams: int(buf[6]) + 1, // NPH is zero based
	}
	if h.Signature != Signature {
		return nil, fmt.Errorf("%w: signature 0x%08X", ErrNoSFDP, h.Signature)
	}

	phs := make([]byte, paramHeaderSize*h.NumParams)
	if err := r.SFDPReadAt(headerSize, phs); err != nil {
		return nil, err
	}
	s := &SFDP{Header: h, Parameters: make([]Parameter, h.NumParams)}
	for i := range s.Parameters {
		ph := phs[i*paramHeaderSize:]
		p := &s.Parameters[i]
		p.ID = uint16(ph[7])<<8 | uint16(ph[0])
		p.MinorRev = ph[1]
		p.MajorRev = ph[2]
		length := int(ph[3]) // in dwords
		p.Pointer = uint32(ph[4]) | uint32(ph[5])<<8 | uint32(ph[6])<<16

		tbl := make([]byte, 4*length)
		if err := r.SFDPReadAt(p.Pointer, tbl); err != nil {
			return nil, fmt.Errorf("parameter 0x%04X: %w", p.ID, err)
		}
		p.Table = make([]uint32, length)
		for j := range p.Table {
			p.Table[j] = binary.LittleEndian.Uint32(tbl[4*j:])
		}
	}
	return s, nil
}

// TableDword returns a dword of the first table with the given ID.
func (s *SFDP) TableDword(id uint16, dword int) (uint32, error) {
	for _, p := range s.Parameters {
		if p.ID != id {
			continue
		}
		if dword < 0 || dword >= len(p.Table) {
			return 0, fmt.Errorf("%w: table 0x%04X dword %d of %d", ErrOutOfRange, id, dword, len(p.Table))
		}
		return p.Table[dword], nil
	}
	return 0, fmt.Errorf("%w: no table 0x%04X", ErrOutOfRange, id)
}

// Size returns the flash density in bytes.
func (s *SFDP) Size() (uint64, error) {
	d, err := s.TableDword(BasicTableID, BasicDwordDensity)
	if err != nil {
		return 0, err
	}
	if d&(1<<31) != 0 {
		n := d &^ (1 << 31)
		if n < 3 || n > 63 {
			return 0, fmt.Errorf("sfdp: invalid density 2^%d bits", n)
		}
		return 1 << (n - 3), nil
	}
	return (uint64(d) + 1) / 8, nil
}

// Erase4KiBOpcode returns the instruction for a 4KiB erase.
func (s *SFDP) Erase4KiBOpcode() (uint8, error) {
	d, err := s.TableDword(BasicTableID, BasicDword4KiBErase)
	if err != nil {
		return 0xFF, err
	}
	op := uint8(d >> 8)
	if op == 0xFF || d&0x3 != 0x1 {
		return 0xFF, errors.New("sfdp: 4KiB erase not supported")
	}
	return op, nil
}

// EraseType is one of the up to four erase granularities of a chip.
type EraseType struct {
	Size   uint32
	Opcode uint8
}

// EraseTypes returns the supported erase types in table order.
func (s *SFDP) EraseTypes() ([]EraseType, error) {
	var out []EraseType
	for _, dw := range []int{BasicDwordEraseType1, BasicDwordEraseType3} {
		d, err := s.TableDword(BasicTableID, dw)
		if err != nil {
			return nil, err
		}
		for _, half := range []uint32{d & 0xFFFF, d >> 16} {
			n := half & 0xFF
			if n == 0 || n > 31 {
				continue
			}
			out = append(out, EraseType{Size: 1 << n, Opcode: uint8(half >> 8)})
		}
	}
	return out, nil
}

// PageSize returns the program page size in bytes, or 256 when the table
// predates JESD216 and does not carry it.
func (s *SFDP) PageSize() (uint32, error) {
	d, err := s.TableDword(BasicTableID, BasicDwordPageSize)
	if errors.Is(err, ErrOutOfRange) {
		return 256, nil
	}
	if err != nil {
		return 0, err
	}
	return 1 << ((d >> 4) & 0xF), nil
}
