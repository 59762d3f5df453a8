// Package rle implements the byte-oriented run-length scheme used for tile
// planes.
//
// An encoded plane is a sequence of records, each introduced by an op byte:
//
//	0..126    short run: repeat the next byte op+1 times
//	127       long run: u16 big-endian count, then the byte to repeat
//	128       long literal: u16 big-endian count, then that many bytes
//	129..255  short literal: copy the next 256-op bytes
//
// Decoding must produce exactly the declared number of bytes and consume
// exactly the encoded input.
package rle

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MinRun is the shortest run the encoder emits as a run record. Shorter
// repetitions are folded into literals.
const MinRun = 3

const (
	maxShort = 127
	maxLong  = 0xFFFF

	opLongRun     = 127
	opLongLiteral = 128
)

var (
	// ErrShortInput is returned when the encoded data ends inside a record or
	// before the declared size is reached.
	ErrShortInput = errors.New("rle: encoded data too short")
	// ErrOverrun is returned when a record would write past the declared size.
	ErrOverrun = errors.New("rle: record exceeds declared size")
	// ErrTrailingData is returned when encoded bytes remain after the declared
	// size has been produced.
	ErrTrailingData = errors.New("rle: trailing encoded data")
	// ErrZeroCount is returned for a long record with a zero count.
	ErrZeroCount = errors.New("rle: zero-length record")
)

// Decode decodes src into a new buffer of exactly n bytes.
func Decode(src []byte, n int) ([]byte, error) {
	dst := make([]byte, n)
	if err := DecodeInto(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecodeInto decodes src into dst, which must be filled exactly.
func DecodeInto(dst, src []byte) error {
	next, pos := 0, 0
	for next < len(dst) {
		if pos >= len(src) {
			return fmt.Errorf("%w: %d of %d bytes decoded", ErrShortInput, next, len(dst))
		}
		op := src[pos]
		pos++

		var count int
		run := false
		switch {
		case op < opLongRun:
			count, run = int(op)+1, true
		case op == opLongRun, op == opLongLiteral:
			if pos+2 > len(src) {
				return fmt.Errorf("%w: long record header at %d", ErrShortInput, pos-1)
			}
			count = int(binary.BigEndian.Uint16(src[pos:]))
			pos += 2
			if count == 0 {
				return fmt.Errorf("%w at %d", ErrZeroCount, pos-3)
			}
			run = op == opLongRun
		default:
			count = 256 - int(op)
		}

		if next+count > len(dst) {
			return fmt.Errorf("%w: %d bytes at %d, size %d", ErrOverrun, count, next, len(dst))
		}
		if run {
			if pos >= len(src) {
				return fmt.Errorf("%w: run value at %d", ErrShortInput, pos)
			}
			v := src[pos]
			pos++
			fill := dst[next : next+count]
			for i := range fill {
				fill[i] = v
			}
		} else {
			if pos+count > len(src) {
				return fmt.Errorf("%w: literal of %d bytes at %d", ErrShortInput, count, pos)
			}
			copy(dst[next:], src[pos:pos+count])
			pos += count
		}
		next += count
	}
	if pos != len(src) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, len(src)-pos)
	}
	return nil
}

// Encode returns the run-length encoding of src. Runs of at least MinRun
// identical bytes become run records; everything else is emitted as literals.
func Encode(src []byte) []byte {
	dst := make([]byte, 0, len(src)/2+8)
	i, litStart := 0, 0
	for i < len(src) {
		r := runLength(src, i)
		if r < MinRun {
			i++
			if i-litStart == maxLong {
				dst = appendLiteral(dst, src[litStart:i])
				litStart = i
			}
			continue
		}
		if litStart < i {
			dst = appendLiteral(dst, src[litStart:i])
		}
		dst = appendRun(dst, src[i], r)
		i += r
		litStart = i
	}
	if litStart < len(src) {
		dst = appendLiteral(dst, src[litStart:])
	}
	return dst
}

func runLength(src []byte, i int) int {
	v := src[i]
	j := i + 1
	for j < len(src) && src[j] == v && j-i < maxLong {
		j++
	}
	return j - i
}

func appendRun(dst []byte, v byte, n int) []byte {
	if n <= maxShort {
		return append(dst, byte(n-1), v)
	}
	dst = append(dst, opLongRun)
	dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	return append(dst, v)
}

func appendLiteral(dst, lit []byte) []byte {
	if len(lit) <= maxShort {
		dst = append(dst, byte(256-len(lit)))
	} else {
		dst = append(dst, opLongLiteral)
		dst = binary.BigEndian.AppendUint16(dst, uint16(len(lit)))
	}
	return append(dst, lit...)
}
