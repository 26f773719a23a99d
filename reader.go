// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Cursor reads WZ primitives sequentially from an immutable byte slice.
// It never copies the backing array; every read either returns a value
// type or a sub-slice of the original buffer.
type Cursor struct {
	buf []byte
	pos int64
}

// NewCursor positions a Cursor at offset within buf.
func NewCursor(buf []byte, offset int64) *Cursor {
	return &Cursor{buf: buf, pos: offset}
}

// Pos returns the cursor's current absolute offset.
func (c *Cursor) Pos() int64 {
	return c.pos
}

// Seek repositions the cursor to an absolute offset.
func (c *Cursor) Seek(offset int64) {
	c.pos = offset
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int64) {
	c.pos += n
}

// require ensures n bytes remain from the cursor's current position.
func (c *Cursor) require(n int64) error {
	if n < 0 || c.pos < 0 || c.pos+n > int64(len(c.buf)) {
		return decodeErr(c.pos, ErrTruncatedInput)
	}

	return nil
}

// Bytes returns the next n bytes without copying, advancing the cursor.
func (c *Cursor) Bytes(n int64) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}

	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// Byte reads one unsigned byte.
func (c *Cursor) Byte() (byte, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}

	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// Int8 reads one signed byte.
func (c *Cursor) Int8() (int8, error) {
	b, err := c.Byte()
	return int8(b), err
}

// Uint16 reads a little-endian uint16.
func (c *Cursor) Uint16() (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

// Int16 reads a little-endian int16.
func (c *Cursor) Int16() (int16, error) {
	v, err := c.Uint16()
	return int16(v), err
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// Int32 reads a little-endian int32.
func (c *Cursor) Int32() (int32, error) {
	v, err := c.Uint32()
	return int32(v), err
}

// Uint64 reads a little-endian uint64.
func (c *Cursor) Uint64() (uint64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

// Int64 reads a little-endian int64.
func (c *Cursor) Int64() (int64, error) {
	v, err := c.Uint64()
	return int64(v), err
}

// Float32 reads a little-endian IEEE-754 single.
func (c *Cursor) Float32() (float32, error) {
	v, err := c.Uint32()
	return math.Float32frombits(v), err
}

// Float64 reads a little-endian IEEE-754 double.
func (c *Cursor) Float64() (float64, error) {
	v, err := c.Uint64()
	return math.Float64frombits(v), err
}

// CompressedInt32 reads WZ's variable-length 32-bit integer: one signed
// byte, or (if that byte is -128) a following literal little-endian
// int32.
func (c *Cursor) CompressedInt32() (int32, error) {
	b, err := c.Int8()
	if err != nil {
		return 0, err
	}

	if b == -128 {
		return c.Int32()
	}

	return int32(b), nil
}

// CompressedInt64 reads WZ's variable-length 64-bit integer, the 64-bit
// analogue of CompressedInt32.
func (c *Cursor) CompressedInt64() (int64, error) {
	b, err := c.Int8()
	if err != nil {
		return 0, err
	}

	if b == -128 {
		return c.Int64()
	}

	return int64(b), nil
}

// CompressedFloat32 reads WZ's flag-prefixed float: one byte flag, 0x80
// meaning "literal float32 follows", anything else meaning "value is
// zero".
func (c *Cursor) CompressedFloat32() (float32, error) {
	flag, err := c.Byte()
	if err != nil {
		return 0, err
	}

	if flag == 0x80 {
		return c.Float32()
	}

	return 0, nil
}

// RawString reads a fixed-length run of n characters and decrypts it
// against key. With wide false each character is one byte, decoded as
// Latin-1; with wide true each is a little-endian 16-bit unit. Every
// character is additionally XORed with a mask that starts at 0xAA
// (0xAAAA when wide) and increases by one per character, as in the
// reference client.
func (c *Cursor) RawString(n int, key *Key, wide bool) (string, error) {
	if wide {
		return c.rawStringWide(n, key)
	}

	raw, err := c.Bytes(int64(n))
	if err != nil {
		return "", err
	}

	out := make([]rune, n)
	mask := byte(0xAA)
	for i := 0; i < n; i++ {
		var kb byte
		if key != nil {
			kb = key.ByteAt(i)
		}

		out[i] = rune(raw[i] ^ mask ^ kb)
		mask++
	}

	return string(out), nil
}

func (c *Cursor) rawStringWide(n int, key *Key) (string, error) {
	raw, err := c.Bytes(int64(n) * 2)
	if err != nil {
		return "", err
	}

	out := make([]rune, n)
	mask := uint16(0xAAAA)
	for i := 0; i < n; i++ {
		word := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
		var kb uint16
		if key != nil {
			kb = uint16(key.ByteAt(2*i)) | uint16(key.ByteAt(2*i+1))<<8
		}

		out[i] = rune(word ^ mask ^ kb)
		mask++
	}

	return string(out), nil
}

// EncryptedString reads a length-prefixed encrypted string as used in
// property keys and values: a signed length byte (or literal int32 for
// long strings) whose sign selects 1-byte ("ASCII", positive small
// lengths mean wide in the inverted WZ convention) vs 2-byte ("Unicode")
// encoding, per the format's mirrored-sign convention.
func (c *Cursor) EncryptedString(key *Key) (string, error) {
	lengthByte, err := c.Int8()
	if err != nil {
		return "", err
	}

	if lengthByte == 0 {
		return "", nil
	}

	if lengthByte > 0 {
		// Positive small length selects the 2-byte ("wide") encoding.
		n := int32(lengthByte)
		if lengthByte == 127 {
			n, err = c.Int32()
			if err != nil {
				return "", err
			}
		}

		return c.rawStringWide(int(n), key)
	}

	// Negative small length selects the 1-byte encoding.
	n := int32(-lengthByte)
	if lengthByte == -128 {
		n, err = c.Int32()
		if err != nil {
			return "", err
		}
	}

	return c.RawString(int(n), key, false)
}

// StringOrOffset reads WZ's string-block indirection: a one-byte tag,
// either 0x00/0x73 for an inline encrypted string, or 0x01/0x1B followed
// by an int32 offset into the shared string pool relative to blockBase.
// strPoolAt re-reads the pool entry at the resolved absolute offset.
func (c *Cursor) StringOrOffset(key *Key, blockBase int64, strPoolAt func(off int64) (string, error)) (string, error) {
	tag, err := c.Byte()
	if err != nil {
		return "", err
	}

	switch tag {
	case 0x00, 0x73:
		return c.EncryptedString(key)
	case 0x01, 0x1B:
		rel, err := c.Int32()
		if err != nil {
			return "", err
		}

		return strPoolAt(blockBase + int64(rel))
	default:
		return "", decodeErr(c.pos-1, fmt.Errorf("%w: unrecognized string tag 0x%02x", ErrDecode, tag))
	}
}

// EncryptedOffset reads and decrypts a packed archive offset, applying
// the XOR/multiply/constant/rotate obfuscation scheme.
//
// versionHash is the archive's full 32-bit version hash (not the
// obfuscated header value); encBase is the archive's data-section start,
// subtracted from anchor (the absolute position of this offset field
// itself) before the scrambling steps, with 2*encBase added to the
// final result.
func (c *Cursor) EncryptedOffset(versionHash uint32, encBase uint32) (uint32, error) {
	anchor := uint32(c.pos)

	raw, err := c.Uint32()
	if err != nil {
		return 0, err
	}

	x := anchor - encBase
	x ^= 0xFFFFFFFF
	x *= versionHash
	x -= offsetConstant
	x = rotl32(x, x&0x1F)

	result := (x ^ raw) + 2*encBase
	return result, nil
}

func rotl32(x uint32, n uint32) uint32 {
	n &= 31
	return (x << n) | (x >> (32 - n))
}
