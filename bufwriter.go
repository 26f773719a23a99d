// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"bytes"
	"encoding/binary"
	"math"
)

// builder accumulates a WZ archive's output bytes in memory and records
// placeholder positions for values (offsets, checksums) that are only
// known after a later pass, mirroring the teacher's
// reserve-placeholder-then-seek-back-and-patch writer pattern. Unlike the
// teacher, which streams onto an io.WriteSeeker backing a real file, this
// builder targets a single in-memory buffer: the archive writer's layout
// pass (§4.7) has no streaming requirement, so patches are applied with
// plain slice writes instead of Seek+Write.
type builder struct {
	buf bytes.Buffer

	// propValueCache interns already-written property-value strings within
	// one image, keyed by string content, cleared at the start of each image.
	propValueCache map[string]int64
	// dirEntryCache interns directory-entry name strings across the whole
	// archive, keyed by inline tag plus name, so a directory and an image
	// with the same name never share a cached reference. The recorded
	// offset is that of the first entry's inline tag byte.
	dirEntryCache map[string]int64
}

// newBuilder returns an empty builder.
func newBuilder() *builder {
	return &builder{
		propValueCache: make(map[string]int64),
		dirEntryCache:  make(map[string]int64),
	}
}

// Len returns the number of bytes written so far; equivalently the next
// write's absolute offset.
func (b *builder) Len() int64 {
	return int64(b.buf.Len())
}

// Bytes returns the accumulated buffer. Valid until the next write.
func (b *builder) Bytes() []byte {
	return b.buf.Bytes()
}

// resetForImage clears per-image caches and state; called between images
// during the layout pass so unrelated images never intern each other's
// string offsets.
func (b *builder) resetForImage() {
	b.propValueCache = make(map[string]int64)
}

// patchAt overwrites len(data) bytes starting at offset with data. offset
// must refer to bytes already written.
func (b *builder) patchAt(offset int64, data []byte) error {
	raw := b.buf.Bytes()
	if offset < 0 || offset+int64(len(data)) > int64(len(raw)) {
		return ErrTruncatedInput
	}

	copy(raw[offset:], data)
	return nil
}

func (b *builder) Byte(v byte) {
	b.buf.WriteByte(v)
}

func (b *builder) Bytes_(v []byte) {
	b.buf.Write(v)
}

func (b *builder) Uint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
}

func (b *builder) Uint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}

func (b *builder) Uint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
}

func (b *builder) Float32(v float32) {
	b.Uint32(math.Float32bits(v))
}

func (b *builder) Float64(v float64) {
	b.Uint64(math.Float64bits(v))
}

// CompressedInt32 writes WZ's variable-length 32-bit integer.
func (b *builder) CompressedInt32(v int32) {
	if v >= -127 && v <= 127 {
		b.Byte(byte(int8(v)))
		return
	}

	b.Byte(0x80)
	b.Uint32(uint32(v))
}

// ForcedCompressedInt32 always writes the 5-byte literal form of a
// compressed int32, even for values that would fit the 1-byte form. Used
// for fields whose final value is only known after a placeholder has
// already been reserved at a fixed width.
func (b *builder) ForcedCompressedInt32(v int32) {
	b.Byte(0x80)
	b.Uint32(uint32(v))
}

// CompressedInt64 writes WZ's variable-length 64-bit integer.
func (b *builder) CompressedInt64(v int64) {
	if v >= -127 && v <= 127 {
		b.Byte(byte(int8(v)))
		return
	}

	b.Byte(0x80)
	b.Uint64(uint64(v))
}

// CompressedFloat32 writes WZ's flag-prefixed float: zero values are
// elided to a single zero byte; nonzero values get the 0x80 flag
// followed by the literal bits.
func (b *builder) CompressedFloat32(v float32) {
	if v == 0 {
		b.Byte(0)
		return
	}

	b.Byte(0x80)
	b.Float32(v)
}

// RawString writes n characters of s, encrypting each byte/word against
// key the same way Cursor.RawString decrypts it (the operation is its
// own inverse since it is pure XOR).
func (b *builder) RawString(s string, key *Key, wide bool) {
	runes := []rune(s)
	if wide {
		mask := uint16(0xAAAA)
		for i, r := range runes {
			var kb uint16
			if key != nil {
				kb = uint16(key.ByteAt(2*i)) | uint16(key.ByteAt(2*i+1))<<8
			}

			word := uint16(r) ^ mask ^ kb
			b.Byte(byte(word))
			b.Byte(byte(word >> 8))
			mask++
		}

		return
	}

	mask := byte(0xAA)
	for i, r := range runes {
		var kb byte
		if key != nil {
			kb = key.ByteAt(i)
		}

		b.Byte(byte(r) ^ mask ^ kb)
		mask++
	}
}

// EncryptedString writes a length-prefixed encrypted string in WZ's
// mirrored-sign convention: ASCII-range content is written narrow with a
// negative length prefix, anything requiring UTF-16 is written wide with
// a positive length prefix.
func (b *builder) EncryptedString(s string, key *Key) {
	wide := false
	for _, r := range s {
		if r > 0x7E || r < 0x20 {
			wide = true
			break
		}
	}

	n := len([]rune(s))
	if wide {
		if n < 127 {
			b.Byte(byte(n))
		} else {
			b.Byte(127)
			b.Uint32(uint32(n))
		}

		b.RawString(s, key, true)
		return
	}

	if n < 128 {
		b.Byte(byte(int8(-int32(n))))
	} else {
		var neg128 int8 = -128
		b.Byte(byte(neg128))
		b.Uint32(uint32(n))
	}

	b.RawString(s, key, false)
}

// DirEntryString writes a directory-table name using the cache-or-inline
// convention: tag 0x02 with a 4-byte offset (relative to blockBase, the
// archive's data-section start) pointing at the inline tag byte of an
// earlier entry with the same tag and name (the reader skips that byte
// and reads the EncryptedString after it), or inlineTag (0x03 for a
// subdirectory, 0x04 for an image) followed by the inline EncryptedString
// itself.
func (b *builder) DirEntryString(name string, blockBase int64, inlineTag byte, key *Key) {
	cacheKey := string([]byte{inlineTag}) + name
	if off, ok := b.dirEntryCache[cacheKey]; ok {
		b.Byte(0x02)
		b.Uint32(uint32(off - blockBase))
		return
	}

	b.dirEntryCache[cacheKey] = b.Len()
	b.Byte(inlineTag)
	b.EncryptedString(name, key)
}

// PropValueString writes a property string value using the per-image
// value cache: repeated identical strings within one image are written
// once and referenced thereafter by the offset (relative to blockBase) of
// the first occurrence's EncryptedString, just past its 0x00 tag.
func (b *builder) PropValueString(s string, blockBase int64, key *Key) {
	if off, ok := b.propValueCache[s]; ok {
		b.Byte(0x01)
		b.Uint32(uint32(off - blockBase))
		return
	}

	b.Byte(0x00)
	b.propValueCache[s] = b.Len()
	b.EncryptedString(s, key)
}

// EncryptedOffset writes a packed archive offset applying the inverse of
// Cursor.EncryptedOffset's obfuscation. value is the plain (unobfuscated)
// absolute offset being encoded; encBase and versionHash are the same
// archive-wide constants used on read.
func (b *builder) EncryptedOffset(value uint32, versionHash uint32, encBase uint32) {
	b.Uint32(encodeEncryptedOffset(value, uint32(b.Len()), versionHash, encBase))
}

// encodeEncryptedOffset computes the obfuscated 4-byte value for a plain
// offset, given the absolute position anchor the field itself occupies
// (or will occupy once patched in). It is the exact inverse of
// Cursor.EncryptedOffset's decode arithmetic.
func encodeEncryptedOffset(value uint32, anchor uint32, versionHash uint32, encBase uint32) uint32 {
	x := anchor - encBase
	x ^= 0xFFFFFFFF
	x *= versionHash
	x -= offsetConstant
	x = rotl32(x, x&0x1F)

	return x ^ (value - 2*encBase)
}
