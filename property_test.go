// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"errors"
	"testing"
)

func testKeyAndSource(body []byte) (*Key, *SourceBuffer) {
	iv, _ := ivFor(VariantGMS)
	return NewKey(iv), NewSourceBuffer(body)
}

func TestParsePropertyValueInt16AltTag(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.Byte(propTagInt16Alt)
	var altInt16 int16 = -7
	b.Uint16(uint16(altInt16))

	key, source := testKeyAndSource(b.Bytes())
	c := NewCursor(b.Bytes(), 0)

	n, err := parsePropertyValue(c, source, key, 0, "alt16")
	if err != nil {
		t.Fatalf("parsePropertyValue: %v", err)
	}

	if n.Tag != TagInt16 || n.Int16Value != -7 {
		t.Fatalf("n=%+v, want Int16Value=-7", n)
	}
}

func TestParsePropertyValueInt32AltTag(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.Byte(propTagInt32Alt)
	b.ForcedCompressedInt32(123456)

	key, source := testKeyAndSource(b.Bytes())
	c := NewCursor(b.Bytes(), 0)

	n, err := parsePropertyValue(c, source, key, 0, "alt32")
	if err != nil {
		t.Fatalf("parsePropertyValue: %v", err)
	}

	if n.Tag != TagInt32 || n.Int32Value != 123456 {
		t.Fatalf("n=%+v, want Int32Value=123456", n)
	}
}

func TestParsePropertyValueUnrecognizedTag(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.Byte(0x7F) // not any recognized tag

	key, source := testKeyAndSource(b.Bytes())
	c := NewCursor(b.Bytes(), 0)

	if _, err := parsePropertyValue(c, source, key, 0, "bad"); !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
}

func TestParsePropertyValueFloat64(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.Byte(propTagFloat64)
	b.Float64(2.71828)

	key, source := testKeyAndSource(b.Bytes())
	c := NewCursor(b.Bytes(), 0)

	n, err := parsePropertyValue(c, source, key, 0, "e")
	if err != nil {
		t.Fatalf("parsePropertyValue: %v", err)
	}

	if n.Tag != TagFloat64 || n.Float64Value != 2.71828 {
		t.Fatalf("n=%+v, want Float64Value=2.71828", n)
	}
}

func TestParsePropertyValueExtendedUnknownTypeName(t *testing.T) {
	t.Parallel()

	// Build the inner extended-property body first (a type-name string
	// the parser won't recognize, with no further payload), measuring its
	// length so the outer blockLen can be set precisely.
	iv, _ := ivFor(VariantGMS)
	key := NewKey(iv)

	inner := newBuilder()
	inner.PropValueString("Mystery#Future", 0, key)
	innerBytes := inner.Bytes()

	outer := newBuilder()
	outer.Byte(propTagExtended)
	outer.Uint32(uint32(len(innerBytes)))
	outer.Bytes_(innerBytes)

	full := outer.Bytes()
	source := NewSourceBuffer(full)
	c := NewCursor(full, 0)

	n, err := parsePropertyValue(c, source, key, 0, "mystery")
	if err != nil {
		t.Fatalf("parsePropertyValue: %v", err)
	}

	if n.Tag != TagUnknownExtended || n.StringValue != "Mystery#Future" {
		t.Fatalf("n=%+v, want TagUnknownExtended with StringValue=Mystery#Future", n)
	}
}

func TestParsePropertyValueExtendedSeeksToBlockEndRegardlessOfSubParser(t *testing.T) {
	t.Parallel()

	iv, _ := ivFor(VariantGMS)
	key := NewKey(iv)

	inner := newBuilder()
	inner.PropValueString("Mystery#Future", 0, key)
	// Pad extra bytes the unknown-type sub-parser will never consume;
	// the declared blockLen must still carry the cursor past them.
	inner.Bytes_([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	innerBytes := inner.Bytes()

	outer := newBuilder()
	outer.Byte(propTagExtended)
	outer.Uint32(uint32(len(innerBytes)))
	outer.Bytes_(innerBytes)
	outer.Byte(propTagNull) // sentinel immediately after the extended block
	outer.PropValueString("next", 0, key)

	full := outer.Bytes()
	source := NewSourceBuffer(full)
	c := NewCursor(full, 0)

	if _, err := parsePropertyValue(c, source, key, 0, "mystery"); err != nil {
		t.Fatalf("parsePropertyValue: %v", err)
	}

	// The cursor must now sit exactly at the sentinel byte.
	tagByte, err := c.Byte()
	if err != nil {
		t.Fatalf("Byte: %v", err)
	}

	if tagByte != propTagNull {
		t.Fatalf("cursor landed on tag 0x%02x, want propTagNull after blockEnd seek", tagByte)
	}
}

func TestParseVector2D(t *testing.T) {
	t.Parallel()

	b := newBuilder()
	b.ForcedCompressedInt32(-15)
	b.ForcedCompressedInt32(42)

	c := NewCursor(b.Bytes(), 0)
	n, err := parseVector2D(c, "pt")
	if err != nil {
		t.Fatalf("parseVector2D: %v", err)
	}

	if n.Tag != TagVector2D || n.VectorX != -15 || n.VectorY != 42 {
		t.Fatalf("n=%+v, want VectorX=-15 VectorY=42", n)
	}
}

func TestParseConvex2DEmpty(t *testing.T) {
	t.Parallel()

	iv, _ := ivFor(VariantGMS)
	key := NewKey(iv)

	b := newBuilder()
	b.ForcedCompressedInt32(0) // zero children

	source := NewSourceBuffer(b.Bytes())
	c := NewCursor(b.Bytes(), 0)

	n, err := parseConvex2D(c, source, key, 0, "outline")
	if err != nil {
		t.Fatalf("parseConvex2D: %v", err)
	}

	if n.Tag != TagConvex2D || len(n.children) != 0 {
		t.Fatalf("n=%+v, want TagConvex2D with 0 children", n)
	}
}

func TestParseUOL(t *testing.T) {
	t.Parallel()

	iv, _ := ivFor(VariantGMS)
	key := NewKey(iv)

	b := newBuilder()
	b.Byte(0) // reserved
	b.PropValueString("../other.img", 0, key)

	source := NewSourceBuffer(b.Bytes())
	c := NewCursor(b.Bytes(), 0)

	n, err := parseUOL(c, source, key, 0, "link")
	if err != nil {
		t.Fatalf("parseUOL: %v", err)
	}

	if n.Tag != TagUOL || n.UOLTarget != "../other.img" {
		t.Fatalf("n=%+v, want UOLTarget=../other.img", n)
	}
}
