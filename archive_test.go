// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"errors"
	"testing"
)

func TestOpenRejectsNilData(t *testing.T) {
	t.Parallel()

	if _, err := Open(nil, OpenOptions{}); !errors.Is(err, ErrNilReader) {
		t.Fatalf("got %v, want ErrNilReader", err)
	}
}

func TestOpenRejectsTooShortData(t *testing.T) {
	t.Parallel()

	if _, err := Open([]byte{1, 2, 3}, OpenOptions{}); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("got %v, want ErrMalformedHeader", err)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	t.Parallel()

	out, err := WriteArchive(buildSampleTree(), WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	corrupt := append([]byte(nil), out...)
	copy(corrupt[0:4], []byte("NOPE"))

	if _, err := Open(corrupt, OpenOptions{Variant: VariantGMS, VersionHint: 83}); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("got %v, want ErrMalformedHeader", err)
	}
}

func TestOpenRejectsUnsupportedVariant(t *testing.T) {
	t.Parallel()

	out, err := WriteArchive(buildSampleTree(), WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	if _, err := Open(out, OpenOptions{Variant: "not-a-variant"}); !errors.Is(err, ErrUnsupportedVariant) {
		t.Fatalf("got %v, want ErrUnsupportedVariant", err)
	}
}

func TestOpenAutoDetectsVariantAndVersion(t *testing.T) {
	t.Parallel()

	out, err := WriteArchive(buildSampleTree(), WriteOptions{Variant: VariantEMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	a, err := Open(out, OpenOptions{})
	if err != nil {
		t.Fatalf("Open with full auto-detection: %v", err)
	}

	if a.Variant() != VariantEMS {
		t.Fatalf("detected variant=%v, want VariantEMS", a.Variant())
	}

	if a.Version() != 83 {
		t.Fatalf("detected version=%d, want 83", a.Version())
	}
}

func TestOpenWithVersionHintPinsVersion(t *testing.T) {
	t.Parallel()

	out, err := WriteArchive(buildSampleTree(), WriteOptions{Variant: VariantBMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	a, err := Open(out, OpenOptions{Variant: VariantBMS, VersionHint: 83})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if a.Version() != 83 {
		t.Fatalf("Version()=%d, want 83", a.Version())
	}
}

func TestOpenWrongVersionHintFails(t *testing.T) {
	t.Parallel()

	out, err := WriteArchive(buildSampleTree(), WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	if _, err := Open(out, OpenOptions{Variant: VariantGMS, VersionHint: 42}); !errors.Is(err, ErrVersionDetectionFailed) {
		t.Fatalf("got %v, want ErrVersionDetectionFailed", err)
	}
}

func TestPeekReturnsHeaderFields(t *testing.T) {
	t.Parallel()

	out, err := WriteArchive(buildSampleTree(), WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	declaredSize, dataStart, variant, version, err := Peek(out, OpenOptions{Variant: VariantGMS, VersionHint: 83})
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}

	if declaredSize <= 0 {
		t.Fatalf("declaredSize=%d, want > 0", declaredSize)
	}

	if dataStart < fixedHeaderSize {
		t.Fatalf("dataStart=%d, want >= %d", dataStart, fixedHeaderSize)
	}

	if variant != VariantGMS {
		t.Fatalf("variant=%v, want VariantGMS", variant)
	}

	if version != 83 {
		t.Fatalf("version=%d, want 83", version)
	}
}

func TestOpenEagerWalkReportsNoWarningsForWellFormedArchive(t *testing.T) {
	t.Parallel()

	out, err := WriteArchive(buildSampleTree(), WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	var warnings []string
	_, err = Open(out, OpenOptions{
		Variant:     VariantGMS,
		VersionHint: 83,
		EagerWalk:   true,
		Diagnostics: Diagnostics{OnWarning: func(path string, err error) {
			warnings = append(warnings, path)
		}},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings for a well-formed archive: %v", warnings)
	}
}

func TestHasImgSuffix(t *testing.T) {
	t.Parallel()

	if !hasImgSuffix("01472005.img") {
		t.Fatal("expected .img suffix to match")
	}

	if hasImgSuffix("Character") {
		t.Fatal("did not expect a plain directory name to match")
	}

	if hasImgSuffix("img") {
		t.Fatal("a name shorter than the suffix itself must not match")
	}
}
