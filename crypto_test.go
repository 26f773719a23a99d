// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"bytes"
	"testing"
)

func TestKeyZeroIVProducesZeroStream(t *testing.T) {
	t.Parallel()

	k := NewKey([4]byte{})
	got := k.Bytes(32)
	want := make([]byte, 32)
	if !bytes.Equal(got, want) {
		t.Fatalf("BMS (zero-IV) keystream should be all zeros, got %x", got)
	}
}

func TestKeyDeterministicPerIV(t *testing.T) {
	t.Parallel()

	iv, _ := ivFor(VariantGMS)
	a := NewKey(iv).Bytes(64)
	b := NewKey(iv).Bytes(64)
	if !bytes.Equal(a, b) {
		t.Fatal("two Key instances for the same IV should produce identical keystreams")
	}

	emsIV, _ := ivFor(VariantEMS)
	c := NewKey(emsIV).Bytes(64)
	if bytes.Equal(a, c) {
		t.Fatal("GMS and EMS keystreams should differ")
	}
}

func TestKeyByteAtMatchesBytes(t *testing.T) {
	t.Parallel()

	iv, _ := ivFor(VariantGMS)
	k := NewKey(iv)

	full := k.Bytes(100)
	for i := 0; i < 100; i++ {
		if got := k.ByteAt(i); got != full[i] {
			t.Fatalf("ByteAt(%d)=%x, want %x", i, got, full[i])
		}
	}
}

func TestKeyExpandsAcrossBatchBoundary(t *testing.T) {
	t.Parallel()

	iv, _ := ivFor(VariantGMS)
	k := NewKey(iv)

	first := k.Bytes(10)
	second := k.Bytes(keyBatchSize + 10)

	if !bytes.Equal(first, second[:10]) {
		t.Fatal("expanding the keystream should preserve previously returned bytes")
	}
}

func TestVersionHashAndObfuscation(t *testing.T) {
	t.Parallel()

	hash := VersionHash("83")
	if hash == 0 {
		t.Fatal("VersionHash(\"83\") should be nonzero")
	}

	obf := ObfuscateVersionHash(hash)
	if obf != ObfuscateVersionHash(VersionHash("83")) {
		t.Fatal("ObfuscateVersionHash should be deterministic for the same hash")
	}

	other := ObfuscateVersionHash(VersionHash("84"))
	if obf == other && hash != VersionHash("84") {
		// Collisions are expected occasionally (8-bit space, hundreds of
		// candidates); only fail if the underlying hashes actually matched.
		t.Skip("obfuscated hash collision between adjacent versions, not a bug")
	}
}
