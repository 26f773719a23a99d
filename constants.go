// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

// Variant identifies a regional MapleStory encryption IV set.
type Variant string

// Supported regional encryption variants.
const (
	// VariantGMS is Global MapleStory.
	VariantGMS Variant = "gms"
	// VariantEMS is Europe MapleStory.
	VariantEMS Variant = "ems"
	// VariantBMS is Brazil/Classic MapleStory; its IV is all zeros, which
	// disables the keystream entirely (see Key.expandTo).
	VariantBMS Variant = "bms"
)

// variantIVs are this library's known per-region initialization vectors.
//
// Reference: MapleLib WzIv constants.
var variantIVs = map[Variant][4]byte{
	VariantGMS: {0x4D, 0x23, 0xC7, 0x2B},
	VariantEMS: {0xB9, 0x7D, 0x63, 0xE9},
	VariantBMS: {0x00, 0x00, 0x00, 0x00},
}

// autoDetectVariantOrder is the trial order used when no variant hint is given.
var autoDetectVariantOrder = []Variant{VariantGMS, VariantEMS, VariantBMS}

// ivFor returns the initialization vector for a known variant.
func ivFor(v Variant) ([4]byte, bool) {
	iv, ok := variantIVs[v]
	return iv, ok
}

// userKey is the 128-byte AES constant used by the MapleStory client to
// derive the 32-byte AES-256 key (every 16th byte, see newAESKey).
//
// Reference: MapleLib MapleCryptoConstants.MAPLESTORY_USERKEY_DEFAULT
var userKey = [128]byte{
	0x13, 0x00, 0x00, 0x00, 0x52, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x5B, 0x00, 0x00, 0x00,
	0x08, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x60, 0x00, 0x00, 0x00,
	0x06, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x43, 0x00, 0x00, 0x00, 0x0F, 0x00, 0x00, 0x00,
	0xB4, 0x00, 0x00, 0x00, 0x4B, 0x00, 0x00, 0x00, 0x35, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00,
	0x1B, 0x00, 0x00, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x5F, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00,
	0x0F, 0x00, 0x00, 0x00, 0x50, 0x00, 0x00, 0x00, 0x0C, 0x00, 0x00, 0x00, 0x1B, 0x00, 0x00, 0x00,
	0x33, 0x00, 0x00, 0x00, 0x55, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00,
	0x52, 0x00, 0x00, 0x00, 0xDE, 0x00, 0x00, 0x00, 0xC7, 0x00, 0x00, 0x00, 0x1E, 0x00, 0x00, 0x00,
}

// newAESKey trims the 128-byte userKey to the 32-byte AES-256 key, taking
// every 16th byte (positions 0, 16, 32, ... 112) and placing them at
// every 4th key position (0, 4, 8, ... 28); the remaining 24 bytes stay
// zero.
//
// Reference: MapleLib MapleCryptoConstants.GetTrimmedUserKey
func newAESKey() [32]byte {
	var aesKey [32]byte
	for i := 0; i < 128; i += 16 {
		aesKey[i/4] = userKey[i]
	}

	return aesKey
}

// Format-level constants used by the offset obfuscation scheme and the
// keystream generator.
const (
	// offsetConstant is subtracted during encrypted-offset (de)obfuscation.
	offsetConstant = 0x581C3F6D
	// keyBatchSize is the size in bytes of each keystream expansion batch.
	keyBatchSize = 4096
	// synthetic64BitVersionHeader is the fixed version header used by the
	// (read-only, out of scope for write) 64-bit client archive layout.
	synthetic64BitVersionHeader = 770
	// classicHeaderMagic is the required 4-byte archive magic.
	classicHeaderMagic = "PKG1"
	// defaultCopyright is the fixed copyright string the writer emits; the
	// spec explicitly places verifying this string out of scope for readers.
	defaultCopyright = "Package file v1.0 Copyright 2002 Wizet, ZMS"
)

// VersionHash computes the 32-bit version hash for a patch version's
// decimal string representation.
//
// Reference: MapleLib version hash (multiple locations).
func VersionHash(version string) uint32 {
	hash := uint32(0)
	for _, ch := range version {
		hash = (hash * 32) + uint32(ch) + 1
	}

	return hash
}

// ObfuscateVersionHash folds a 32-bit version hash down to the 16-bit
// obfuscated value stored in a classic archive's version header.
func ObfuscateVersionHash(hash uint32) uint16 {
	b0 := byte(hash)
	b1 := byte(hash >> 8)
	b2 := byte(hash >> 16)
	b3 := byte(hash >> 24)

	return uint16(^(b0 ^ b1 ^ b2 ^ b3)) & 0xFF
}

// bruteforceVersions is the candidate patch-version search order used by
// auto-detection: 83 first (the most common classic patch), then 1..500
// excluding 83, matching the teacher-shaped "try the common case first"
// idiom.
func bruteforceVersions() []int {
	versions := make([]int, 0, 500)
	versions = append(versions, 83)
	for v := 1; v <= 500; v++ {
		if v == 83 {
			continue
		}

		versions = append(versions, v)
	}

	return versions
}

// bruteforce64BitVersions is the candidate search order for 64-bit archives.
func bruteforce64BitVersions() []int {
	versions := make([]int, 0, 11)
	for v := 770; v <= 780; v++ {
		versions = append(versions, v)
	}

	return versions
}
