// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"crypto/sha1" //nolint:gosec // content-addressing, not a security boundary
)

// ContentDigest returns the SHA1 digest of data, intended as a stable
// cache key hosts can use to avoid re-parsing an unchanged archive
// buffer across process restarts.
//
// Grounded on the teacher's trailer.go hashFilePrefixSHA1: the hashing
// core is kept, but the file-trailer-append I/O is dropped since WZ
// archives carry no trailer of their own.
func ContentDigest(data []byte) [20]byte {
	return sha1.Sum(data) //nolint:gosec // content-addressing, not a security boundary
}
