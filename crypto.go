// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

// This file implements AES-256-ECB directly rather than delegating to a
// host-provided crypto primitive. Many embedding hosts (notably
// browser/WASM runtimes) expose only authenticated, IV-based block-cipher
// modes and do not surface raw ECB; the WZ keystream needs exactly raw
// ECB chaining on its own ciphertext, so the cipher is hand-rolled here.
// No side-channel resistance is attempted or required: the keystream is a
// public, branch-predictable derivation, not a secret-bearing encryption.

// aesRounds is the number of AES-256 encryption rounds.
const aesRounds = 14

// aesSBox is the standard AES forward substitution box. Only the forward
// box is needed: the keystream only ever encrypts, never decrypts.
var aesSBox = [256]byte{
	0x63, 0x7c, 0x77, 0x7b, 0xf2, 0x6b, 0x6f, 0xc5, 0x30, 0x01, 0x67, 0x2b, 0xfe, 0xd7, 0xab, 0x76,
	0xca, 0x82, 0xc9, 0x7d, 0xfa, 0x59, 0x47, 0xf0, 0xad, 0xd4, 0xa2, 0xaf, 0x9c, 0xa4, 0x72, 0xc0,
	0xb7, 0xfd, 0x93, 0x26, 0x36, 0x3f, 0xf7, 0xcc, 0x34, 0xa5, 0xe5, 0xf1, 0x71, 0xd8, 0x31, 0x15,
	0x04, 0xc7, 0x23, 0xc3, 0x18, 0x96, 0x05, 0x9a, 0x07, 0x12, 0x80, 0xe2, 0xeb, 0x27, 0xb2, 0x75,
	0x09, 0x83, 0x2c, 0x1a, 0x1b, 0x6e, 0x5a, 0xa0, 0x52, 0x3b, 0xd6, 0xb3, 0x29, 0xe3, 0x2f, 0x84,
	0x53, 0xd1, 0x00, 0xed, 0x20, 0xfc, 0xb1, 0x5b, 0x6a, 0xcb, 0xbe, 0x39, 0x4a, 0x4c, 0x58, 0xcf,
	0xd0, 0xef, 0xaa, 0xfb, 0x43, 0x4d, 0x33, 0x85, 0x45, 0xf9, 0x02, 0x7f, 0x50, 0x3c, 0x9f, 0xa8,
	0x51, 0xa3, 0x40, 0x8f, 0x92, 0x9d, 0x38, 0xf5, 0xbc, 0xb6, 0xda, 0x21, 0x10, 0xff, 0xf3, 0xd2,
	0xcd, 0x0c, 0x13, 0xec, 0x5f, 0x97, 0x44, 0x17, 0xc4, 0xa7, 0x7e, 0x3d, 0x64, 0x5d, 0x19, 0x73,
	0x60, 0x81, 0x4f, 0xdc, 0x22, 0x2a, 0x90, 0x88, 0x46, 0xee, 0xb8, 0x14, 0xde, 0x5e, 0x0b, 0xdb,
	0xe0, 0x32, 0x3a, 0x0a, 0x49, 0x06, 0x24, 0x5c, 0xc2, 0xd3, 0xac, 0x62, 0x91, 0x95, 0xe4, 0x79,
	0xe7, 0xc8, 0x37, 0x6d, 0x8d, 0xd5, 0x4e, 0xa9, 0x6c, 0x56, 0xf4, 0xea, 0x65, 0x7a, 0xae, 0x08,
	0xba, 0x78, 0x25, 0x2e, 0x1c, 0xa6, 0xb4, 0xc6, 0xe8, 0xdd, 0x74, 0x1f, 0x4b, 0xbd, 0x8b, 0x8a,
	0x70, 0x3e, 0xb5, 0x66, 0x48, 0x03, 0xf6, 0x0e, 0x61, 0x35, 0x57, 0xb9, 0x86, 0xc1, 0x1d, 0x9e,
	0xe1, 0xf8, 0x98, 0x11, 0x69, 0xd9, 0x8e, 0x94, 0x9b, 0x1e, 0x87, 0xe9, 0xce, 0x55, 0x28, 0xdf,
	0x8c, 0xa1, 0x89, 0x0d, 0xbf, 0xe6, 0x42, 0x68, 0x41, 0x99, 0x2d, 0x0f, 0xb0, 0x54, 0xbb, 0x16,
}

// aesRcon is the round constant schedule used for AES-256's 14-round key
// expansion (Rcon[1..14], 0-indexed here starting at entry 0 = Rcon[1]).
var aesRcon = [14]byte{
	0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80, 0x1B, 0x36, 0x6C, 0xD8, 0xAB, 0x4D,
}

// gmul multiplies two bytes in GF(2^8) under the AES reduction polynomial
// x^8 + x^4 + x^3 + x + 1 (0x11B).
func gmul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}

		hiBitSet := a&0x80 != 0
		a <<= 1
		if hiBitSet {
			a ^= 0x1B
		}

		b >>= 1
	}

	return p
}

// aesKeySchedule expands a 32-byte AES-256 key into 60 round-key words
// (240 bytes), per FIPS-197 key expansion with Nk=8, Nr=14.
func aesKeySchedule(key [32]byte) [60][4]byte {
	const nk = 8
	const totalWords = 4 * (aesRounds + 1)

	var w [totalWords][4]byte
	for i := 0; i < nk; i++ {
		w[i] = [4]byte{key[4*i], key[4*i+1], key[4*i+2], key[4*i+3]}
	}

	for i := nk; i < totalWords; i++ {
		temp := w[i-1]

		if i%nk == 0 {
			// RotWord then SubWord then XOR round constant.
			temp = [4]byte{temp[1], temp[2], temp[3], temp[0]}
			temp = [4]byte{aesSBox[temp[0]], aesSBox[temp[1]], aesSBox[temp[2]], aesSBox[temp[3]]}
			temp[0] ^= aesRcon[i/nk-1]
		} else if i%nk == 4 {
			temp = [4]byte{aesSBox[temp[0]], aesSBox[temp[1]], aesSBox[temp[2]], aesSBox[temp[3]]}
		}

		for j := 0; j < 4; j++ {
			w[i][j] = w[i-nk][j] ^ temp[j]
		}
	}

	return w
}

// aesEncryptBlock encrypts one 16-byte block in place under the expanded
// key schedule.
func aesEncryptBlock(block *[16]byte, w [60][4]byte) {
	addRoundKey(block, w[0:4])

	for round := 1; round < aesRounds; round++ {
		subBytes(block)
		shiftRows(block)
		mixColumns(block)
		addRoundKey(block, w[round*4:round*4+4])
	}

	subBytes(block)
	shiftRows(block)
	addRoundKey(block, w[aesRounds*4:aesRounds*4+4])
}

func subBytes(block *[16]byte) {
	for i := range block {
		block[i] = aesSBox[block[i]]
	}
}

// shiftRows operates on the AES state laid out column-major: state[r+4c].
func shiftRows(block *[16]byte) {
	var s [16]byte
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			s[r+4*((c+r)%4)] = block[r+4*c]
		}
	}

	*block = s
}

func mixColumns(block *[16]byte) {
	for c := 0; c < 4; c++ {
		a0, a1, a2, a3 := block[4*c], block[4*c+1], block[4*c+2], block[4*c+3]

		block[4*c] = gmul(a0, 2) ^ gmul(a1, 3) ^ a2 ^ a3
		block[4*c+1] = a0 ^ gmul(a1, 2) ^ gmul(a2, 3) ^ a3
		block[4*c+2] = a0 ^ a1 ^ gmul(a2, 2) ^ gmul(a3, 3)
		block[4*c+3] = gmul(a0, 3) ^ a1 ^ a2 ^ gmul(a3, 2)
	}
}

func addRoundKey(block *[16]byte, words [][4]byte) {
	for c := 0; c < 4; c++ {
		word := words[c]
		for r := 0; r < 4; r++ {
			block[r+4*c] ^= word[r]
		}
	}
}

// Key generates and caches the WZ keystream for one archive's
// initialization vector.
//
// Generation rule: if the IV is all zeros the stream is all zeros (the
// "no encryption" BMS/classic variant). Otherwise each 16-byte block of
// keystream is the AES-256-ECB encryption of the previous block, seeded
// by the IV tiled four times.
type Key struct {
	iv     [4]byte
	w      [60][4]byte
	zero   bool
	stream []byte
}

// NewKey builds a keystream generator for the given initialization vector.
func NewKey(iv [4]byte) *Key {
	k := &Key{iv: iv}
	if iv == ([4]byte{}) {
		k.zero = true
		return k
	}

	k.w = aesKeySchedule(newAESKey())
	return k
}

// ByteAt returns the keystream byte at index i, expanding the stream as
// needed in keyBatchSize-byte batches.
func (k *Key) ByteAt(i int) byte {
	k.expandTo(i + 1)
	return k.stream[i]
}

// Bytes returns a copy of the keystream bytes covering [0, n).
func (k *Key) Bytes(n int) []byte {
	k.expandTo(n)
	out := make([]byte, n)
	copy(out, k.stream[:n])
	return out
}

func (k *Key) expandTo(n int) {
	if len(k.stream) >= n {
		return
	}

	if k.zero {
		k.stream = make([]byte, n)
		return
	}

	newSize := ((n + keyBatchSize - 1) / keyBatchSize) * keyBatchSize
	out := make([]byte, newSize)
	start := copy(out, k.stream)

	var block [16]byte
	for i := start; i < newSize; i += 16 {
		if i == 0 {
			for j := 0; j < 16; j++ {
				block[j] = k.iv[j%4]
			}
		} else {
			copy(block[:], out[i-16:i])
		}

		aesEncryptBlock(&block, k.w)
		copy(out[i:i+16], block[:])
	}

	k.stream = out
}
