// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import "bytes"

// parseSoundDX8 reads a Sound_DX8 extended property: a handful of
// reserved/length-prefixed header fields (format chunk, duration) the
// reference client uses to prime its audio decoder, followed by the raw
// container payload (a complete .mp3, .wav, or .ogg file body).
//
// Per SPEC_FULL.md's Open Question resolution, a malformed sound header
// is treated as a parse error scoped to this one node rather than
// aborting the whole archive walk; callers that want best-effort
// coverage should catch *DecodeError from Children() on the containing
// image and continue.
func parseSoundDX8(c *Cursor, source *SourceBuffer, name string) (*Node, error) {
	if _, err := c.Byte(); err != nil { // reserved
		return nil, decodeErr(c.Pos(), err)
	}

	payloadSize, err := c.CompressedInt32()
	if err != nil {
		return nil, decodeErr(c.Pos(), err)
	}

	durationMS, err := c.CompressedInt32()
	if err != nil {
		return nil, decodeErr(c.Pos(), err)
	}

	// The reference client's WAVEFORMATEX-derived header block: 51 bytes
	// of fixed container metadata, then one byte giving the length of a
	// trailing waveform-extension region, then that many extension
	// bytes. Not needed for extraction (the payload is a self-describing
	// container) but kept verbatim so the node can be re-emitted without
	// reconstructing the header from scratch.
	headerStart := c.Pos()
	if err := c.require(51); err != nil {
		return nil, err
	}
	c.Skip(51)

	extLen, err := c.Byte()
	if err != nil {
		return nil, decodeErr(c.Pos(), err)
	}

	if err := c.require(int64(extLen)); err != nil {
		return nil, err
	}
	c.Skip(int64(extLen))

	header, err := source.Slice(headerStart, c.Pos())
	if err != nil {
		return nil, err
	}

	payloadStart := c.Pos()
	if err := c.require(int64(payloadSize)); err != nil {
		return nil, err
	}
	c.Skip(int64(payloadSize))

	n := newNode(name, TagSound)
	n.sound = &soundProvenance{
		source:       source,
		payloadStart: payloadStart,
		payloadSize:  int64(payloadSize),
		durationMS:   durationMS,
		header:       append([]byte(nil), header...),
	}

	return n, nil
}

// sniffSoundMIME identifies a sound payload's container format from its
// leading magic bytes, falling back to a generic MPEG assumption (the
// format carries no other self-describing container marker).
func sniffSoundMIME(payload []byte) string {
	switch {
	case bytes.HasPrefix(payload, []byte("RIFF")):
		return "audio/wav"
	case bytes.HasPrefix(payload, []byte("OggS")):
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
