// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"bytes"
	"fmt"
)

// fixedHeaderSize is the size of a classic WZ archive's fixed header:
// 4-byte magic, 8-byte declared total size, 4-byte data-block start
// offset, then a NUL-terminated copyright string occupying the rest of
// the conventional 60-byte block (the string's own length varies; only
// the first three fields are position-fixed).
const fixedHeaderSize = 16

// Diagnostics receives non-fatal warnings encountered while walking an
// archive, mirroring the teacher's callback-based progress reporting
// instead of a logging dependency.
type Diagnostics struct {
	// OnWarning is called for each recoverable anomaly (e.g. an
	// unparseable image skipped during the walk). May be nil.
	OnWarning func(path string, err error)
}

func (d Diagnostics) warn(path string, err error) {
	if d.OnWarning != nil {
		d.OnWarning(path, err)
	}
}

// OpenOptions configures archive parsing.
type OpenOptions struct {
	// Variant pins the encryption IV set; zero value triggers
	// auto-detection across VariantGMS, VariantEMS, VariantBMS in that
	// order.
	Variant Variant
	// VersionHint pins the patch version used for the archive's version
	// hash instead of brute-forcing bruteforceVersions().
	VersionHint int
	// Diagnostics receives non-fatal per-image warnings during the full
	// eager walk (not used by lazy Children() calls after Open returns).
	Diagnostics Diagnostics
	// EagerWalk parses every image's property list during Open instead of
	// lazily on first Children() access, trading startup latency for
	// surfacing all per-image decode errors up front via Diagnostics.
	EagerWalk bool
}

// Archive is a parsed, read-only view over one WZ archive's bytes.
type Archive struct {
	source      *SourceBuffer
	key         *Key
	variant     Variant
	version     int
	versionHash uint32
	encBase     uint32
	dataStart   int64
	declaredSize int64
	root        *Node
}

// Root returns the archive's root directory node.
func (a *Archive) Root() *Node {
	return a.root
}

// Variant returns the encryption variant used to parse this archive.
func (a *Archive) Variant() Variant {
	return a.variant
}

// Version returns the patch version number used to compute the
// archive's version hash.
func (a *Archive) Version() int {
	return a.version
}

// Open parses a WZ archive from data, auto-detecting variant and version
// unless pinned via opts.
func Open(data []byte, opts OpenOptions) (*Archive, error) {
	if data == nil {
		return nil, ErrNilReader
	}

	if len(data) < fixedHeaderSize {
		return nil, decodeErr(0, ErrMalformedHeader)
	}

	if !bytes.Equal(data[0:4], []byte(classicHeaderMagic)) {
		return nil, decodeErr(0, ErrMalformedHeader)
	}

	declaredSize := int64(leUint64(data[4:12]))
	dataStart := int64(leUint32(data[12:16]))
	if dataStart < fixedHeaderSize || dataStart > int64(len(data)) {
		return nil, decodeErr(12, ErrMalformedHeader)
	}

	source := NewSourceBuffer(data)

	variants := autoDetectVariantOrder
	if opts.Variant != "" {
		iv, ok := ivFor(opts.Variant)
		if !ok {
			return nil, ErrUnsupportedVariant
		}

		variants = []Variant{opts.Variant}
		_ = iv
	}

	versions := bruteforceVersions()
	if opts.VersionHint != 0 {
		versions = []int{opts.VersionHint}
	}

	var lastErr error
	for _, variant := range variants {
		iv, _ := ivFor(variant)

		// The obfuscated 2-byte version hash sits at the data-section
		// start, right after the header's copyright string.
		hc := NewCursor(data, dataStart)
		obfuscated, err := hc.Uint16()
		if err != nil {
			lastErr = err
			continue
		}

		for _, version := range versions {
			hash := VersionHash(fmt.Sprintf("%d", version))
			if ObfuscateVersionHash(hash) != obfuscated {
				continue
			}

			key := NewKey(iv)
			encBase := uint32(dataStart)

			root, err := parseDirectory(source, key, "", dataStart+2, hash, encBase, false)
			if err != nil {
				lastErr = err
				continue
			}

			// The obfuscated hash keeps only 8 significant bits and so
			// collides often across the several hundred candidate versions
			// tried during auto-detection; a
			// directory block that merely parsed without an out-of-bounds
			// read can still be nonsense decrypted with the wrong key. A
			// cheap plausibility check catches the false positives: entry
			// names should mostly decode to printable ASCII, and the first
			// image's data should start at one of the two valid image-
			// header discriminator bytes.
			if !looksLikeValidTree(root) {
				lastErr = decodeErr(dataStart, ErrVersionDetectionFailed)
				continue
			}

			a := &Archive{
				source:       source,
				key:          key,
				variant:      variant,
				version:      version,
				versionHash:  hash,
				encBase:      encBase,
				dataStart:    dataStart,
				declaredSize: declaredSize,
				root:         root,
			}

			if opts.EagerWalk {
				walkEager(root, opts.Diagnostics)
			}

			return a, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrVersionDetectionFailed, lastErr)
	}

	return nil, ErrVersionDetectionFailed
}

// walkEager forces every image under root to parse now, reporting
// per-image failures via diag instead of aborting.
func walkEager(n *Node, diag Diagnostics) {
	children, err := n.Children()
	if err != nil {
		diag.warn(n.Name, err)
		return
	}

	for _, c := range children {
		if c.Tag == TagDirectory || c.Tag == TagImage {
			walkEager(c, diag)
		}
	}
}

// parseDirectory reads one directory block's entry table: a
// compressed-int entry count, then for each entry a one-byte kind tag
// (1: a placeholder that yields no node; 2: a name stored elsewhere in
// the data section, reached through a 4-byte relative offset; 3: a
// subdirectory with an inline name; 4: an image with an inline name),
// followed for kinds 2-4 by a size, a checksum and an encrypted offset,
// per the teacher-shaped sequential entry-table walk.
//
// WriteArchive emits a directory's images before its subdirectories;
// this walk neither checks nor depends on entry order.
func parseDirectory(source *SourceBuffer, key *Key, name string, blockStart int64, versionHash uint32, encBase uint32, _ bool) (*Node, error) {
	buf := source.Bytes()
	c := NewCursor(buf, blockStart)

	count, err := c.CompressedInt32()
	if err != nil {
		return nil, decodeErr(c.Pos(), err)
	}

	dir := newNode(name, TagDirectory)
	dir.children = make([]*Node, 0, count)

	for i := int32(0); i < count; i++ {
		kind, err := c.Byte()
		if err != nil {
			return nil, decodeErr(c.Pos(), err)
		}

		if kind == 1 {
			// Unknown placeholder entry: 4 reserved bytes, 2 reserved
			// bytes, and one encrypted offset, all unused. It names
			// nothing and produces no node in the tree.
			c.Skip(4)
			c.Skip(2)
			if _, err := c.EncryptedOffset(versionHash, encBase); err != nil {
				return nil, decodeErr(c.Pos(), err)
			}

			continue
		}

		var entryName string
		var isDir bool
		switch kind {
		case 2:
			rel, err := c.Int32()
			if err != nil {
				return nil, decodeErr(c.Pos(), err)
			}

			pc := NewCursor(buf, int64(encBase)+int64(rel))
			if _, err := pc.Byte(); err != nil { // cache discriminator, not needed again
				return nil, decodeErr(pc.Pos(), err)
			}

			entryName, err = pc.EncryptedString(key)
			if err != nil {
				return nil, decodeErr(pc.Pos(), err)
			}

			isDir = !hasImgSuffix(entryName)
		case 3, 4:
			entryName, err = c.EncryptedString(key)
			if err != nil {
				return nil, decodeErr(c.Pos(), err)
			}

			isDir = kind == 3
		default:
			return nil, decodeErr(c.Pos()-1, fmt.Errorf("%w: unrecognized directory entry kind 0x%02x", ErrDecode, kind))
		}

		if _, err := c.CompressedInt32(); err != nil { // size (unused: re-derived from sub-block)
			return nil, decodeErr(c.Pos(), err)
		}

		if _, err := c.CompressedInt32(); err != nil { // checksum (unused by this library)
			return nil, decodeErr(c.Pos(), err)
		}

		childOffset, err := c.EncryptedOffset(versionHash, encBase)
		if err != nil {
			return nil, decodeErr(c.Pos(), err)
		}

		var child *Node
		if isDir {
			child, err = parseDirectory(source, key, entryName, int64(childOffset), versionHash, encBase, false)
			if err != nil {
				return nil, err
			}
		} else {
			child = newNode(entryName, TagImage)
			blockSize, _ := imageBlockSizeHint(buf, int64(childOffset))
			child.image = &imageProvenance{
				source:     source,
				key:        key,
				blockStart: int64(childOffset),
				blockSize:  blockSize,
				dataStart:  int64(encBase),
			}
		}

		child.parent = dir
		dir.children = append(dir.children, child)
	}

	return dir, nil
}

// imageBlockSizeHint returns a conservative upper bound on an image
// block's length for bounds-checking purposes; images are otherwise
// self-terminating via their property-list entry count so an exact size
// is not required to parse correctly.
func imageBlockSizeHint(buf []byte, start int64) (int64, error) {
	if start < 0 || start > int64(len(buf)) {
		return 0, ErrTruncatedInput
	}

	return int64(len(buf)) - start, nil
}

// looksLikeValidTree applies the auto-detection plausibility heuristic: at
// least half the characters across decoded names must be printable ASCII,
// and the first image entry found (depth-first) must start at one of the
// two legal image-header discriminator bytes.
func looksLikeValidTree(root *Node) bool {
	buf := root.children
	var printable, total int
	var firstImage *Node

	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.children {
			for _, r := range c.Name {
				total++
				if r >= 0x20 && r <= 0x7E {
					printable++
				}
			}

			if c.Tag == TagImage && firstImage == nil {
				firstImage = c
			}

			if c.Tag == TagDirectory {
				walk(c)
			}
		}
	}

	dummy := &Node{children: buf}
	walk(dummy)

	if total > 0 && printable*2 < total {
		return false
	}

	if firstImage == nil || firstImage.image == nil {
		return true
	}

	b := firstImage.image.source.Bytes()
	start := firstImage.image.blockStart
	if start < 0 || start >= int64(len(b)) {
		return false
	}

	switch b[start] {
	case 0x1B, 0x73:
		return true
	default:
		return false
	}
}

// hasImgSuffix reports whether name ends in the ".img" image-entry
// suffix, used to distinguish a discriminator-2 cached name that
// actually names a subdirectory from one naming an image.
func hasImgSuffix(name string) bool {
	const suffix = ".img"
	return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}

	return v
}

// Peek returns an archive's header fields (declared size, data-block
// start, detected variant/version) without building the full tree,
// folding in the teacher's lightweight metadata.go convenience style.
func Peek(data []byte, opts OpenOptions) (declaredSize int64, dataStart int64, variant Variant, version int, err error) {
	a, err := Open(data, opts)
	if err != nil {
		return 0, 0, "", 0, err
	}

	return a.declaredSize, a.dataStart, a.variant, a.version, nil
}
