// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import "sync"

// Tag discriminates the variants of Node. A Node is a tagged union: which
// fields are meaningful depends on Tag, mirroring the WZ format's own
// closed set of property/container kinds rather than modeling each kind
// as a separate Go type.
type Tag int

// Node tag values.
const (
	// TagDirectory is an archive directory (a ".wz" container or folder entry).
	TagDirectory Tag = iota
	// TagImage is a ".img" entry: a lazily-parsed property-list root.
	TagImage
	// TagNull is an empty property value.
	TagNull
	// TagInt16 is a 16-bit signed integer property.
	TagInt16
	// TagInt32 is a compressed 32-bit signed integer property.
	TagInt32
	// TagInt64 is a compressed 64-bit signed integer property.
	TagInt64
	// TagFloat32 is a flag-prefixed 32-bit float property.
	TagFloat32
	// TagFloat64 is a 64-bit float property.
	TagFloat64
	// TagString is a string-or-offset text property.
	TagString
	// TagSubProperty is a nested property list ("Property" extended type).
	TagSubProperty
	// TagCanvas is an embedded bitmap ("Canvas" extended type).
	TagCanvas
	// TagVector2D is a 2D integer point ("Shape2D#Vector2D" extended type).
	TagVector2D
	// TagConvex2D is a list of Vector2D children ("Shape2D#Convex2D" extended type).
	TagConvex2D
	// TagSound is an embedded audio blob ("Sound_DX8" extended type).
	TagSound
	// TagUOL is a relative-path link to another node ("UOL" extended type).
	TagUOL
	// TagUnknownExtended is an extended property of an unrecognized type name,
	// preserved verbatim for round-tripping.
	TagUnknownExtended
)

// String returns a human-readable tag name, used in diagnostics and XML
// element names.
func (t Tag) String() string {
	switch t {
	case TagDirectory:
		return "Directory"
	case TagImage:
		return "Image"
	case TagNull:
		return "null"
	case TagInt16:
		return "short"
	case TagInt32:
		return "int"
	case TagInt64:
		return "long"
	case TagFloat32:
		return "float"
	case TagFloat64:
		return "double"
	case TagString:
		return "string"
	case TagSubProperty:
		return "SubProperty"
	case TagCanvas:
		return "Canvas"
	case TagVector2D:
		return "Vector2D"
	case TagConvex2D:
		return "Convex2D"
	case TagSound:
		return "Sound_DX8"
	case TagUOL:
		return "UOL"
	case TagUnknownExtended:
		return "UnknownExtended"
	default:
		return "?"
	}
}

// NodeID is a process-local identity assigned to every Node at creation,
// stable across renames and moves within one open tree. It exists so
// callers (and the editor's staged-mutation log) can refer to a node
// without carrying a path that might change underneath them.
type NodeID uint64

var nodeIDCounter struct {
	mu   sync.Mutex
	next NodeID
}

func nextNodeID() NodeID {
	nodeIDCounter.mu.Lock()
	defer nodeIDCounter.mu.Unlock()
	nodeIDCounter.next++
	return nodeIDCounter.next
}

// SourceBuffer is an immutable archive buffer shared by every Node that
// was parsed out of it. Nodes keep a reference instead of copying bytes
// so that lazy image/canvas/sound provenance can re-slice it on demand.
type SourceBuffer struct {
	data []byte
}

// NewSourceBuffer wraps data as a shared, read-only archive backing.
// Callers must not mutate data after this call.
func NewSourceBuffer(data []byte) *SourceBuffer {
	return &SourceBuffer{data: data}
}

// Bytes returns the full backing slice. Callers must treat it as
// read-only.
func (b *SourceBuffer) Bytes() []byte {
	return b.data
}

// Slice returns data[start:end], bounds-checked.
func (b *SourceBuffer) Slice(start, end int64) ([]byte, error) {
	if start < 0 || end < start || end > int64(len(b.data)) {
		return nil, ErrTruncatedInput
	}

	return b.data[start:end], nil
}

// imageProvenance records where to re-read an Image node's property list
// from, so the list can be parsed on first access rather than eagerly for
// every image in an archive.
type imageProvenance struct {
	source     *SourceBuffer
	key        *Key
	blockStart int64
	blockSize  int64
	// dataStart is the archive's data-section start, the fixed base every
	// string-or-offset block and encrypted offset within this image (and
	// every archive-wide one) is anchored to; it is not this image's own
	// start.
	dataStart int64
}

// canvasProvenance records where a Canvas node's compressed pixel payload
// lives, so decoding happens only when a caller asks for pixels.
type canvasProvenance struct {
	source       *SourceBuffer
	key          *Key
	payloadStart int64
	payloadSize  int64
	width        int32
	height       int32
	format1      int32
	format2      int32
	scale        int32
}

// format returns the canvas's combined pixel-format identifier: the
// low byte from format1, the high byte from format2.
func (cv *canvasProvenance) format() int32 {
	return cv.format1 | cv.format2<<8
}

// soundProvenance records where a Sound node's raw container bytes live.
type soundProvenance struct {
	source       *SourceBuffer
	payloadStart int64
	payloadSize  int64
	durationMS   int32
	// header is the reference client's WAVEFORMATEX-derived header block,
	// carried verbatim so an unmodified Sound node can be re-emitted
	// byte-for-byte rather than requiring the library to reconstruct it.
	header []byte
}

// Node is the single sum type for every element of a parsed tree:
// directories, images, and every property/extended-property kind. Which
// fields apply is determined by Tag; unused fields stay at their zero
// value.
type Node struct {
	ID       NodeID
	Name     string
	Tag      Tag
	Modified bool

	parent   *Node
	children []*Node

	// Scalar payloads, one of which is meaningful depending on Tag.
	Int16Value   int16
	Int32Value   int32
	Int64Value   int64
	Float32Value float32
	Float64Value float64
	StringValue  string
	VectorX      int32
	VectorY      int32
	UOLTarget    string

	image  *imageProvenance
	canvas *canvasProvenance
	sound  *soundProvenance

	// imageParsed marks whether an Image node's children have been loaded
	// from image, so repeated calls to Children/Walk don't reparse.
	imageParsed bool
}

// newNode allocates a Node with a fresh NodeID.
func newNode(name string, tag Tag) *Node {
	return &Node{ID: nextNodeID(), Name: name, Tag: tag}
}

// The New*Node constructors below build detached leaf/container nodes a
// host can attach with AddChild, for editor.go's staged tree mutations
// and for hosts assembling a tree from scratch to hand to WriteArchive.
// Canvas and Sound carry no constructor here: a Canvas/Sound node's
// on-disk payload can only come from Open's parse provenance
// (WriteArchive has no pixel-packing or audio-container encoder of its
// own).

// NewDirectoryNode returns an empty directory node.
func NewDirectoryNode(name string) *Node {
	return newNode(name, TagDirectory)
}

// NewNullNode returns a null-valued property node.
func NewNullNode(name string) *Node {
	return newNode(name, TagNull)
}

// NewInt16Node returns a 16-bit integer property node.
func NewInt16Node(name string, value int16) *Node {
	n := newNode(name, TagInt16)
	n.Int16Value = value
	return n
}

// NewInt32Node returns a compressed 32-bit integer property node.
func NewInt32Node(name string, value int32) *Node {
	n := newNode(name, TagInt32)
	n.Int32Value = value
	return n
}

// NewInt64Node returns a compressed 64-bit integer property node.
func NewInt64Node(name string, value int64) *Node {
	n := newNode(name, TagInt64)
	n.Int64Value = value
	return n
}

// NewFloat32Node returns a flag-prefixed 32-bit float property node.
func NewFloat32Node(name string, value float32) *Node {
	n := newNode(name, TagFloat32)
	n.Float32Value = value
	return n
}

// NewFloat64Node returns a 64-bit float property node.
func NewFloat64Node(name string, value float64) *Node {
	n := newNode(name, TagFloat64)
	n.Float64Value = value
	return n
}

// NewStringNode returns a string property node.
func NewStringNode(name string, value string) *Node {
	n := newNode(name, TagString)
	n.StringValue = value
	return n
}

// NewVector2DNode returns a 2D integer point property node.
func NewVector2DNode(name string, x, y int32) *Node {
	n := newNode(name, TagVector2D)
	n.VectorX = x
	n.VectorY = y
	return n
}

// NewUOLNode returns a relative-path link property node.
func NewUOLNode(name string, target string) *Node {
	n := newNode(name, TagUOL)
	n.UOLTarget = target
	return n
}

// NewSubPropertyNode returns an empty nested property-list container
// node; populate it with AddChild.
func NewSubPropertyNode(name string) *Node {
	return newNode(name, TagSubProperty)
}

// NewConvexNode returns an empty Convex2D container node; populate it
// with AddChild using NewVector2DNode children.
func NewConvexNode(name string) *Node {
	return newNode(name, TagConvex2D)
}

// Parent returns the node's parent, or nil for a tree root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the node's direct children, parsing a lazy Image
// node's property list on first access. The returned slice must not be
// mutated by the caller; use the tree operations in treeops.go instead.
func (n *Node) Children() ([]*Node, error) {
	if n.Tag == TagImage && !n.imageParsed {
		if err := n.loadImage(); err != nil {
			return nil, err
		}
	}

	return n.children, nil
}

// loadImage parses an Image node's property list from its provenance on
// first access. Subsequent calls are no-ops.
func (n *Node) loadImage() error {
	if n.imageParsed {
		return nil
	}

	if n.image == nil {
		n.imageParsed = true
		return nil
	}

	children, err := parsePropertyList(n.image.source, n.image.key, n.image.blockStart, n.image.blockSize, n.image.dataStart)
	if err != nil {
		return err
	}

	for _, c := range children {
		c.parent = n
	}

	n.children = children
	n.imageParsed = true
	return nil
}

// CanvasPixels decodes and returns this Canvas node's pixel data as
// straight (non-premultiplied) RGBA bytes, width*height*4 long.
func (n *Node) CanvasPixels() ([]byte, int, int, error) {
	if n.Tag != TagCanvas {
		return nil, 0, 0, ErrInvalidChildTag
	}

	if n.canvas == nil {
		return nil, 0, 0, ErrCanvasPayloadMissing
	}

	return decodeCanvas(n.canvas)
}

// CanvasInfo returns a Canvas node's declared width, height, and pixel
// format identifier without decoding its pixel payload.
func (n *Node) CanvasInfo() (width, height int, format int32, ok bool) {
	if n.Tag != TagCanvas || n.canvas == nil {
		return 0, 0, 0, false
	}

	return int(n.canvas.width), int(n.canvas.height), n.canvas.format(), true
}

// SoundBytes returns this Sound node's raw container payload (e.g. a
// complete .mp3/.ogg/.wav file body) along with its detected MIME type.
func (n *Node) SoundBytes() ([]byte, string, error) {
	if n.Tag != TagSound {
		return nil, "", ErrInvalidChildTag
	}

	if n.sound == nil {
		return nil, "", ErrSoundPayloadMissing
	}

	payload, err := n.sound.source.Slice(n.sound.payloadStart, n.sound.payloadStart+n.sound.payloadSize)
	if err != nil {
		return nil, "", err
	}

	return payload, sniffSoundMIME(payload), nil
}
