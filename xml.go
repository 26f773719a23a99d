// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// SerializeXMLOptions configures SerializeXML.
type SerializeXMLOptions struct {
	// Selection restricts the dump to matching node paths; nil means
	// serialize every descendant.
	Selection *ExportSelection
	// PNGEncoder encodes decoded canvas pixels for the canvas element's
	// basedata attribute; defaults to DefaultPNGEncoder. Ignored unless
	// IncludeCanvasData is set.
	PNGEncoder PNGEncoder
	// IncludeCanvasData embeds a canvas's decoded pixels as a base64 PNG
	// in its basedata attribute. Decode/encode failures are reported via
	// Diagnostics and the attribute is simply omitted, since serialization
	// itself must never fail.
	IncludeCanvasData bool
	// IncludeSoundData embeds a sound's header and body bytes as base64
	// basehead/basedata attributes. Read failures are reported via
	// Diagnostics and the attributes are omitted.
	IncludeSoundData bool
	// Diagnostics receives non-fatal warnings (canvas decode failures,
	// sound read failures) encountered while walking the tree.
	Diagnostics Diagnostics
	// Indent, when non-empty, is repeated once per nesting depth to
	// pretty-print the output; empty means no indentation or newlines
	// between elements.
	Indent string
}

// SerializeXML renders root and its descendants as the textual XML
// projection described by the format's element/attribute table. The
// root node is always emitted as an imgdir element regardless of its
// own Tag, matching the root directory's role as the document root.
// Serialization never fails outright; per-node problems (an
// unreadable canvas or sound payload) are reported through
// opts.Diagnostics and the offending optional attribute is dropped.
func SerializeXML(root *Node, opts SerializeXMLOptions) (string, error) {
	if root == nil {
		return "", ErrNilReader
	}

	encoder := opts.PNGEncoder
	if encoder == nil {
		encoder = DefaultPNGEncoder{}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	if opts.Indent != "" {
		b.WriteByte('\n')
	}

	s := &xmlSerializer{opts: opts, encoder: encoder}
	s.writeNode(&b, root, 0, true)

	return b.String(), nil
}

type xmlSerializer struct {
	opts    SerializeXMLOptions
	encoder PNGEncoder
}

// writeNode emits n and its selected descendants at depth, recursing
// depth-first. asRoot forces the imgdir element name for the document
// root regardless of n's own Tag.
func (s *xmlSerializer) writeNode(b *strings.Builder, n *Node, depth int, asRoot bool) {
	nodePath := n.Path()
	if s.opts.Selection != nil && !asRoot && !s.opts.Selection.Match(nodePath) {
		return
	}

	elem, attrs, selfClosing := s.elementFor(n, asRoot)

	s.indent(b, depth)
	b.WriteByte('<')
	b.WriteString(elem)
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.value))
		b.WriteByte('"')
	}

	children, err := n.Children()
	if err != nil {
		s.opts.Diagnostics.warn(nodePath, err)
		children = nil
	}

	if selfClosing || (len(children) == 0 && !asRoot) {
		b.WriteString("/>")
		if s.opts.Indent != "" {
			b.WriteByte('\n')
		}
		return
	}

	b.WriteByte('>')
	if s.opts.Indent != "" {
		b.WriteByte('\n')
	}

	for _, c := range children {
		s.writeNode(b, c, depth+1, false)
	}

	s.indent(b, depth)
	b.WriteString("</")
	b.WriteString(elem)
	b.WriteByte('>')
	if s.opts.Indent != "" {
		b.WriteByte('\n')
	}
}

func (s *xmlSerializer) indent(b *strings.Builder, depth int) {
	if s.opts.Indent == "" {
		return
	}

	for i := 0; i < depth; i++ {
		b.WriteString(s.opts.Indent)
	}
}

type xmlAttr struct {
	name  string
	value string
}

// elementFor returns the element name, its ordered attributes, and
// whether the element is always self-closing (carries no children of
// its own), for n.
func (s *xmlSerializer) elementFor(n *Node, asRoot bool) (string, []xmlAttr, bool) {
	if asRoot || n.Tag == TagDirectory || n.Tag == TagImage {
		return "imgdir", []xmlAttr{{"name", n.Name}}, false
	}

	switch n.Tag {
	case TagNull:
		return "null", []xmlAttr{{"name", n.Name}}, true

	case TagInt16:
		return "short", []xmlAttr{{"name", n.Name}, {"value", strconv.FormatInt(int64(n.Int16Value), 10)}}, true

	case TagInt32:
		return "int", []xmlAttr{{"name", n.Name}, {"value", strconv.FormatInt(int64(n.Int32Value), 10)}}, true

	case TagInt64:
		return "long", []xmlAttr{{"name", n.Name}, {"value", strconv.FormatInt(n.Int64Value, 10)}}, true

	case TagFloat32:
		return "float", []xmlAttr{{"name", n.Name}, {"value", formatFixedFloat(float64(n.Float32Value), 32)}}, true

	case TagFloat64:
		return "double", []xmlAttr{{"name", n.Name}, {"value", formatFixedFloat(n.Float64Value, 64)}}, true

	case TagString:
		return "string", []xmlAttr{{"name", n.Name}, {"value", n.StringValue}}, true

	case TagUOL:
		return "uol", []xmlAttr{{"name", n.Name}, {"value", n.UOLTarget}}, true

	case TagVector2D:
		return "vector", []xmlAttr{
			{"name", n.Name},
			{"x", strconv.FormatInt(int64(n.VectorX), 10)},
			{"y", strconv.FormatInt(int64(n.VectorY), 10)},
		}, true

	case TagCanvas:
		return "canvas", s.canvasAttrs(n), true

	case TagSound:
		return "sound", s.soundAttrs(n), true

	case TagSubProperty:
		return "imgdir", []xmlAttr{{"name", n.Name}}, false

	case TagConvex2D:
		return "extended", []xmlAttr{{"name", n.Name}}, false

	case TagUnknownExtended:
		return "extended", []xmlAttr{{"name", n.Name}}, true

	default:
		return "extended", []xmlAttr{{"name", n.Name}}, true
	}
}

// formatFixedFloat renders v with Go's shortest round-tripping decimal
// form, guaranteeing a decimal point is present: a trailing ".0" is
// appended to an integral result, since float/double attribute values
// always contain a '.'.
func formatFixedFloat(v float64, bits int) string {
	s := strconv.FormatFloat(v, 'g', -1, bits)
	if strings.Contains(s, ".") {
		return s
	}

	return s + ".0"
}

func (s *xmlSerializer) canvasAttrs(n *Node) []xmlAttr {
	w, h, _, ok := n.CanvasInfo()
	attrs := []xmlAttr{
		{"name", n.Name},
		{"width", strconv.Itoa(w)},
		{"height", strconv.Itoa(h)},
	}

	if !ok || !s.opts.IncludeCanvasData {
		return attrs
	}

	rgba, pw, ph, err := n.CanvasPixels()
	if err != nil {
		s.opts.Diagnostics.warn(n.Path(), fmt.Errorf("decode canvas: %w", err))
		return attrs
	}

	var buf strings.Builder
	if err := s.encoder.Encode(&stringsBuilderWriter{&buf}, rgba, pw, ph); err != nil {
		s.opts.Diagnostics.warn(n.Path(), fmt.Errorf("encode canvas png: %w", err))
		return attrs
	}

	attrs = append(attrs, xmlAttr{"basedata", base64.StdEncoding.EncodeToString([]byte(buf.String()))})
	return attrs
}

func (s *xmlSerializer) soundAttrs(n *Node) []xmlAttr {
	attrs := []xmlAttr{{"name", n.Name}}

	if n.sound != nil {
		attrs = append(attrs, xmlAttr{"length", strconv.FormatInt(int64(n.sound.durationMS), 10)})
	}

	if !s.opts.IncludeSoundData {
		return attrs
	}

	body, _, err := n.SoundBytes()
	if err != nil {
		s.opts.Diagnostics.warn(n.Path(), fmt.Errorf("read sound: %w", err))
		return attrs
	}

	if n.sound != nil && len(n.sound.header) > 0 {
		attrs = append(attrs, xmlAttr{"basehead", base64.StdEncoding.EncodeToString(n.sound.header)})
	}

	attrs = append(attrs, xmlAttr{"basedata", base64.StdEncoding.EncodeToString(body)})
	return attrs
}

// stringsBuilderWriter adapts a strings.Builder to io.Writer without
// pulling in a bytes.Buffer just to collect PNG bytes before base64
// encoding them.
type stringsBuilderWriter struct {
	b *strings.Builder
}

func (w *stringsBuilderWriter) Write(p []byte) (int, error) {
	return w.b.Write(p)
}

// escapeAttr escapes the five XML special characters in an attribute
// value, reusing the standard library's substitution table instead of
// hand-rolling one.
func escapeAttr(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// xml.EscapeText only fails on a write error, which a
		// strings.Builder never produces.
		return s
	}

	return buf.String()
}
