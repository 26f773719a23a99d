// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"errors"
	"testing"
)

// buildSampleTree assembles a directory tree exercising every property
// tag WriteArchive can emit from scratch (Canvas/Sound need parse
// provenance and are covered separately by the editor/archive tests that
// round-trip real payloads).
func buildSampleTree() *Node {
	root := NewDirectoryNode("")

	info := NewSubPropertyNode("info")
	info.Modified = true

	img := newNode("01472005.img", TagImage)
	img.imageParsed = true
	img.children = []*Node{
		NewNullNode("flag"),
		NewInt16Node("islot", 7),
		NewInt32Node("price", 4500000),
		NewInt64Node("serial", -9000000000),
		NewFloat32Node("weight", 12.5),
		NewFloat64Node("precision", 3.14159),
		NewStringNode("desc", "A weapon of legend"),
		NewUOLNode("link", "../01472004.img"),
		info,
	}

	vec := NewVector2DNode("origin", 10, -20)
	vec2 := NewVector2DNode("0", 1, 2)
	convex := NewConvexNode("outline")
	convex.children = []*Node{vec2}
	for _, c := range convex.children {
		c.parent = convex
	}

	info.children = []*Node{vec, convex}
	for _, c := range info.children {
		c.parent = info
	}

	for _, c := range img.children {
		c.parent = img
	}

	sub := NewDirectoryNode("Character")
	sub.children = []*Node{img}
	img.parent = sub

	root.children = []*Node{sub}
	sub.parent = root

	return root
}

func TestWriteArchiveOpenRoundTrip(t *testing.T) {
	t.Parallel()

	root := buildSampleTree()

	out, err := WriteArchive(root, WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	archive, err := Open(out, OpenOptions{Variant: VariantGMS, VersionHint: 83})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	img, err := archive.Root().Find("Character/01472005.img")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	children, err := img.Children()
	if err != nil {
		t.Fatalf("Children: %v", err)
	}

	byName := make(map[string]*Node, len(children))
	for _, c := range children {
		byName[c.Name] = c
	}

	flag := byName["flag"]
	if flag == nil || flag.Tag != TagNull {
		t.Fatalf("flag=%+v, want TagNull", flag)
	}

	islot := byName["islot"]
	if islot == nil || islot.Tag != TagInt16 || islot.Int16Value != 7 {
		t.Fatalf("islot=%+v, want int16 7", islot)
	}

	price := byName["price"]
	if price == nil || price.Tag != TagInt32 || price.Int32Value != 4500000 {
		t.Fatalf("price=%+v, want int32 4500000", price)
	}

	serial := byName["serial"]
	if serial == nil || serial.Tag != TagInt64 || serial.Int64Value != -9000000000 {
		t.Fatalf("serial=%+v, want int64 -9000000000", serial)
	}

	weight := byName["weight"]
	if weight == nil || weight.Tag != TagFloat32 || weight.Float32Value != 12.5 {
		t.Fatalf("weight=%+v, want float32 12.5", weight)
	}

	precision := byName["precision"]
	if precision == nil || precision.Tag != TagFloat64 || precision.Float64Value != 3.14159 {
		t.Fatalf("precision=%+v, want float64 3.14159", precision)
	}

	desc := byName["desc"]
	if desc == nil || desc.Tag != TagString || desc.StringValue != "A weapon of legend" {
		t.Fatalf("desc=%+v, want string", desc)
	}

	link := byName["link"]
	if link == nil || link.Tag != TagUOL || link.UOLTarget != "../01472004.img" {
		t.Fatalf("link=%+v, want UOL ../01472004.img", link)
	}

	gotInfo := byName["info"]
	if gotInfo == nil || gotInfo.Tag != TagSubProperty {
		t.Fatalf("info=%+v, want SubProperty", gotInfo)
	}

	infoChildren, err := gotInfo.Children()
	if err != nil {
		t.Fatalf("info.Children: %v", err)
	}

	var gotVec, gotConvex *Node
	for _, c := range infoChildren {
		switch c.Name {
		case "origin":
			gotVec = c
		case "outline":
			gotConvex = c
		}
	}

	if gotVec == nil || gotVec.Tag != TagVector2D || gotVec.VectorX != 10 || gotVec.VectorY != -20 {
		t.Fatalf("origin=%+v, want Vector2D(10,-20)", gotVec)
	}

	if gotConvex == nil || gotConvex.Tag != TagConvex2D {
		t.Fatalf("outline=%+v, want Convex2D", gotConvex)
	}

	convexChildren, err := gotConvex.Children()
	if err != nil {
		t.Fatalf("outline.Children: %v", err)
	}

	if len(convexChildren) != 1 || convexChildren[0].VectorX != 1 || convexChildren[0].VectorY != 2 {
		t.Fatalf("outline children=%+v, want single Vector2D(1,2)", convexChildren)
	}
}

func TestWriteArchiveRejectsNonDirectoryRoot(t *testing.T) {
	t.Parallel()

	_, err := WriteArchive(NewNullNode("x"), WriteOptions{})
	if !errors.Is(err, ErrInvalidChildTag) {
		t.Fatalf("WriteArchive(non-directory root): got %v, want ErrInvalidChildTag", err)
	}
}

func TestWriteArchiveUnsupportedVariant(t *testing.T) {
	t.Parallel()

	_, err := WriteArchive(NewDirectoryNode(""), WriteOptions{Variant: "not-a-variant"})
	if !errors.Is(err, ErrUnsupportedVariant) {
		t.Fatalf("WriteArchive(bad variant): got %v, want ErrUnsupportedVariant", err)
	}
}

func TestValidateRepackLayoutMismatch(t *testing.T) {
	t.Parallel()

	root := buildSampleTree()

	original, err := WriteArchive(root, WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive(original): %v", err)
	}

	_, err = WriteArchive(root, WriteOptions{Variant: VariantGMS, Version: 999, OriginalBytes: original})
	if !errors.Is(err, ErrMismatchedLayoutParameters) {
		t.Fatalf("WriteArchive(mismatched version, with OriginalBytes): got %v, want ErrMismatchedLayoutParameters", err)
	}
}

func TestValidateRepackLayoutMatch(t *testing.T) {
	t.Parallel()

	root := buildSampleTree()

	original, err := WriteArchive(root, WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive(original): %v", err)
	}

	again, err := WriteArchive(root, WriteOptions{Variant: VariantGMS, Version: 83, OriginalBytes: original})
	if err != nil {
		t.Fatalf("WriteArchive(matching repack): %v", err)
	}

	if len(again) == 0 {
		t.Fatal("WriteArchive(matching repack) produced no bytes")
	}
}
