// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"strings"
	"testing"

	"github.com/woozymasta/pathrules"
)

func TestSerializeXMLBasicElements(t *testing.T) {
	t.Parallel()

	root := buildSampleTree()

	out, err := SerializeXML(root, SerializeXMLOptions{})
	if err != nil {
		t.Fatalf("SerializeXML: %v", err)
	}

	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`) {
		t.Fatalf("missing xml prolog: %s", out[:60])
	}

	for _, want := range []string{
		`<null name="flag"/>`,
		`<short name="islot" value="7"/>`,
		`<int name="price" value="4500000"/>`,
		`<long name="serial" value="-9000000000"/>`,
		`<string name="desc" value="A weapon of legend"/>`,
		`<uol name="link" value="../01472004.img"/>`,
		`<vector name="origin" x="10" y="-20"/>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q\nfull output: %s", want, out)
		}
	}
}

func TestSerializeXMLFloatsAlwaysHaveDecimalPoint(t *testing.T) {
	t.Parallel()

	root := NewDirectoryNode("")
	img := newNode("test.img", TagImage)
	img.imageParsed = true
	img.children = []*Node{
		NewFloat32Node("whole", 4),
		NewFloat64Node("fraction", 1.5),
	}
	for _, c := range img.children {
		c.parent = img
	}
	root.children = []*Node{img}
	img.parent = root

	out, err := SerializeXML(root, SerializeXMLOptions{})
	if err != nil {
		t.Fatalf("SerializeXML: %v", err)
	}

	if !strings.Contains(out, `value="4.0"`) {
		t.Fatalf("integral float should render with trailing .0: %s", out)
	}

	if !strings.Contains(out, `value="1.5"`) {
		t.Fatalf("fractional float should render as-is: %s", out)
	}
}

func TestSerializeXMLEscapesAttributeValues(t *testing.T) {
	t.Parallel()

	root := NewDirectoryNode("")
	img := newNode("test.img", TagImage)
	img.imageParsed = true
	img.children = []*Node{NewStringNode("quote", `a "quoted" <tag> & more`)}
	img.children[0].parent = img
	root.children = []*Node{img}
	img.parent = root

	out, err := SerializeXML(root, SerializeXMLOptions{})
	if err != nil {
		t.Fatalf("SerializeXML: %v", err)
	}

	if strings.Contains(out, `"a "quoted"`) {
		t.Fatalf("attribute value was not escaped: %s", out)
	}

	if !strings.Contains(out, "&amp;") || !strings.Contains(out, "&lt;") {
		t.Fatalf("expected escaped ampersand/lt in output: %s", out)
	}
}

func TestSerializeXMLEmptySelectionMatchesEverything(t *testing.T) {
	t.Parallel()

	root := buildSampleTree()

	sel, err := NewExportSelection(nil, pathrules.MatcherOptions{})
	if err != nil {
		t.Fatalf("NewExportSelection: %v", err)
	}

	withSel, err := SerializeXML(root, SerializeXMLOptions{Selection: sel})
	if err != nil {
		t.Fatalf("SerializeXML(with empty selection): %v", err)
	}

	withoutSel, err := SerializeXML(root, SerializeXMLOptions{})
	if err != nil {
		t.Fatalf("SerializeXML(no selection): %v", err)
	}

	if withSel != withoutSel {
		t.Fatalf("an empty selection rule set should match everything, same as no selection at all")
	}
}

func TestSerializeXMLNilRoot(t *testing.T) {
	t.Parallel()

	if _, err := SerializeXML(nil, SerializeXMLOptions{}); err == nil {
		t.Fatal("SerializeXML(nil): expected error")
	}
}
