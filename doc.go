// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

/*
Package wz provides read, extract, serialize, and edit operations for WZ
archives, the packed-property-tree container format used by the MapleStory
client family. It is designed for whole-archive workflows: Open loads and
decrypts an archive's directory structure up front, while an image's own
property list is parsed lazily on first Children() access so a bulk
directory scan never pays to decode images it never visits.

# Opening

Open a WZ archive and walk its tree:

	data, err := os.ReadFile("Character.wz")
	if err != nil {
	    return err
	}
	archive, err := wz.Open(data, wz.OpenOptions{})
	if err != nil {
	    return err
	}
	img, err := archive.Root().Find("Weapon/01472005.img")
	if err != nil {
	    return err
	}
	children, err := img.Children()
	if err != nil {
	    return err
	}
	_ = children

Variant and version are auto-detected by default. Pin them when known,
to skip the brute-force search:

	archive, err := wz.Open(data, wz.OpenOptions{
	    Variant:     wz.VariantGMS,
	    VersionHint: 83,
	})

For metadata-only inspection without building the full tree:

	declaredSize, dataStart, variant, version, err := wz.Peek(data, wz.OpenOptions{})
	if err != nil {
	    return err
	}
	_, _, _, _ = declaredSize, dataStart, variant, version

Surface per-image decode anomalies during a forced, eager walk instead of
deferring them to whichever Children() call first touches a broken image:

	archive, err := wz.Open(data, wz.OpenOptions{
	    EagerWalk: true,
	    Diagnostics: wz.Diagnostics{
	        OnWarning: func(path string, err error) {
	            log.Printf("skipping %s: %v", path, err)
	        },
	    },
	})

# Reading canvases and sounds

	pixels, w, h, err := canvas.CanvasPixels()
	if err != nil {
	    return err
	}
	var buf bytes.Buffer
	if err := (wz.DefaultPNGEncoder{}).Encode(&buf, pixels, w, h); err != nil {
	    return err
	}

	payload, mime, err := sound.SoundBytes()
	if err != nil {
	    return err
	}
	_ = mime

# Extracting assets

Walk a tree exporting every Canvas/Sound node to a directory, filtered by
a selection pattern set (examples below use
github.com/woozymasta/pathrules, the same selector library the pack's
PBO sibling uses for its own compression rules):

	sel, err := wz.NewExportSelection([]pathrules.Rule{
	    {Action: pathrules.ActionInclude, Pattern: "Character/**"},
	}, pathrules.MatcherOptions{
	    CaseInsensitive: true,
	    DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
	    return err
	}
	err = wz.ExtractAssets(ctx, archive.Root(), "out/", wz.ExtractAssetsOptions{
	    Selection:  sel,
	    MaxWorkers: 4,
	})

Path sanitization is enabled by default during extraction. Disable it
explicitly when the caller has already validated raw archive names:

	err = wz.ExtractAssets(ctx, archive.Root(), "out/", wz.ExtractAssetsOptions{
	    RawNames: true,
	})

# Serializing to XML

	out, err := wz.SerializeXML(archive.Root(), wz.SerializeXMLOptions{
	    IncludeCanvasData: false,
	    Indent:            "  ",
	})
	if err != nil {
	    return err
	}
	_ = out

# Editing

Mutations are staged against a path and committed as one transaction,
with a rotating backup the way the pack's PBO editor protects its own
commits:

	editor, err := wz.OpenEditor("Character.wz", wz.EditOptions{BackupKeep: 1})
	if err != nil {
	    return err
	}
	if err := editor.SetNode("Weapon/01472005.img", wz.NewInt32Node("price", 0)); err != nil {
	    return err
	}
	if err := editor.RemoveNode("Weapon/01472005.img/obsolete"); err != nil {
	    return err
	}
	result, err := editor.Commit(ctx)
	if err != nil {
	    return err
	}
	_ = result.Digest

# Writing from scratch

	root := wz.NewDirectoryNode("")
	sub := wz.NewDirectoryNode("Weapon")
	root.AddChild(sub)
	out, err := wz.WriteArchive(root, wz.WriteOptions{
	    Variant: wz.VariantGMS,
	    Version: 83,
	})
	if err != nil {
	    return err
	}
	_ = out
*/
package wz
