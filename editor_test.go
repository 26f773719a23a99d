// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestArchive(t *testing.T, path string, root *Node) {
	t.Helper()

	out, err := WriteArchive(root, WriteOptions{Variant: VariantGMS, Version: 83})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	if err := os.WriteFile(path, out, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestEditorSetNodeCommit(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "archive.wz")
	writeTestArchive(t, archivePath, buildSampleTree())

	editor, err := OpenEditor(archivePath, EditOptions{
		OpenOptions:  OpenOptions{Variant: VariantGMS, VersionHint: 83},
		WriteOptions: WriteOptions{Variant: VariantGMS, Version: 83},
	})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}

	if err := editor.SetNode("Character/01472005.img", NewInt32Node("newField", 42)); err != nil {
		t.Fatalf("SetNode: %v", err)
	}

	res, err := editor.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if res.Path != archivePath {
		t.Fatalf("CommitResult.Path=%q, want %q", res.Path, archivePath)
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	archive, err := Open(data, OpenOptions{Variant: VariantGMS, VersionHint: 83})
	if err != nil {
		t.Fatalf("Open(committed): %v", err)
	}

	newField, err := archive.Root().Find("Character/01472005.img/newField")
	if err != nil {
		t.Fatalf("Find(newField): %v", err)
	}

	if newField.Tag != TagInt32 || newField.Int32Value != 42 {
		t.Fatalf("newField=%+v, want int32 42", newField)
	}

	if _, err := os.Stat(archivePath + ".bak"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("backup file should be removed when BackupKeep is 0, stat err=%v", err)
	}
}

func TestEditorRemoveNodeCommit(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "archive.wz")
	writeTestArchive(t, archivePath, buildSampleTree())

	editor, err := OpenEditor(archivePath, EditOptions{
		OpenOptions: OpenOptions{Variant: VariantGMS, VersionHint: 83},
	})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}

	if err := editor.RemoveNode("Character/01472005.img/desc"); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}

	if _, err := editor.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	archive, err := Open(data, OpenOptions{Variant: VariantGMS, VersionHint: 83})
	if err != nil {
		t.Fatalf("Open(committed): %v", err)
	}

	img, err := archive.Root().Find("Character/01472005.img")
	if err != nil {
		t.Fatalf("Find(img): %v", err)
	}

	if desc, err := img.Child("desc"); err != nil || desc != nil {
		t.Fatalf("desc should be gone, got %+v, err=%v", desc, err)
	}
}

func TestEditorRenameNodeCommit(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "archive.wz")
	writeTestArchive(t, archivePath, buildSampleTree())

	editor, err := OpenEditor(archivePath, EditOptions{
		OpenOptions: OpenOptions{Variant: VariantGMS, VersionHint: 83},
	})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}

	if err := editor.RenameNode("Character/01472005.img/desc", "description"); err != nil {
		t.Fatalf("RenameNode: %v", err)
	}

	if _, err := editor.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	archive, err := Open(data, OpenOptions{Variant: VariantGMS, VersionHint: 83})
	if err != nil {
		t.Fatalf("Open(committed): %v", err)
	}

	renamed, err := archive.Root().Find("Character/01472005.img/description")
	if err != nil {
		t.Fatalf("Find(description): %v", err)
	}

	if renamed.Tag != TagString || renamed.StringValue != "A weapon of legend" {
		t.Fatalf("description=%+v, want original string value preserved", renamed)
	}
}

func TestEditorCommitFailureRollsBack(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "archive.wz")
	writeTestArchive(t, archivePath, buildSampleTree())

	original, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile(original): %v", err)
	}

	editor, err := OpenEditor(archivePath, EditOptions{
		OpenOptions: OpenOptions{Variant: VariantGMS, VersionHint: 83},
	})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}

	if err := editor.Mutate(func(root *Node) error {
		return ErrNodeNotFound
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	if _, err := editor.Commit(context.Background()); err == nil {
		t.Fatal("Commit: expected failure from staged mutation, got nil")
	}

	restored, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile(restored): %v", err)
	}

	if string(restored) != string(original) {
		t.Fatal("archive was not restored to its original bytes after a failed commit")
	}

	if _, err := os.Stat(archivePath + ".bak"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("backup file should be gone after rollback, stat err=%v", err)
	}
}

func TestOpenEditorRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenEditor("   ", EditOptions{}); !errors.Is(err, ErrInvalidEditorPath) {
		t.Fatalf("OpenEditor(empty path): got %v, want ErrInvalidEditorPath", err)
	}
}

func TestEditorBackupKeepRetainsBackup(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "archive.wz")
	writeTestArchive(t, archivePath, buildSampleTree())

	editor, err := OpenEditor(archivePath, EditOptions{
		OpenOptions: OpenOptions{Variant: VariantGMS, VersionHint: 83},
		BackupKeep:  1,
	})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}

	if err := editor.SetNode("", NewNullNode("marker")); err != nil {
		t.Fatalf("SetNode: %v", err)
	}

	if _, err := editor.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := os.Stat(archivePath + ".bak"); err != nil {
		t.Fatalf("backup file should be retained, stat err=%v", err)
	}
}
