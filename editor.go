// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EditOptions configures OpenEditor.
type EditOptions struct {
	// OpenOptions is used to re-parse the archive from its on-disk bytes
	// at Commit time.
	OpenOptions OpenOptions
	// WriteOptions configures the rewritten archive. Variant/Version
	// default to the source archive's own detected values when left
	// zero, so an edit that only touches a few nodes reproduces the same
	// physical layout family unless the caller explicitly asks otherwise.
	WriteOptions WriteOptions
	// BackupKeep is the number of rotated ".bak", ".bak.1", ".bak.2", ...
	// generations to retain after a successful Commit; zero removes the
	// backup entirely once the new archive is safely on disk.
	BackupKeep int
}

// CommitResult reports the outcome of a successful Editor.Commit.
type CommitResult struct {
	// Path is the archive file written.
	Path string
	// BytesWritten is the new archive's total size.
	BytesWritten int64
	// Digest is ContentDigest of the new archive's bytes, suitable as a
	// cache key for hosts that want to detect a no-op commit later.
	Digest [20]byte
}

// Editor stages tree mutations against a file-backed archive and applies
// them in one backup-protected rewrite transaction, the WZ-tree
// counterpart of the teacher's flat-entry staged edit workflow: mutations
// are recorded as closures over a freshly re-parsed tree rather than
// applied to any tree held in memory before Commit, so two Editors for
// the same path never fight over a shared, partially-mutated Node graph.
type Editor struct {
	path string
	opts EditOptions
	muts []func(root *Node) error
}

// OpenEditor creates a staged editor for path. The file is not read or
// parsed until Commit; only the path itself is validated here.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrInvalidEditorPath
	}

	return &Editor{
		path: trimmed,
		opts: opts,
		muts: make([]func(root *Node) error, 0, 8),
	}, nil
}

// Mutate stages an arbitrary tree mutation, applied to the freshly
// re-parsed root directory node at Commit time. Most callers want
// SetNode/RemoveNode/RenameNode instead; Mutate exists for edits those
// don't cover (e.g. reordering, or touching several nodes as one step).
func (e *Editor) Mutate(fn func(root *Node) error) error {
	if e == nil {
		return ErrNilReader
	}

	if fn == nil {
		return nil
	}

	e.muts = append(e.muts, fn)
	return nil
}

// SetNode stages inserting child under the directory/image/SubProperty
// node at dirPath (created along the way if any intermediate directory
// is missing), replacing any existing child of the same name. dirPath
// is relative to the tree root; "" targets the root itself.
func (e *Editor) SetNode(dirPath string, child *Node) error {
	if e == nil {
		return ErrNilReader
	}

	if child == nil {
		return ErrInvalidChildTag
	}

	return e.Mutate(func(root *Node) error {
		parent, err := mkdirAll(root, dirPath)
		if err != nil {
			return err
		}

		if existing, err := parent.Child(child.Name); err != nil {
			return err
		} else if existing != nil {
			if err := parent.RemoveChild(existing.Name); err != nil {
				return err
			}
		}

		return parent.AddChild(child)
	})
}

// RemoveNode stages removing the node at nodePath.
func (e *Editor) RemoveNode(nodePath string) error {
	if e == nil {
		return ErrNilReader
	}

	return e.Mutate(func(root *Node) error {
		parentPath, name := splitNodePath(nodePath)
		parent, err := root.Find(parentPath)
		if err != nil {
			return err
		}

		if parent == nil {
			return ErrNodeNotFound
		}

		return parent.RemoveChild(name)
	})
}

// RenameNode stages renaming the node at nodePath to newName.
func (e *Editor) RenameNode(nodePath string, newName string) error {
	if e == nil {
		return ErrNilReader
	}

	return e.Mutate(func(root *Node) error {
		n, err := root.Find(nodePath)
		if err != nil {
			return err
		}

		if n == nil {
			return ErrNodeNotFound
		}

		n.Rename(newName)
		return nil
	})
}

// Commit re-parses the archive from disk, applies every staged mutation
// in order, and writes the result back to path under backup protection:
// the original file is moved aside before the new one is written, and
// restored if anything in the rewrite fails.
func (e *Editor) Commit(ctx context.Context) (*CommitResult, error) {
	if e == nil {
		return nil, ErrNilReader
	}

	if ctx == nil {
		ctx = context.Background()
	}

	backupPath := e.path + ".bak"
	if err := prepareBackupSlot(backupPath, e.opts.BackupKeep); err != nil {
		return nil, err
	}

	if err := os.Rename(e.path, backupPath); err != nil {
		return nil, fmt.Errorf("move archive to backup: %w", err)
	}

	res, err := e.commitFromBackup(ctx, backupPath)
	if err != nil {
		if rollbackErr := rollbackFromBackup(e.path, backupPath); rollbackErr != nil {
			return nil, fmt.Errorf("%v (rollback failed: %v)", err, rollbackErr)
		}

		return nil, err
	}

	if e.opts.BackupKeep == 0 {
		if err := removeIfExists(backupPath); err != nil {
			return nil, fmt.Errorf("remove backup: %w", err)
		}
	}

	return res, nil
}

// commitFromBackup re-parses backupPath, applies every staged mutation,
// and writes the resulting archive to e.path.
func (e *Editor) commitFromBackup(ctx context.Context, backupPath string) (*CommitResult, error) {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	archive, err := Open(data, e.opts.OpenOptions)
	if err != nil {
		return nil, fmt.Errorf("parse backup: %w", err)
	}

	root := archive.Root()
	for _, mut := range e.muts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := mut(root); err != nil {
			return nil, fmt.Errorf("apply staged mutation: %w", err)
		}
	}

	writeOpts := e.opts.WriteOptions
	if writeOpts.Variant == "" {
		writeOpts.Variant = archive.Variant()
	}

	if writeOpts.Version == 0 {
		writeOpts.Version = archive.Version()
	}

	writeOpts.OriginalBytes = data

	out, err := WriteArchive(root, writeOpts)
	if err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}

	if err := os.WriteFile(e.path, out, 0o600); err != nil {
		return nil, fmt.Errorf("write destination archive: %w", err)
	}

	return &CommitResult{
		Path:         e.path,
		BytesWritten: int64(len(out)),
		Digest:       ContentDigest(out),
	}, nil
}

// mkdirAll resolves dirPath relative to root, creating any missing
// TagDirectory segment along the way (mirroring mkdir -p), and returns
// the final directory node.
func mkdirAll(root *Node, dirPath string) (*Node, error) {
	cur := root
	for _, seg := range strings.Split(dirPath, "/") {
		if seg == "" {
			continue
		}

		next, err := cur.Child(seg)
		if err != nil {
			return nil, err
		}

		if next == nil {
			next = NewDirectoryNode(seg)
			if err := cur.AddChild(next); err != nil {
				return nil, err
			}
		}

		cur = next
	}

	return cur, nil
}

// splitNodePath divides a slash-joined path into its parent path and
// final segment. An empty or single-segment path yields "" as the
// parent, meaning "relative to root".
func splitNodePath(nodePath string) (parent string, name string) {
	trimmed := strings.Trim(nodePath, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "", trimmed
	}

	return trimmed[:idx], trimmed[idx+1:]
}

// prepareBackupSlot rotates/removes existing backup generations before a
// new commit: keep == 0 or 1 simply discards any prior backup; keep > 1
// shifts ".bak.1".."bak.(keep-1)" up by one slot first.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames from to to when from exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes path if present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// rollbackFromBackup restores backupPath to path after a failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
