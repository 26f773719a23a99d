// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// ExtractAssetsOptions configures ExtractAssets.
type ExtractAssetsOptions struct {
	// OnAssetDone is called after one asset is fully written to disk.
	OnAssetDone func(nodePath string, outputPath string, written int64)
	// Selection restricts extraction to matching node paths; nil means
	// extract every Canvas and Sound descendant.
	Selection *ExportSelection
	// MaxWorkers is the number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int
	// PNGEncoder encodes decoded canvas pixels; defaults to DefaultPNGEncoder.
	PNGEncoder PNGEncoder
	// RawNames disables output-path sanitization (equivalent of the
	// teacher's RawNames extract option).
	RawNames bool
}

// assetWorkItem is one Canvas or Sound node selected for export.
type assetWorkItem struct {
	node     *Node
	nodePath string
	relPath  string
}

// ExtractAssets walks tree and writes every selected Canvas (as a PNG)
// and Sound (as its raw container file) under dstDir, parallelized by
// MaxWorkers.
//
// Grounded on the teacher's extract.go: the task-channel worker pool,
// context cancellation, and OnEntryDone-style completion callback are
// kept verbatim in shape; entry-table-specific pieces (EntryInfo, the
// four ExtractFileMode policies tied to an io.ReaderAt source archive)
// are dropped since a Node's payload is read directly from its
// provenance rather than reopened from a PBO-style offset table.
func ExtractAssets(ctx context.Context, tree *Node, dstDir string, opts ExtractAssetsOptions) error {
	if tree == nil {
		return ErrNilReader
	}

	if ctx == nil {
		ctx = context.Background()
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	encoder := opts.PNGEncoder
	if encoder == nil {
		encoder = DefaultPNGEncoder{}
	}

	var items []assetWorkItem
	err := tree.Walk(func(n *Node) bool {
		if n.Tag != TagCanvas && n.Tag != TagSound {
			return true
		}

		p := n.Path()
		if opts.Selection != nil && !opts.Selection.Match(p) {
			return true
		}

		items = append(items, assetWorkItem{node: n, nodePath: p})
		return true
	})
	if err != nil {
		return err
	}

	if len(items) == 0 {
		return nil
	}

	if !opts.RawNames {
		paths := make([]string, len(items))
		for i, it := range items {
			paths[i] = assetOutputPath(it.node, it.nodePath)
		}

		sanitized, err := sanitizedExportPaths(paths)
		if err != nil {
			return err
		}

		for i := range items {
			items[i].relPath = sanitized[i]
		}
	} else {
		for i, it := range items {
			items[i].relPath = assetOutputPath(it.node, it.nodePath)
		}
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := prepareAssetDirs(dstRootAbs, items); err != nil {
		return err
	}

	taskCh := make(chan assetWorkItem, len(items))
	errCh := make(chan error, len(items))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for task := range taskCh {
				err := writeAsset(ctx, dstRootAbs, task, encoder, opts.OnAssetDone)
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		})
	}

	for _, task := range items {
		select {
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			return ctx.Err()
		case taskCh <- task:
		}
	}

	close(taskCh)
	wg.Wait()
	close(errCh)

	var first error
	for err := range errCh {
		if err != nil && first == nil {
			first = err
		}
	}

	return first
}

// assetOutputPath derives a node's unsanitized output path, appending
// the appropriate extension.
func assetOutputPath(n *Node, nodePath string) string {
	if n.Tag == TagCanvas {
		return nodePath + ".png"
	}

	return nodePath
}

// prepareAssetDirs creates every unique parent directory needed by items.
func prepareAssetDirs(dstRootAbs string, items []assetWorkItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, task := range items {
		dirPath := filepath.Join(dstRootAbs, filepath.Dir(filepath.FromSlash(task.relPath)))
		key := strings.ToLower(dirPath)
		if _, exists := seen[key]; exists {
			continue
		}

		seen[key] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}

// writeAsset decodes and writes one Canvas or Sound node to disk.
func writeAsset(ctx context.Context, dstRootAbs string, task assetWorkItem, encoder PNGEncoder, onDone func(string, string, int64)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	outPath := filepath.Join(dstRootAbs, filepath.FromSlash(task.relPath))

	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", task.nodePath, err)
	}

	var written int64
	if task.node.Tag == TagCanvas {
		rgba, w, h, decErr := task.node.CanvasPixels()
		if decErr != nil {
			_ = f.Close()
			return fmt.Errorf("decode canvas %s: %w", task.nodePath, decErr)
		}

		if encErr := encoder.Encode(f, rgba, w, h); encErr != nil {
			_ = f.Close()
			return fmt.Errorf("encode png %s: %w", task.nodePath, encErr)
		}

		if info, statErr := f.Stat(); statErr == nil {
			written = info.Size()
		}
	} else {
		payload, _, soundErr := task.node.SoundBytes()
		if soundErr != nil {
			_ = f.Close()
			return fmt.Errorf("read sound %s: %w", task.nodePath, soundErr)
		}

		n, writeErr := f.Write(payload)
		if writeErr != nil {
			_ = f.Close()
			return fmt.Errorf("write sound %s: %w", task.nodePath, writeErr)
		}

		written = int64(n)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", task.nodePath, err)
	}

	if onDone != nil {
		onDone(task.nodePath, outPath, written)
	}

	return nil
}
