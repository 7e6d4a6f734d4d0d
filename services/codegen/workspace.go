// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegen

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

// =============================================================================
// RUN WORKSPACE
// =============================================================================

// workspacePrefix names run directories so leaked workspaces are
// identifiable and sweepable.
const workspacePrefix = "ticketsmith_"

// Workspace is an isolated scratch directory for one generation run.
// All writes are confined to the workspace root; paths that resolve
// outside it are rejected with ErrPathEscape.
//
// Thread Safety: safe for concurrent use.
type Workspace struct {
	mu        sync.Mutex
	root      string
	maxLines  int
	keep      bool
	destroyed bool
	logger    *slog.Logger
}

// NewWorkspace creates a run directory under baseDir (the system temp
// directory when empty). maxLines bounds any single written file.
func NewWorkspace(baseDir string, maxLines int, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := os.MkdirTemp(baseDir, workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	logger.Debug("workspace created", slog.String("root", root))
	return &Workspace{root: root, maxLines: maxLines, logger: logger}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Keep marks the workspace to survive Destroy, for debugging runs.
func (w *Workspace) Keep() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keep = true
}

// Write stores a generated file inside the workspace. Parent directories
// are created as needed. Writes are atomic per file: content lands in a
// temp file that is renamed into place.
func (w *Workspace) Write(f *datatypes.GeneratedFile) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return ErrWorkspaceDestroyed
	}
	if w.maxLines > 0 && f.SizeLines > w.maxLines {
		return fmt.Errorf("%w: %s has %d lines (limit %d)", ErrFileTooLarge, f.Path, f.SizeLines, w.maxLines)
	}

	full, err := w.resolve(f.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating parent dirs for %s: %w", f.Path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".write-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(f.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", f.Path, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("placing %s: %w", f.Path, err)
	}
	return nil
}

// WriteAll writes every file, stopping at the first failure.
func (w *Workspace) WriteAll(files []*datatypes.GeneratedFile) error {
	for _, f := range files {
		if err := w.Write(f); err != nil {
			return err
		}
	}
	return nil
}

// Path resolves a relative file path to its absolute workspace location,
// enforcing containment.
func (w *Workspace) Path(rel string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return "", ErrWorkspaceDestroyed
	}
	return w.resolve(rel)
}

// resolve enforces containment. Callers hold w.mu.
func (w *Workspace) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathEscape)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s is absolute", ErrPathEscape, rel)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, rel)
	}

	full := filepath.Join(w.root, cleaned)
	relCheck, err := filepath.Rel(w.root, full)
	if err != nil || relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, rel)
	}
	return full, nil
}

// ReadTree returns every regular file under the workspace, keyed by
// slash-separated relative path. Temp files from in-flight writes are
// skipped.
func (w *Workspace) ReadTree() (map[string]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return nil, ErrWorkspaceDestroyed
	}

	tree := make(map[string]string)
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".write-") {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		tree[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// Destroy removes the workspace directory. Safe to call more than once,
// and a no-op after Keep.
func (w *Workspace) Destroy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return nil
	}
	if w.keep {
		w.logger.Info("workspace retained", slog.String("root", w.root))
		return nil
	}
	w.destroyed = true
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("removing workspace %s: %w", w.root, err)
	}
	w.logger.Debug("workspace removed", slog.String("root", w.root))
	return nil
}
