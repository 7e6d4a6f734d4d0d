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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	t.Cleanup(func() { ws.Destroy() })
	return ws
}

func srcFile(path, content string) *datatypes.GeneratedFile {
	return datatypes.NewGeneratedFile(path, content, datatypes.FileTypeSource, "typescript", "")
}

func TestWorkspacePrefix(t *testing.T) {
	ws := newTestWorkspace(t)
	if !strings.HasPrefix(filepath.Base(ws.Root()), workspacePrefix) {
		t.Errorf("workspace dir %q missing prefix %q", ws.Root(), workspacePrefix)
	}
}

func TestWorkspaceWriteAndNest(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Write(srcFile("src/auth/login.ts", "export {};")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	full, err := ws.Path("src/auth/login.ts")
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "export {};" {
		t.Errorf("content = %q", data)
	}
}

func TestWorkspaceRejectsEscapes(t *testing.T) {
	ws := newTestWorkspace(t)
	for _, path := range []string{
		"../outside.ts",
		"../../etc/passwd",
		"src/../../outside.ts",
		"/etc/passwd",
		"",
	} {
		err := ws.Write(srcFile(path, "x"))
		if !errors.Is(err, ErrPathEscape) {
			t.Errorf("Write(%q) error = %v, want ErrPathEscape", path, err)
		}
	}
}

func TestWorkspaceAllowsInternalDotDot(t *testing.T) {
	ws := newTestWorkspace(t)
	// Resolves inside the workspace after cleaning.
	if err := ws.Write(srcFile("src/../main.ts", "ok")); err != nil {
		t.Errorf("cleaned internal path rejected: %v", err)
	}
}

func TestWorkspaceLineLimit(t *testing.T) {
	ws := newTestWorkspace(t)
	big := strings.Repeat("line\n", 200)
	err := ws.Write(srcFile("big.ts", big))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestWorkspaceDestroyIdempotent(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	if err := ws.Destroy(); err != nil {
		t.Fatalf("first Destroy failed: %v", err)
	}
	if err := ws.Destroy(); err != nil {
		t.Fatalf("second Destroy failed: %v", err)
	}
	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Error("workspace directory still exists after Destroy")
	}
	if err := ws.Write(srcFile("late.ts", "x")); !errors.Is(err, ErrWorkspaceDestroyed) {
		t.Errorf("Write after Destroy = %v, want ErrWorkspaceDestroyed", err)
	}
}

func TestWorkspaceKeepSurvivesDestroy(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	ws.Keep()
	if err := ws.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := os.Stat(ws.Root()); err != nil {
		t.Errorf("kept workspace removed: %v", err)
	}
	os.RemoveAll(ws.Root())
}

func TestWorkspaceReadTree(t *testing.T) {
	ws := newTestWorkspace(t)
	files := []*datatypes.GeneratedFile{
		srcFile("src/a.ts", "const a = 1"),
		srcFile("src/deep/b.ts", "const b = 2"),
	}
	if err := ws.WriteAll(files); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	tree, err := ws.ReadTree()
	if err != nil {
		t.Fatalf("ReadTree failed: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("tree has %d entries, want 2", len(tree))
	}
	if tree["src/a.ts"] != "const a = 1" {
		t.Errorf("src/a.ts = %q", tree["src/a.ts"])
	}
	if tree["src/deep/b.ts"] != "const b = 2" {
		t.Errorf("src/deep/b.ts = %q", tree["src/deep/b.ts"])
	}

	ws.Destroy()
	if _, err := ws.ReadTree(); !errors.Is(err, ErrWorkspaceDestroyed) {
		t.Errorf("ReadTree after Destroy = %v, want ErrWorkspaceDestroyed", err)
	}
}

func TestWorkspaceIsolation(t *testing.T) {
	base := t.TempDir()
	ws1, err := NewWorkspace(base, 100, nil)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	ws2, err := NewWorkspace(base, 100, nil)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	defer ws1.Destroy()
	defer ws2.Destroy()
	if ws1.Root() == ws2.Root() {
		t.Error("workspaces share a directory")
	}
}
