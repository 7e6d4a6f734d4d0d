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
	"testing"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

func tsOptions() *datatypes.GenerationOptions {
	return &datatypes.GenerationOptions{CodeStyle: "typescript", TestFramework: "jest"}
}

func TestParseGeneratedContentNamedBlocks(t *testing.T) {
	content := "Here is the implementation:\n" +
		"```filename: src/auth/login.ts\n" +
		"export function login() {}\n" +
		"```\n" +
		"And the config:\n" +
		"```filename: config/auth.json\n" +
		"{\"timeout\": 30}\n" +
		"```\n"

	files := ParseGeneratedContent(content, tsOptions())
	if len(files) != 2 {
		t.Fatalf("parsed %d files, want 2", len(files))
	}

	if files[0].Path != "src/auth/login.ts" {
		t.Errorf("path = %q", files[0].Path)
	}
	if files[0].FileType != datatypes.FileTypeSource {
		t.Errorf("file type = %s, want source", files[0].FileType)
	}
	if files[0].Language != "typescript" {
		t.Errorf("language = %q", files[0].Language)
	}
	if files[0].Content != "export function login() {}" {
		t.Errorf("content = %q", files[0].Content)
	}

	if files[1].FileType != datatypes.FileTypeConfig {
		t.Errorf("json file type = %s, want config", files[1].FileType)
	}
}

func TestParseGeneratedContentUnnamedBlockGetsSyntheticName(t *testing.T) {
	content := "```typescript\nconst x = 1;\n```"
	files := ParseGeneratedContent(content, tsOptions())
	if len(files) != 1 {
		t.Fatalf("parsed %d files, want 1", len(files))
	}
	if files[0].Path != "generated_file_1.ts" {
		t.Errorf("path = %q, want generated_file_1.ts", files[0].Path)
	}
	if files[0].Content != "const x = 1;" {
		t.Errorf("language tag not stripped: %q", files[0].Content)
	}
}

func TestParseGeneratedContentFallbackSingleFile(t *testing.T) {
	content := "const x = 1;\nconsole.log(x);"
	files := ParseGeneratedContent(content, tsOptions())
	if len(files) != 1 {
		t.Fatalf("parsed %d files, want 1", len(files))
	}
	if files[0].Path != "main.ts" {
		t.Errorf("path = %q, want main.ts", files[0].Path)
	}
	if files[0].SizeLines != 2 {
		t.Errorf("size lines = %d, want 2", files[0].SizeLines)
	}
}

func TestParseGeneratedContentEmpty(t *testing.T) {
	if files := ParseGeneratedContent("   \n  ", tsOptions()); len(files) != 0 {
		t.Errorf("parsed %d files from whitespace, want 0", len(files))
	}
}

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		filename string
		want     datatypes.FileType
	}{
		{"src/login.ts", datatypes.FileTypeSource},
		{"src/login.test.ts", datatypes.FileTypeTest},
		{"__tests__/login.ts", datatypes.FileTypeTest},
		{"login.spec.js", datatypes.FileTypeTest},
		{"app.config.ts", datatypes.FileTypeConfig},
		{"settings.py", datatypes.FileTypeConfig},
		{"package.json", datatypes.FileTypeConfig},
		{"README.md", datatypes.FileTypeDocumentation},
	}
	for _, tt := range tests {
		if got := classifyFile(tt.filename); got != tt.want {
			t.Errorf("classifyFile(%q) = %s, want %s", tt.filename, got, tt.want)
		}
	}
}

func TestTestFileNameFor(t *testing.T) {
	tests := []struct {
		source    string
		framework string
		want      string
	}{
		{"src/login.ts", "jest", "src/login.test.ts"},
		{"src/login.ts", "vitest", "src/login.test.ts"},
		{"utils.py", "pytest", "test_utils.py"},
		{"src/Login.java", "junit", "src/LoginTest.java"},
		{"handler.go", "go", "handler_test.go"},
	}
	for _, tt := range tests {
		if got := TestFileNameFor(tt.source, tt.framework); got != tt.want {
			t.Errorf("TestFileNameFor(%q, %q) = %q, want %q", tt.source, tt.framework, got, tt.want)
		}
	}
}

func TestSyntaxWarnings(t *testing.T) {
	files := []*datatypes.GeneratedFile{
		datatypes.NewGeneratedFile("good.ts", "function f() { return 1; }", datatypes.FileTypeSource, "typescript", ""),
		datatypes.NewGeneratedFile("bad.ts", "function f() { return 1;", datatypes.FileTypeSource, "typescript", ""),
		datatypes.NewGeneratedFile("notes.md", "{unbalanced", datatypes.FileTypeDocumentation, "markdown", ""),
	}
	warnings := SyntaxWarnings(files)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if warnings[0] != "Potential syntax issues in bad.ts" {
		t.Errorf("warning = %q", warnings[0])
	}
}
