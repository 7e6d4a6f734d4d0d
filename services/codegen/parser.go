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
	"path"
	"regexp"
	"strings"

	"github.com/AleutianAI/ticketsmith/services/generator/datatypes"
)

// =============================================================================
// COMPLETION PARSING
// =============================================================================

// codeBlockPattern matches fenced code blocks, capturing an optional
// "filename: path" marker line and the block body.
var codeBlockPattern = regexp.MustCompile("(?s)```(?:filename:\\s*([^\r\n]+)\r?\n)?(.*?)```")

// ParseGeneratedContent splits a completion into file records. Blocks
// without a filename marker get synthetic names in arrival order. When no
// fenced blocks exist at all, the whole completion becomes one main file
// so a sloppy completion still yields output.
func ParseGeneratedContent(content string, opts *datatypes.GenerationOptions) []*datatypes.GeneratedFile {
	var files []*datatypes.GeneratedFile

	matches := codeBlockPattern.FindAllStringSubmatch(content, -1)
	for i, m := range matches {
		filename := strings.TrimSpace(m[1])
		body := strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		// A bare fence often opens with a language tag line; drop it when
		// it names a known language and the block carries a marker-less name.
		if filename == "" {
			filename = fmt.Sprintf("generated_file_%d%s", i+1, extensionFor(opts.CodeStyle))
			body = stripLeadingLanguageTag(body)
			if body == "" {
				continue
			}
		}

		fileType := classifyFile(filename)
		files = append(files, datatypes.NewGeneratedFile(
			filename,
			body,
			fileType,
			languageFor(filename, opts.CodeStyle),
			fmt.Sprintf("Generated %s file", fileType),
		))
	}

	if len(files) == 0 && strings.TrimSpace(content) != "" {
		files = append(files, datatypes.NewGeneratedFile(
			"main"+extensionFor(opts.CodeStyle),
			strings.TrimSpace(content),
			datatypes.FileTypeSource,
			opts.CodeStyle,
			"Main generated file",
		))
	}
	return files
}

// stripLeadingLanguageTag removes a first line that is just a fence
// language tag (e.g., "typescript") from an unnamed block body.
func stripLeadingLanguageTag(body string) string {
	line, rest, found := strings.Cut(body, "\n")
	if !found {
		return body
	}
	if _, ok := extensionByLanguage[strings.ToLower(strings.TrimSpace(line))]; ok {
		return strings.TrimSpace(rest)
	}
	return body
}

// classifyFile maps a filename to its artifact role.
func classifyFile(filename string) datatypes.FileType {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "test"), strings.Contains(lower, "spec"), strings.Contains(lower, "__tests__"):
		return datatypes.FileTypeTest
	case strings.Contains(lower, "config"), strings.Contains(lower, "settings"),
		strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return datatypes.FileTypeConfig
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".rst"):
		return datatypes.FileTypeDocumentation
	default:
		return datatypes.FileTypeSource
	}
}

var extensionByLanguage = map[string]string{
	"javascript": ".js",
	"typescript": ".ts",
	"python":     ".py",
	"java":       ".java",
	"csharp":     ".cs",
	"cpp":        ".cpp",
	"go":         ".go",
	"rust":       ".rs",
	"php":        ".php",
	"ruby":       ".rb",
}

var languageByExtension = map[string]string{
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".jsx":  "javascript",
	".py":   "python",
	".java": "java",
	".cs":   "csharp",
	".cpp":  "cpp",
	".c":    "c",
	".go":   "go",
	".rs":   "rust",
	".php":  "php",
	".rb":   "ruby",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".md":   "markdown",
}

// extensionFor returns the default extension for a code style.
func extensionFor(codeStyle string) string {
	if ext, ok := extensionByLanguage[strings.ToLower(codeStyle)]; ok {
		return ext
	}
	return ".txt"
}

// languageFor infers a file's language from its extension, falling back
// to the run's code style.
func languageFor(filename, defaultStyle string) string {
	if lang, ok := languageByExtension[strings.ToLower(path.Ext(filename))]; ok {
		return lang
	}
	return defaultStyle
}

// TestFileNameFor returns the conventional test filename for a source
// file under the given framework.
func TestFileNameFor(sourcePath, testFramework string) string {
	dir := path.Dir(sourcePath)
	ext := path.Ext(sourcePath)
	stem := strings.TrimSuffix(path.Base(sourcePath), ext)

	var name string
	switch strings.ToLower(testFramework) {
	case "jest", "vitest":
		name = stem + ".test" + ext
	case "pytest":
		name = "test_" + stem + ".py"
	case "junit":
		name = stem + "Test" + ext
	default:
		name = stem + "_test" + ext
	}
	if dir == "." {
		return name
	}
	return path.Join(dir, name)
}

// =============================================================================
// SYNTAX WARNINGS
// =============================================================================

// SyntaxWarnings runs cheap structural checks over source and test files.
// These are advisory only; real validation happens when tests execute.
func SyntaxWarnings(files []*datatypes.GeneratedFile) []string {
	var warnings []string
	for _, f := range files {
		if f.FileType != datatypes.FileTypeSource && f.FileType != datatypes.FileTypeTest {
			continue
		}
		switch f.Language {
		case "javascript", "typescript":
			if !balancedDelimiters(f.Content) {
				warnings = append(warnings, fmt.Sprintf("Potential syntax issues in %s", f.Path))
			}
		case "python":
			if !balancedDelimiters(f.Content) {
				warnings = append(warnings, fmt.Sprintf("Potential syntax issues in %s", f.Path))
			}
		}
	}
	return warnings
}

// balancedDelimiters checks brace, bracket, and paren balance. String
// contents are not tokenized; this trades precision for zero cost.
func balancedDelimiters(content string) bool {
	var braces, brackets, parens int
	for _, r := range content {
		switch r {
		case '{':
			braces++
		case '}':
			braces--
		case '[':
			brackets++
		case ']':
			brackets--
		case '(':
			parens++
		case ')':
			parens--
		}
	}
	return braces == 0 && brackets == 0 && parens == 0
}
