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
	"strings"
	"sync"
)

// =============================================================================
// TEST FRAMEWORK REGISTRY
// =============================================================================

// FrameworkConfig describes how to execute one test framework. Args may
// contain the placeholder {file}, substituted with the test file path
// relative to the workspace root.
type FrameworkConfig struct {
	Name string

	// Command is the executable, resolved via PATH.
	Command string

	// Args are the command arguments with {file} placeholders.
	Args []string

	// Extensions are the file extensions the framework claims for
	// extension-based fallback dispatch.
	Extensions []string

	// Parser names the output parser in the parser registry.
	Parser string
}

// BuildArgs substitutes placeholders for a concrete test file.
func (fc *FrameworkConfig) BuildArgs(testFile string) []string {
	out := make([]string, len(fc.Args))
	for i, a := range fc.Args {
		out[i] = strings.ReplaceAll(a, "{file}", testFile)
	}
	return out
}

// FrameworkRegistry maps framework names and file extensions to
// execution configs.
//
// Thread Safety: safe for concurrent use.
type FrameworkRegistry struct {
	mu         sync.RWMutex
	frameworks map[string]*FrameworkConfig
}

// NewFrameworkRegistry returns a registry preloaded with the built-in
// frameworks.
func NewFrameworkRegistry() *FrameworkRegistry {
	r := &FrameworkRegistry{frameworks: make(map[string]*FrameworkConfig)}

	r.Register(&FrameworkConfig{
		Name:       "jest",
		Command:    "npx",
		Args:       []string{"jest", "{file}", "--json", "--no-cache", "--silent"},
		Extensions: []string{".js", ".jsx", ".ts", ".tsx"},
		Parser:     "jest",
	})
	r.Register(&FrameworkConfig{
		Name:       "vitest",
		Command:    "npx",
		Args:       []string{"vitest", "run", "{file}", "--reporter=json"},
		Extensions: []string{".js", ".jsx", ".ts", ".tsx"},
		Parser:     "vitest",
	})
	r.Register(&FrameworkConfig{
		Name:       "pytest",
		Command:    "python",
		Args:       []string{"-m", "pytest", "{file}", "-v"},
		Extensions: []string{".py"},
		Parser:     "pytest",
	})
	r.Register(&FrameworkConfig{
		Name:       "go",
		Command:    "go",
		Args:       []string{"test", "-run", ".", "-v", "./..."},
		Extensions: []string{".go"},
		Parser:     "gotest",
	})
	return r
}

// Register adds or replaces a framework config.
func (r *FrameworkRegistry) Register(fc *FrameworkConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frameworks[strings.ToLower(fc.Name)] = fc
}

// Get returns the config for a framework name.
func (r *FrameworkRegistry) Get(name string) (*FrameworkConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fc, ok := r.frameworks[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFramework, name)
	}
	return fc, nil
}

// Names returns the registered framework names.
func (r *FrameworkRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.frameworks))
	for name := range r.frameworks {
		names = append(names, name)
	}
	return names
}

// ForFile returns a framework matched by file extension, used when a
// run's configured framework cannot handle a given test file. Generic
// frameworks never match ahead of the named preference.
func (r *FrameworkRegistry) ForFile(testFile, preferred string) (*FrameworkConfig, error) {
	if fc, err := r.Get(preferred); err == nil {
		for _, ext := range fc.Extensions {
			if strings.EqualFold(path.Ext(testFile), ext) {
				return fc, nil
			}
		}
	}

	ext := strings.ToLower(path.Ext(testFile))
	switch ext {
	case ".py":
		return r.Get("pytest")
	case ".js", ".jsx", ".ts", ".tsx":
		return r.Get("jest")
	case ".go":
		return r.Get("go")
	}
	return nil, fmt.Errorf("%w: no framework for %s", ErrUnknownFramework, testFile)
}
