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
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// =============================================================================
// TEST OUTPUT PARSERS
// =============================================================================

// testCounts aggregates one test file's execution outcome.
type testCounts struct {
	total  int
	passed int
	failed int
}

// TestOutputParser extracts test counts from runner output. The boolean
// result reports whether the output was recognized; unrecognized output
// falls through to the exit-code heuristic.
type TestOutputParser func(stdout, stderr string, exitCode int) (testCounts, bool)

var (
	parserMu       sync.RWMutex
	parserRegistry = map[string]TestOutputParser{
		"jest":   parseJestOutput,
		"vitest": parseVitestOutput,
		"pytest": parsePytestOutput,
		"gotest": parseGoTestOutput,
	}
)

// RegisterParser adds or replaces a named output parser.
func RegisterParser(name string, parser TestOutputParser) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parserRegistry[name] = parser
}

func getParser(name string) (TestOutputParser, bool) {
	parserMu.RLock()
	defer parserMu.RUnlock()
	p, ok := parserRegistry[name]
	return p, ok
}

// jestJSONSummary is the subset of the jest/vitest JSON reporter output
// the runner cares about.
type jestJSONSummary struct {
	NumTotalTests  int  `json:"numTotalTests"`
	NumPassedTests int  `json:"numPassedTests"`
	NumFailedTests int  `json:"numFailedTests"`
	Success        bool `json:"success"`
}

// parseJestOutput reads the --json reporter summary. Jest prints the
// JSON document on stdout even when tests fail.
func parseJestOutput(stdout, stderr string, exitCode int) (testCounts, bool) {
	doc := extractJSONObject(stdout)
	if doc == "" {
		doc = extractJSONObject(stderr)
	}
	if doc == "" {
		return testCounts{}, false
	}
	var summary jestJSONSummary
	if err := json.Unmarshal([]byte(doc), &summary); err != nil {
		return testCounts{}, false
	}
	if summary.NumTotalTests == 0 && !summary.Success {
		return testCounts{}, false
	}
	return testCounts{
		total:  summary.NumTotalTests,
		passed: summary.NumPassedTests,
		failed: summary.NumTotalTests - summary.NumPassedTests,
	}, true
}

// parseVitestOutput shares the jest JSON shape.
func parseVitestOutput(stdout, stderr string, exitCode int) (testCounts, bool) {
	return parseJestOutput(stdout, stderr, exitCode)
}

var (
	pytestPassedPattern = regexp.MustCompile(`(\d+) passed`)
	pytestFailedPattern = regexp.MustCompile(`(\d+) failed`)
	pytestErrorPattern  = regexp.MustCompile(`(\d+) error`)
)

// parsePytestOutput reads the terminal summary line ("2 passed, 1 failed
// in 0.03s").
func parsePytestOutput(stdout, stderr string, exitCode int) (testCounts, bool) {
	combined := stdout + "\n" + stderr
	var counts testCounts
	matched := false

	if m := pytestPassedPattern.FindStringSubmatch(combined); m != nil {
		counts.passed, _ = strconv.Atoi(m[1])
		matched = true
	}
	if m := pytestFailedPattern.FindStringSubmatch(combined); m != nil {
		counts.failed, _ = strconv.Atoi(m[1])
		matched = true
	}
	if m := pytestErrorPattern.FindStringSubmatch(combined); m != nil {
		n, _ := strconv.Atoi(m[1])
		counts.failed += n
		matched = true
	}
	if !matched {
		return testCounts{}, false
	}
	counts.total = counts.passed + counts.failed
	return counts, true
}

var (
	goPassPattern = regexp.MustCompile(`(?m)^\s*--- PASS:`)
	goFailPattern = regexp.MustCompile(`(?m)^\s*--- FAIL:`)
)

// parseGoTestOutput counts per-test verdict lines from go test -v.
func parseGoTestOutput(stdout, stderr string, exitCode int) (testCounts, bool) {
	combined := stdout + "\n" + stderr
	passed := len(goPassPattern.FindAllString(combined, -1))
	failed := len(goFailPattern.FindAllString(combined, -1))
	if passed == 0 && failed == 0 {
		return testCounts{}, false
	}
	return testCounts{total: passed + failed, passed: passed, failed: failed}, true
}

var (
	textJestPattern   = regexp.MustCompile(`(?s)(\d+) passed.*?(\d+) total`)
	textPytestPattern = regexp.MustCompile(`(?s)(\d+) passed.*?(\d+) failed`)
)

// parseTextFallback recovers counts from free-form output when the
// framework parser fails. As a last resort the whole file counts as one
// test judged by exit code, which preserves the count invariants.
func parseTextFallback(stdout, stderr string, exitCode int) testCounts {
	combined := stdout + "\n" + stderr

	if m := textPytestPattern.FindStringSubmatch(combined); m != nil {
		passed, _ := strconv.Atoi(m[1])
		failed, _ := strconv.Atoi(m[2])
		return testCounts{total: passed + failed, passed: passed, failed: failed}
	}
	if m := textJestPattern.FindStringSubmatch(combined); m != nil {
		passed, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if total >= passed {
			return testCounts{total: total, passed: passed, failed: total - passed}
		}
	}

	if exitCode == 0 {
		return testCounts{total: 1, passed: 1}
	}
	return testCounts{total: 1, failed: 1}
}

// extractJSONObject returns the first top-level JSON object in s, or ""
// when none exists. Runner output frequently wraps the reporter document
// in log noise.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
