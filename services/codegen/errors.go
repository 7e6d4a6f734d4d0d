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

import "errors"

// Sentinel errors for the generation pipeline.
var (
	// ErrInvalidRequest indicates user-correctable input. Handlers map it
	// to a 400 response instead of a failed run result.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrPathEscape indicates a generated file path that resolves outside
	// the workspace root.
	ErrPathEscape = errors.New("file path escapes workspace")

	// ErrFileTooLarge indicates a generated file over the configured line
	// limit.
	ErrFileTooLarge = errors.New("file exceeds line limit")

	// ErrWorkspaceDestroyed indicates a write to a workspace after
	// Destroy.
	ErrWorkspaceDestroyed = errors.New("workspace destroyed")

	// ErrNoFilesParsed indicates a completion that yielded no usable
	// files even after fallback handling.
	ErrNoFilesParsed = errors.New("no files parsed from completion")

	// ErrUnknownFramework indicates a test framework the runner has no
	// command template for.
	ErrUnknownFramework = errors.New("unknown test framework")

	// ErrInvalidTransition indicates a state change the run lifecycle
	// does not permit.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRetriesExhausted indicates a retryable provider failure that
	// persisted through the full retry budget.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
