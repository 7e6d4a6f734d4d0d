// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for externally supplied
// identifiers before they reach logs, prompts, or the filesystem.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// ticketKeyPattern matches issue-tracker keys: an uppercase project code
// followed by a dash and a numeric sequence (e.g., "PROJ-123").
var ticketKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}-[0-9]{1,8}$`)

// MaxTicketKeyLength bounds key length to reject pathological input.
const MaxTicketKeyLength = 20

// ValidateTicketKey checks that a ticket key is well formed.
//
// Description:
//
//	Rejects empty keys, overlong keys, and keys that do not match the
//	PROJECT-NUMBER shape. Keys are validated before being interpolated
//	into prompts or used as workspace metadata.
//
// Inputs:
//
//	key - Raw ticket key from the request
//
// Outputs:
//
//	error - Non-nil with a caller-safe message when the key is invalid
func ValidateTicketKey(key string) error {
	if key == "" {
		return fmt.Errorf("ticket key cannot be empty")
	}
	if len(key) > MaxTicketKeyLength {
		return fmt.Errorf("ticket key exceeds %d characters", MaxTicketKeyLength)
	}
	if !ticketKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid ticket key format: %q", key)
	}
	return nil
}

// SanitizeTicketKey uppercases and trims a key, returning an error if the
// result is still not a valid ticket key.
func SanitizeTicketKey(key string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(key))
	if err := ValidateTicketKey(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

// ValidateTicketKeys validates a batch of keys, returning the first error
// annotated with the offending key.
func ValidateTicketKeys(keys []string) error {
	for _, k := range keys {
		if err := ValidateTicketKey(k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	return nil
}
