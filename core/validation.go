// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Text must not be blank
//
// NOT validated:
//   - Vector (populated by the store on insert)
//   - ID (derived from Text when zero)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}
	return nil
}

// ValidateMessage validates a conversation message.
func ValidateMessage(msg Message) error {
	if err := ValidateRole(msg.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyContent)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleSystem && role != RoleHuman && role != RoleAI {
		return fmt.Errorf("%w: value %d", ErrInvalidRole, role)
	}
	return nil
}

// ValidateApprovalDecision checks the action tag and rejects blank revised sub-requests.
func ValidateApprovalDecision(d *ApprovalDecision) error {
	if d == nil {
		return fmt.Errorf("%w: decision is nil", ErrInvalidApproval)
	}
	if d.Action != ApprovalProceed && d.Action != ApprovalRevise {
		return fmt.Errorf("%w: action %d", ErrInvalidApproval, d.Action)
	}
	for i, s := range d.SubRequests {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: sub-request %d is blank", ErrInvalidApproval, i)
		}
	}
	return nil
}

// ParseIngestCommand maps user-facing command names onto IngestCommand.
// "Create" and "reset" clear the knowledge base, "Update" and "append" add to it.
func ParseIngestCommand(s string) (IngestCommand, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/")) {
	case "", "none":
		return IngestNone, nil
	case "update", "append":
		return IngestAppend, nil
	case "create", "reset":
		return IngestReset, nil
	default:
		return IngestNone, fmt.Errorf("%w: %q", ErrInvalidCommand, s)
	}
}
