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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidApproval indicates an ApprovalDecision failed validation.
	ErrInvalidApproval = errors.New("invalid approval decision")

	// ErrEmptyContent indicates a text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidCommand indicates an unknown ingestion command.
	ErrInvalidCommand = errors.New("invalid ingestion command")
)

// Workflow outcomes that callers recover from locally.
var (
	// ErrTimeoutExpired indicates human input was not received before the deadline.
	ErrTimeoutExpired = errors.New("timeout expired")

	// ErrEmptyCorpus indicates exploration was requested on an empty knowledge base.
	ErrEmptyCorpus = errors.New("knowledge base is empty")
)

// ServiceError reports a failed call to the generation service or the knowledge store.
// It is transient and eligible for fallback.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err as a ServiceError. A nil err yields nil and an
// existing ServiceError is returned unchanged.
func NewServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Op: op, Err: err}
}

// IsServiceError reports whether err wraps a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// GraphError reports a defect in a workflow graph definition. It is never retried.
type GraphError struct {
	Graph  string
	Node   string
	Reason string
}

func (e *GraphError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("graph %q: %s", e.Graph, e.Reason)
	}
	return fmt.Sprintf("graph %q: node %q: %s", e.Graph, e.Node, e.Reason)
}
