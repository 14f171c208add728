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
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID identifies a document chunk in the knowledge base.
// IDs are derived from content so re-ingesting the same chunk is idempotent.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a conversation message.
type Role int

const (
	// RoleSystem marks instructions for the generation service.
	RoleSystem Role = iota + 1
	// RoleHuman marks a message written by the user.
	RoleHuman
	// RoleAI marks a message produced by the assistant.
	RoleAI
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleHuman:
		return "human"
	case RoleAI:
		return "ai"
	default:
		return "unknown"
	}
}

// Message is a single role-tagged entry of the conversation history.
type Message struct {
	Role    Role
	Content string
}

// HumanMessage returns a message authored by the user.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage returns a message authored by the assistant.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// SystemMessage returns an instruction message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Document is a stored chunk of an uploaded file together with its embedding.
type Document struct {
	Id         ID
	Text       string
	Metadata   map[string]string // e.g. "fname" for the originating file
	Vector     []float32         // populated at ingestion time
	InsertedAt time.Time
}

// SearchResult is a document returned by a similarity scan with its score.
type SearchResult struct {
	Document *Document
	Score    float32
}

// Passage is a retrieved piece of text presented to the synthesis step.
type Passage struct {
	Id       ID
	Text     string
	Metadata map[string]string
	Score    float32
}

// Upload references a file supplied by the user for ingestion.
type Upload struct {
	Name string
	Path string
}

// IngestCommand selects how uploaded files affect the knowledge base.
type IngestCommand int

const (
	// IngestNone performs no mutation of the knowledge base.
	IngestNone IngestCommand = iota
	// IngestAppend adds uploaded files to the existing collection.
	IngestAppend
	// IngestReset clears the collection before adding uploaded files.
	IngestReset
)

func (c IngestCommand) String() string {
	switch c {
	case IngestAppend:
		return "Update"
	case IngestReset:
		return "Create"
	default:
		return "none"
	}
}

// Route is the closed set of pipelines a request can be dispatched to.
type Route int

const (
	// RouteUnset means no routing decision has been made yet.
	RouteUnset Route = iota
	// RouteQA selects the targeted question answering pipeline.
	RouteQA
	// RouteExploration selects the sample/cluster/summarize pipeline.
	RouteExploration
)

func (r Route) String() string {
	switch r {
	case RouteQA:
		return "qa"
	case RouteExploration:
		return "exploration"
	default:
		return "unset"
	}
}

// ApprovalAction is the user's verdict on the proposed sub-requests.
type ApprovalAction int

const (
	// ApprovalProceed continues to retrieval.
	ApprovalProceed ApprovalAction = iota + 1
	// ApprovalRevise sends the request back to decomposition.
	ApprovalRevise
)

func (a ApprovalAction) String() string {
	switch a {
	case ApprovalProceed:
		return "proceed"
	case ApprovalRevise:
		return "revise"
	default:
		return "unknown"
	}
}

// ApprovalDecision is the structured outcome of the human approval step.
type ApprovalDecision struct {
	Action      ApprovalAction
	SubRequests []string // optional replacement list
	Feedback    string   // free-form guidance for the next decomposition
	TimedOut    bool
}

// Cluster is a group of documents discovered by the clustering algorithm.
type Cluster struct {
	Label   int
	Members []ID
}

// ClusterAssignment partitions a sample into clusters (in discovery order) and noise.
type ClusterAssignment struct {
	Clusters []Cluster
	Noise    []ID
}

// Len returns the number of non-noise clusters.
func (a *ClusterAssignment) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Clusters)
}

// ClusterSummary is the map-phase output for a single cluster.
type ClusterSummary struct {
	Label  int
	Text   string
	Failed bool // Text is a placeholder noting the failure
}
