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

package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/pairreader/core"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Parser turns an uploaded file into text chunks.
type Parser struct {
	splitter textsplitter.TextSplitter
}

// NewParser creates a parser splitting text into chunks of at most
// chunkSize characters with chunkOverlap characters shared between neighbours.
func NewParser(chunkSize, chunkOverlap int) (*Parser, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, chunkSize, chunkOverlap)
	}
	return &Parser{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}, nil
}

// Parse loads upload and returns its non-blank chunks. The loader is picked
// by file extension; unknown extensions are read as plain text.
func (p *Parser) Parse(ctx context.Context, upload core.Upload) ([]string, error) {
	f, err := os.Open(upload.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	loader, err := loaderFor(f, upload)
	if err != nil {
		return nil, err
	}

	docs, err := loader.LoadAndSplit(ctx, p.splitter)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", upload.Name, err)
	}

	chunks := make([]string, 0, len(docs))
	for _, doc := range docs {
		if text := strings.TrimSpace(doc.PageContent); text != "" {
			chunks = append(chunks, text)
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", upload.Name, ErrNoContent)
	}
	return chunks, nil
}

func loaderFor(f *os.File, upload core.Upload) (documentloaders.Loader, error) {
	name := upload.Name
	if name == "" {
		name = upload.Path
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return documentloaders.NewPDF(f, info.Size()), nil
	case ".html", ".htm":
		return documentloaders.NewHTML(f), nil
	case ".csv":
		return documentloaders.NewCSV(f), nil
	default:
		return documentloaders.NewText(f), nil
	}
}
