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

package storage

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/pairreader/core"
)

// Record layouts are fixed field sequences encoded with mus-go primitives.
// Changing field order breaks existing databases.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %v", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalDocument serializes a Document to bytes. Metadata keys are written
// in sorted order so equal documents encode identically.
func MarshalDocument(doc *core.Document) []byte {
	keys := sortedKeys(doc.Metadata)

	size := varint.Uint64.Size(uint64(doc.Id)) +
		ord.String.Size(doc.Text) +
		varint.Int.Size(len(keys)) +
		varint.Int.Size(len(doc.Vector)) +
		varint.Int64.Size(timeToInt(doc.InsertedAt))
	for _, k := range keys {
		size += ord.String.Size(k) + ord.String.Size(doc.Metadata[k])
	}
	for _, f := range doc.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(doc.Id), buf)
	n += ord.String.Marshal(doc.Text, buf[n:])
	n += varint.Int.Marshal(len(keys), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(doc.Metadata[k], buf[n:])
	}
	n += varint.Int.Marshal(len(doc.Vector), buf[n:])
	for _, f := range doc.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), buf[n:])
	}
	varint.Int64.Marshal(timeToInt(doc.InsertedAt), buf[n:])
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	r := reader{data: data}
	doc := &core.Document{}

	doc.Id = core.ID(r.uint64())
	doc.Text = r.string()
	if count := r.length(); count > 0 {
		doc.Metadata = make(map[string]string, count)
		for range count {
			k := r.string()
			doc.Metadata[k] = r.string()
		}
	}
	if count := r.length(); count > 0 {
		doc.Vector = make([]float32, count)
		for i := range doc.Vector {
			doc.Vector[i] = math.Float32frombits(r.uint32())
		}
	}
	doc.InsertedAt = intToTime(r.int64())

	if r.err != nil {
		return nil, fmt.Errorf("%w: document: %v", ErrSerializationFailed, r.err)
	}
	return doc, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *Checkpoint) []byte {
	payload := string(checkpoint.Payload)
	size := ord.String.Size(checkpoint.ID) +
		ord.String.Size(checkpoint.Namespace) +
		ord.String.Size(checkpoint.ThreadID) +
		ord.String.Size(checkpoint.Cursor) +
		varint.Uint64.Size(checkpoint.Sequence) +
		ord.String.Size(payload) +
		varint.Int64.Size(timeToInt(checkpoint.CreatedAt))

	buf := make([]byte, size)
	n := ord.String.Marshal(checkpoint.ID, buf)
	n += ord.String.Marshal(checkpoint.Namespace, buf[n:])
	n += ord.String.Marshal(checkpoint.ThreadID, buf[n:])
	n += ord.String.Marshal(checkpoint.Cursor, buf[n:])
	n += varint.Uint64.Marshal(checkpoint.Sequence, buf[n:])
	n += ord.String.Marshal(payload, buf[n:])
	varint.Int64.Marshal(timeToInt(checkpoint.CreatedAt), buf[n:])
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	r := reader{data: data}
	checkpoint := &Checkpoint{
		ID:        r.string(),
		Namespace: r.string(),
		ThreadID:  r.string(),
		Cursor:    r.string(),
		Sequence:  r.uint64(),
	}
	if payload := r.string(); payload != "" {
		checkpoint.Payload = []byte(payload)
	}
	checkpoint.CreatedAt = intToTime(r.int64())

	if r.err != nil {
		return nil, fmt.Errorf("%w: checkpoint: %v", ErrSerializationFailed, r.err)
	}
	return checkpoint, nil
}

// reader walks a buffer field by field. The first error sticks and
// subsequent reads return zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.data[r.pos:])
	r.advance(n, err)
	return v
}

func (r *reader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint32.Unmarshal(r.data[r.pos:])
	r.advance(n, err)
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.data[r.pos:])
	r.advance(n, err)
	return v
}

func (r *reader) length() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.data[r.pos:])
	r.advance(n, err)
	if r.err == nil && (v < 0 || v > len(r.data)-r.pos) {
		r.err = ErrTruncatedData
		return 0
	}
	return v
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.data[r.pos:])
	r.advance(n, err)
	return v
}

func (r *reader) advance(n int, err error) {
	if err != nil {
		r.err = err
		return
	}
	r.pos += n
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func timeToInt(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func intToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
