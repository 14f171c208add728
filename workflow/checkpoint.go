package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/pairreader/storage"
)

// Checkpoint is a decoded snapshot of a thread after a step.
type Checkpoint struct {
	ID       string
	Graph    string
	ThreadID string
	// Cursor is the next step to run, or End.
	Cursor     string
	Sequence   uint64
	State      State
	Suspension *Suspension
	CreatedAt  time.Time
}

// payload is the encoded part of a stored checkpoint.
type payload struct {
	State      State       `json:"state"`
	Suspension *Suspension `json:"suspension,omitempty"`
}

func encodeCheckpoint(cp *Checkpoint) (*storage.Checkpoint, error) {
	raw, err := json.Marshal(payload{State: cp.State, Suspension: cp.Suspension})
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint %s/%s: %w", cp.Graph, cp.ThreadID, err)
	}
	return &storage.Checkpoint{
		ID:        cp.ID,
		Namespace: cp.Graph,
		ThreadID:  cp.ThreadID,
		Cursor:    cp.Cursor,
		Sequence:  cp.Sequence,
		Payload:   raw,
		CreatedAt: cp.CreatedAt,
	}, nil
}

func decodeCheckpoint(sc *storage.Checkpoint) (*Checkpoint, error) {
	var p payload
	if err := json.Unmarshal(sc.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", storage.ErrInvalidCheckpoint, sc.Namespace, sc.ThreadID, err)
	}
	return &Checkpoint{
		ID:         sc.ID,
		Graph:      sc.Namespace,
		ThreadID:   sc.ThreadID,
		Cursor:     sc.Cursor,
		Sequence:   sc.Sequence,
		State:      p.State,
		Suspension: p.Suspension,
		CreatedAt:  sc.CreatedAt,
	}, nil
}
