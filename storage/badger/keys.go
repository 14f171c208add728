package badger

import (
	"encoding/binary"

	"github.com/poiesic/pairreader/core"
)

// Key prefixes for different data types
const (
	documentPrefix          = "docrec:"
	checkpointPrefix        = "chkpt:"
	checkpointHistoryPrefix = "chkpth:"

	// keySep separates user-supplied key parts. Thread IDs never contain it.
	keySep = "\x00"
)

// makeDocumentKey generates a key for a document by ID.
// Format: prefix + 8-byte big-endian ID so iteration follows ID order.
func makeDocumentKey(id core.ID) []byte {
	buf := make([]byte, len(documentPrefix)+8)
	offset := copy(buf, documentPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// documentIDFromKey extracts the ID from a document key.
func documentIDFromKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(documentPrefix):]))
}

// makeCheckpointKey generates the key of the latest checkpoint of a thread.
// Format: prefix namespace SEP thread
func makeCheckpointKey(namespace, threadID string) []byte {
	return []byte(checkpointPrefix + namespace + keySep + threadID)
}

// makeCheckpointHistoryPrefix generates the prefix shared by all history
// entries of a thread.
// Format: prefix namespace SEP thread SEP
func makeCheckpointHistoryPrefix(namespace, threadID string) []byte {
	return []byte(checkpointHistoryPrefix + namespace + keySep + threadID + keySep)
}

// makeCheckpointHistoryKey generates a history key.
// Format: history prefix + 8-byte big-endian sequence
func makeCheckpointHistoryKey(namespace, threadID string, sequence uint64) []byte {
	prefix := makeCheckpointHistoryPrefix(namespace, threadID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], sequence)
	return buf
}
