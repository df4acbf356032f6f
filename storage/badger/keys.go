package badger

import (
	"encoding/binary"

	"github.com/poiesic/docsift/core"
)

// Key prefixes for different data types
const (
	embeddingPrefix = "embvec"
	sessionPrefix   = "sesrec"
)

// makeEmbeddingPrefix generates the prefix shared by all vectors of a model.
// Format: prefix:modelLen(2 bytes):model:
// The length keeps "name" and "name:tag" model prefixes disjoint.
func makeEmbeddingPrefix(model string) []byte {
	buf := make([]byte, 0, len(embeddingPrefix)+len(model)+4)
	buf = append(buf, embeddingPrefix...)
	buf = append(buf, ':')
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(model)))
	buf = append(buf, model...)
	return append(buf, ':')
}

// makeEmbeddingKey generates a composite key for a cached vector.
// Format: prefix:model:contentID (8 bytes, big endian)
func makeEmbeddingKey(model string, id core.ID) []byte {
	prefix := makeEmbeddingPrefix(model)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// embeddingIDFromKey extracts the content ID from a cached vector key.
func embeddingIDFromKey(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeSessionKey generates a key for a session by ID.
func makeSessionKey(id string) []byte {
	return []byte(sessionPrefix + ":" + id)
}
