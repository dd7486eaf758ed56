package registry

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NewID mints a record id: prefix followed by six upper-case hex digits.
func NewID(prefix string) string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return prefix + strings.ToUpper(hex.EncodeToString(b))
}

// EnsureIDs gives every record a non-empty id that is unique within records.
// Records keep their id unless it is blank or already used by an earlier
// record. Opaque records are left as they are.
func EnsureIDs(records []*Record, prefix string) {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Opaque() {
			continue
		}
		id := r.ID()
		if _, dup := seen[id]; id == "" || dup {
			id = uniqueID(prefix, seen)
			r.Set(FieldID, id)
		}
		seen[id] = struct{}{}
	}
}

func uniqueID(prefix string, taken map[string]struct{}) string {
	for {
		id := NewID(prefix)
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}

// IDSet collects the ids already used in records.
func IDSet(records []*Record) map[string]struct{} {
	out := make(map[string]struct{}, len(records))
	for _, r := range records {
		if id := r.ID(); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

// NewUniqueID mints an id not present in records.
func NewUniqueID(prefix string, records []*Record) string {
	return uniqueID(prefix, IDSet(records))
}
