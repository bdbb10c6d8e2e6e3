// Package anonymize provides the keyed one-way digest applied to configured
// columns while rows are copied.
package anonymize

import (
	"crypto/sha1"
	"encoding/hex"
)

// DigestLength is the number of hex characters kept from the digest.
const DigestLength = 20

// Value returns the first DigestLength hex characters of SHA-1(value + key).
// The same (value, key) pair always yields the same output.
func Value(value, key string) string {
	sum := sha1.Sum([]byte(value + key))
	return hex.EncodeToString(sum[:])[:DigestLength]
}

// Set holds, per normalized table name, the normalized column names whose
// values are replaced by Value. A nil Set anonymizes nothing.
type Set map[string]map[string]struct{}

// NewSet builds a Set from table -> columns; names are passed through
// normalize so lookups match normalized source identifiers.
func NewSet(raw map[string][]string, normalize func(string) string) Set {
	set := make(Set, len(raw))
	for table, cols := range raw {
		t := normalize(table)
		if t == "" {
			continue
		}
		if set[t] == nil {
			set[t] = make(map[string]struct{}, len(cols))
		}
		for _, c := range cols {
			if n := normalize(c); n != "" {
				set[t][n] = struct{}{}
			}
		}
	}
	return set
}

// Has reports whether table.column is configured for anonymization.
func (s Set) Has(table, column string) bool {
	cols, ok := s[table]
	if !ok {
		return false
	}
	_, ok = cols[column]
	return ok
}

// Columns returns the number of configured columns across all tables.
func (s Set) Columns() int {
	n := 0
	for _, cols := range s {
		n += len(cols)
	}
	return n
}
