// Package xxhash provides fast content digests for change detection and
// snapshot naming.
package xxhash

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hasher implements content hashing with xxHash64.
type Hasher struct{}

// New returns an xxHash64 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a 16 character hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	return h.HashString(string(data)), nil
}

// HashString hashes s without copying it.
func (*Hasher) HashString(s string) string {
	sum := strconv.FormatUint(xxhash.Sum64String(s), 16)
	for len(sum) < 16 {
		sum = "0" + sum
	}
	return sum
}
