// Package gitlib provides read-only git history access using libgit2.
package gitlib

import (
	"encoding/hex"

	git2go "github.com/libgit2/git2go/v34"
)

// HashSize is the size of a SHA-1 hash in bytes.
const HashSize = 20

// HashHexSize is the size of a hex-encoded SHA-1 hash.
const HashHexSize = 40

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ZeroHash returns the zero value hash.
func ZeroHash() Hash {
	return Hash{}
}

// NewHash creates a Hash from a hex string. Invalid or short input
// yields a partially filled hash; callers validate specs separately.
func NewHash(hexStr string) Hash {
	var h Hash

	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return h
	}

	copy(h[:], decoded)

	return h
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	copy(h[:], oid[:])

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns true if the hash is all zeros. CI systems use the
// all-zero hash as a "no previous commit" sentinel.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
