// Package crypto provides the cryptographic primitives consumed by the
// consensus layer: content hashing and BLS12-381 signature verification.
package crypto

import (
	"crypto/sha256"

	"github.com/leanchain/gean/types"
)

// Hash is a fixed-size content digest. It aliases types.Root so that
// denunciation preimages and block/state roots share one representation.
type Hash = types.Root

// ComputeHash hashes data with the node's canonical digest function.
// Matches the single-shot sha256.Sum256 convention used for tree roots
// elsewhere in the node (see consensus state-root hashing).
func ComputeHash(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// HashFromBytes reinterprets a 32-byte slice as a Hash without copying
// semantics beyond the fixed-size array copy. Returns false if len(b) != 32.
func HashFromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != len(h) {
		return h, false
	}
	copy(h[:], b)
	return h, true
}
