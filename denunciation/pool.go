package denunciation

import "github.com/leanchain/gean/crypto"

// ID uniquely identifies a Denunciation for deduplication purposes: the
// hash of (public key ‖ slot[‖ index]), i.e. the thing being denounced
// rather than the particular bytes of this proof. Two valid denunciations
// of the same equivocation share an ID even if built from a different pair
// of evidence objects.
type ID [32]byte

// ComputeID derives d's dedup key.
func ComputeID(d *Denunciation) ID {
	pk := d.PublicKey()
	buf := make([]byte, 0, len(pk)+16)
	buf = append(buf, pk[:]...)
	buf = slotSerializer{}.serialize(d.Slot(), buf)
	if ed, ok := d.Endorsement(); ok {
		buf = putUvarint(buf, uint64(ed.Index))
	}
	return ID(crypto.ComputeHash(buf))
}

// Pool is the minimal interface the consensus and networking layers need
// against a denunciation collection: admit a newly constructed
// denunciation, and check whether one for a given equivocation is already
// known. Concrete storage (in-memory, Pebble-backed) lives outside this
// package; Pool keeps the core denunciation logic free of any storage
// dependency.
type Pool interface {
	// Add inserts d if its ID is not already present, returning true if it
	// was newly added. Callers must have already checked d.IsValid().
	Add(d *Denunciation) (bool, error)
	// Has reports whether a denunciation with the given ID is known.
	Has(id ID) (bool, error)
}
