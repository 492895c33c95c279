// Package denunciation implements anti-equivocation evidence: proofs that a
// validator signed two conflicting endorsements, or two conflicting block
// headers, for the same slot. A Denunciation is built once from two
// independently verified pieces of network evidence, is immutable after
// construction, and is gossiped, included in blocks, and persisted on-chain
// to trigger slashing.
//
// The package is pure and stateless: every operation is referentially
// transparent given its inputs and the Params threaded in by the caller.
package denunciation

// Params carries the chain-wide bounds the deserializer enforces. It is a
// construction-time argument rather than a package-level constant so a
// single process can host deserializers for chains with different
// parameters without mutable global state.
type Params struct {
	// ThreadCount bounds a Slot's Thread field to [0, ThreadCount).
	ThreadCount uint8
	// EndorsementCount bounds an EndorsementDenunciation's Index field to
	// [0, EndorsementCount).
	EndorsementCount uint32
}
