package reqresp

import (
	"errors"

	"github.com/leanchain/gean/types"
)

// ErrInvalidStatus is returned when a peer's status handshake conflicts with
// our own view of the chain (e.g. a finalized checkpoint whose root we have,
// but whose block sits at a different slot than the peer claims).
var ErrInvalidStatus = errors.New("invalid peer status")

// Status is the handshake message exchanged upon connection.
// It allows nodes to verify compatibility and determine sync status.
type Status struct {
	Finalized types.Checkpoint
	Head      types.Checkpoint
}

// BlocksByRootRequest is a request for blocks by their root hashes.
type BlocksByRootRequest struct {
	Roots []types.Root `ssz-max:"1024" ssz-size:"?,32"`
}
