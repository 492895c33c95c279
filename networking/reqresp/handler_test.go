package reqresp

import (
	"testing"

	"github.com/leanchain/gean/consensus"
	"github.com/leanchain/gean/forkchoice"
	"github.com/leanchain/gean/types"
)

func newTestHandler(t *testing.T) (*Handler, *forkchoice.Store) {
	t.Helper()
	genesisState, genesisBlock := consensus.GenerateGenesis(1000, consensus.GenerateValidators(4))
	store, err := forkchoice.NewStore(genesisState, genesisBlock, consensus.ProcessSlots, consensus.ProcessBlock)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewHandler(store), store
}

func TestHandlerGetStatusReflectsGenesis(t *testing.T) {
	handler, store := newTestHandler(t)
	status := handler.GetStatus()

	if status.Finalized.Slot != 0 {
		t.Errorf("Finalized.Slot = %d, want 0", status.Finalized.Slot)
	}
	if status.Head.Root != store.Head {
		t.Error("Head.Root does not match store head")
	}
}

func TestHandlerBlocksByRoot(t *testing.T) {
	handler, store := newTestHandler(t)

	cases := []struct {
		name      string
		root      types.Root
		wantCount int
	}{
		{"known root returns the block", store.Head, 1},
		{"unknown root returns nothing", types.Root{1, 2, 3}, 0},
	}

	for _, c := range cases {
		blocks := handler.HandleBlocksByRoot(&BlocksByRootRequest{Roots: []types.Root{c.root}})
		if len(blocks) != c.wantCount {
			t.Errorf("%s: got %d blocks, want %d", c.name, len(blocks), c.wantCount)
		}
	}
}

func TestHandlerValidatePeerStatusAcceptsGenesis(t *testing.T) {
	handler, store := newTestHandler(t)

	status := &Status{
		Finalized: types.Checkpoint{Root: types.Root{}, Slot: 0},
		Head:      types.Checkpoint{Root: store.Head, Slot: 0},
	}
	if err := handler.ValidatePeerStatus(status); err != nil {
		t.Errorf("ValidatePeerStatus: %v", err)
	}
}
