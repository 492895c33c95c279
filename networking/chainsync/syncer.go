// Package chainsync backfills blocks a node is missing: when gossip
// delivers a block whose parent hasn't been seen yet, or a peer reports a
// head ahead of ours, this package pulls the gap via the BlocksByRoot
// req/resp protocol and feeds the results into the block store in
// parent-first order.
package chainsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leanchain/gean/networking/reqresp"
	"github.com/leanchain/gean/types"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// ChainStore provides access to the block store for chain synchronization.
// Satisfied by forkchoice.Store without modification.
type ChainStore interface {
	HasBlock(root types.Root) bool
	ProcessBlock(block *types.Block) error
	AdvanceTime(unixTime uint64, hasProposal bool)
}

const reqrespTimeout = 30 * time.Second

// SyncState tracks whether the syncer currently has an in-flight backfill.
type SyncState int

const (
	SyncStateIdle SyncState = iota
	SyncStateSyncing
)

// Syncer drives status handshakes on connect and backfills missing blocks.
type Syncer struct {
	host           host.Host
	store          ChainStore
	streamHandler  *reqresp.StreamHandler
	reqrespHandler *reqresp.Handler
	logger         *slog.Logger

	mu         sync.RWMutex
	peerStatus map[peer.ID]*reqresp.Status
	state      SyncState

	pending   map[types.Root]struct{}
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds syncer configuration.
type Config struct {
	Host           host.Host
	Store          ChainStore
	StreamHandler  *reqresp.StreamHandler
	ReqRespHandler *reqresp.Handler
	Logger         *slog.Logger
}

// NewSyncer creates a new syncer.
func NewSyncer(ctx context.Context, cfg Config) *Syncer {
	ctx, cancel := context.WithCancel(ctx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Syncer{
		host:           cfg.Host,
		store:          cfg.Store,
		streamHandler:  cfg.StreamHandler,
		reqrespHandler: cfg.ReqRespHandler,
		logger:         logger,
		peerStatus:     make(map[peer.ID]*reqresp.Status),
		pending:        make(map[types.Root]struct{}),
		state:          SyncStateIdle,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start registers the connection notifier and greets any peers already
// connected (e.g. bootnodes dialed before the syncer came up).
func (s *Syncer) Start() {
	s.host.Network().Notify(&connectionNotifier{syncer: s})

	for _, peerID := range s.host.Network().Peers() {
		go s.greet(peerID)
	}

	s.logger.Info("syncer started")
}

// Stop shuts down the syncer.
func (s *Syncer) Stop() {
	s.cancel()
	s.logger.Info("syncer stopped")
}

func (s *Syncer) greet(peerID peer.ID) {
	ctx, cancel := context.WithTimeout(s.ctx, reqrespTimeout)
	defer cancel()
	if err := s.InitiateStatusExchange(ctx, peerID); err != nil {
		s.logger.Warn("status exchange failed", "peer", peerID, "error", err)
	}
}

// InitiateStatusExchange sends our status and processes the peer's response.
func (s *Syncer) InitiateStatusExchange(ctx context.Context, peerID peer.ID) error {
	ourStatus := s.reqrespHandler.GetStatus()
	peerStatus, err := s.streamHandler.SendStatus(ctx, peerID, ourStatus)
	if err != nil {
		return fmt.Errorf("send status: %w", err)
	}
	return s.processPeerStatus(peerID, peerStatus)
}

// processPeerStatus validates and records peer status, kicking off a
// backfill if the peer is ahead of us.
func (s *Syncer) processPeerStatus(peerID peer.ID, peerStatus *reqresp.Status) error {
	if err := s.reqrespHandler.ValidatePeerStatus(peerStatus); err != nil {
		s.logger.Warn("invalid peer status, disconnecting", "peer", peerID, "error", err)
		s.host.Network().ClosePeer(peerID)
		return err
	}

	s.mu.Lock()
	s.peerStatus[peerID] = peerStatus
	s.mu.Unlock()

	ourStatus := s.reqrespHandler.GetStatus()
	if peerStatus.Head.Slot > ourStatus.Head.Slot {
		s.logger.Info("peer ahead, backfilling",
			"peer", peerID,
			"peer_head_slot", peerStatus.Head.Slot,
			"our_head_slot", ourStatus.Head.Slot,
		)
		go s.syncFromPeer(peerID, peerStatus)
	}

	return nil
}

// syncFromPeer pulls the peer's head block (and transitively its missing
// ancestors) and applies them to the store.
func (s *Syncer) syncFromPeer(peerID peer.ID, peerStatus *reqresp.Status) {
	s.mu.Lock()
	if s.state == SyncStateSyncing {
		s.mu.Unlock()
		return
	}
	s.state = SyncStateSyncing
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = SyncStateIdle
		s.mu.Unlock()
		s.store.AdvanceTime(uint64(time.Now().Unix()), false)
	}()

	blocks, err := s.streamHandler.RequestBlocksByRoot(s.ctx, peerID, []types.Root{peerStatus.Head.Root})
	if err != nil {
		s.logger.Warn("requesting head block failed", "peer", peerID, "error", err)
		return
	}

	for _, block := range blocks {
		if err := s.processReceivedBlock(block, peerID); err != nil {
			s.logger.Warn("failed to process synced block",
				"slot", block.Message.Block.Slot,
				"error", err,
			)
		}
	}
}

// processReceivedBlock applies a block fetched via req/resp, recursing onto
// its parent first if the parent is still unknown.
func (s *Syncer) processReceivedBlock(block *types.SignedBlockWithAttestation, fromPeer peer.ID) error {
	innerBlock := &block.Message.Block
	blockRoot, err := innerBlock.HashTreeRoot()
	if err != nil {
		return fmt.Errorf("hash block: %w", err)
	}
	if s.store.HasBlock(blockRoot) {
		return nil
	}

	if !s.store.HasBlock(innerBlock.ParentRoot) {
		if err := s.requestParentChain(innerBlock.ParentRoot, fromPeer); err != nil {
			return fmt.Errorf("request parent chain: %w", err)
		}
	}

	if err := s.store.ProcessBlock(innerBlock); err != nil {
		return fmt.Errorf("process block: %w", err)
	}

	s.logger.Info("synced block", "slot", innerBlock.Slot, "proposer", innerBlock.ProposerIndex)
	return nil
}

// requestParentChain fetches parentRoot and, recursively via
// processReceivedBlock, whatever its own unknown ancestors turn out to be.
func (s *Syncer) requestParentChain(parentRoot types.Root, fromPeer peer.ID) error {
	s.pendingMu.Lock()
	if _, inFlight := s.pending[parentRoot]; inFlight {
		s.pendingMu.Unlock()
		return nil
	}
	s.pending[parentRoot] = struct{}{}
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, parentRoot)
		s.pendingMu.Unlock()
	}()

	blocks, err := s.streamHandler.RequestBlocksByRoot(s.ctx, fromPeer, []types.Root{parentRoot})
	if err != nil {
		return fmt.Errorf("request parent: %w", err)
	}

	for _, block := range blocks {
		if err := s.processReceivedBlock(block, fromPeer); err != nil {
			s.logger.Warn("failed to process parent block",
				"slot", block.Message.Block.Slot,
				"error", err,
			)
		}
	}
	return nil
}

// RemovePeer stops tracking a disconnected peer's status.
func (s *Syncer) RemovePeer(peerID peer.ID) {
	s.mu.Lock()
	delete(s.peerStatus, peerID)
	s.mu.Unlock()
}

// OnBlockReceived lets a gossip-delivered block trigger a parent backfill
// without waiting for the next status-driven sync pass.
func (s *Syncer) OnBlockReceived(block *types.SignedBlockWithAttestation, fromPeer peer.ID) error {
	parentRoot := block.Message.Block.ParentRoot
	if !s.store.HasBlock(parentRoot) {
		return s.requestParentChain(parentRoot, fromPeer)
	}
	return nil
}

// connectionNotifier kicks off a status handshake on outbound connections;
// inbound peers are expected to initiate one themselves.
type connectionNotifier struct {
	syncer *Syncer
}

func (n *connectionNotifier) Listen(network.Network, multiaddr.Multiaddr)      {}
func (n *connectionNotifier) ListenClose(network.Network, multiaddr.Multiaddr) {}

func (n *connectionNotifier) Connected(_ network.Network, conn network.Conn) {
	peerID := conn.RemotePeer()
	if conn.Stat().Direction == network.DirOutbound {
		go n.syncer.greet(peerID)
	}
}

func (n *connectionNotifier) Disconnected(_ network.Network, conn network.Conn) {
	n.syncer.RemovePeer(conn.RemotePeer())
}

var _ network.Notifiee = (*connectionNotifier)(nil)
