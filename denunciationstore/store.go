// Package denunciationstore persists equivocation proofs on-chain, backed
// by Pebble. It is the node's concrete default implementation of
// denunciation.Pool: deduplicating admitted denunciations by identity
// (public key, slot[, index]) rather than by the particular bytes of a
// proof, so two denunciations proving the same equivocation with a
// different pair of evidence objects collapse to one stored record.
package denunciationstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/leanchain/gean/denunciation"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger to the store. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store wraps a Pebble database keyed by denunciation.ComputeID, storing
// each denunciation's tagged wire encoding (denunciation.Serializer) as the
// value. It implements denunciation.Pool.
type Store struct {
	mu     sync.RWMutex
	db     *pebble.DB
	params denunciation.Params
	logger *slog.Logger
}

// Open creates or reopens a Store at path. params bounds the deserializer
// used by Get, mirroring the bounds the network codec enforces.
func Open(path string, params denunciation.Params, opts ...Option) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open denunciation store: %w", err)
	}

	s := &Store{
		db:     db,
		params: params,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying Pebble handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts d if no denunciation with the same identity is already
// stored, returning true if it was newly added. Callers must have already
// checked d.IsValid() — Add never re-verifies, it only deduplicates and
// persists.
func (s *Store) Add(d *denunciation.Denunciation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := denunciation.ComputeID(d)
	key := id[:]

	if _, closer, err := s.db.Get(key); err == nil {
		closer.Close()
		return false, nil
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return false, fmt.Errorf("lookup denunciation %x: %w", id, err)
	}

	encoded, err := (denunciation.Serializer{}).Serialize(d)
	if err != nil {
		return false, fmt.Errorf("encode denunciation %x: %w", id, err)
	}

	if err := s.db.Set(key, encoded, pebble.Sync); err != nil {
		return false, fmt.Errorf("persist denunciation %x: %w", id, err)
	}

	s.logger.Info("denunciation persisted",
		"id", fmt.Sprintf("%x", id),
		"for_endorsement", d.IsForEndorsement(),
		"slot", d.Slot(),
	)
	return true, nil
}

// Has reports whether a denunciation with the given ID is known.
func (s *Store) Has(id denunciation.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, closer, err := s.db.Get(id[:])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup denunciation %x: %w", id, err)
	}
	closer.Close()
	return true, nil
}

// Get decodes and returns the stored denunciation for id, if any.
func (s *Store) Get(id denunciation.ID) (*denunciation.Denunciation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, closer, err := s.db.Get(id[:])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup denunciation %x: %w", id, err)
	}
	defer closer.Close()

	d, _, err := denunciation.NewDeserializer(s.params).Deserialize(value)
	if err != nil {
		return nil, false, fmt.Errorf("decode denunciation %x: %w", id, err)
	}
	return d, true, nil
}

var _ denunciation.Pool = (*Store)(nil)
