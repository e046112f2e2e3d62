package chain

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNoProvider is returned by Slot.Get before any provider was found.
var ErrNoProvider = errors.New("chain: provider not initialized")

// ErrChainMismatch is returned by Slot.GetOn when the active provider serves
// another chain than the one asked for.
var ErrChainMismatch = errors.New("chain: provider switched networks")

type slotEntry struct {
	provider Provider
	chainID  uint64
}

// Slot is the single owned reference to the active provider. It is filled by
// provider discovery, swapped whole on network changes and read by every
// other query handler.
type Slot struct {
	current atomic.Pointer[slotEntry]
}

func NewSlot() *Slot {
	return &Slot{}
}

// Get returns the active provider.
func (s *Slot) Get() (Provider, error) {
	entry := s.current.Load()
	if entry == nil || entry.provider == nil {
		return nil, ErrNoProvider
	}
	return entry.provider, nil
}

// GetOn returns the active provider only while it serves chainID.
func (s *Slot) GetOn(chainID uint64) (Provider, error) {
	entry := s.current.Load()
	if entry == nil || entry.provider == nil {
		return nil, ErrNoProvider
	}
	if entry.chainID != chainID {
		return nil, fmt.Errorf("%w: want chain %d, have %d", ErrChainMismatch, chainID, entry.chainID)
	}
	return entry.provider, nil
}

// Replace installs p, which serves chainID, and closes the provider it
// replaced, if any.
func (s *Slot) Replace(p Provider, chainID uint64) {
	old := s.current.Swap(&slotEntry{provider: p, chainID: chainID})
	if old != nil && old.provider != nil && old.provider != p {
		old.provider.Close()
	}
}

// Close closes and clears the active provider.
func (s *Slot) Close() {
	old := s.current.Swap(nil)
	if old != nil && old.provider != nil {
		old.provider.Close()
	}
}
