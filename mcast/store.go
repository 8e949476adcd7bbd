// Package mcast is the in-memory multicast-group subscription database
// implementing ports.Multicast (§3 "MulticastGroup", §6 "mc.*"). Like
// topology.Store, it is the reference/test implementation the dispatcher
// is exercised against.
package mcast

import (
	"sort"
	"sync"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
)

type key struct {
	nwid  uint64
	group ports.MulticastGroup
}

// Store tracks, per (network, group), the set of member addresses and the
// time each was last refreshed.
type Store struct {
	mu      sync.Mutex
	members map[key]map[identity.Address]uint64
}

// NewStore creates an empty multicast-group store.
func NewStore() *Store {
	return &Store{members: make(map[key]map[identity.Address]uint64)}
}

func (s *Store) Add(now uint64, nwid uint64, group ports.MulticastGroup, member identity.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(now, nwid, group, member)
}

func (s *Store) addLocked(now uint64, nwid uint64, group ports.MulticastGroup, member identity.Address) {
	k := key{nwid, group}
	set, ok := s.members[k]
	if !ok {
		set = make(map[identity.Address]uint64)
		s.members[k] = set
	}
	set[member] = now
}

func (s *Store) AddMultiple(now uint64, nwid uint64, group ports.MulticastGroup, members []identity.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		s.addLocked(now, nwid, group, m)
	}
}

func (s *Store) Remove(nwid uint64, group ports.MulticastGroup, member identity.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{nwid, group}
	if set, ok := s.members[k]; ok {
		delete(set, member)
	}
}

// Gather returns up to limit member addresses for (nwid, group), in
// ascending address order so repeated calls with the same limit are
// deterministic.
func (s *Store) Gather(nwid uint64, group ports.MulticastGroup, limit int) []identity.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{nwid, group}
	set, ok := s.members[k]
	if !ok {
		return nil
	}
	out := make([]identity.Address, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Count returns the number of members currently tracked for (nwid, group),
// used by tests to assert idempotence under repeated Add calls.
func (s *Store) Count(nwid uint64, group ports.MulticastGroup) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[key{nwid, group}])
}
