package topology

import (
	"sync"
	"time"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/jellydator/ttlcache/v3"
)

// replayWindowTTL bounds how long a packet_id is remembered for replay
// rejection per peer, mirroring the teacher's SeqnoDedup cache lifetime
// shape (core/router.go's ttlcache.New with a fixed TTL).
const replayWindowTTL = 2 * time.Minute

// Store is an in-memory ports.Topology implementation: the peer table plus
// a per-peer packet_id replay cache and a world roster. It is the
// reference/test implementation the dispatcher's tests run against; a
// production deployment may swap in a persisted store behind the same
// interface.
type Store struct {
	mu    sync.RWMutex
	peers map[identity.Address]*Peer

	world identity.World

	replay map[identity.Address]*ttlcache.Cache[uint64, struct{}]
}

// NewStore creates an empty topology seeded with the given World.
func NewStore(world identity.World) *Store {
	return &Store{
		peers:  make(map[identity.Address]*Peer),
		world:  world,
		replay: make(map[identity.Address]*ttlcache.Cache[uint64, struct{}]),
	}
}

func (s *Store) Get(addr identity.Address) (ports.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[addr]
	if !ok {
		return nil, false
	}
	return p, true
}

// GetConcrete returns the concrete *Peer, used by tests and by code in
// this package that needs direct access rather than the interface view.
func (s *Store) GetConcrete(addr identity.Address) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[addr]
	return p, ok
}

func (s *Store) Add(p ports.Peer) ports.Peer {
	concrete, ok := p.(*Peer)
	if !ok {
		return p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[concrete.Address()] = concrete
	cache := ttlcache.New[uint64, struct{}](
		ttlcache.WithTTL[uint64, struct{}](replayWindowTTL),
		ttlcache.WithDisableTouchOnHit[uint64, struct{}](),
	)
	s.replay[concrete.Address()] = cache
	return concrete
}

// SeenPacketID reports whether packetID has already been observed from
// addr within the replay window, recording it if not (§7 "packet_id is
// unique per sender").
func (s *Store) SeenPacketID(addr identity.Address, packetID uint64) bool {
	s.mu.RLock()
	cache, ok := s.replay[addr]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if cache.Get(packetID) != nil {
		return true
	}
	cache.Set(packetID, struct{}{}, ttlcache.DefaultTTL)
	return false
}

func (s *Store) IsRoot(id identity.Identity) bool {
	return s.world.IsRootAddress(id.Address)
}

func (s *Store) IsRootAddress(addr identity.Address) bool {
	return s.world.IsRootAddress(addr)
}

func (s *Store) World() identity.World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world
}

// SetWorld installs a newer World, used when a HELLO reply's world-update
// trailer carries one (§4.D step 8).
func (s *Store) SetWorld(w identity.World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world = w
}

func (s *Store) WorldID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.ID
}

func (s *Store) WorldTimestamp() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.Timestamp
}

// Remove deletes a peer and its replay cache, used when a peer is evicted
// (e.g. after an identity collision is resolved against it).
func (s *Store) Remove(addr identity.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, addr)
	if c, ok := s.replay[addr]; ok {
		c.Stop()
		delete(s.replay, addr)
	}
}
