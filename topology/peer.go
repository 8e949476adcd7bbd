// Package topology is a concrete, in-memory implementation of the
// ports.Topology/ports.Peer interfaces (§3 "Peer", §6 "topology.*"). It is
// the swappable reference store exercised by the dispatcher's tests; a
// production deployment may back it with persistence, but the dispatcher
// only ever depends on the ports interfaces.
package topology

import (
	"sync"
	"time"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/rosshemsley/kalman"
	"github.com/rosshemsley/kalman/models"
)

// Peer holds mutable per-remote-identity state: shared secret, learned
// COMs, latency samples, and negotiated protocol version (§3 "Peer").
// Handlers take one write-lock per operation; the dispatcher never holds
// this lock across a PutPacket call (§5).
type Peer struct {
	mu sync.Mutex

	identity identity.Identity
	key      [32]byte

	protoVersion, major, minor byte
	revision                   uint16

	lastReceived uint64
	receivedN    uint64

	coms map[uint64]identity.CertificateOfMembership

	bestPath      ports.Endpoint
	hasBestPath   bool
	latencyFilter *kalman.KalmanFilter
	latencyModel  *models.SimpleModel
}

// NewPeer constructs a Peer for a newly validated identity with its
// per-peer shared secret already agreed.
func NewPeer(id identity.Identity, sharedKey [32]byte) *Peer {
	model := models.NewSimpleModel(time.Now(), float64(50*time.Millisecond), models.SimpleModelConfig{
		InitialVariance:     0,
		ProcessVariance:     float64(10 * time.Millisecond),
		ObservationVariance: float64(5 * time.Millisecond),
	})
	return &Peer{
		identity:      id,
		key:           sharedKey,
		coms:          make(map[uint64]identity.CertificateOfMembership),
		latencyFilter: kalman.NewKalmanFilter(model),
		latencyModel:  model,
	}
}

func (p *Peer) Address() identity.Address {
	return p.identity.Address
}

func (p *Peer) Identity() identity.Identity {
	return p.identity
}

func (p *Peer) Key() [32]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

// Received records liveness/accounting stats for one successfully
// processed packet (§4.C step 3, §7 invariant 5: "accounted iff it passed
// authentication AND was not dropped for bounds/shape errors").
func (p *Peer) Received(now uint64, payloadLen int, verb, inReVerb wire.Verb) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastReceived = now
	p.receivedN++
}

func (p *Peer) LastReceived() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReceived
}

func (p *Peer) SetRemoteVersion(proto, major, minor byte, revision uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.protoVersion, p.major, p.minor, p.revision = proto, major, minor, revision
}

func (p *Peer) RemoteVersion() (proto, major, minor byte, revision uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.protoVersion, p.major, p.minor, p.revision
}

// ValidateAndSetCOM installs a certificate of membership after checking
// only that its NetworkID equals nwid. The COM's signature is not checked
// here, and the dispatcher's handlers do not check it before calling this.
func (p *Peer) ValidateAndSetCOM(nwid uint64, com identity.CertificateOfMembership) bool {
	if com.NetworkID != nwid {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coms[nwid] = com
	return true
}

func (p *Peer) COM(nwid uint64) (identity.CertificateOfMembership, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.coms[nwid]
	return c, ok
}

// AddDirectLatencyMeasurement feeds one RTT sample into the per-peer
// Kalman filter, smoothing out jitter the way impl.UdpDpLink does for
// data-plane link metrics.
func (p *Peer) AddDirectLatencyMeasurement(sample time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.latencyFilter.Update(time.Now(), p.latencyModel.NewMeasurement(float64(sample)))
}

// SmoothedLatency returns the current Kalman-filtered latency estimate.
func (p *Peer) SmoothedLatency() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.latencyModel.Value(p.latencyFilter.State()))
}

// AttemptToContactAt records a candidate direct path and marks it as the
// peer's current best path, used by PUSH_DIRECT_PATHS (§4.G) and
// RENDEZVOUS-triggered hole punching.
func (p *Peer) AttemptToContactAt(local, at ports.Endpoint, now uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bestPath = at
	p.hasBestPath = true
}

func (p *Peer) BestPath() (ports.Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bestPath, p.hasBestPath
}
