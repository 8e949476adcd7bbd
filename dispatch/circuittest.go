package dispatch

import (
	"crypto/ed25519"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/google/uuid"
)

// circuitTest holds a decoded CIRCUIT_TEST payload (§4.H, §6).
type circuitTest struct {
	originator  identity.Address
	flags       uint16
	timestamp   uint64
	testID      uint64
	credNwid    uint64
	haveCredNwid bool

	signedRegionLen int // offset of the signature_len field
	signature       []byte

	prevHopCOM     identity.CertificateOfMembership
	havePrevHopCOM bool

	hops []identity.Address

	// tailStart is the payload offset right after the hop address list;
	// everything from there on is opaque nested structure this depth does
	// not interpret and must forward verbatim.
	tailStart int
}

// decodeCircuitTest parses the CIRCUIT_TEST wire layout per §4.H using a
// cursor, since every trailing section's presence shifts later offsets.
func decodeCircuitTest(pkt *wire.Packet) (*circuitTest, error) {
	originator, err := pkt.PayloadAddressAt(0)
	if err != nil {
		return nil, err
	}
	flags, err := pkt.PayloadUint16At(5)
	if err != nil {
		return nil, err
	}
	timestamp, err := pkt.PayloadUint64At(7)
	if err != nil {
		return nil, err
	}
	testID, err := pkt.PayloadUint64At(15)
	if err != nil {
		return nil, err
	}

	ct := &circuitTest{originator: originator, flags: flags, timestamp: timestamp, testID: testID}

	off := 23
	origCredLen, err := pkt.PayloadUint16At(off)
	if err != nil {
		return nil, err
	}
	off += 2
	if origCredLen >= 1 {
		credType, err := pkt.PayloadByteAt(off)
		if err != nil {
			return nil, err
		}
		if credType == 0x01 && origCredLen >= 9 {
			nwid, err := pkt.PayloadUint64At(off + 1)
			if err != nil {
				return nil, err
			}
			ct.credNwid = nwid
			ct.haveCredNwid = true
		}
	}
	off += int(origCredLen)

	additionalLen, err := pkt.PayloadUint16At(off)
	if err != nil {
		return nil, err
	}
	off += 2 + int(additionalLen)

	ct.signedRegionLen = off

	sigLen, err := pkt.PayloadUint16At(off)
	if err != nil {
		return nil, err
	}
	off += 2
	sig, err := pkt.PayloadSlice(off, int(sigLen))
	if err != nil {
		return nil, err
	}
	ct.signature = append([]byte(nil), sig...)
	off += int(sigLen)

	prevHopCredLen, err := pkt.PayloadUint16At(off)
	if err != nil {
		return nil, err
	}
	off += 2
	if prevHopCredLen >= 1 {
		credType, err := pkt.PayloadByteAt(off)
		if err != nil {
			return nil, err
		}
		if credType == 0x01 {
			comBytes, err := pkt.PayloadSlice(off+1, int(prevHopCredLen)-1)
			if err != nil {
				return nil, err
			}
			com, _, err := identity.DeserializeCOM(comBytes)
			if err == nil {
				ct.prevHopCOM = com
				ct.havePrevHopCOM = true
			}
		}
	}
	off += int(prevHopCredLen)

	// next_hop_flags: unused.
	off += 1

	breadth, err := pkt.PayloadByteAt(off)
	if err != nil {
		return nil, err
	}
	off += 1

	for i := byte(0); i < breadth; i++ {
		a, err := pkt.PayloadAddressAt(off)
		if err != nil {
			return nil, err
		}
		ct.hops = append(ct.hops, a)
		off += identity.AddressLength
	}
	ct.tailStart = off

	return ct, nil
}

// handleCircuitTest implements §4.H: signature verification, credential
// checks, reporting and forwarding. The bool return follows TryDecode's
// "retry after WHOIS" contract when the originator is unknown.
func (d *Dispatcher) handleCircuitTest(pkt *wire.Packet, peer ports.Peer, now uint64, remote ports.Endpoint) bool {
	ct, err := decodeCircuitTest(pkt)
	if err != nil {
		return true
	}

	originatorPeer, ok := d.Topology.Get(ct.originator)
	if !ok {
		d.Switch.RequestWhois(ct.originator)
		return false
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbCircuitTest, wire.VerbNop)

	signedRegion, err := pkt.PayloadSlice(0, ct.signedRegionLen)
	if err != nil {
		return true
	}
	if !ed25519.Verify(originatorPeer.Identity().SigningPublicKey, signedRegion, ct.signature) {
		return true
	}

	// A CIRCUIT_TEST with no originator credential at all is dropped
	// outright: there is no network to authorize it against, and nothing
	// downstream (report, forward) may run on its behalf.
	if !ct.haveCredNwid {
		return true
	}

	n, ok := d.Node.Network(ct.credNwid)
	if !ok || n.Controller() != ct.originator {
		return true
	}
	net := n
	haveNet := true

	allowed := n.IsPublic()
	if !allowed && peer.Address() == ct.originator {
		allowed = true
	}
	if !allowed && ct.havePrevHopCOM {
		if com, haveCom := n.COM(); haveCom && com.AgreesWith(ct.prevHopCOM) {
			allowed = true
		}
	}
	if !allowed {
		return true
	}

	type hopPath struct {
		addr identity.Address
		ep   ports.Endpoint
		have bool
	}
	hopPaths := make([]hopPath, 0, len(ct.hops))
	for _, h := range ct.hops {
		hp := hopPath{addr: h}
		if hPeer, ok := d.Topology.Get(h); ok {
			if ep, ok := hPeer.BestPath(); ok {
				hp.ep, hp.have = ep, true
			}
		}
		hopPaths = append(hopPaths, hp)
	}

	shouldReport := ct.flags&0x01 != 0 || (len(ct.hops) == 0 && ct.flags&0x02 != 0)
	if shouldReport {
		report := ports.CircuitTestReport{
			Timestamp:       now,
			TestID:          ct.testID,
			RemoteTimestamp: ct.timestamp,
			Flags:           uint64(ct.flags),
			SourcePacketID:  mustPacketID(pkt),
			UpstreamAddr:    peer.Address(),
			SourceHopCount:  pkt.Hops(),
			LocalEndpoint:   d.LocalEndpoint,
			RemoteEndpoint:  remote,
		}
		for _, hp := range hopPaths {
			report.NextHops = append(report.NextHops, ports.CircuitTestHop{Addr: hp.addr, Endpoint: hp.ep})
		}
		d.sendCircuitTestReport(ct.originator, report)
	}

	if len(ct.hops) > 0 {
		d.forwardCircuitTest(pkt, ct, peer, net, haveNet)
	}

	return true
}

func (d *Dispatcher) sendCircuitTestReport(originator identity.Address, report ports.CircuitTestReport) {
	out := wire.NewOutbound(originator, d.Local.Address, wire.VerbCircuitTestReport)
	encodeCircuitTestReport(out, report)
	d.Switch.Send(out, true, 0)
}

// forwardCircuitTest builds and sends one CIRCUIT_TEST per remaining hop,
// preserving the signed region and signature verbatim while substituting
// our own credential in the previous-hop-credential section (§4.H step 6).
// All hops forwarded from one inbound test share a trace id so log lines
// from this fan-out can be correlated; the id never touches the wire.
func (d *Dispatcher) forwardCircuitTest(pkt *wire.Packet, ct *circuitTest, peer ports.Peer, net ports.Network, haveNet bool) {
	signedRegion, err := pkt.PayloadSlice(0, ct.signedRegionLen)
	if err != nil {
		return
	}
	tail, err := pkt.PayloadSlice(ct.tailStart, pkt.PayloadLen()-ct.tailStart)
	if err != nil {
		return
	}

	trace := uuid.New()

	var ourCred []byte
	if haveNet && !net.IsPublic() {
		if com, ok := net.COM(); ok {
			ourCred = append([]byte{0x01}, com.Serialize()...)
		}
	}

	var nwid uint64
	if ct.haveCredNwid {
		nwid = ct.credNwid
	}

	for _, hop := range ct.hops {
		if hop == d.Local.Address {
			continue
		}
		out := wire.NewOutbound(hop, d.Local.Address, wire.VerbCircuitTest)
		out.AppendBytes(signedRegion)
		out.AppendUint16(uint16(len(ct.signature)))
		out.AppendBytes(ct.signature)
		out.AppendUint16(uint16(len(ourCred)))
		out.AppendBytes(ourCred)
		out.AppendBytes(tail)
		d.logger().Debug("forwarding circuit test", "trace", trace, "to", hop, "testID", ct.testID)
		d.Switch.Send(out, true, nwid)
	}
}
