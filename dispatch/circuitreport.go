package dispatch

import (
	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
)

// encodeCircuitTestReport appends a CIRCUIT_TEST_REPORT payload to out, per
// the fixed-offset layout in §6.
func encodeCircuitTestReport(out *wire.Packet, r ports.CircuitTestReport) {
	out.AppendUint64(r.Timestamp)
	out.AppendUint64(r.TestID)
	out.AppendUint64(r.RemoteTimestamp)
	out.AppendByte(r.Vendor)
	out.AppendByte(r.ProtoVersion)
	out.AppendByte(r.Major)
	out.AppendByte(r.Minor)
	out.AppendUint16(r.Revision)
	out.AppendUint16(r.Platform)
	out.AppendUint16(r.Architecture)
	out.AppendUint16(r.ErrorCode)
	out.AppendUint64(r.Flags)
	out.AppendUint64(r.SourcePacketID)
	out.AppendAddress(r.UpstreamAddr)
	out.AppendByte(r.SourceHopCount)
	encodeEndpoint(out, r.LocalEndpoint)
	encodeEndpoint(out, r.RemoteEndpoint)
	out.AppendUint16(uint16(len(r.Additional)))
	out.AppendBytes(r.Additional)
	out.AppendByte(byte(len(r.NextHops)))
	for _, h := range r.NextHops {
		out.AppendAddress(h.Addr)
		encodeEndpoint(out, h.Endpoint)
	}
}

// decodeCircuitTestReport parses the payload encodeCircuitTestReport
// produces, using a cursor since the two embedded endpoints are
// variable-length.
func decodeCircuitTestReport(pkt *wire.Packet) (ports.CircuitTestReport, error) {
	var r ports.CircuitTestReport
	var err error

	if r.Timestamp, err = pkt.PayloadUint64At(0); err != nil {
		return r, err
	}
	if r.TestID, err = pkt.PayloadUint64At(8); err != nil {
		return r, err
	}
	if r.RemoteTimestamp, err = pkt.PayloadUint64At(16); err != nil {
		return r, err
	}
	if r.Vendor, err = pkt.PayloadByteAt(24); err != nil {
		return r, err
	}
	if r.ProtoVersion, err = pkt.PayloadByteAt(25); err != nil {
		return r, err
	}
	if r.Major, err = pkt.PayloadByteAt(26); err != nil {
		return r, err
	}
	if r.Minor, err = pkt.PayloadByteAt(27); err != nil {
		return r, err
	}
	if r.Revision, err = pkt.PayloadUint16At(28); err != nil {
		return r, err
	}
	if r.Platform, err = pkt.PayloadUint16At(30); err != nil {
		return r, err
	}
	if r.Architecture, err = pkt.PayloadUint16At(32); err != nil {
		return r, err
	}
	if r.ErrorCode, err = pkt.PayloadUint16At(34); err != nil {
		return r, err
	}
	if r.Flags, err = pkt.PayloadUint64At(36); err != nil {
		return r, err
	}
	if r.SourcePacketID, err = pkt.PayloadUint64At(44); err != nil {
		return r, err
	}
	if r.UpstreamAddr, err = pkt.PayloadAddressAt(52); err != nil {
		return r, err
	}
	if r.SourceHopCount, err = pkt.PayloadByteAt(57); err != nil {
		return r, err
	}

	off := 58
	localEp, consumed, err := decodeEndpointAt(pkt, off)
	if err != nil {
		return r, err
	}
	r.LocalEndpoint = localEp
	off += consumed

	remoteEp, consumed, err := decodeEndpointAt(pkt, off)
	if err != nil {
		return r, err
	}
	r.RemoteEndpoint = remoteEp
	off += consumed

	additionalLen, err := pkt.PayloadUint16At(off)
	if err != nil {
		return r, err
	}
	off += 2
	if additionalLen > 0 {
		additional, err := pkt.PayloadSlice(off, int(additionalLen))
		if err != nil {
			return r, err
		}
		r.Additional = append([]byte(nil), additional...)
		off += int(additionalLen)
	}

	nextHopCount, err := pkt.PayloadByteAt(off)
	if err != nil {
		return r, err
	}
	off += 1

	for i := byte(0); i < nextHopCount; i++ {
		addr, err := pkt.PayloadAddressAt(off)
		if err != nil {
			return r, err
		}
		off += identity.AddressLength
		ep, consumed, err := decodeEndpointAt(pkt, off)
		if err != nil {
			return r, err
		}
		off += consumed
		r.NextHops = append(r.NextHops, ports.CircuitTestHop{Addr: addr, Endpoint: ep})
	}

	return r, nil
}

// handleCircuitTestReport implements §4.H: decode and forward upward.
func (d *Dispatcher) handleCircuitTestReport(pkt *wire.Packet, peer ports.Peer, now uint64) {
	report, err := decodeCircuitTestReport(pkt)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbCircuitTestReport, wire.VerbNop)
	d.Node.PostCircuitTestReport(report)
}
