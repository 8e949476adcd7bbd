package dispatch

import (
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/ambereth/vl1/xcrypto"
)

// maxRequestablePowDifficulty is the handler-side ceiling on §4.I's
// difficulty parameter, independent of xcrypto's own 512-bit hard cap.
const maxRequestablePowDifficulty = 14

// handleRequestProofOfWork implements §4.I's REQUEST_PROOF_OF_WORK handler:
// `[type:1][difficulty:1][challenge_len:2][challenge:challenge_len]`, roots
// only, difficulty <= 14.
func (d *Dispatcher) handleRequestProofOfWork(pkt *wire.Packet, peer ports.Peer, now uint64) {
	difficulty, err := pkt.PayloadByteAt(1)
	if err != nil {
		return
	}
	challengeLen, err := pkt.PayloadUint16At(2)
	if err != nil {
		return
	}
	challenge, err := pkt.PayloadSlice(4, int(challengeLen))
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbRequestProofOfWork, wire.VerbNop)

	pid := mustPacketID(pkt)

	if !d.Topology.IsRootAddress(peer.Address()) {
		return
	}
	if difficulty > maxRequestablePowDifficulty {
		d.replyError(peer, pid, wire.VerbRequestProofOfWork, wire.ErrorInvalidRequest, nil)
		return
	}

	result := xcrypto.ComputePow(int(difficulty), challenge)
	d.replyOK(peer, pid, wire.VerbRequestProofOfWork, result[:])
}
