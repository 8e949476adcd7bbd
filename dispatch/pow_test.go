package dispatch

import (
	"testing"

	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/ambereth/vl1/xcrypto"
	"github.com/stretchr/testify/require"
)

func TestHandleRequestProofOfWorkRejectsNonRoot(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbRequestProofOfWork)
	pkt.AppendByte(1) // type
	pkt.AppendByte(4) // difficulty
	pkt.AppendUint16(0)

	d.handleRequestProofOfWork(pkt, peer, 0)
	env.GetActions().AssertNotContains(t, "PUT_PACKET")
}

func TestHandleRequestProofOfWorkRejectsExcessiveDifficulty(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	env.roots[peer.Address()] = true

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbRequestProofOfWork)
	pkt.AppendByte(1)
	pkt.AppendByte(maxRequestablePowDifficulty + 1)
	pkt.AppendUint16(0)

	d.handleRequestProofOfWork(pkt, peer, 0)
	env.GetActions().AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbError)
}

func TestHandleRequestProofOfWorkSolvesAndReplies(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	env.roots[peer.Address()] = true

	challenge := []byte("challenge-bytes")
	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbRequestProofOfWork)
	pkt.AppendByte(1)
	pkt.AppendByte(4) // low difficulty so the test stays fast
	pkt.AppendUint16(uint16(len(challenge)))
	pkt.AppendBytes(challenge)

	d.handleRequestProofOfWork(pkt, peer, 0)
	env.GetActions().AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbOK)
}

func TestMaxRequestablePowDifficultyUnderHardCap(t *testing.T) {
	require.LessOrEqual(t, maxRequestablePowDifficulty, xcrypto.MaxPowDifficulty)
}
