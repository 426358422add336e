package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/permabft/chain/consensus/tbft"
)

func TestHub_BroadcastDeliversToOtherPeersNotSelf(t *testing.T) {
	hub := NewHub()
	a := hub.NewPeer()
	b := hub.NewPeer()
	c := hub.NewPeer()

	env := Envelope{PreVote: &tbft.Vote{Height: 1}}
	require.NoError(t, a.Broadcast(env))

	select {
	case got := <-b.Receive():
		require.Equal(t, env, got)
	case <-time.After(time.Second):
		t.Fatal("peer b did not receive the broadcast")
	}
	select {
	case got := <-c.Receive():
		require.Equal(t, env, got)
	case <-time.After(time.Second):
		t.Fatal("peer c did not receive the broadcast")
	}
	select {
	case <-a.Receive():
		t.Fatal("the broadcasting peer must not receive its own message")
	default:
	}
}

func TestHub_BroadcastDropsWhenReceiverBufferIsFull(t *testing.T) {
	hub := NewHub()
	a := hub.NewPeer()
	b := hub.NewPeer()

	for i := 0; i < 256; i++ {
		require.NoError(t, a.Broadcast(Envelope{PreVote: &tbft.Vote{Height: uint64(i)}}))
	}
	// The 257th send must not block or error even though b's buffer is full.
	require.NoError(t, a.Broadcast(Envelope{PreVote: &tbft.Vote{Height: 999}}))
	require.Len(t, b.Receive(), 256)
}

func TestEnvelopeFromVote_TagsByVoteType(t *testing.T) {
	preVote := &tbft.Vote{Type: tbft.VoteTypePreVote}
	env := EnvelopeFromVote(preVote)
	require.Same(t, preVote, env.PreVote)
	require.Nil(t, env.PreCommit)

	preCommit := &tbft.Vote{Type: tbft.VoteTypePreCommit}
	env = EnvelopeFromVote(preCommit)
	require.Same(t, preCommit, env.PreCommit)
	require.Nil(t, env.PreVote)
}
