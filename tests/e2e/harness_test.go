package e2e

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/stretchr/testify/require"

	"github.com/permabft/chain/consensus/tbft"
	"github.com/permabft/chain/cryptoutil"
)

// scenarioValidator pairs a generated signing key with the Validator entry
// derived from it, since tbft.NewValidatorSet now rejects any validator
// whose address does not match its claimed public key.
type scenarioValidator struct {
	key *cryptoutil.PrivateKey
	val tbft.Validator
}

func buildValidators(n int) []scenarioValidator {
	out := make([]scenarioValidator, n)
	for i := range out {
		key, err := cryptoutil.GeneratePrivateKey()
		require.NoError(ginkgo.GinkgoT(), err)
		out[i] = scenarioValidator{
			key: key,
			val: tbft.Validator{Address: key.Address(), PublicKey: key.PublicKey(), VotingPower: 1},
		}
	}
	return out
}

// buildCluster constructs one ConsensusState per validator, all sharing a
// single ValidatorSet: it has no mutating methods, so the same instance is
// safe to hand to every node exactly as a real deployment would share one
// validator set definition across processes.
func buildCluster(vals []scenarioValidator) []*tbft.ConsensusState {
	raw := make([]tbft.Validator, len(vals))
	for i, v := range vals {
		raw[i] = v.val
	}
	vs, err := tbft.NewValidatorSet(raw)
	require.NoError(ginkgo.GinkgoT(), err)

	states := make([]*tbft.ConsensusState, len(vals))
	for i, v := range vals {
		states[i] = tbft.NewConsensusState(vs, v.val.Address, v.key)
	}
	return states
}

// envelope is one broadcast message in flight during simulated gossip,
// tagged with the index of the node that produced it so delivery never
// echoes a message back to its own author.
type envelope struct {
	origin   int
	proposal *tbft.Proposal
	vote     *tbft.Vote
}

func fanOut(origin int, outs []tbft.Output) []envelope {
	var queue []envelope
	for _, o := range outs {
		if o.Broadcast == nil {
			continue
		}
		queue = append(queue, envelope{origin: origin, proposal: o.Broadcast.Proposal, vote: o.Broadcast.Vote})
	}
	return queue
}

// gossipUntilDrained delivers every envelope in queue to every node other
// than its origin, enqueuing whatever new broadcasts those deliveries
// produce, until no node has anything left to send — the fixed point of a
// fully connected, zero-latency network. Every FinalizedOutput observed
// along the way is appended to the returned slice, one per node that
// independently reaches precommit quorum.
func gossipUntilDrained(states []*tbft.ConsensusState, queue []envelope) []*tbft.FinalizedOutput {
	var finalized []*tbft.FinalizedOutput
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		for i, cs := range states {
			if i == msg.origin {
				continue
			}
			var outs []tbft.Output
			var err error
			if msg.proposal != nil {
				outs, err = cs.OnProposal(msg.proposal)
			} else {
				outs, err = cs.OnVote(msg.vote)
			}
			require.NoError(ginkgo.GinkgoT(), err)
			for _, o := range outs {
				if o.Finalized != nil {
					finalized = append(finalized, o.Finalized)
				}
			}
			queue = append(queue, fanOut(i, outs)...)
		}
	}
	return finalized
}
