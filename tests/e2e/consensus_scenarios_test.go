package e2e

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/permabft/chain/consensus/tbft"
	"github.com/permabft/chain/core/types"
)

var _ = Describe("four-validator happy path", func() {
	It("commits an identical block hash on every validator", func() {
		vals := buildValidators(4)
		states := buildCluster(vals)

		for i, cs := range states {
			outs := cs.StartHeight(0)
			if i == 0 {
				Expect(outs).To(HaveLen(1), "proposer at (0,0) is validator 0")
				Expect(outs[0].CreateBlock).NotTo(BeNil())
			} else {
				Expect(outs).To(BeEmpty())
			}
		}

		block := &types.Block{Header: &types.Header{Number: 0, Timestamp: 1000}}
		outs, err := states[0].ProposeBlock(block)
		Expect(err).NotTo(HaveOccurred())
		Expect(outs).To(HaveLen(2), "self's broadcast proposal plus self's prevote")

		finalized := gossipUntilDrained(states, fanOut(0, outs))

		Expect(finalized).To(HaveLen(4), "every validator independently reaches precommit quorum")
		for _, f := range finalized {
			Expect(f.Block.Hash()).To(Equal(block.Hash()))
			Expect(f.Block.Number()).To(Equal(uint64(0)))
			Expect(len(f.Commits)).To(BeNumerically(">=", 3), "at least quorum power's worth of commits recorded")
		}
	})
})

var _ = Describe("locked-block persistence across rounds", func() {
	It("keeps the round-0 lock through a timed-out round and commits the same block once round 1 reaches quorum", func() {
		vals := buildValidators(4)
		states := buildCluster(vals)
		v0, v1, v2 := states[0], states[1], states[2]
		// v3 is never driven: the spec's "V3 is silent" validator never
		// contributes a vote, yet V0-V2 alone (3 of 4, exactly quorum)
		// still commit.

		for i, cs := range []*tbft.ConsensusState{v0, v1, v2} {
			outs := cs.StartHeight(0)
			if i == 0 {
				Expect(outs).To(HaveLen(1))
			} else {
				Expect(outs).To(BeEmpty())
			}
		}

		blockB := &types.Block{Header: &types.Header{Number: 0, ExtraData: []byte("B")}}
		proposeOuts, err := v0.ProposeBlock(blockB)
		Expect(err).NotTo(HaveOccurred())
		proposal, prevote0 := proposeOuts[0].Broadcast.Proposal, proposeOuts[1].Broadcast.Vote

		outs1, err := v1.OnProposal(proposal)
		Expect(err).NotTo(HaveOccurred())
		prevote1 := outs1[0].Broadcast.Vote

		outs2, err := v2.OnProposal(proposal)
		Expect(err).NotTo(HaveOccurred())
		prevote2 := outs2[0].Broadcast.Vote

		// Cross-deliver round-0 prevotes among V0-V2 only: a 3-of-4 polka
		// for B forms and each locks onto it. Their resulting precommits
		// are never exchanged, simulating the round timing out before a
		// precommit quorum assembles (spec scenario 6).
		deliverVote(v1, prevote0)
		deliverVote(v2, prevote0)
		deliverVote(v0, prevote1)
		deliverVote(v2, prevote1)
		deliverVote(v0, prevote2)
		deliverVote(v1, prevote2)

		for i, cs := range []*tbft.ConsensusState{v0, v1, v2} {
			outs, err := cs.OnTimeout(0, 0, tbft.StepPrecommit)
			Expect(err).NotTo(HaveOccurred())
			if i == 1 {
				Expect(outs).To(HaveLen(1), "validator 1 is proposer at (0,1)")
				Expect(outs[0].CreateBlock).NotTo(BeNil())
			} else {
				Expect(outs).To(BeEmpty())
			}
		}

		// The new proposer re-proposes the very same block B.
		proposeOuts1, err := v1.ProposeBlock(blockB)
		Expect(err).NotTo(HaveOccurred())
		proposalR1, prevoteV1R1 := proposeOuts1[0].Broadcast.Proposal, proposeOuts1[1].Broadcast.Vote

		outsV0R1, err := v0.OnProposal(proposalR1)
		Expect(err).NotTo(HaveOccurred())
		prevoteV0R1 := outsV0R1[0].Broadcast.Vote
		Expect(prevoteV0R1.BlockHash).NotTo(BeNil(), "still locked on B, so V0 prevotes it again rather than nil")
		Expect(*prevoteV0R1.BlockHash).To(Equal(blockB.Hash()))

		outsV2R1, err := v2.OnProposal(proposalR1)
		Expect(err).NotTo(HaveOccurred())
		prevoteV2R1 := outsV2R1[0].Broadcast.Vote
		Expect(prevoteV2R1.BlockHash).NotTo(BeNil())
		Expect(*prevoteV2R1.BlockHash).To(Equal(blockB.Hash()))

		Expect(prevoteV1R1.BlockHash).NotTo(BeNil())
		Expect(*prevoteV1R1.BlockHash).To(Equal(blockB.Hash()))

		var round1Precommits []*tbft.Vote
		collectPrecommit := func(cs *tbft.ConsensusState, v *tbft.Vote) {
			outs, err := cs.OnVote(v)
			Expect(err).NotTo(HaveOccurred())
			for _, o := range outs {
				if o.Broadcast != nil && o.Broadcast.Vote != nil && o.Broadcast.Vote.Type == tbft.VoteTypePreCommit {
					round1Precommits = append(round1Precommits, o.Broadcast.Vote)
				}
			}
		}
		collectPrecommit(v1, prevoteV0R1)
		collectPrecommit(v2, prevoteV0R1)
		collectPrecommit(v0, prevoteV1R1)
		collectPrecommit(v2, prevoteV1R1)
		collectPrecommit(v0, prevoteV2R1)
		collectPrecommit(v1, prevoteV2R1)

		Expect(round1Precommits).To(HaveLen(3), "V0, V1 and V2 each precommit B once round 1's prevote quorum forms")

		nodes := []*tbft.ConsensusState{v0, v1, v2}
		addrs := []types.Address{vals[0].val.Address, vals[1].val.Address, vals[2].val.Address}

		var finalized []*tbft.FinalizedOutput
		for _, pc := range round1Precommits {
			for i, cs := range nodes {
				if addrs[i] == pc.Validator {
					continue
				}
				outs, err := cs.OnVote(pc)
				Expect(err).NotTo(HaveOccurred())
				for _, o := range outs {
					if o.Finalized != nil {
						finalized = append(finalized, o.Finalized)
					}
				}
			}
		}

		Expect(finalized).To(HaveLen(3), "V0, V1 and V2 each independently reach precommit quorum on B")
		for _, f := range finalized {
			Expect(f.Block.Hash()).To(Equal(blockB.Hash()))
			Expect(f.Block.Number()).To(Equal(uint64(0)))
		}
	})
})

func deliverVote(cs *tbft.ConsensusState, v *tbft.Vote) {
	_, err := cs.OnVote(v)
	Expect(err).NotTo(HaveOccurred())
}
