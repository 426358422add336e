package tbft

import (
	"fmt"

	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

// Step is one of the four phases a round passes through.
type Step int

const (
	StepPropose Step = iota
	StepPrevote
	StepPrecommit
	StepCommit
)

func (s Step) String() string {
	switch s {
	case StepPropose:
		return "propose"
	case StepPrevote:
		return "prevote"
	case StepPrecommit:
		return "precommit"
	case StepCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Output is the sum type every ConsensusState handler returns instead of
// calling back into the orchestrator directly (spec §4.2, §9 "coroutine
// free concurrency"). Exactly one field set per value.
type Output struct {
	CreateBlock *CreateBlockOutput
	Broadcast   *BroadcastOutput
	Finalized   *FinalizedOutput
}

// CreateBlockOutput asks the orchestrator to build a block for Height at
// Round because this validator is its proposer, then call ProposeBlock.
type CreateBlockOutput struct {
	Height uint64
	Round  uint32
}

// BroadcastOutput asks the orchestrator to send Proposal or Vote (exactly
// one is non-nil) to the rest of the validator set.
type BroadcastOutput struct {
	Proposal *Proposal
	Vote     *Vote
}

// FinalizedOutput reports that Block reached a precommit quorum at the
// current height and should be committed.
type FinalizedOutput struct {
	Block   *types.Block
	Commits []Vote
}

func createBlock(o CreateBlockOutput) Output { return Output{CreateBlock: &o} }
func broadcastProposal(p *Proposal) Output   { return Output{Broadcast: &BroadcastOutput{Proposal: p}} }
func broadcastVote(v *Vote) Output           { return Output{Broadcast: &BroadcastOutput{Vote: v}} }
func finalized(o FinalizedOutput) Output     { return Output{Finalized: &o} }

type voteKey struct {
	isNil bool
	hash  types.Hash256
}

func keyOf(v *Vote) voteKey {
	if v.BlockHash == nil {
		return voteKey{isNil: true}
	}
	return voteKey{hash: *v.BlockHash}
}

type roundVotes struct {
	prevotes   map[types.Address]Vote
	precommits map[types.Address]Vote
}

func newRoundVotes() *roundVotes {
	return &roundVotes{prevotes: map[types.Address]Vote{}, precommits: map[types.Address]Vote{}}
}

// ConsensusState drives one validator's view of the round/step state
// machine for a single height at a time (spec §4.2). It holds no network
// connection and no storage handle: every side effect is returned as an
// Output for the orchestrator to carry out.
type ConsensusState struct {
	validators *ValidatorSet
	self       types.Address
	key        *cryptoutil.PrivateKey

	height uint64
	round  uint32
	step   Step

	// lockedBlock/lockedRound implement the "no-unlock" lock variant
	// (spec §9 Open Question (a)): once this validator locks on a block
	// it never relocks on a different one within the same height, even
	// on observing a later-round polka for that other block. It only
	// unlocks when StartHeight resets state for the next height.
	lockedBlock *types.Block
	lockedRound int32

	validBlock *types.Block
	validRound int32

	proposals map[uint32]*Proposal
	votes     map[uint32]*roundVotes

	decided bool

	evidence evidenceLog
}

// NewConsensusState constructs a ConsensusState for self, signing with
// key, evaluated against validators.
func NewConsensusState(validators *ValidatorSet, self types.Address, key *cryptoutil.PrivateKey) *ConsensusState {
	return &ConsensusState{
		validators:  validators,
		self:        self,
		key:         key,
		lockedRound: -1,
		validRound:  -1,
	}
}

// Height, Round and Step report the state machine's current position.
func (cs *ConsensusState) Height() uint64 { return cs.height }
func (cs *ConsensusState) Round() uint32  { return cs.round }
func (cs *ConsensusState) Step() Step     { return cs.step }

// StartHeight resets all per-height state and enters round 0.
func (cs *ConsensusState) StartHeight(height uint64) []Output {
	cs.height = height
	cs.lockedBlock = nil
	cs.lockedRound = -1
	cs.validBlock = nil
	cs.validRound = -1
	cs.decided = false
	cs.proposals = map[uint32]*Proposal{}
	cs.votes = map[uint32]*roundVotes{}
	return cs.enterRound(0)
}

func (cs *ConsensusState) enterRound(round uint32) []Output {
	cs.round = round
	cs.step = StepPropose
	if _, ok := cs.votes[round]; !ok {
		cs.votes[round] = newRoundVotes()
	}
	proposer := cs.validators.Proposer(cs.height, round)
	if proposer.Address == cs.self {
		return []Output{createBlock(CreateBlockOutput{Height: cs.height, Round: round})}
	}
	return nil
}

// ProposeBlock is called by the orchestrator after it builds block in
// response to a CreateBlockOutput, signing and broadcasting it as this
// validator's proposal for the current round.
func (cs *ConsensusState) ProposeBlock(block *types.Block) ([]Output, error) {
	if cs.step != StepPropose {
		return nil, fmt.Errorf("tbft: ProposeBlock called outside propose step (have %s)", cs.step)
	}
	p := &Proposal{Height: cs.height, Round: cs.round, Block: block, Proposer: cs.self}
	if err := p.Sign(cs.key); err != nil {
		return nil, err
	}
	cs.proposals[cs.round] = p
	outs := []Output{broadcastProposal(p)}
	more, err := cs.castPrevote(p)
	if err != nil {
		return nil, err
	}
	return append(outs, more...), nil
}

// OnProposal processes a Proposal received from the network.
func (cs *ConsensusState) OnProposal(p *Proposal) ([]Output, error) {
	if p.Height != cs.height || p.Round != cs.round {
		return nil, nil
	}
	if existing, ok := cs.proposals[p.Round]; ok {
		if existing.Block.Hash() != p.Block.Hash() {
			cs.evidence.add(Evidence{
				Kind: EvidenceConflictingProposal, Height: p.Height, Round: p.Round,
				Validator: p.Proposer,
				FirstSig:  sigBytes(existing.Signature), SecondSig: sigBytes(p.Signature),
			})
		}
		return nil, nil
	}
	if err := cs.validateProposal(p); err != nil {
		return nil, nil // invalid proposal: treated as if none arrived, no error surfaced
	}
	cs.proposals[p.Round] = p
	return cs.castPrevote(p)
}

func (cs *ConsensusState) validateProposal(p *Proposal) error {
	proposer := cs.validators.Proposer(p.Height, p.Round)
	if proposer.Address != p.Proposer {
		return fmt.Errorf("tbft: proposal at height %d round %d from %s, expected proposer %s", p.Height, p.Round, p.Proposer, proposer.Address)
	}
	return p.Verify()
}

// castPrevote applies the no-unlock lock rule and casts this validator's
// prevote for the received/self-authored proposal.
func (cs *ConsensusState) castPrevote(p *Proposal) ([]Output, error) {
	if cs.step != StepPropose {
		return nil, nil
	}
	var hash *types.Hash256
	if err := cs.validateProposal(p); err == nil {
		h := p.Block.Hash()
		if cs.lockedBlock == nil || cs.lockedBlock.Hash() == h {
			hash = &h
		}
	}
	v := &Vote{Type: VoteTypePreVote, Height: cs.height, Round: cs.round, BlockHash: hash, Validator: cs.self}
	if err := v.Sign(cs.key); err != nil {
		return nil, err
	}
	cs.step = StepPrevote
	more, err := cs.recordVote(v)
	if err != nil {
		return nil, err
	}
	return append([]Output{broadcastVote(v)}, more...), nil
}

// OnVote processes a Vote received from the network.
func (cs *ConsensusState) OnVote(v *Vote) ([]Output, error) {
	if v.Height != cs.height {
		return nil, nil
	}
	if _, ok := cs.validators.Contains(v.Validator); !ok {
		return nil, fmt.Errorf("tbft: vote from non-validator %s", v.Validator)
	}
	if err := v.Verify(); err != nil {
		return nil, err
	}
	return cs.recordVote(v)
}

func (cs *ConsensusState) recordVote(v *Vote) ([]Output, error) {
	rv, ok := cs.votes[v.Round]
	if !ok {
		rv = newRoundVotes()
		cs.votes[v.Round] = rv
	}
	store := rv.prevotes
	if v.Type == VoteTypePreCommit {
		store = rv.precommits
	}
	if existing, dup := store[v.Validator]; dup {
		if keyOf(&existing) != keyOf(v) {
			cs.evidence.add(Evidence{
				Kind: EvidenceDuplicateVote, Height: v.Height, Round: v.Round,
				Validator: v.Validator,
				FirstSig:  sigBytes(existing.Signature), SecondSig: sigBytes(v.Signature),
			})
		}
		return nil, nil
	}
	store[v.Validator] = *v

	if v.Round != cs.round {
		return nil, nil
	}
	if v.Type == VoteTypePreVote {
		return cs.maybeAdvanceFromPrevotes()
	}
	return cs.maybeAdvanceFromPrecommits()
}

func (cs *ConsensusState) tally(votes map[types.Address]Vote) (voteKey, uint64, bool) {
	power := map[voteKey]uint64{}
	for addr, v := range votes {
		val, ok := cs.validators.Contains(addr)
		if !ok {
			continue
		}
		k := keyOf(&v)
		power[k] += val.VotingPower
	}
	for k, p := range power {
		if cs.validators.HasQuorum(p) {
			return k, p, true
		}
	}
	return voteKey{}, 0, false
}

func (cs *ConsensusState) blockForHash(h types.Hash256) (*types.Block, bool) {
	for _, p := range cs.proposals {
		if p.Block.Hash() == h {
			return p.Block, true
		}
	}
	return nil, false
}

func (cs *ConsensusState) maybeAdvanceFromPrevotes() ([]Output, error) {
	if cs.step != StepPrevote {
		return nil, nil
	}
	rv := cs.votes[cs.round]
	key, _, ok := cs.tally(rv.prevotes)
	if !ok {
		return nil, nil
	}
	var hash *types.Hash256
	if !key.isNil {
		h := key.hash
		if block, found := cs.blockForHash(h); found {
			cs.validBlock = block
			cs.validRound = int32(cs.round)
			if cs.lockedBlock == nil || cs.lockedBlock.Hash() == h {
				cs.lockedBlock = block
				cs.lockedRound = int32(cs.round)
				hash = &h
			}
			// else: no-unlock — a polka for a block this validator isn't
			// locked on does not override the lock; precommit nil.
		}
		// a polka for a block whose proposal was never received also
		// precommits nil.
	}
	v := &Vote{Type: VoteTypePreCommit, Height: cs.height, Round: cs.round, BlockHash: hash, Validator: cs.self}
	if err := v.Sign(cs.key); err != nil {
		return nil, err
	}
	cs.step = StepPrecommit
	more, err := cs.recordVote(v)
	if err != nil {
		return nil, err
	}
	return append([]Output{broadcastVote(v)}, more...), nil
}

func (cs *ConsensusState) maybeAdvanceFromPrecommits() ([]Output, error) {
	if cs.step != StepPrecommit || cs.decided {
		return nil, nil
	}
	rv := cs.votes[cs.round]
	key, _, ok := cs.tally(rv.precommits)
	if !ok || key.isNil {
		return nil, nil
	}
	block, found := cs.blockForHash(key.hash)
	if !found {
		return nil, nil
	}
	cs.decided = true
	cs.step = StepCommit
	commits := make([]Vote, 0, len(rv.precommits))
	for _, v := range rv.precommits {
		commits = append(commits, v)
	}
	return []Output{finalized(FinalizedOutput{Block: block, Commits: commits})}, nil
}

// OnTimeout advances past a round whose step expired without reaching
// quorum. It is a no-op if the state machine has since moved on.
func (cs *ConsensusState) OnTimeout(height uint64, round uint32, step Step) ([]Output, error) {
	if height != cs.height || round != cs.round || step != cs.step || cs.decided {
		return nil, nil
	}
	switch step {
	case StepPropose:
		v := &Vote{Type: VoteTypePreVote, Height: cs.height, Round: cs.round, Validator: cs.self}
		if err := v.Sign(cs.key); err != nil {
			return nil, err
		}
		cs.step = StepPrevote
		more, err := cs.recordVote(v)
		if err != nil {
			return nil, err
		}
		return append([]Output{broadcastVote(v)}, more...), nil
	case StepPrevote:
		v := &Vote{Type: VoteTypePreCommit, Height: cs.height, Round: cs.round, Validator: cs.self}
		if err := v.Sign(cs.key); err != nil {
			return nil, err
		}
		cs.step = StepPrecommit
		more, err := cs.recordVote(v)
		if err != nil {
			return nil, err
		}
		return append([]Output{broadcastVote(v)}, more...), nil
	case StepPrecommit:
		return cs.enterRound(cs.round + 1), nil
	default:
		return nil, nil
	}
}

func sigBytes(sig cryptoutil.Signature) []byte {
	out := make([]byte, 0, 65)
	out = append(out, sig.R[:]...)
	out = append(out, sig.S[:]...)
	out = append(out, sig.V)
	return out
}
