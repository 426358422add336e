package tbft

import (
	"encoding/binary"
	"fmt"

	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

const (
	tagProposal  byte = 0x00
	tagPreVote   byte = 0x01
	tagPreCommit byte = 0x02
)

func beHeight(h uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, h)
	return b
}

func beRound(r uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, r)
	return b
}

// Proposal is the message a height's proposer broadcasts at the start of
// the Propose step.
type Proposal struct {
	Height    uint64
	Round     uint32
	Block     *types.Block
	Proposer  types.Address
	Signature cryptoutil.Signature
}

// ProposalDigest returns the digest a Proposal's signature covers:
// keccak256(0x00 ‖ height_be8 ‖ round_be4 ‖ block_hash ‖ proposer).
func ProposalDigest(height uint64, round uint32, blockHash types.Hash256, proposer types.Address) types.Hash256 {
	return cryptoutil.Keccak256([]byte{tagProposal}, beHeight(height), beRound(round), blockHash[:], proposer[:])
}

// Sign signs p with key, which must belong to the claimed proposer.
func (p *Proposal) Sign(key *cryptoutil.PrivateKey) error {
	digest := ProposalDigest(p.Height, p.Round, p.Block.Hash(), p.Proposer)
	sig, err := key.Sign(digest)
	if err != nil {
		return err
	}
	p.Signature = sig
	return nil
}

// Verify checks p's signature against its claimed proposer.
func (p *Proposal) Verify() error {
	digest := ProposalDigest(p.Height, p.Round, p.Block.Hash(), p.Proposer)
	if !cryptoutil.Verify(p.Signature, digest, p.Proposer) {
		return fmt.Errorf("tbft: proposal signature invalid for proposer %s", p.Proposer)
	}
	return nil
}

// VoteType distinguishes PreVote from PreCommit for digest tagging and
// duplicate-vote bookkeeping.
type VoteType byte

const (
	VoteTypePreVote   VoteType = tagPreVote
	VoteTypePreCommit VoteType = tagPreCommit
)

func (t VoteType) String() string {
	switch t {
	case VoteTypePreVote:
		return "prevote"
	case VoteTypePreCommit:
		return "precommit"
	default:
		return "unknown"
	}
}

// Vote is a PreVote or PreCommit message. BlockHash == nil denotes a nil
// vote (no block, or timeout).
type Vote struct {
	Type      VoteType
	Height    uint64
	Round     uint32
	BlockHash *types.Hash256
	Validator types.Address
	Signature cryptoutil.Signature
}

// VoteDigest returns the digest a Vote's signature covers:
// keccak256(tag ‖ height_be8 ‖ round_be4 ‖ (0x00 | 0x01‖block_hash) ‖ validator).
func VoteDigest(t VoteType, height uint64, round uint32, blockHash *types.Hash256, validator types.Address) types.Hash256 {
	var body []byte
	if blockHash == nil {
		body = []byte{0x00}
	} else {
		body = append([]byte{0x01}, blockHash[:]...)
	}
	return cryptoutil.Keccak256([]byte{byte(t)}, beHeight(height), beRound(round), body, validator[:])
}

// Sign signs v with key, which must belong to v.Validator.
func (v *Vote) Sign(key *cryptoutil.PrivateKey) error {
	digest := VoteDigest(v.Type, v.Height, v.Round, v.BlockHash, v.Validator)
	sig, err := key.Sign(digest)
	if err != nil {
		return err
	}
	v.Signature = sig
	return nil
}

// Verify checks v's signature against its claimed validator.
func (v *Vote) Verify() error {
	digest := VoteDigest(v.Type, v.Height, v.Round, v.BlockHash, v.Validator)
	if !cryptoutil.Verify(v.Signature, digest, v.Validator) {
		return fmt.Errorf("tbft: %s signature invalid for validator %s", v.Type, v.Validator)
	}
	return nil
}

// IsNil reports whether v is a nil vote.
func (v *Vote) IsNil() bool { return v.BlockHash == nil }
