// Package tbft implements a Tendermint-style Byzantine fault-tolerant
// consensus engine: a weighted validator set, the three consensus message
// types, and the round/step state machine that drives them.
package tbft

import (
	"fmt"

	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

// Validator is a single member of the consensus quorum. Immutable within a
// height: the set it belongs to is not allowed to mutate mid-height.
type Validator struct {
	Address     types.Address
	PublicKey   []byte // uncompressed body, X‖Y
	VotingPower uint64
}

// ValidatorSet is an ordered, weighted quorum of validators. Proposer
// rotation depends on insertion order, so the order is part of the set's
// identity and is never reshuffled.
type ValidatorSet struct {
	validators []Validator
	indexOf    map[types.Address]int
	totalPower uint64
}

// NewValidatorSet validates and constructs a ValidatorSet. It rejects an
// empty set, duplicate addresses, zero voting power, and any validator
// whose address does not match address_of(public_key).
func NewValidatorSet(validators []Validator) (*ValidatorSet, error) {
	if len(validators) == 0 {
		return nil, fmt.Errorf("tbft: validator set must not be empty")
	}
	vs := &ValidatorSet{
		validators: make([]Validator, len(validators)),
		indexOf:    make(map[types.Address]int, len(validators)),
	}
	for i, v := range validators {
		if v.VotingPower == 0 {
			return nil, fmt.Errorf("tbft: validator %s has zero voting power", v.Address)
		}
		if _, dup := vs.indexOf[v.Address]; dup {
			return nil, fmt.Errorf("tbft: duplicate validator address %s", v.Address)
		}
		if derived := cryptoutil.AddressFromPublicKey(v.PublicKey); derived != v.Address {
			return nil, fmt.Errorf("tbft: validator %s does not match its claimed public key (derives to %s)", v.Address, derived)
		}
		vs.validators[i] = v
		vs.indexOf[v.Address] = i
		vs.totalPower += v.VotingPower
	}
	return vs, nil
}

// Len returns the number of validators in the set.
func (vs *ValidatorSet) Len() int { return len(vs.validators) }

// TotalPower returns the sum of all validators' voting power.
func (vs *ValidatorSet) TotalPower() uint64 { return vs.totalPower }

// QuorumPower returns ceil(2*totalPower/3), the strict 2/3+ threshold.
func (vs *ValidatorSet) QuorumPower() uint64 {
	return ceilDiv(2*vs.totalPower, 3)
}

// HasQuorum reports whether p reaches the quorum threshold.
func (vs *ValidatorSet) HasQuorum(p uint64) bool {
	return p >= vs.QuorumPower()
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// Proposer returns the validator expected to propose at (height, round),
// chosen by strict modular rotation over insertion order.
func (vs *ValidatorSet) Proposer(height uint64, round uint32) Validator {
	n := uint64(len(vs.validators))
	idx := (height + uint64(round)) % n
	return vs.validators[idx]
}

// Contains reports whether addr is a member, returning its Validator.
func (vs *ValidatorSet) Contains(addr types.Address) (Validator, bool) {
	idx, ok := vs.indexOf[addr]
	if !ok {
		return Validator{}, false
	}
	return vs.validators[idx], true
}

// Validators returns a copy of the ordered validator list.
func (vs *ValidatorSet) Validators() []Validator {
	out := make([]Validator, len(vs.validators))
	copy(out, vs.validators)
	return out
}
