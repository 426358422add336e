// Package network defines the narrow send/receive boundary the node
// orchestrator drives consensus through. Wire codec framing and peer
// discovery are out of scope (spec §1); this package only fixes the Go
// interface contract so C10/C3 compile and test against a real type
// rather than an untyped callback (spec §4.8 "C14 — Network contract").
package network

import "github.com/permabft/chain/consensus/tbft"

// Envelope wraps a single consensus wire message. Exactly one field is
// set, mirroring the tag byte spec §6 assigns to each message type.
type Envelope struct {
	Proposal  *tbft.Proposal
	PreVote   *tbft.Vote
	PreCommit *tbft.Vote
}

// Transport is the capability the orchestrator needs from the network
// layer: broadcast an outgoing message to the rest of the validator set,
// and observe incoming ones on a channel. No implementation is provided
// here (peer discovery and wire framing are external collaborators); see
// loopback.go for the one in-process implementation this module ships,
// used only to drive multi-node tests.
type Transport interface {
	Broadcast(Envelope) error
	Receive() <-chan Envelope
}

// EnvelopeFromVote wraps v into an Envelope tagged by its type.
func EnvelopeFromVote(v *tbft.Vote) Envelope {
	if v.Type == tbft.VoteTypePreCommit {
		return Envelope{PreCommit: v}
	}
	return Envelope{PreVote: v}
}
