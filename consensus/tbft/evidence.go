package tbft

import "github.com/permabft/chain/core/types"

// EvidenceKind distinguishes the forms of detectable misbehavior.
type EvidenceKind int

const (
	EvidenceDuplicateVote EvidenceKind = iota
	EvidenceConflictingProposal
)

// Evidence records a detected Byzantine act (spec §7 "Byzantine
// evidence"). It is purely observational: recording it never blocks or
// alters the step in progress.
type Evidence struct {
	Kind      EvidenceKind
	Height    uint64
	Round     uint32
	Validator types.Address
	FirstSig  []byte
	SecondSig []byte
}

// evidenceLog accumulates Evidence for the lifetime of a ConsensusState.
// Append-only, never consulted by the state machine itself.
type evidenceLog struct {
	entries []Evidence
}

func (l *evidenceLog) add(e Evidence) {
	l.entries = append(l.entries, e)
}

// Evidence returns a copy of every entry recorded so far.
func (cs *ConsensusState) Evidence() []Evidence {
	out := make([]Evidence, len(cs.evidence.entries))
	copy(out, cs.evidence.entries)
	return out
}
