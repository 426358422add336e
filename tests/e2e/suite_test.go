// Package e2e drives the consensus state machine across several
// independent ConsensusState instances at once, the way a real validator
// set would observe each other's messages over the network, without
// actually running node.Node or network.Transport: §8's end-to-end
// scenarios describe protocol-level behavior (proposal/vote exchange,
// round advancement, commit), not block execution, so a zero-latency
// in-memory gossip simulation is the direct, deterministic way to assert
// them without flaky goroutine timing.
package e2e

import (
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "permabft consensus end-to-end suite")
}
