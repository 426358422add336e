package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

func TestAnalyze_FindsTopLevelJumpdest(t *testing.T) {
	code := []byte{byte(JUMPDEST), byte(STOP)}
	dests := analyze(code)
	require.True(t, dests.has(0))
	require.False(t, dests.has(1))
}

func TestAnalyze_SkipsJumpdestBytesInsidePushData(t *testing.T) {
	// PUSH1 0x5b is a push of the JUMPDEST byte, not a real jump destination.
	code := []byte{byte(PUSH1), byte(JUMPDEST), byte(JUMPDEST)}
	dests := analyze(code)
	require.False(t, dests.has(1), "push operand byte must not be treated as JUMPDEST")
	require.True(t, dests.has(2), "byte after the push operand is a real JUMPDEST")
}

func TestAnalyze_SkipsMultiBytePushData(t *testing.T) {
	// PUSH2 followed by two bytes that happen to include 0x5b, then a real JUMPDEST.
	code := []byte{byte(PUSH2), byte(JUMPDEST), 0x00, byte(JUMPDEST)}
	dests := analyze(code)
	require.False(t, dests.has(1))
	require.False(t, dests.has(2))
	require.True(t, dests.has(3))
}

func TestAnalyzeCached_MemoizesByCodeHash(t *testing.T) {
	code := []byte{byte(JUMPDEST)}
	var hash types.Hash256
	copy(hash[:], cryptoutil.Keccak256Bytes(code))

	d1 := analyzeCached(hash, code)
	d2 := analyzeCached(hash, nil) // different code, same hash: must still hit the cache
	require.True(t, d2.has(0), "second call must return the cached result for this hash, ignoring the new code argument")
	_ = d1
}

func TestAnalyzeCached_DifferentHashesAnalyzeIndependently(t *testing.T) {
	codeA := []byte{byte(JUMPDEST)}
	codeB := []byte{byte(STOP)}
	var hashA, hashB types.Hash256
	copy(hashA[:], cryptoutil.Keccak256Bytes(codeA, []byte("a")))
	copy(hashB[:], cryptoutil.Keccak256Bytes(codeB, []byte("b")))

	dA := analyzeCached(hashA, codeA)
	dB := analyzeCached(hashB, codeB)
	require.True(t, dA.has(0))
	require.False(t, dB.has(0))
}
