package node

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/permabft/chain/config"
	"github.com/permabft/chain/consensus/tbft"
	"github.com/permabft/chain/core/scheduler"
	"github.com/permabft/chain/core/txpool"
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
	"github.com/permabft/chain/network"
	"github.com/permabft/chain/storage"
)

type testValidator struct {
	key *cryptoutil.PrivateKey
	val tbft.Validator
}

// threeValidators builds a 3-member equal-power validator set with real
// generated keys, so tbft.NewValidatorSet's address/public-key cross-check
// accepts every entry.
func threeValidators(t *testing.T) []testValidator {
	t.Helper()
	out := make([]testValidator, 3)
	for i := range out {
		key, err := cryptoutil.GeneratePrivateKey()
		require.NoError(t, err)
		out[i] = testValidator{
			key: key,
			val: tbft.Validator{Address: key.Address(), PublicKey: key.PublicKey(), VotingPower: 1},
		}
	}
	return out
}

func testEnvironment(validators []tbft.Validator) config.Environment {
	return config.Environment{
		ChainID:       7,
		Validators:    validators,
		BlockTime:     3 * time.Second,
		BlockGasLimit: 30_000_000,
		MinGasPrice:   big.NewInt(0),
	}
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func fundAccount(t *testing.T, s *storage.Store, addr types.Address, balance *big.Int) {
	t.Helper()
	b := s.NewBatch()
	require.NoError(t, b.PutAccount(addr, types.Account{Balance: balance, CodeHash: types.EmptyCodeHash}))
	require.NoError(t, b.Commit())
}

func signedTransfer(t *testing.T, key *cryptoutil.PrivateKey, nonce uint64, to types.Address, value *big.Int) *types.SignedTransaction {
	t.Helper()
	tx := &types.SignedTransaction{
		Type:     types.LegacyTxType,
		ChainID:  7,
		Nonce:    nonce,
		GasPrice: big.NewInt(1),
		GasLimit: 21000,
		To:       &to,
		Value:    value,
	}
	require.NoError(t, tx.SignWith(key))
	return tx
}

func newTestNode(t *testing.T, validators []testValidator, selfIdx int, store *storage.Store, transport network.Transport) *Node {
	t.Helper()
	vals := make([]tbft.Validator, len(validators))
	for i, v := range validators {
		vals[i] = v.val
	}
	env := testEnvironment(vals)
	pool := txpool.New(func(addr types.Address) uint64 {
		acc, err := store.Account(addr)
		require.NoError(t, err)
		return acc.Nonce
	})
	sched := scheduler.New(0, 0)
	n, err := New(env, validators[selfIdx].key, store, pool, sched, transport, zap.NewNop())
	require.NoError(t, err)
	return n
}

func TestNew_RejectsKeyNotInValidatorSet(t *testing.T) {
	validators := threeValidators(t)
	outsider, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	vals := make([]tbft.Validator, len(validators))
	for i, v := range validators {
		vals[i] = v.val
	}
	env := testEnvironment(vals)
	store := openStore(t)
	pool := txpool.New(func(types.Address) uint64 { return 0 })
	sched := scheduler.New(0, 0)
	hub := network.NewHub()

	_, err = New(env, outsider, store, pool, sched, hub.NewPeer(), zap.NewNop())
	require.Error(t, err)
}

func TestNew_Success(t *testing.T) {
	validators := threeValidators(t)
	store := openStore(t)
	hub := network.NewHub()
	n := newTestNode(t, validators, 0, store, hub.NewPeer())
	require.Equal(t, validators[0].val.Address, n.self)
}

// TestNode_ProposeAndFinalize_ThreeValidators drives node 0 (proposer at
// height 3, round 0) through building and proposing a block, then delivers
// prevote and precommit votes from the other two validators directly
// (bypassing Run's event loop, which would recurse into the next height's
// CreateBlock as soon as this height finalizes). It checks the full path
// from a pooled transaction to a persisted, tip-advancing block.
func TestNode_ProposeAndFinalize_ThreeValidators(t *testing.T) {
	validators := threeValidators(t)
	store := openStore(t)

	sender, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	fundAccount(t, store, sender.Address(), big.NewInt(1_000_000))

	hub := network.NewHub()
	selfPeer := hub.NewPeer()
	observer := hub.NewPeer() // only used to capture node 0's broadcasts

	n := newTestNode(t, validators, 0, store, selfPeer)

	tx := signedTransfer(t, sender, 0, types.Address{0x42}, big.NewInt(1000))
	require.NoError(t, n.pool.Add(tx))

	// Proposer at (height=3, round=0) is validators[0] == self: 3 % 3 == 0.
	require.NoError(t, n.handleOutputs(n.cs.StartHeight(3)))

	proposalEnv := <-observer.Receive()
	require.NotNil(t, proposalEnv.Proposal)
	block := proposalEnv.Proposal.Block
	require.Len(t, block.Transactions(), 1)
	hash := block.Hash()

	selfPrevoteEnv := <-observer.Receive()
	require.NotNil(t, selfPrevoteEnv.PreVote)

	// node 1's prevote joins self's to reach a 2-of-3 prevote quorum,
	// locking self onto the block and advancing it to precommit.
	v1 := &tbft.Vote{Type: tbft.VoteTypePreVote, Height: 3, Round: 0, BlockHash: &hash, Validator: validators[1].val.Address}
	require.NoError(t, v1.Sign(validators[1].key))
	require.NoError(t, n.handleEnvelope(network.Envelope{PreVote: v1}))

	selfPrecommitEnv := <-observer.Receive()
	require.NotNil(t, selfPrecommitEnv.PreCommit)
	require.NotNil(t, selfPrecommitEnv.PreCommit.BlockHash)

	// node 1's precommit joins self's to reach a 2-of-3 precommit quorum,
	// finalizing the block.
	v1c := &tbft.Vote{Type: tbft.VoteTypePreCommit, Height: 3, Round: 0, BlockHash: &hash, Validator: validators[1].val.Address}
	require.NoError(t, v1c.Sign(validators[1].key))
	require.NoError(t, n.handleEnvelope(network.Envelope{PreCommit: v1c}))

	tip, ok := store.Tip()
	require.True(t, ok)
	require.Equal(t, uint64(3), tip.Number)
	require.Equal(t, hash, tip.Hash)

	gotAcc, err := store.Account(sender.Address())
	require.NoError(t, err)
	require.Equal(t, uint64(1), gotAcc.Nonce)
	require.Equal(t, 0, big.NewInt(1_000_000-21000-1000).Cmp(gotAcc.Balance))

	recipient, err := store.Account(types.Address{0x42})
	require.NoError(t, err)
	require.Equal(t, 0, big.NewInt(1000).Cmp(recipient.Balance))

	require.Equal(t, 0, n.pool.Len(), "included transaction must be evicted after commit")

	// Proposer at height 4 is validators[1], not self, so the recursive
	// StartHeight(4) call inside finalizeBlock produced no further output.
	require.Equal(t, uint32(0), n.cs.Round())
	require.Equal(t, uint64(4), n.cs.Height())
}

func TestNode_HandleEnvelope_RejectsVoteFromNonValidator(t *testing.T) {
	validators := threeValidators(t)
	store := openStore(t)
	hub := network.NewHub()
	n := newTestNode(t, validators, 1, store, hub.NewPeer())
	n.cs.StartHeight(3) // self (index 1) is not proposer at (3,0)

	intruder, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	hash := types.BytesToHash([]byte("x"))
	v := &tbft.Vote{Type: tbft.VoteTypePreVote, Height: 3, Round: 0, BlockHash: &hash, Validator: intruder.Address()}
	require.NoError(t, v.Sign(intruder))

	err = n.handleEnvelope(network.Envelope{PreVote: v})
	require.Error(t, err)
}
