// Package node implements the orchestrator that drives a validator's
// consensus state machine, builds and executes blocks, and persists the
// result (spec §4.8): the one component that wires every other package
// together into a running process.
package node

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/permabft/chain/config"
	"github.com/permabft/chain/consensus/tbft"
	"github.com/permabft/chain/core/executor"
	"github.com/permabft/chain/core/scheduler"
	"github.com/permabft/chain/core/state"
	"github.com/permabft/chain/core/txpool"
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/core/vm"
	"github.com/permabft/chain/cryptoutil"
	"github.com/permabft/chain/metrics"
	"github.com/permabft/chain/network"
	"github.com/permabft/chain/storage"
)

// Default step timeouts (spec §4.8 "propose_timeout, prevote_timeout,
// precommit_timeout").
const (
	ProposeTimeout   = 3 * time.Second
	PrevoteTimeout   = 1 * time.Second
	PrecommitTimeout = 1 * time.Second
)

// maxBlockTxs bounds how many pool entries a single Drain call returns; the
// per-transaction gas limit and the block gas limit bound actual inclusion
// further once the scheduler's executor runs.
const maxBlockTxs = 5000

// metricsTickInterval is how often the gauges refresh in the absence of
// any consensus activity, so a stalled round still reports current height
// and round rather than going silent.
const metricsTickInterval = 2 * time.Second

type timeoutEvent struct {
	seq    uint64
	height uint64
	round  uint32
	step   tbft.Step
}

// Node ties storage, the transaction pool, the parallel scheduler, the
// consensus state machine and a transport together into one running
// validator process.
type Node struct {
	env   config.Environment
	self  types.Address
	key   *cryptoutil.PrivateKey

	store      *storage.Store
	pool       *txpool.Pool
	sched      *scheduler.Scheduler
	validators *tbft.ValidatorSet
	cs         *tbft.ConsensusState
	transport  network.Transport
	logger     *zap.Logger

	mu      sync.Mutex
	running bool

	timeoutMu         sync.Mutex
	currentTimeoutSeq uint64
	timeoutSeq        uint64
	timeouts          chan timeoutEvent
}

// New constructs a Node. key must belong to a validator in env.Validators.
func New(env config.Environment, key *cryptoutil.PrivateKey, store *storage.Store, pool *txpool.Pool, sched *scheduler.Scheduler, transport network.Transport, logger *zap.Logger) (*Node, error) {
	validators, err := tbft.NewValidatorSet(env.Validators)
	if err != nil {
		return nil, wrapErr(ErrConfig, err)
	}
	self := key.Address()
	if _, ok := validators.Contains(self); !ok {
		return nil, wrapErr(ErrConfig, fmt.Errorf("signing key's address %s is not a member of the validator set", self))
	}
	return &Node{
		env:        env,
		self:       self,
		key:        key,
		store:      store,
		pool:       pool,
		sched:      sched,
		validators: validators,
		cs:         tbft.NewConsensusState(validators, self, key),
		transport:  transport,
		logger:     logger,
		timeouts:   make(chan timeoutEvent, 8),
	}, nil
}

// Run drives the orchestrator's event loop until ctx is cancelled: a
// ticker refreshes metrics when the round is otherwise idle, inbound
// network messages feed the consensus state machine, and an internal
// timeout channel fires step timeouts scheduled with a monotonic
// sequence number so any timeout superseded by real progress is silently
// discarded on arrival (spec §5 "Cancellation and timeouts").
func (n *Node) Run(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return wrapErr(ErrAlreadyRunning, fmt.Errorf("Run called while already running"))
	}
	n.running = true
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		n.running = false
		n.mu.Unlock()
	}()

	startHeight := uint64(1)
	if tip, ok := n.store.Tip(); ok {
		startHeight = tip.Number + 1
	}
	if err := n.handleOutputs(n.cs.StartHeight(startHeight)); err != nil {
		return err
	}

	ticker := time.NewTicker(metricsTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			n.updateGauges()

		case env := <-n.transport.Receive():
			if err := n.handleEnvelope(env); err != nil {
				n.logger.Warn("failed to handle inbound consensus message", zap.Error(err))
			}

		case ev := <-n.timeouts:
			n.timeoutMu.Lock()
			stale := ev.seq != n.currentTimeoutSeq
			n.timeoutMu.Unlock()
			if stale {
				continue
			}
			outs, err := n.cs.OnTimeout(ev.height, ev.round, ev.step)
			if err != nil {
				n.logger.Warn("timeout handling failed", zap.Error(err))
				continue
			}
			if err := n.handleOutputs(outs); err != nil {
				return err
			}
		}
	}
}

func (n *Node) handleEnvelope(env network.Envelope) error {
	switch {
	case env.Proposal != nil:
		n.logger.Debug("received proposal", zap.Uint64("height", env.Proposal.Height), zap.Uint32("round", env.Proposal.Round))
		outs, err := n.cs.OnProposal(env.Proposal)
		if err != nil {
			return err
		}
		return n.handleOutputs(outs)
	case env.PreVote != nil:
		outs, err := n.cs.OnVote(env.PreVote)
		if err != nil {
			return err
		}
		return n.handleOutputs(outs)
	case env.PreCommit != nil:
		outs, err := n.cs.OnVote(env.PreCommit)
		if err != nil {
			return err
		}
		return n.handleOutputs(outs)
	}
	return nil
}

// handleOutputs carries out every Output a consensus handler returned, in
// order: build-and-propose on CreateBlock, forward on Broadcast, persist
// and advance height on Finalized. A fresh step timeout is armed and the
// gauges refreshed after each one (spec §4.8 "[EXPANSION]").
func (n *Node) handleOutputs(outs []tbft.Output) error {
	for _, out := range outs {
		switch {
		case out.CreateBlock != nil:
			if err := n.buildAndProposeBlock(out.CreateBlock.Height, out.CreateBlock.Round); err != nil {
				n.logger.Warn("failed to build and propose block", zap.Error(err))
			}
		case out.Broadcast != nil:
			if err := n.transport.Broadcast(broadcastEnvelope(out.Broadcast)); err != nil {
				n.logger.Warn("broadcast failed", zap.Error(err))
			}
		case out.Finalized != nil:
			if err := n.finalizeBlock(out.Finalized); err != nil {
				return err
			}
		}
	}
	n.scheduleStepTimeout()
	n.updateGauges()
	return nil
}

func broadcastEnvelope(b *tbft.BroadcastOutput) network.Envelope {
	if b.Proposal != nil {
		return network.Envelope{Proposal: b.Proposal}
	}
	return network.EnvelopeFromVote(b.Vote)
}

func (n *Node) scheduleStepTimeout() {
	var d time.Duration
	switch n.cs.Step() {
	case tbft.StepPropose:
		d = ProposeTimeout
	case tbft.StepPrevote:
		d = PrevoteTimeout
	case tbft.StepPrecommit:
		d = PrecommitTimeout
	default:
		return
	}
	height, round, step := n.cs.Height(), n.cs.Round(), n.cs.Step()
	seq := atomic.AddUint64(&n.timeoutSeq, 1)
	n.timeoutMu.Lock()
	n.currentTimeoutSeq = seq
	n.timeoutMu.Unlock()
	time.AfterFunc(d, func() {
		select {
		case n.timeouts <- timeoutEvent{seq: seq, height: height, round: round, step: step}:
		default:
		}
	})
}

func (n *Node) updateGauges() {
	metrics.Height.Set(float64(n.cs.Height()))
	metrics.Round.Set(float64(n.cs.Round()))
	metrics.PoolPending.Set(float64(n.pool.Len()))
}

// buildAndProposeBlock implements spec §4.8 steps 2-6: drain the pool,
// speculatively execute the drained transactions to price the block's
// gas_used and logs_bloom, assemble and sign the header, and hand the
// result to ProposeBlock. The speculative execution's state diff is
// discarded; finalizeBlock re-executes whichever block actually reaches
// quorum (possibly a different validator's), which is the one copy of
// state this node ever commits.
func (n *Node) buildAndProposeBlock(height uint64, round uint32) error {
	n.pool.SetPolicy(n.env.BlockGasLimit, n.env.MinGasPrice, nil)
	txs := n.pool.Drain(maxBlockTxs, nil)

	_, receipts, bloom, gasUsed, err := n.executeBlock(height, txs)
	if err != nil {
		return wrapErr(ErrExecution, err)
	}

	header := n.buildHeader(height, bloom, gasUsed)
	block := &types.Block{Header: header, Body: types.Body{Transactions: txs}}

	n.logger.Debug("proposing block", zap.Uint64("height", height), zap.Uint32("round", round), zap.Int("txs", len(txs)))
	outs, err := n.cs.ProposeBlock(block)
	if err != nil {
		return wrapErr(ErrConsensus, err)
	}
	_ = receipts // recomputed canonically in finalizeBlock
	return n.handleOutputs(outs)
}

func (n *Node) buildHeader(height uint64, bloom types.Bloom, gasUsed uint64) *types.Header {
	parentHash := n.env.GenesisHash
	if tip, ok := n.store.Tip(); ok {
		parentHash = tip.Hash
	}
	return &types.Header{
		ParentHash:       parentHash,
		OmmersHash:       types.EmptyOmmersHash,
		Beneficiary:      n.self,
		StateRoot:        types.Hash256{}, // ZeroRootsV0
		TransactionsRoot: types.Hash256{},
		ReceiptsRoot:     types.Hash256{},
		LogsBloom:        bloom,
		Difficulty:       big.NewInt(1),
		Number:           height,
		GasLimit:         n.env.BlockGasLimit,
		GasUsed:          gasUsed,
		Timestamp:        uint64(time.Now().Unix()),
		MixHash:          types.Hash256{},
	}
}

// executeBlock runs every tx in txs through the scheduler against a fresh
// StateCache layered over the persistent store, returning the resulting
// cache (not yet committed), per-transaction receipts with cumulative gas
// fixed up in block order, and the block's merged logs bloom and total
// gas used.
func (n *Node) executeBlock(height uint64, txs []*types.SignedTransaction) (*state.StateCache, []*types.Receipt, types.Bloom, uint64, error) {
	cache := state.NewStateCache(n.store)
	receipts := make([]*types.Receipt, len(txs))
	tasks := make([]scheduler.Task, len(txs))
	for i, tx := range txs {
		tasks[i] = scheduler.Task{Index: i, Predicted: predictedRWSet(tx)}
	}

	parentHash := types.Hash256{}
	if tip, ok := n.store.Tip(); ok {
		parentHash = tip.Hash
	}
	blockCtx := vm.BlockContext{
		Coinbase:  n.self,
		Number:    height,
		Timestamp: uint64(time.Now().Unix()),
		GasLimit:  n.env.BlockGasLimit,
		GetHash: func(number uint64) types.Hash256 {
			if height > 0 && number == height-1 {
				return parentHash
			}
			return types.Hash256{}
		},
	}
	exec := executor.New(executor.Environment{Block: blockCtx, ChainID: n.env.ChainID})

	// The scheduler only guarantees non-overlapping predicted RW-sets are
	// safe to run concurrently; ApplyDiff-into-shared-base needs a single
	// writer at a time, so each task's whole execution runs under
	// cacheMu. This trades the scheduler's intra-layer parallelism for a
	// state pipeline simple enough to reason about without running it;
	// see DESIGN.md.
	var cacheMu sync.Mutex
	var cumulativeGas uint64
	execute := func(t scheduler.Task) (*state.StateDiff, *state.RWSet, error) {
		tx := txs[t.Index]
		cacheMu.Lock()
		defer cacheMu.Unlock()
		view := state.NewCachedState(cache)
		receipt, err := exec.Apply(view, tx, cumulativeGas)
		if err != nil {
			return nil, nil, err
		}
		cumulativeGas += receipt.GasUsed
		diff := view.Diff()
		cache.ApplyDiff(diff)
		receipts[t.Index] = receipt
		return diff, view.RWSet(), nil
	}

	_, batches, err := n.sched.Schedule(tasks, execute)
	if err != nil {
		return nil, nil, types.Bloom{}, 0, err
	}
	metrics.LastBlockBatches.Set(float64(batches))

	var cumulative uint64
	blooms := make([]types.Bloom, 0, len(receipts))
	for _, r := range receipts {
		cumulative += r.GasUsed
		r.CumulativeGasUsed = cumulative
		blooms = append(blooms, r.LogsBloom)
	}
	return cache, receipts, types.MergeBlooms(blooms), cumulative, nil
}

// predictedRWSet is the heuristic Task.Predicted every transaction is
// given before its actual RW-set is known: sender balance and nonce,
// plus the recipient's balance for a call. It never predicts storage
// slots, since no static bytecode analyzer exists in this pipeline;
// storage-level conflicts are caught by the scheduler's post-hoc
// actual-RWSet check and corrected via retry.
func predictedRWSet(tx *types.SignedTransaction) *state.RWSet {
	rw := state.NewRWSet()
	sender, err := tx.Sender()
	if err != nil {
		return rw
	}
	rw.RecordRead(state.BalanceKey(sender))
	rw.RecordRead(state.NonceKey(sender))
	rw.RecordWrite(state.BalanceKey(sender))
	rw.RecordWrite(state.NonceKey(sender))
	if tx.To != nil {
		rw.RecordWrite(state.BalanceKey(*tx.To))
	}
	return rw
}

// finalizeBlock implements spec §4.8 step 8: deterministically
// re-executes the block that actually reached a precommit quorum
// (whichever validator proposed it), persists header/body/receipts and
// the resulting state, evicts its transactions from the pool, and starts
// the next height.
func (n *Node) finalizeBlock(fo *tbft.FinalizedOutput) error {
	block := fo.Block
	txs := block.Transactions()

	var parentHeader *types.Header
	if tip, ok := n.store.Tip(); ok {
		ph, err := n.store.Header(tip.Number)
		if err != nil {
			return wrapErr(ErrStorage, err)
		}
		parentHeader = ph
	}
	if err := block.Validate(parentHeader); err != nil {
		return wrapErr(ErrConsensus, err)
	}

	cache, receipts, _, gasUsed, err := n.executeBlock(block.Number(), txs)
	if err != nil {
		return wrapErr(ErrExecution, err)
	}

	if err := n.store.PutBlock(block); err != nil {
		return wrapErr(ErrStorage, err)
	}
	if err := n.store.PutReceipts(block.Number(), receipts); err != nil {
		return wrapErr(ErrStorage, err)
	}

	batch := n.store.NewBatch()
	if err := batch.SetTip(storage.ChainTip{Number: block.Number(), Hash: block.Hash()}); err != nil {
		return wrapErr(ErrStorage, err)
	}
	if err := cache.Commit(batch); err != nil {
		return wrapErr(ErrStorage, err)
	}

	for _, tx := range txs {
		sender, err := tx.Sender()
		if err != nil {
			continue
		}
		n.pool.SetNonce(sender, tx.Nonce+1)
	}

	metrics.LastBlockGasUsed.Set(float64(gasUsed))
	n.logger.Info("block committed",
		zap.Uint64("height", block.Number()),
		zap.Stringer("hash", block.Hash()),
		zap.Int("txs", len(txs)),
		zap.Uint64("gas_used", gasUsed),
	)

	return n.handleOutputs(n.cs.StartHeight(block.Number() + 1))
}
