// Package txpool buffers pending transactions ahead of block production:
// per-sender nonce-ordered queues, a nonce-gap bound, price-bump
// replacement, and a probabilistic "have we seen this hash" pre-check
// ahead of any per-sender lock (spec §4.7).
package txpool

import (
	"bytes"
	"hash/fnv"
	"math/big"
	"sort"
	"sync"

	"github.com/holiman/bloomfilter/v2"

	"github.com/permabft/chain/core/errs"
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/core/vm"
)

// shardCount bounds per-address lock contention the same way
// core/scheduler's OwnershipTable does (striped mutexes over an address
// hash), rather than one global pool-wide lock.
const shardCount = 32

// MaxNonceGap is the furthest a transaction's nonce may sit ahead of an
// account's confirmed nonce before the pool refuses to queue it (spec
// §4.7 "MAX_NONCE_GAP").
const MaxNonceGap = 64

// PriceBumpPercent is the minimum percentage a replacement transaction's
// price must exceed the one it displaces by (spec §4.7 "replacement
// pricing").
const PriceBumpPercent = 10

// seenFilterM/K size the bloom pre-check for roughly 1e6 expected
// entries at a sub-percent false-positive rate; a false positive only
// costs one wasted shard lock plus a map probe, never an incorrect
// accept or drop.
const (
	seenFilterM = 1 << 23
	seenFilterK = 7
)

// GetNonceFunc resolves an account's current confirmed nonce, typically
// backed by the block-level state cache.
type GetNonceFunc func(addr types.Address) uint64

type accountQueue struct {
	pending map[uint64]*types.SignedTransaction
	queued  map[uint64]*types.SignedTransaction
}

func newAccountQueue() *accountQueue {
	return &accountQueue{pending: map[uint64]*types.SignedTransaction{}, queued: map[uint64]*types.SignedTransaction{}}
}

type shard struct {
	mu      sync.RWMutex
	byAddr  map[types.Address]*accountQueue
}

// Pool is the transaction pool. A Pool must be constructed with New.
type Pool struct {
	getNonce GetNonceFunc
	shards   [shardCount]*shard

	seenMu sync.Mutex
	seen   *bloomfilter.Filter
	byHash map[types.Hash256]txLocation

	policyMu      sync.RWMutex
	blockGasLimit uint64
	minGasPrice   *big.Int
	baseFee       *big.Int
}

// SetPolicy updates the admission parameters checked by Add: the block
// gas limit a single transaction's gas_limit may not exceed, the minimum
// effective gas price accepted, and the base fee used to compute a
// dynamic-fee transaction's effective price (spec §4.7 "admission
// rules"). The orchestrator calls this once per block.
func (p *Pool) SetPolicy(blockGasLimit uint64, minGasPrice, baseFee *big.Int) {
	p.policyMu.Lock()
	defer p.policyMu.Unlock()
	p.blockGasLimit = blockGasLimit
	p.minGasPrice = minGasPrice
	p.baseFee = baseFee
}

func (p *Pool) policy() (uint64, *big.Int, *big.Int) {
	p.policyMu.RLock()
	defer p.policyMu.RUnlock()
	return p.blockGasLimit, p.minGasPrice, p.baseFee
}

type txLocation struct {
	sender types.Address
	nonce  uint64
}

// New constructs an empty Pool. getNonce is consulted on every Add to
// determine an account's confirmed nonce and on Drain to select each
// account's pending entries that run contiguously from that nonce.
func New(getNonce GetNonceFunc) *Pool {
	filter, err := bloomfilter.NewOptimal(1_000_000, 0.001)
	if err != nil {
		filter, _ = bloomfilter.New(seenFilterM, seenFilterK)
	}
	p := &Pool{
		getNonce: getNonce,
		seen:     filter,
		byHash:   make(map[types.Hash256]txLocation),
	}
	for i := range p.shards {
		p.shards[i] = &shard{byAddr: make(map[types.Address]*accountQueue)}
	}
	return p
}

func (p *Pool) shardFor(addr types.Address) *shard {
	h := fnv.New32a()
	h.Write(addr[:])
	return p.shards[h.Sum32()%shardCount]
}

// alreadySeen reports, without taking any per-sender lock, whether hash
// has very likely already been added to the pool.
func (p *Pool) alreadySeen(hash types.Hash256) bool {
	h := fnv.New64a()
	h.Write(hash[:])
	p.seenMu.Lock()
	defer p.seenMu.Unlock()
	return p.seen.Contains(h)
}

func (p *Pool) markSeen(hash types.Hash256, loc txLocation) {
	h := fnv.New64a()
	h.Write(hash[:])
	p.seenMu.Lock()
	defer p.seenMu.Unlock()
	p.seen.Add(h)
	p.byHash[hash] = loc
}

func (p *Pool) forgetSeen(hash types.Hash256) {
	p.seenMu.Lock()
	defer p.seenMu.Unlock()
	delete(p.byHash, hash)
	// the bloom filter itself is never shrunk: a false "maybe seen" after
	// removal only costs a wasted lock, never an incorrect rejection.
}

// Add validates and inserts tx into the pool, returning a Policy or
// Crypto error on rejection.
func (p *Pool) Add(tx *types.SignedTransaction) error {
	hash := tx.Hash()
	if p.alreadySeen(hash) {
		p.seenMu.Lock()
		_, known := p.byHash[hash]
		p.seenMu.Unlock()
		if known {
			return errs.Wrap(errs.Policy, errAlreadyKnown)
		}
	}

	sender, err := tx.Sender()
	if err != nil {
		return errs.Wrap(errs.Crypto, err)
	}

	blockGasLimit, minGasPrice, baseFee := p.policy()
	if tx.GasLimit < vm.GasTxIntrinsic {
		return errs.Wrap(errs.Policy, errGasLimitTooLow)
	}
	if blockGasLimit > 0 && tx.GasLimit > blockGasLimit {
		return errs.Wrap(errs.Policy, errGasLimitTooHigh)
	}
	if minGasPrice != nil {
		price, err := tx.EffectiveGasPrice(baseFee)
		if err != nil {
			return errs.Wrap(errs.Policy, err)
		}
		if price.Cmp(minGasPrice) < 0 {
			return errs.Wrap(errs.Policy, errGasPriceTooLow)
		}
	}

	confirmed := p.getNonce(sender)
	if tx.Nonce < confirmed {
		return errs.Wrap(errs.Policy, errNonceTooLow)
	}
	if tx.Nonce-confirmed > MaxNonceGap {
		return errs.Wrap(errs.Policy, errNonceGapTooLarge)
	}

	s := p.shardFor(sender)
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.byAddr[sender]
	if !ok {
		q = newAccountQueue()
		s.byAddr[sender] = q
	}

	if existing, replacing := q.pending[tx.Nonce]; replacing {
		if err := checkReplacement(existing, tx); err != nil {
			return err
		}
		p.forgetSeen(existing.Hash())
	} else if existing, replacing := q.queued[tx.Nonce]; replacing {
		if err := checkReplacement(existing, tx); err != nil {
			return err
		}
		p.forgetSeen(existing.Hash())
	}

	if tx.Nonce == confirmed || (tx.Nonce > confirmed && hasContiguousRun(q, confirmed, tx.Nonce)) {
		q.pending[tx.Nonce] = tx
		promoteQueued(q, tx.Nonce+1)
	} else {
		q.queued[tx.Nonce] = tx
	}
	p.markSeen(hash, txLocation{sender: sender, nonce: tx.Nonce})
	return nil
}

// hasContiguousRun reports whether every nonce in [confirmed, target) is
// already present in q.pending, meaning inserting target keeps the
// pending set gap-free.
func hasContiguousRun(q *accountQueue, confirmed, target uint64) bool {
	for n := confirmed; n < target; n++ {
		if _, ok := q.pending[n]; !ok {
			return false
		}
	}
	return true
}

// promoteQueued moves newly-contiguous queued transactions into pending
// starting at nonce.
func promoteQueued(q *accountQueue, nonce uint64) {
	for {
		tx, ok := q.queued[nonce]
		if !ok {
			return
		}
		delete(q.queued, nonce)
		q.pending[nonce] = tx
		nonce++
	}
}

// Drain returns up to maxTxs pending transactions ordered by descending
// effective gas price under baseFee, ties broken by (sender, nonce) (spec
// §4.7 "block-production drain"), additionally skipping any transaction
// whose GasLimit would push the summed GasLimit of those already selected
// past the blockGasLimit set by SetPolicy, while still considering the
// ones after it (a zero policy leaves the count bound as the only
// limit). It does not remove them from the pool; call Remove once they
// are included in a committed block.
func (p *Pool) Drain(maxTxs int, baseFee *big.Int) []*types.SignedTransaction {
	candidates := make([]*types.SignedTransaction, 0, maxTxs)
	senders := make(map[*types.SignedTransaction]types.Address)
	for _, s := range p.shards {
		s.mu.RLock()
		for addr, q := range s.byAddr {
			confirmed := p.getNonce(addr)
			nonces := make([]uint64, 0, len(q.pending))
			for n := range q.pending {
				if n >= confirmed {
					nonces = append(nonces, n)
				}
			}
			sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
			for _, n := range nonces {
				if n != confirmed {
					break // nonce gap relative to current confirmed state; stop this account
				}
				tx := q.pending[n]
				candidates = append(candidates, tx)
				senders[tx] = addr
				confirmed++
			}
		}
		s.mu.RUnlock()
	}

	prices := make(map[*types.SignedTransaction]*big.Int, len(candidates))
	for _, tx := range candidates {
		price, err := tx.EffectiveGasPrice(baseFee)
		if err != nil {
			price = big.NewInt(0)
		}
		prices[tx] = price
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if cmp := prices[a].Cmp(prices[b]); cmp != 0 {
			return cmp > 0
		}
		sa, sb := senders[a], senders[b]
		if sa != sb {
			return bytes.Compare(sa[:], sb[:]) < 0
		}
		return a.Nonce < b.Nonce
	})
	if len(candidates) > maxTxs {
		candidates = candidates[:maxTxs]
	}

	blockGasLimit, _, _ := p.policy()
	if blockGasLimit == 0 {
		return candidates
	}
	bounded := make([]*types.SignedTransaction, 0, len(candidates))
	var cumulative uint64
	for _, tx := range candidates {
		if cumulative+tx.GasLimit > blockGasLimit {
			continue // would overflow the block; leave it pending for a later block
		}
		cumulative += tx.GasLimit
		bounded = append(bounded, tx)
	}
	return bounded
}

// SetNonce evicts every entry for addr whose nonce is below n from both
// the pending and queued maps, then promotes any now-contiguous queued
// entries into pending (spec §4.7 "set_nonce evicts all entries whose
// nonce < n from both maps"). The orchestrator calls this once per
// executed transaction after a block commits.
func (p *Pool) SetNonce(addr types.Address, n uint64) {
	hashesToForget := p.setNonceLocked(addr, n)
	for _, h := range hashesToForget {
		p.forgetSeen(h)
	}
}

func (p *Pool) setNonceLocked(addr types.Address, n uint64) []types.Hash256 {
	s := p.shardFor(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.byAddr[addr]
	if !ok {
		return nil
	}
	var evicted []types.Hash256
	for nonce, tx := range q.pending {
		if nonce < n {
			evicted = append(evicted, tx.Hash())
			delete(q.pending, nonce)
		}
	}
	for nonce, tx := range q.queued {
		if nonce < n {
			evicted = append(evicted, tx.Hash())
			delete(q.queued, nonce)
		}
	}
	promoteQueued(q, n)
	if len(q.pending) == 0 && len(q.queued) == 0 {
		delete(s.byAddr, addr)
	}
	return evicted
}

// Remove discards a confirmed or superseded transaction from the pool.
func (p *Pool) Remove(tx *types.SignedTransaction) {
	sender, err := tx.Sender()
	if err != nil {
		return
	}
	s := p.shardFor(sender)
	s.mu.Lock()
	if q, ok := s.byAddr[sender]; ok {
		delete(q.pending, tx.Nonce)
		delete(q.queued, tx.Nonce)
		if len(q.pending) == 0 && len(q.queued) == 0 {
			delete(s.byAddr, sender)
		}
	}
	s.mu.Unlock()
	p.forgetSeen(tx.Hash())
}

// Pending returns a snapshot of addr's pending, nonce-ordered transactions.
func (p *Pool) Pending(addr types.Address) []*types.SignedTransaction {
	s := p.shardFor(addr)
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.byAddr[addr]
	if !ok {
		return nil
	}
	nonces := make([]uint64, 0, len(q.pending))
	for n := range q.pending {
		nonces = append(nonces, n)
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	out := make([]*types.SignedTransaction, len(nonces))
	for i, n := range nonces {
		out[i] = q.pending[n]
	}
	return out
}

// Len reports the total number of transactions (pending + queued) held by
// the pool, for the orchestrator's `permabft_pool_pending` gauge.
func (p *Pool) Len() int {
	total := 0
	for _, s := range p.shards {
		s.mu.RLock()
		for _, q := range s.byAddr {
			total += len(q.pending) + len(q.queued)
		}
		s.mu.RUnlock()
	}
	return total
}
