package types

import "fmt"

// Body holds a block's transaction list.
type Body struct {
	Transactions []*SignedTransaction
}

// Block pairs a Header with its Body.
type Block struct {
	Header *Header
	Body   Body
}

// Hash returns the block's hash (the header's hash; the body does not
// participate directly since transactions_root summarizes it — currently
// a zero placeholder per ZeroRootsV0).
func (b *Block) Hash() Hash256 {
	return b.Header.Hash()
}

// Number returns the block's height.
func (b *Block) Number() uint64 { return b.Header.Number }

// Transactions returns the block's transaction list.
func (b *Block) Transactions() []*SignedTransaction { return b.Body.Transactions }

// Validate checks the block-level invariants from spec §3: number
// continuity, parent linkage, and unique transaction hashes. Gas-sum
// validation against receipts happens in the executor, which is the only
// component that computes gas_used per transaction.
func (b *Block) Validate(parent *Header) error {
	if parent != nil {
		if b.Header.Number != parent.Number+1 {
			return fmt.Errorf("types: block number %d is not parent+1 (parent %d)", b.Header.Number, parent.Number)
		}
		if b.Header.ParentHash != parent.Hash() {
			return fmt.Errorf("types: block parent hash mismatch at height %d", b.Header.Number)
		}
	}
	seen := make(map[Hash256]struct{}, len(b.Body.Transactions))
	for _, tx := range b.Body.Transactions {
		h := tx.Hash()
		if _, dup := seen[h]; dup {
			return fmt.Errorf("types: duplicate transaction %s in block %d", h, b.Header.Number)
		}
		seen[h] = struct{}{}
	}
	return nil
}
