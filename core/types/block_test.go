package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlock_Validate_AcceptsNilParent(t *testing.T) {
	b := &Block{Header: &Header{Number: 0}}
	require.NoError(t, b.Validate(nil))
}

func TestBlock_Validate_RejectsNonSequentialNumber(t *testing.T) {
	parent := &Header{Number: 5}
	b := &Block{Header: &Header{Number: 7, ParentHash: parent.Hash()}}
	require.Error(t, b.Validate(parent))
}

func TestBlock_Validate_RejectsWrongParentHash(t *testing.T) {
	parent := &Header{Number: 5}
	b := &Block{Header: &Header{Number: 6, ParentHash: Hash256{0xde, 0xad}}}
	require.Error(t, b.Validate(parent))
}

func TestBlock_Validate_AcceptsMatchingParent(t *testing.T) {
	parent := &Header{Number: 5}
	b := &Block{Header: &Header{Number: 6, ParentHash: parent.Hash()}}
	require.NoError(t, b.Validate(parent))
}

func TestBlock_Validate_RejectsDuplicateTransactionHashes(t *testing.T) {
	key := newTestKey(t)
	to := Address{0x01}
	tx := &SignedTransaction{Type: LegacyTxType, ChainID: 7, GasPrice: big.NewInt(1), GasLimit: 21000, To: &to, Value: big.NewInt(1)}
	require.NoError(t, tx.SignWith(key))

	b := &Block{
		Header: &Header{Number: 1},
		Body:   Body{Transactions: []*SignedTransaction{tx, tx}},
	}
	require.Error(t, b.Validate(nil))
}

func TestBlock_HashAndNumber_DelegateToHeader(t *testing.T) {
	h := &Header{Number: 42}
	b := &Block{Header: h}
	require.Equal(t, h.Hash(), b.Hash())
	require.Equal(t, uint64(42), b.Number())
}
