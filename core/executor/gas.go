package executor

import (
	"math/big"

	"github.com/permabft/chain/core/types"
)

// feeSplit returns the amount credited to the block's beneficiary for
// gasUsed at effectiveGasPrice. Legacy transactions have no base fee to
// burn, so the beneficiary collects the full price; dynamic-fee
// transactions burn the base-fee portion and credit only the tip (spec
// §4.5 "fee distribution").
func feeSplit(tx *types.SignedTransaction, effectiveGasPrice, baseFee *big.Int, gasUsed uint64) *big.Int {
	used := new(big.Int).SetUint64(gasUsed)
	if tx.Type != types.DynamicFeeType || baseFee == nil {
		return new(big.Int).Mul(effectiveGasPrice, used)
	}
	tip := new(big.Int).Sub(effectiveGasPrice, baseFee)
	return new(big.Int).Mul(tip, used)
}
