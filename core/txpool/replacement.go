package txpool

import (
	"errors"
	"math/big"

	"github.com/permabft/chain/core/errs"
	"github.com/permabft/chain/core/types"
)

var (
	errAlreadyKnown     = errors.New("txpool: transaction already known")
	errNonceTooLow      = errors.New("txpool: nonce below account's confirmed nonce")
	errNonceGapTooLarge = errors.New("txpool: nonce too far ahead of account's confirmed nonce")
	errUnderpriced      = errors.New("txpool: replacement must exceed the displaced price by at least the bump percentage")
	errGasLimitTooLow   = errors.New("txpool: gas limit below the intrinsic transaction cost")
	errGasLimitTooHigh  = errors.New("txpool: gas limit exceeds the block gas limit")
	errGasPriceTooLow   = errors.New("txpool: effective gas price below the minimum accepted price")
)

// referencePrice is the price used for nonce-collision replacement
// comparisons: the gas price for legacy transactions, the fee cap for
// dynamic-fee ones (spec §4.7 treats both uniformly as "the price" a
// replacement must outbid).
func referencePrice(tx *types.SignedTransaction) *big.Int {
	if tx.Type == types.DynamicFeeType {
		return tx.MaxFeePerGas
	}
	return tx.GasPrice
}

// checkReplacement enforces the price-bump rule: a transaction replacing
// an existing one at the same nonce must beat it by at least
// PriceBumpPercent (spec §4.7 "replacement pricing").
func checkReplacement(existing, candidate *types.SignedTransaction) error {
	oldPrice := referencePrice(existing)
	newPrice := referencePrice(candidate)
	threshold := new(big.Int).Mul(oldPrice, big.NewInt(100+PriceBumpPercent))
	threshold.Div(threshold, big.NewInt(100))
	if newPrice.Cmp(threshold) < 0 {
		return errs.Wrap(errs.Policy, errUnderpriced)
	}
	return nil
}
