package types

import (
	"github.com/permabft/chain/core/rlpmin"
	"github.com/permabft/chain/cryptoutil"
)

// encode returns the canonical list encoding of the header, in the field
// order and types of spec §6. This is the one wire form this package
// commits to directly rather than through a general-purpose codec: §1
// keeps generic RLP utility routines out of scope, but the header hash
// itself is a fixed, spec-mandated shape with nothing left to generalize
// over, so it is written against the table in §6 by hand.
func (h *Header) encode() []byte {
	items := [][]byte{
		rlpmin.EncodeBytes(h.ParentHash[:]),
		rlpmin.EncodeBytes(h.OmmersHash[:]),
		rlpmin.EncodeBytes(h.Beneficiary[:]),
		rlpmin.EncodeBytes(h.StateRoot[:]),
		rlpmin.EncodeBytes(h.TransactionsRoot[:]),
		rlpmin.EncodeBytes(h.ReceiptsRoot[:]),
		rlpmin.EncodeBytes(h.LogsBloom[:]),
		rlpmin.EncodeBigInt(h.Difficulty),
		rlpmin.EncodeUint64(h.Number),
		rlpmin.EncodeUint64(h.GasLimit),
		rlpmin.EncodeUint64(h.GasUsed),
		rlpmin.EncodeUint64(h.Timestamp),
		rlpmin.EncodeBytes(h.ExtraData),
		rlpmin.EncodeBytes(h.MixHash[:]),
		rlpmin.EncodeBytes(h.Nonce[:]),
	}
	if h.BaseFeePerGas != nil {
		items = append(items, rlpmin.EncodeBigInt(h.BaseFeePerGas))
	}
	return rlpmin.EncodeList(items...)
}

// Hash returns the block hash: keccak256 of the canonical header encoding.
func (h *Header) Hash() Hash256 {
	return cryptoutil.Keccak256(h.encode())
}

// EncodeReceipt returns the canonical encoding of a single receipt. No
// receipts_root is computed from it (ZeroRootsV0), and the receipts
// column family is written with storage's own codec, not with this
// function.
func EncodeReceipt(r *Receipt) []byte {
	logs := make([][]byte, len(r.Logs))
	for i, lg := range r.Logs {
		topics := make([][]byte, len(lg.Topics))
		for j, t := range lg.Topics {
			topics[j] = rlpmin.EncodeBytes(t[:])
		}
		logs[i] = rlpmin.EncodeList(
			rlpmin.EncodeBytes(lg.Address[:]),
			rlpmin.EncodeList(topics...),
			rlpmin.EncodeBytes(lg.Data),
		)
	}
	contractAddr := []byte{}
	if r.ContractAddress != nil {
		contractAddr = r.ContractAddress[:]
	}
	return rlpmin.EncodeList(
		rlpmin.EncodeUint64(uint64(r.Status)),
		rlpmin.EncodeUint64(r.CumulativeGasUsed),
		rlpmin.EncodeUint64(r.GasUsed),
		rlpmin.EncodeBytes(r.LogsBloom[:]),
		rlpmin.EncodeList(logs...),
		rlpmin.EncodeBytes(contractAddr),
		rlpmin.EncodeBytes(r.TxHash[:]),
	)
}
