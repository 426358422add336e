package vm

import (
	"github.com/permabft/chain/core/rlpmin"
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

// CreateAddress derives the address of a contract created by CREATE,
// using the sender's nonce *before* it is incremented for this creation
// (spec §4.4): keccak256(RLP([sender, nonce]))[12:].
func CreateAddress(sender types.Address, nonce uint64) types.Address {
	encoded := rlpmin.EncodeList(rlpmin.EncodeBytes(sender[:]), rlpmin.EncodeUint64(nonce))
	digest := cryptoutil.Keccak256Bytes(encoded)
	return types.BytesToAddress(digest[12:])
}

// Create2Address derives the address of a contract created by CREATE2
// (spec §4.4): keccak256(0xff ‖ sender ‖ salt ‖ keccak256(init_code))[12:].
func Create2Address(sender types.Address, salt [32]byte, initCode []byte) types.Address {
	initCodeHash := cryptoutil.Keccak256Bytes(initCode)
	digest := cryptoutil.Keccak256Bytes([]byte{0xff}, sender[:], salt[:], initCodeHash)
	return types.BytesToAddress(digest[12:])
}
