package storage

import (
	"encoding/binary"

	"github.com/permabft/chain/core/types"
)

// Pebble has no native column families; every key is prefixed with one of
// these bytes to partition the keyspace, the idiomatic pattern every
// pebble/leveldb-backed chain client in the corpus uses in place of real
// column families (spec §4.6, §6).
const (
	accPrefix        byte = 0x01
	storagePrefix    byte = 0x02
	codePrefix       byte = 0x03
	headerPrefix     byte = 0x04
	bodyPrefix       byte = 0x05
	receiptsPrefix   byte = 0x06
	blockIndexPrefix byte = 0x07
	metaPrefix       byte = 0x08
)

var metaTipKey = []byte{metaPrefix, 't', 'i', 'p'}

func accountKey(addr types.Address) []byte {
	k := make([]byte, 1+types.AddressLength)
	k[0] = accPrefix
	copy(k[1:], addr[:])
	return k
}

func storageKey(addr types.Address, slot types.Hash256) []byte {
	k := make([]byte, 1+types.AddressLength+types.HashLength)
	k[0] = storagePrefix
	copy(k[1:], addr[:])
	copy(k[1+types.AddressLength:], slot[:])
	return k
}

func storageAddrPrefix(addr types.Address) []byte {
	k := make([]byte, 1+types.AddressLength)
	k[0] = storagePrefix
	copy(k[1:], addr[:])
	return k
}

func codeKey(hash types.Hash256) []byte {
	k := make([]byte, 1+types.HashLength)
	k[0] = codePrefix
	copy(k[1:], hash[:])
	return k
}

func numberKey(prefix byte, number uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = prefix
	binary.BigEndian.PutUint64(k[1:], number)
	return k
}

func headerKey(number uint64) []byte   { return numberKey(headerPrefix, number) }
func bodyKey(number uint64) []byte     { return numberKey(bodyPrefix, number) }
func receiptsKey(number uint64) []byte { return numberKey(receiptsPrefix, number) }

func blockIndexKey(hash types.Hash256) []byte {
	k := make([]byte, 1+types.HashLength)
	k[0] = blockIndexPrefix
	copy(k[1:], hash[:])
	return k
}
