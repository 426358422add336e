package executor

import (
	"github.com/permabft/chain/core/types"
	"github.com/permabft/chain/cryptoutil"
)

// bloom9 folds one piece of log data into b using the same three-bit
// layout Ethereum clients use: the low 11 bits of three non-overlapping
// 16-bit windows of keccak256(data) each set one bit (spec §9 "Logs
// bloom"), so external tooling built against that layout can filter this
// chain's logs without modification.
func bloom9(b *types.Bloom, data []byte) {
	hash := cryptoutil.Keccak256Bytes(data)
	for _, i := range [3]int{0, 2, 4} {
		bit := (uint(hash[i+1]) + uint(hash[i])<<8) & 2047
		b[types.BloomByteLength-1-bit/8] |= 1 << (bit % 8)
	}
}

// LogsBloom computes the 2048-bit bloom filter covering a set of logs: each
// log contributes its address and every topic.
func LogsBloom(logs []types.Log) types.Bloom {
	var b types.Bloom
	for _, log := range logs {
		bloom9(&b, log.Address.Bytes())
		for _, topic := range log.Topics {
			h := topic
			bloom9(&b, h[:])
		}
	}
	return b
}
