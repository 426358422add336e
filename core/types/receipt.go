package types

// ReceiptStatus is the outcome of a transaction's execution.
type ReceiptStatus uint8

const (
	ReceiptStatusFailure ReceiptStatus = 0
	ReceiptStatusSuccess ReceiptStatus = 1
)

// Log is a single EVM event emitted by LOG0-LOG4.
type Log struct {
	Address Address
	Topics  []Hash256
	Data    []byte
}

// Receipt records the outcome of executing a single transaction.
type Receipt struct {
	Status            ReceiptStatus
	CumulativeGasUsed uint64
	GasUsed           uint64
	Logs              []Log
	LogsBloom         Bloom
	ContractAddress   *Address
	TxHash            Hash256
}

// Succeeded reports whether the receipt recorded a successful execution.
func (r *Receipt) Succeeded() bool { return r.Status == ReceiptStatusSuccess }
