package types

// ReceiptStatus is the status of a transaction execution
type ReceiptStatus uint64

const (
	ReceiptFailed ReceiptStatus = iota
	ReceiptSuccess
)

// Receipt is the post-execution record of one transaction
type Receipt struct {
	TxHash            Hash
	BlockHash         Hash
	BlockNumber       uint64
	TxIndex           uint64
	From              Address
	To                *Address
	ContractAddress   *Address
	GasUsed           uint64
	CumulativeGasUsed uint64
	Status            ReceiptStatus
	LogsBloom         Bloom
	Logs              []*Log
}

type Receipts []*Receipt

func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptSuccess
}

func (r *Receipt) SetContractAddress(contractAddress Address) {
	r.ContractAddress = &contractAddress
}

// Log is an indexed emission from a contract
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte

	// filled in by the blockchain when the enclosing block is sealed
	BlockNumber uint64
	BlockHash   Hash
	TxHash      Hash
	TxIndex     uint64
	LogIndex    uint64
}

func (l *Log) Copy() *Log {
	ll := new(Log)
	*ll = *l

	ll.Topics = make([]Hash, len(l.Topics))
	copy(ll.Topics, l.Topics)

	ll.Data = CopyBytes(l.Data)

	return ll
}
