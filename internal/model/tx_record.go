package model

// TxRecord describes a submitted lock or unlock transaction.
type TxRecord struct {
	ChainID uint64 `json:"chain_id"`
	Account string `json:"account"`
	Kind    string `json:"kind"`
	Amount  string `json:"amount"`
	TxHash  string `json:"tx_hash"`
	MinedAt string `json:"mined_at"`
}
