package model

// AccountSnapshot is one fetched account state ready for storage.
// Amounts are base-10 integer strings in token base units.
type AccountSnapshot struct {
	ChainID       uint64 `json:"chain_id"`
	Network       string `json:"network"`
	Account       string `json:"account"`
	BlockNumber   uint64 `json:"block_number"`
	NativeBalance string `json:"native_balance"`
	TokenBalance  string `json:"token_balance"`
	TotalSupply   string `json:"total_supply"`
	Locked        string `json:"locked,omitempty"`
	TokenAddress  string `json:"token_address"`
	TokenSymbol   string `json:"token_symbol,omitempty"`
	TokenDecimals uint8  `json:"token_decimals"`
	FetchedAt     string `json:"fetched_at"`
}
