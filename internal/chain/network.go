package chain

var networkNames = map[uint64]string{
	1:        "mainnet",
	5:        "goerli",
	10:       "optimism",
	56:       "bsc",
	97:       "bsc-testnet",
	137:      "polygon",
	8453:     "base",
	42161:    "arbitrum",
	43114:    "avalanche",
	11155111: "sepolia",
}

// NetworkName returns a short name for a chain id, "private" when unknown.
func NetworkName(chainID uint64) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return "private"
}
