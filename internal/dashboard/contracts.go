package dashboard

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lockScope/internal/multicall"
)

// Contracts are the addresses the dashboard reads and writes.
type Contracts struct {
	Aggregator common.Address
	Token      common.Address
	// Lock is optional. Without it locked balances are not read and
	// lock/unlock transactions fail.
	Lock common.Address
}

func (c Contracts) validate() error {
	if c.Aggregator == (common.Address{}) {
		return fmt.Errorf("aggregator address is required")
	}
	if c.Token == (common.Address{}) {
		return fmt.Errorf("token address is required")
	}
	return nil
}

func (c Contracts) hasLock() bool {
	return c.Lock != (common.Address{})
}

// Batch keys of the account read.
const (
	keyNative   = "native"
	keyBalance  = "balance"
	keySupply   = "supply"
	keyLocked   = "locked"
	keyDecimals = "decimals"
	keySymbol   = "symbol"
	keyName     = "name"
)

func balanceOf(token, account common.Address) *multicall.Call {
	return &multicall.Call{
		Target:    token,
		Signature: "balanceOf(address)",
		Params:    []any{account},
		Returns:   []string{"uint256"},
		Decode:    multicall.FirstBigInt,
	}
}

func totalSupply(token common.Address) *multicall.Call {
	return &multicall.Call{
		Target:    token,
		Signature: "totalSupply()",
		Returns:   []string{"uint256"},
		Decode:    multicall.FirstBigInt,
	}
}

func lockedBalanceOf(lock, account common.Address) *multicall.Call {
	return &multicall.Call{
		Target:    lock,
		Signature: "lockedBalanceOf(address)",
		Params:    []any{account},
		Returns:   []string{"uint256"},
		Decode:    multicall.FirstBigInt,
	}
}

func tokenDecimals(token common.Address) *multicall.Call {
	return &multicall.Call{
		Target:    token,
		Signature: "decimals()",
		Returns:   []string{"uint8"},
		Decode:    multicall.FirstUint8,
	}
}

func tokenSymbol(token common.Address) *multicall.Call {
	return &multicall.Call{
		Target:    token,
		Signature: "symbol()",
		Returns:   []string{"string"},
		Fallback:  []string{"bytes32"},
		Optional:  true,
		Decode:    multicall.FirstString,
	}
}

func tokenName(token common.Address) *multicall.Call {
	return &multicall.Call{
		Target:    token,
		Signature: "name()",
		Returns:   []string{"string"},
		Fallback:  []string{"bytes32"},
		Optional:  true,
		Decode:    multicall.FirstString,
	}
}

// accountBatch builds the account read. Metadata entries are nil, and so
// skipped, when cached; the lock entry is nil without a lock contract.
func accountBatch(c Contracts, account common.Address, metaCached bool) *multicall.Batch {
	batch := multicall.NewBatch().
		Add(keyNative, multicall.EthBalance(c.Aggregator, account)).
		Add(keyBalance, balanceOf(c.Token, account)).
		Add(keySupply, totalSupply(c.Token))

	var locked *multicall.Call
	if c.hasLock() {
		locked = lockedBalanceOf(c.Lock, account)
	}
	batch.Add(keyLocked, locked)

	var decimals, symbol, name *multicall.Call
	if !metaCached {
		decimals = tokenDecimals(c.Token)
		symbol = tokenSymbol(c.Token)
		name = tokenName(c.Token)
	}
	return batch.
		Add(keyDecimals, decimals).
		Add(keySymbol, symbol).
		Add(keyName, name)
}

func txCalldata(kind DialogKind, amount *big.Int) ([]byte, error) {
	signature := "lock(uint256)"
	if kind == DialogUnlock {
		signature = "unlock(uint256)"
	}
	call := &multicall.Call{Signature: signature, Params: []any{amount}}
	return call.Pack()
}
