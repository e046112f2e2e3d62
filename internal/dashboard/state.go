package dashboard

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lockScope/internal/effect"
	"lockScope/internal/model"
)

// Network describes the chain the active provider is connected to.
type Network struct {
	ChainID uint64
	Name    string
	Ready   bool
}

// AccountState is one consistent read of the selected account, all values
// taken from the same block.
type AccountState struct {
	Account       common.Address
	ChainID       uint64
	Block         uint64
	NativeBalance *big.Int
	TokenBalance  *big.Int
	TotalSupply   *big.Int
	// Locked is nil when no lock contract is configured.
	Locked    *big.Int
	Token     model.TokenMeta
	FetchedAt time.Time
}

// Snapshot converts the account state into a storage record.
func (a *AccountState) Snapshot(network string) model.AccountSnapshot {
	out := model.AccountSnapshot{
		ChainID:       a.ChainID,
		Network:       network,
		Account:       a.Account.Hex(),
		BlockNumber:   a.Block,
		NativeBalance: bigString(a.NativeBalance),
		TokenBalance:  bigString(a.TokenBalance),
		TotalSupply:   bigString(a.TotalSupply),
		TokenAddress:  a.Token.Address,
		TokenSymbol:   a.Token.Symbol,
		TokenDecimals: a.Token.Decimals,
		FetchedAt:     a.FetchedAt.UTC().Format(time.RFC3339),
	}
	if a.Locked != nil {
		out.Locked = a.Locked.String()
	}
	return out
}

type DialogKind string

const (
	DialogLock   DialogKind = "lock"
	DialogUnlock DialogKind = "unlock"
)

// Dialog is the lock/unlock form. Pending is set while its transaction is in flight.
type Dialog struct {
	Kind    DialogKind
	Open    bool
	Pending bool
}

// TxResult is the last mined lock or unlock transaction.
type TxResult struct {
	Kind   DialogKind
	Hash   common.Hash
	Amount *big.Int
	At     time.Time
}

// Record converts the result into a storage record.
func (r *TxResult) Record(chainID uint64, account common.Address) model.TxRecord {
	return model.TxRecord{
		ChainID: chainID,
		Account: account.Hex(),
		Kind:    string(r.Kind),
		Amount:  bigString(r.Amount),
		TxHash:  r.Hash.Hex(),
		MinedAt: r.At.UTC().Format(time.RFC3339),
	}
}

// State is the dashboard state driven by the effect store. Values are
// replaced, never mutated in place.
type State struct {
	Queue effect.Queue

	Network       Network
	Account       common.Address
	AccountState  *AccountState
	LastRefreshAt time.Time

	// Error is the user visible message of the last failure.
	Error  string
	Dialog Dialog
	LastTx *TxResult
}

func (s State) QueueState() effect.Queue {
	return s.Queue
}

func (s State) WithQueue(q effect.Queue) State {
	s.Queue = q
	return s
}

// HasAccount reports whether an account is selected.
func (s State) HasAccount() bool {
	return s.Account != (common.Address{})
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
