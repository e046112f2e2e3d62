package dashboard

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lockScope/internal/effect"
)

const (
	CmdInitialize          effect.CommandType = "Initialize"
	CmdNetworkChanged      effect.CommandType = "NetworkChanged"
	CmdSelectAccount       effect.CommandType = "SelectAccount"
	CmdRefreshAccountState effect.CommandType = "RefreshAccountState"
	CmdOpenDialog          effect.CommandType = "Validator.OpenDialog"
	CmdCloseDialog         effect.CommandType = "Validator.CloseDialog"
	CmdLockTokens          effect.CommandType = "Validator.LockTokens"
	CmdUnlockTokens        effect.CommandType = "Validator.UnlockTokens"
	CmdDismissError        effect.CommandType = "DismissError"
)

// Initialize starts provider discovery.
type Initialize struct{}

// NetworkChanged reports that the wallet switched chains. The current
// provider and account state are discarded.
type NetworkChanged struct {
	ChainID uint64
}

type SelectAccount struct {
	Account common.Address
}

// RefreshAccountState requests a new account read. Without ForceRefresh it is
// ignored inside the throttle window. A zero At means now.
type RefreshAccountState struct {
	ForceRefresh bool
	At           time.Time
}

type OpenDialog struct {
	Kind DialogKind
}

type CloseDialog struct{}

// LockTokens submits a lock of Amount token base units.
type LockTokens struct {
	Amount *big.Int
}

// UnlockTokens submits an unlock of Amount token base units.
type UnlockTokens struct {
	Amount *big.Int
}

type DismissError struct{}

func (Initialize) CommandType() effect.CommandType          { return CmdInitialize }
func (NetworkChanged) CommandType() effect.CommandType      { return CmdNetworkChanged }
func (SelectAccount) CommandType() effect.CommandType       { return CmdSelectAccount }
func (RefreshAccountState) CommandType() effect.CommandType { return CmdRefreshAccountState }
func (OpenDialog) CommandType() effect.CommandType          { return CmdOpenDialog }
func (CloseDialog) CommandType() effect.CommandType         { return CmdCloseDialog }
func (LockTokens) CommandType() effect.CommandType          { return CmdLockTokens }
func (UnlockTokens) CommandType() effect.CommandType        { return CmdUnlockTokens }
func (DismissError) CommandType() effect.CommandType        { return CmdDismissError }
