package dashboard

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lockScope/internal/effect"
)

const (
	QueryFindWeb3Instance effect.QueryType = "FindWeb3Instance"
	QueryFindAccountState effect.QueryType = "FindAccountState"
	QueryLockTokens       effect.QueryType = "Validator.LockTokens"
	QueryUnlockTokens     effect.QueryType = "Validator.UnlockTokens"
)

// AccountRequest is the payload of FindAccountState. It records which
// account and chain the read was staged for.
type AccountRequest struct {
	Account common.Address
	ChainID uint64
}

// TxRequest is the payload of the lock and unlock queries.
type TxRequest struct {
	Kind    DialogKind
	Account common.Address
	ChainID uint64
	Amount  *big.Int
}

// ProviderFound is the response of FindWeb3Instance.
type ProviderFound struct {
	ChainID uint64
}

// TxError is returned by the lock and unlock handlers. Reason is the
// revert reason when the node reported one.
type TxError struct {
	Kind   DialogKind
	Reason string
	Err    error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Kind, e.Reason)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

func txQueryType(kind DialogKind) effect.QueryType {
	if kind == DialogUnlock {
		return QueryUnlockTokens
	}
	return QueryLockTokens
}
