package dashboard

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"lockScope/internal/chain"
	"lockScope/internal/effect"
)

// DefaultThrottleWindow is the minimum spacing of unforced account refreshes.
const DefaultThrottleWindow = 2000 * time.Millisecond

// ReducerConfig tunes the dashboard transitions.
type ReducerConfig struct {
	ThrottleWindow time.Duration
	// Now stamps refreshes staged without an explicit time.
	Now func() time.Time
}

type reducer struct {
	window time.Duration
	now    func() time.Time
}

// NewReducer returns the dashboard transition functions.
func NewReducer(cfg ReducerConfig) effect.Reducer[State] {
	r := &reducer{window: cfg.ThrottleWindow, now: cfg.Now}
	if r.window <= 0 {
		r.window = DefaultThrottleWindow
	}
	if r.now == nil {
		r.now = time.Now
	}
	return effect.Reducer[State]{
		HandleCommand:       r.handleCommand,
		HandleQueryResponse: r.handleQueryResponse,
	}
}

func (r *reducer) handleCommand(s State, cmd effect.Command) State {
	switch c := cmd.(type) {
	case Initialize:
		if s.Network.Ready || s.Queue.HasPending(QueryFindWeb3Instance) {
			return s
		}
		return r.findProvider(s)

	case NetworkChanged:
		s.Network = Network{ChainID: c.ChainID, Name: chain.NetworkName(c.ChainID)}
		s.AccountState = nil
		s.LastRefreshAt = time.Time{}
		return r.findProvider(s)

	case SelectAccount:
		if c.Account == s.Account {
			return s
		}
		s.Account = c.Account
		s.AccountState = nil
		s.LastRefreshAt = time.Time{}
		if !s.Network.Ready || !s.HasAccount() {
			return s
		}
		return r.stageAccountRead(s, r.now())

	case RefreshAccountState:
		if !s.Network.Ready || !s.HasAccount() {
			return s
		}
		at := c.At
		if at.IsZero() {
			at = r.now()
		}
		if !c.ForceRefresh && !s.LastRefreshAt.IsZero() && at.Sub(s.LastRefreshAt) < r.window {
			return s
		}
		return r.stageAccountRead(s, at)

	case OpenDialog:
		if s.Dialog.Pending {
			return s
		}
		s.Dialog = Dialog{Kind: c.Kind, Open: true}
		s.Error = ""
		return s

	case CloseDialog:
		if s.Dialog.Pending {
			return s
		}
		s.Dialog = Dialog{}
		return s

	case LockTokens:
		return r.submit(s, DialogLock, c.Amount)

	case UnlockTokens:
		return r.submit(s, DialogUnlock, c.Amount)

	case DismissError:
		s.Error = ""
		return s
	}
	return s
}

func (r *reducer) handleQueryResponse(s State, c effect.Completion) (State, error) {
	switch c.Query.Type {
	case QueryFindWeb3Instance:
		return r.foldProvider(s, c), nil
	case QueryFindAccountState:
		return r.foldAccount(s, c), nil
	case QueryLockTokens, QueryUnlockTokens:
		return r.foldTx(s, c), nil
	}
	return s, effect.UnknownQuery(c.Query.Type)
}

func (r *reducer) findProvider(s State) State {
	s.Network.Ready = false
	s.Queue = effect.Stage(s.Queue, effect.Query{Type: QueryFindWeb3Instance})
	return s
}

func (r *reducer) stageAccountRead(s State, at time.Time) State {
	s.LastRefreshAt = at
	s.Queue = effect.Stage(s.Queue, effect.Query{
		Type:    QueryFindAccountState,
		Payload: AccountRequest{Account: s.Account, ChainID: s.Network.ChainID},
	})
	return s
}

func (r *reducer) submit(s State, kind DialogKind, amount *big.Int) State {
	if s.Dialog.Pending {
		return s
	}
	s.Dialog = Dialog{Kind: kind, Open: true}
	if msg := validateTx(s, kind, amount); msg != "" {
		s.Error = msg
		return s
	}

	s.Error = ""
	s.Dialog.Pending = true
	s.Queue = effect.Stage(s.Queue, effect.Query{
		Type: txQueryType(kind),
		Payload: TxRequest{
			Kind:    kind,
			Account: s.Account,
			ChainID: s.Network.ChainID,
			Amount:  new(big.Int).Set(amount),
		},
	})
	return s
}

func validateTx(s State, kind DialogKind, amount *big.Int) string {
	switch {
	case !s.Network.Ready:
		return "wallet is not connected"
	case !s.HasAccount():
		return "no account selected"
	case amount == nil || amount.Sign() <= 0:
		return "amount must be greater than zero"
	}
	if s.AccountState == nil {
		return ""
	}
	switch kind {
	case DialogLock:
		if s.AccountState.TokenBalance != nil && amount.Cmp(s.AccountState.TokenBalance) > 0 {
			return "amount exceeds token balance"
		}
	case DialogUnlock:
		if s.AccountState.Locked != nil && amount.Cmp(s.AccountState.Locked) > 0 {
			return "amount exceeds locked balance"
		}
	}
	return ""
}

func (r *reducer) foldProvider(s State, c effect.Completion) State {
	// a later discovery supersedes this one
	for _, q := range s.Queue.Pending {
		if q.Type == QueryFindWeb3Instance && q.ID != c.Query.ID {
			return s
		}
	}

	if c.Err != nil {
		s.Network.Ready = false
		s.Error = "connect wallet: " + errorMessage(c.Err)
		return s
	}
	found, ok := c.Response.(ProviderFound)
	if !ok {
		s.Error = fmt.Sprintf("connect wallet: unexpected response %T", c.Response)
		return s
	}

	s.Network = Network{ChainID: found.ChainID, Name: chain.NetworkName(found.ChainID), Ready: true}
	s.Error = ""
	if s.AccountState != nil && s.AccountState.ChainID != found.ChainID {
		s.AccountState = nil
	}
	if !s.HasAccount() {
		return s
	}
	return r.stageAccountRead(s, r.now())
}

func (r *reducer) foldAccount(s State, c effect.Completion) State {
	req, _ := c.Query.Payload.(AccountRequest)
	if req.Account != s.Account || req.ChainID != s.Network.ChainID {
		return s
	}

	if c.Err != nil {
		s.Error = errorMessage(c.Err)
		return s
	}
	account, ok := c.Response.(*AccountState)
	if !ok || account == nil {
		s.Error = fmt.Sprintf("account state: unexpected response %T", c.Response)
		return s
	}
	s.AccountState = account
	return s
}

func (r *reducer) foldTx(s State, c effect.Completion) State {
	req, _ := c.Query.Payload.(TxRequest)
	if s.Dialog.Kind == req.Kind {
		s.Dialog.Pending = false
	}

	if c.Err != nil {
		s.Error = errorMessage(c.Err)
		return s
	}
	result, ok := c.Response.(*TxResult)
	if !ok || result == nil {
		s.Error = fmt.Sprintf("%s: unexpected response %T", req.Kind, c.Response)
		return s
	}

	s.LastTx = result
	s.Dialog = Dialog{}
	if !s.Network.Ready || req.Account != s.Account || req.ChainID != s.Network.ChainID {
		return s
	}
	return r.stageAccountRead(s, r.now())
}

func errorMessage(err error) string {
	var txErr *TxError
	if errors.As(err, &txErr) && txErr.Reason != "" {
		return txErr.Reason
	}
	return err.Error()
}
