package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"lockScope/internal/chain"
	"lockScope/internal/effect"
	"lockScope/internal/model"
	"lockScope/internal/multicall"
	"lockScope/internal/retry"
)

// ErrNoLockContract is returned by lock and unlock without a lock contract.
var ErrNoLockContract = errors.New("lock contract not configured")

// Env holds the collaborators of the dashboard query handlers.
type Env struct {
	// Slot holds the active provider. Only FindWeb3Instance writes it.
	Slot *chain.Slot
	// Dial opens a provider for the wallet's current network.
	Dial      func(ctx context.Context) (chain.Provider, error)
	Contracts Contracts
	// Fetcher retries the account read. Nil uses the default schedule.
	Fetcher   *retry.Fetcher
	TokenMeta *TokenMetaCache
	Logger    *zap.Logger
	Now       func() time.Time
}

type handlers struct {
	slot      *chain.Slot
	dial      func(ctx context.Context) (chain.Provider, error)
	contracts Contracts
	fetcher   *retry.Fetcher
	tokenMeta *TokenMetaCache
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistry registers the dashboard query handlers.
func NewRegistry(env *Env) (*effect.Registry[State], error) {
	if env == nil {
		return nil, fmt.Errorf("env is nil")
	}
	if env.Slot == nil {
		return nil, fmt.Errorf("provider slot is required")
	}
	if env.Dial == nil {
		return nil, fmt.Errorf("dial func is required")
	}
	if err := env.Contracts.validate(); err != nil {
		return nil, err
	}

	h := &handlers{
		slot:      env.Slot,
		dial:      env.Dial,
		contracts: env.Contracts,
		tokenMeta: env.TokenMeta,
		logger:    env.Logger,
		now:       env.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.tokenMeta == nil {
		h.tokenMeta = NewTokenMetaCache()
	}

	fetcher := retry.Fetcher{Name: string(QueryFindAccountState), Schedule: retry.DefaultSchedule}
	if env.Fetcher != nil {
		fetcher = *env.Fetcher
	}
	if fetcher.Probe == nil {
		fetcher.Probe = h.probe
	}
	if fetcher.NetworkName == nil {
		fetcher.NetworkName = chain.NetworkName
	}
	if fetcher.Logger == nil {
		fetcher.Logger = h.logger
	}
	if fetcher.Retryable == nil {
		fetcher.Retryable = retryableRead
	}
	h.fetcher = &fetcher

	registry := effect.NewRegistry[State]()
	registry.MustRegister(QueryFindWeb3Instance, h.findWeb3Instance)
	registry.MustRegister(QueryFindAccountState, h.findAccountState)
	registry.MustRegister(QueryLockTokens, h.submitTx)
	registry.MustRegister(QueryUnlockTokens, h.submitTx)
	return registry, nil
}

func (h *handlers) probe(ctx context.Context) (*big.Int, error) {
	provider, err := h.slot.Get()
	if err != nil {
		return nil, err
	}
	return provider.ChainID(ctx)
}

func (h *handlers) findWeb3Instance(ctx context.Context, hc effect.HandlerContext[State]) (any, error) {
	provider, err := h.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial provider: %w", err)
	}
	chainID, err := provider.ChainID(ctx)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if !chainID.IsUint64() {
		provider.Close()
		return nil, fmt.Errorf("chain id out of range: %s", chainID)
	}

	h.slot.Replace(provider, chainID.Uint64())
	h.logger.Info("provider connected",
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.String("network", chain.NetworkName(chainID.Uint64())),
	)
	return ProviderFound{ChainID: chainID.Uint64()}, nil
}

type accountRead struct {
	results multicall.Results
	block   uint64
}

func (h *handlers) findAccountState(ctx context.Context, hc effect.HandlerContext[State]) (any, error) {
	req, ok := hc.Query.Payload.(AccountRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", hc.Query.Payload)
	}

	meta, metaCached := h.tokenMeta.Get(req.ChainID, h.contracts.Token)
	batch := accountBatch(h.contracts, req.Account, metaCached)

	// every attempt reads through a provider still serving req.ChainID, so
	// neither the snapshot nor the metadata cache can mix chains
	read, err := retry.Run(ctx, h.fetcher, func(ctx context.Context) (accountRead, error) {
		provider, err := h.slot.GetOn(req.ChainID)
		if err != nil {
			return accountRead{}, err
		}
		results, block, err := multicall.Aggregate(ctx, provider, h.contracts.Aggregator, batch, nil)
		if err != nil {
			return accountRead{}, err
		}
		return accountRead{results: results, block: block}, nil
	})
	if err != nil {
		return nil, err
	}

	state := &AccountState{
		Account:   req.Account,
		ChainID:   req.ChainID,
		Block:     read.block,
		FetchedAt: h.now(),
	}
	if state.NativeBalance, err = requireBig(read.results, keyNative); err != nil {
		return nil, err
	}
	if state.TokenBalance, err = requireBig(read.results, keyBalance); err != nil {
		return nil, err
	}
	if state.TotalSupply, err = requireBig(read.results, keySupply); err != nil {
		return nil, err
	}
	if locked, ok := multicall.Value[*big.Int](read.results, keyLocked); ok {
		state.Locked = locked
	}

	if !metaCached {
		meta = model.TokenMeta{Address: h.contracts.Token.Hex()}
		meta.Decimals, _ = multicall.Value[uint8](read.results, keyDecimals)
		meta.Symbol, _ = multicall.Value[string](read.results, keySymbol)
		meta.Name, _ = multicall.Value[string](read.results, keyName)
		h.tokenMeta.Set(req.ChainID, h.contracts.Token, meta)
	}
	state.Token = meta
	return state, nil
}

// retryableRead gives up at once on a network switch or on return data that
// will never decode.
func retryableRead(err error) bool {
	var decodeErr *multicall.DecodeError
	return !errors.Is(err, chain.ErrChainMismatch) && !errors.As(err, &decodeErr)
}

func requireBig(results multicall.Results, key string) (*big.Int, error) {
	value, ok := multicall.Value[*big.Int](results, key)
	if !ok || value == nil {
		return nil, fmt.Errorf("account state: missing %s", key)
	}
	return value, nil
}

func (h *handlers) submitTx(ctx context.Context, hc effect.HandlerContext[State]) (any, error) {
	req, ok := hc.Query.Payload.(TxRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", hc.Query.Payload)
	}
	if !h.contracts.hasLock() {
		return nil, &TxError{Kind: req.Kind, Reason: ErrNoLockContract.Error(), Err: ErrNoLockContract}
	}

	provider, err := h.slot.Get()
	if err != nil {
		return nil, &TxError{Kind: req.Kind, Reason: err.Error(), Err: err}
	}
	data, err := txCalldata(req.Kind, req.Amount)
	if err != nil {
		return nil, &TxError{Kind: req.Kind, Reason: err.Error(), Err: err}
	}

	hash, err := provider.Transact(ctx, h.contracts.Lock, data)
	if err != nil {
		return nil, &TxError{Kind: req.Kind, Reason: chain.RevertReason(err), Err: err}
	}
	h.logger.Info("transaction mined",
		zap.String("kind", string(req.Kind)),
		zap.String("amount", req.Amount.String()),
		zap.String("tx_hash", hash.Hex()),
	)
	return &TxResult{Kind: req.Kind, Hash: hash, Amount: req.Amount, At: h.now()}, nil
}
