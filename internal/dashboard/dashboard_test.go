package dashboard

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockScope/internal/chain"
	"lockScope/internal/effect"
	"lockScope/internal/multicall"
	"lockScope/internal/retry"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")

	testContracts = Contracts{
		Aggregator: common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11"),
		Token:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Lock:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}

	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func fixedNow() time.Time { return t0 }

func readyState() State {
	return State{
		Network: Network{ChainID: 56, Name: "bsc", Ready: true},
		Account: alice,
	}
}

func stagedTypes(s State) []effect.QueryType {
	if s.Queue.Staged == nil {
		return nil
	}
	out := make([]effect.QueryType, 0, len(s.Queue.Staged.Queries))
	for _, q := range s.Queue.Staged.Queries {
		out = append(out, q.Type)
	}
	return out
}

func TestRefreshThrottle(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})

	first, err := r.Reduce(readyState(), RefreshAccountState{At: t0})
	require.NoError(t, err)
	require.Equal(t, []effect.QueryType{QueryFindAccountState}, stagedTypes(first))
	assert.Equal(t, t0, first.LastRefreshAt)

	second, err := r.Reduce(first, RefreshAccountState{At: t0.Add(100 * time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Same(t, first.Queue.Staged, second.Queue.Staged)

	third, err := r.Reduce(second, RefreshAccountState{At: t0.Add(2000 * time.Millisecond)})
	require.NoError(t, err)
	assert.NotSame(t, second.Queue.Staged, third.Queue.Staged)
	assert.Equal(t, []effect.QueryType{QueryFindAccountState}, stagedTypes(third))
	assert.Equal(t, t0.Add(2000*time.Millisecond), third.LastRefreshAt)
}

func TestForceRefreshBypassesThrottle(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})

	first, err := r.Reduce(readyState(), RefreshAccountState{At: t0})
	require.NoError(t, err)
	forced, err := r.Reduce(first, RefreshAccountState{ForceRefresh: true, At: t0.Add(10 * time.Millisecond)})
	require.NoError(t, err)
	assert.NotSame(t, first.Queue.Staged, forced.Queue.Staged)
}

func TestRefreshWithoutAccountIsIgnored(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})

	s := readyState()
	s.Account = common.Address{}
	next, err := r.Reduce(s, RefreshAccountState{ForceRefresh: true})
	require.NoError(t, err)
	assert.Nil(t, next.Queue.Staged)

	s = readyState()
	s.Network.Ready = false
	next, err = r.Reduce(s, RefreshAccountState{ForceRefresh: true})
	require.NoError(t, err)
	assert.Nil(t, next.Queue.Staged)
}

func TestStaleAccountResponseIsDropped(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	s := readyState()

	for name, req := range map[string]AccountRequest{
		"other account": {Account: bob, ChainID: 56},
		"other chain":   {Account: alice, ChainID: 1},
	} {
		t.Run(name, func(t *testing.T) {
			next, err := r.Reduce(s, effect.Completion{
				Query:    effect.Query{ID: "q", Type: QueryFindAccountState, Payload: req},
				Response: &AccountState{Account: req.Account, ChainID: req.ChainID, TokenBalance: big.NewInt(1)},
			})
			require.NoError(t, err)
			assert.Nil(t, next.AccountState)

			next, err = r.Reduce(s, effect.Completion{
				Query: effect.Query{ID: "q", Type: QueryFindAccountState, Payload: req},
				Err:   errors.New("boom"),
			})
			require.NoError(t, err)
			assert.Empty(t, next.Error)
		})
	}
}

func TestAccountResponseApplied(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	s, err := r.Reduce(readyState(), RefreshAccountState{At: t0})
	require.NoError(t, err)
	s, err = r.Reduce(s, effect.StageQueries{Batch: s.Queue.Staged})
	require.NoError(t, err)
	query := s.Queue.Pending[0]

	account := &AccountState{Account: alice, ChainID: 56, TokenBalance: big.NewInt(7)}
	s, err = r.Reduce(s, effect.Completion{Query: query, Response: account})
	require.NoError(t, err)
	assert.Same(t, account, s.AccountState)
	assert.Empty(t, s.Queue.Pending)
}

func TestLockValidation(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})

	cases := []struct {
		name   string
		state  func() State
		cmd    effect.Command
		expect string
	}{
		{"zero amount", readyState, LockTokens{Amount: big.NewInt(0)}, "amount must be greater than zero"},
		{"nil amount", readyState, UnlockTokens{}, "amount must be greater than zero"},
		{"not connected", func() State {
			s := readyState()
			s.Network.Ready = false
			return s
		}, LockTokens{Amount: big.NewInt(1)}, "wallet is not connected"},
		{"exceeds balance", func() State {
			s := readyState()
			s.AccountState = &AccountState{TokenBalance: big.NewInt(10)}
			return s
		}, LockTokens{Amount: big.NewInt(11)}, "amount exceeds token balance"},
		{"exceeds locked", func() State {
			s := readyState()
			s.AccountState = &AccountState{Locked: big.NewInt(3)}
			return s
		}, UnlockTokens{Amount: big.NewInt(4)}, "amount exceeds locked balance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := r.Reduce(tc.state(), tc.cmd)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, next.Error)
			assert.True(t, next.Dialog.Open)
			assert.False(t, next.Dialog.Pending)
			assert.Nil(t, next.Queue.Staged)
		})
	}
}

func TestLockStagesTransaction(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	s := readyState()
	s.AccountState = &AccountState{TokenBalance: big.NewInt(100)}

	amount := big.NewInt(40)
	next, err := r.Reduce(s, LockTokens{Amount: amount})
	require.NoError(t, err)
	require.Equal(t, []effect.QueryType{QueryLockTokens}, stagedTypes(next))
	assert.True(t, next.Dialog.Pending)

	req := next.Queue.Staged.Queries[0].Payload.(TxRequest)
	assert.Equal(t, DialogLock, req.Kind)
	assert.Equal(t, alice, req.Account)
	amount.SetInt64(1)
	assert.Equal(t, int64(40), req.Amount.Int64(), "payload must not alias the command amount")

	again, err := r.Reduce(next, UnlockTokens{Amount: big.NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, next, again, "a pending transaction blocks another submission")
}

func TestTxFolds(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	s := readyState()
	s, err := r.Reduce(s, UnlockTokens{Amount: big.NewInt(5)})
	require.NoError(t, err)
	query := s.Queue.Staged.Queries[0]

	t.Run("failure keeps dialog open", func(t *testing.T) {
		next, err := r.Reduce(s, effect.Completion{
			Query: query,
			Err:   &TxError{Kind: DialogUnlock, Reason: "Lock: still locked", Err: errors.New("execution reverted")},
		})
		require.NoError(t, err)
		assert.Equal(t, "Lock: still locked", next.Error)
		assert.True(t, next.Dialog.Open)
		assert.False(t, next.Dialog.Pending)
		assert.Nil(t, next.LastTx)
	})

	t.Run("success closes dialog and refreshes", func(t *testing.T) {
		result := &TxResult{Kind: DialogUnlock, Hash: common.HexToHash("0xabc"), Amount: big.NewInt(5), At: t0}
		next, err := r.Reduce(s, effect.Completion{Query: query, Response: result})
		require.NoError(t, err)
		assert.Equal(t, Dialog{}, next.Dialog)
		assert.Same(t, result, next.LastTx)
		assert.Equal(t, []effect.QueryType{QueryFindAccountState}, stagedTypes(next))
	})
}

func TestProviderFoldStagesAccountRead(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	s := State{Account: alice}
	s, err := r.Reduce(s, Initialize{})
	require.NoError(t, err)
	require.Equal(t, []effect.QueryType{QueryFindWeb3Instance}, stagedTypes(s))
	s, err = r.Reduce(s, effect.StageQueries{Batch: s.Queue.Staged})
	require.NoError(t, err)

	again, err := r.Reduce(s, Initialize{})
	require.NoError(t, err)
	assert.Same(t, s.Queue.Staged, again.Queue.Staged, "discovery already pending")

	s, err = r.Reduce(s, effect.Completion{Query: s.Queue.Pending[0], Response: ProviderFound{ChainID: 56}})
	require.NoError(t, err)
	assert.Equal(t, Network{ChainID: 56, Name: "bsc", Ready: true}, s.Network)
	assert.Equal(t, []effect.QueryType{QueryFindAccountState}, stagedTypes(s))
}

func TestSupersededProviderResponseIsDropped(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	s, err := r.Reduce(State{}, Initialize{})
	require.NoError(t, err)
	s, err = r.Reduce(s, effect.StageQueries{Batch: s.Queue.Staged})
	require.NoError(t, err)
	first := s.Queue.Pending[0]

	s, err = r.Reduce(s, NetworkChanged{ChainID: 1})
	require.NoError(t, err)
	s, err = r.Reduce(s, effect.StageQueries{Batch: s.Queue.Staged})
	require.NoError(t, err)

	s, err = r.Reduce(s, effect.Completion{Query: first, Response: ProviderFound{ChainID: 56}})
	require.NoError(t, err)
	assert.False(t, s.Network.Ready)
	assert.Equal(t, uint64(1), s.Network.ChainID)
}

func TestUnknownQueryTypeIsReported(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	_, err := r.Reduce(readyState(), effect.Completion{Query: effect.Query{ID: "x", Type: "Gems.Open"}})
	require.ErrorIs(t, err, effect.ErrUnknownQueryType)
}

func TestDialogCommands(t *testing.T) {
	r := NewReducer(ReducerConfig{Now: fixedNow})
	s := readyState()
	s.Error = "old"

	s, err := r.Reduce(s, OpenDialog{Kind: DialogUnlock})
	require.NoError(t, err)
	assert.Equal(t, Dialog{Kind: DialogUnlock, Open: true}, s.Dialog)
	assert.Empty(t, s.Error)

	s, err = r.Reduce(s, CloseDialog{})
	require.NoError(t, err)
	assert.Equal(t, Dialog{}, s.Dialog)

	s.Error = "shown"
	s, err = r.Reduce(s, DismissError{})
	require.NoError(t, err)
	assert.Empty(t, s.Error)
}

// fakeChain answers aggregate calls for the account batch and records transactions.
type fakeChain struct {
	t       *testing.T
	chainID int64

	mu        sync.Mutex
	failFirst int
	calls     int
	lastBatch int
	txErr     error
	txData    [][]byte
	closed    int
	responses map[string][]byte
	// onCall runs before every eth_call, outside the lock.
	onCall func()
}

func packValue(t *testing.T, typ string, value any) []byte {
	t.Helper()
	ty, err := abi.NewType(typ, "", nil)
	require.NoError(t, err)
	out, err := abi.Arguments{{Type: ty}}.Pack(value)
	require.NoError(t, err)
	return out
}

func sel(name string, types ...string) string {
	return hexutil.Encode(multicall.Selector(name, types))
}

func newFakeChain(t *testing.T, chainID int64) *fakeChain {
	pack := func(typ string, value any) []byte { return packValue(t, typ, value) }
	return &fakeChain{
		t:       t,
		chainID: chainID,
		responses: map[string][]byte{
			sel("getEthBalance", "address"):   pack("uint256", big.NewInt(1000)),
			sel("balanceOf", "address"):       pack("uint256", big.NewInt(250)),
			sel("totalSupply"):                pack("uint256", big.NewInt(1_000_000)),
			sel("lockedBalanceOf", "address"): pack("uint256", big.NewInt(75)),
			sel("decimals"):                   pack("uint8", uint8(18)),
			sel("symbol"):                     pack("string", "LOCK"),
			sel("name"):                       pack("string", "Lock Token"),
		},
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFirst < 0 || f.calls <= f.failFirst {
		return nil, errors.New("header not found")
	}

	parsed, err := multicall.AggregatorABI()
	require.NoError(f.t, err)
	method := parsed.Methods["aggregate"]
	inputs, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	calls := *abi.ConvertType(inputs[0], new([]struct {
		Target   common.Address
		CallData []byte
	})).(*[]struct {
		Target   common.Address
		CallData []byte
	})
	f.lastBatch = len(calls)

	returnData := make([][]byte, 0, len(calls))
	for _, call := range calls {
		data, ok := f.responses[hexutil.Encode(call.CallData[:4])]
		require.True(f.t, ok, "unexpected selector %x", call.CallData[:4])
		returnData = append(returnData, data)
	}
	return method.Outputs.Pack(big.NewInt(36_000_000), returnData)
}

func (f *fakeChain) Transact(_ context.Context, to common.Address, data []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if to != testContracts.Lock {
		return common.Hash{}, errors.New("wrong contract")
	}
	f.txData = append(f.txData, data)
	if f.txErr != nil {
		return common.Hash{}, f.txErr
	}
	return common.HexToHash("0xfeed"), nil
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestStore(t *testing.T, dial func(context.Context) (chain.Provider, error), contracts Contracts) (*effect.Store[State], *[]error) {
	t.Helper()
	var (
		mu     sync.Mutex
		errs   []error
		report = func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	)
	store, err := NewStore(context.Background(), Options{
		Env: &Env{
			Slot:      chain.NewSlot(),
			Dial:      dial,
			Contracts: contracts,
			Fetcher:   &retry.Fetcher{Name: "account", Schedule: retry.DefaultSchedule, Sleep: noSleep},
			Now:       fixedNow,
		},
		Store: effect.StoreConfig{OnError: report},
	})
	require.NoError(t, err)
	return store, &errs
}

func waitIdle(t *testing.T, store *effect.Store[State]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, store.Wait(ctx))
}

func TestStoreLoadsAccountState(t *testing.T) {
	fake := newFakeChain(t, 56)
	store, errs := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)

	s := store.State()
	require.Empty(t, *errs)
	require.NotNil(t, s.AccountState)
	assert.True(t, s.Network.Ready)
	assert.Equal(t, uint64(36_000_000), s.AccountState.Block)
	assert.Equal(t, int64(1000), s.AccountState.NativeBalance.Int64())
	assert.Equal(t, int64(250), s.AccountState.TokenBalance.Int64())
	assert.Equal(t, int64(1_000_000), s.AccountState.TotalSupply.Int64())
	assert.Equal(t, int64(75), s.AccountState.Locked.Int64())
	assert.Equal(t, "LOCK", s.AccountState.Token.Symbol)
	assert.Equal(t, uint8(18), s.AccountState.Token.Decimals)
	assert.Empty(t, s.Queue.Pending)
	assert.Equal(t, 7, fake.lastBatch)

	require.NoError(t, store.Dispatch(RefreshAccountState{ForceRefresh: true}))
	waitIdle(t, store)
	assert.Equal(t, 4, fake.lastBatch, "cached token metadata is not requested again")
	assert.Equal(t, "LOCK", store.State().AccountState.Token.Symbol)

	snapshot := store.State().AccountState.Snapshot("bsc")
	assert.Equal(t, "250", snapshot.TokenBalance)
	assert.Equal(t, "75", snapshot.Locked)
}

func TestStoreWithoutLockContract(t *testing.T) {
	fake := newFakeChain(t, 56)
	contracts := testContracts
	contracts.Lock = common.Address{}
	store, _ := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, contracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)

	s := store.State()
	require.NotNil(t, s.AccountState)
	assert.Nil(t, s.AccountState.Locked)
	assert.Equal(t, 6, fake.lastBatch)

	require.NoError(t, store.Dispatch(LockTokens{Amount: big.NewInt(1)}))
	waitIdle(t, store)
	s = store.State()
	assert.Equal(t, ErrNoLockContract.Error(), s.Error)
	assert.True(t, s.Dialog.Open)
	assert.False(t, s.Dialog.Pending)
}

func TestStoreRetriesAccountRead(t *testing.T) {
	fake := newFakeChain(t, 56)
	fake.failFirst = 2
	store, _ := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)

	s := store.State()
	require.NotNil(t, s.AccountState)
	assert.Empty(t, s.Error)
	assert.Equal(t, 3, fake.calls)
}

func TestStoreSurfacesExhaustedRetries(t *testing.T) {
	fake := newFakeChain(t, 56)
	fake.failFirst = -1
	store, _ := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)

	s := store.State()
	assert.Nil(t, s.AccountState)
	assert.Equal(t, 4, fake.calls)
	assert.Contains(t, s.Error, "bsc (net 56)")
	assert.Contains(t, s.Error, "header not found")
}

func TestStoreLockRoundTrip(t *testing.T) {
	fake := newFakeChain(t, 56)
	store, _ := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)
	calls := fake.calls

	require.NoError(t, store.Dispatch(OpenDialog{Kind: DialogLock}))
	require.NoError(t, store.Dispatch(LockTokens{Amount: big.NewInt(100)}))
	waitIdle(t, store)

	s := store.State()
	require.NotNil(t, s.LastTx)
	assert.Equal(t, common.HexToHash("0xfeed"), s.LastTx.Hash)
	assert.Equal(t, Dialog{}, s.Dialog)
	assert.Equal(t, calls+1, fake.calls, "a mined transaction forces an account refresh")

	require.Len(t, fake.txData, 1)
	expected, err := txCalldata(DialogLock, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, expected, fake.txData[0])

	record := s.LastTx.Record(56, alice)
	assert.Equal(t, "lock", record.Kind)
	assert.Equal(t, "100", record.Amount)
}

func TestStoreLockRevert(t *testing.T) {
	fake := newFakeChain(t, 56)
	fake.txErr = errors.New("execution reverted: Lock: paused")
	store, _ := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)

	require.NoError(t, store.Dispatch(LockTokens{Amount: big.NewInt(10)}))
	waitIdle(t, store)

	s := store.State()
	assert.Equal(t, "Lock: paused", s.Error)
	assert.Equal(t, Dialog{Kind: DialogLock, Open: true}, s.Dialog)
	assert.Nil(t, s.LastTx)
}

func TestStoreNetworkChangeReplacesProvider(t *testing.T) {
	var (
		mu     sync.Mutex
		dialed []*fakeChain
		nextID int64 = 56
	)
	dial := func(context.Context) (chain.Provider, error) {
		mu.Lock()
		defer mu.Unlock()
		fake := newFakeChain(t, nextID)
		dialed = append(dialed, fake)
		return fake, nil
	}
	store, _ := newTestStore(t, dial, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)
	require.Equal(t, uint64(56), store.State().AccountState.ChainID)

	mu.Lock()
	nextID = 1
	mu.Unlock()
	require.NoError(t, store.Dispatch(NetworkChanged{ChainID: 1}))
	waitIdle(t, store)

	s := store.State()
	assert.Equal(t, Network{ChainID: 1, Name: "mainnet", Ready: true}, s.Network)
	require.NotNil(t, s.AccountState)
	assert.Equal(t, uint64(1), s.AccountState.ChainID)
	require.Len(t, dialed, 2)
	assert.Equal(t, 1, dialed[0].closed)
	assert.Equal(t, 0, dialed[1].closed)
}

func TestStoreReadsBytes32Metadata(t *testing.T) {
	fake := newFakeChain(t, 1)
	var symbol [32]byte
	copy(symbol[:], "MKR")
	fake.responses[sel("symbol")] = packValue(t, "bytes32", symbol)
	fake.responses[sel("name")] = []byte{}
	store, errs := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)

	s := store.State()
	require.Empty(t, *errs)
	require.NotNil(t, s.AccountState, s.Error)
	assert.Equal(t, "MKR", s.AccountState.Token.Symbol)
	assert.Empty(t, s.AccountState.Token.Name, "undecodable name is left out")
	assert.Equal(t, uint8(18), s.AccountState.Token.Decimals)
	assert.Equal(t, int64(250), s.AccountState.TokenBalance.Int64())
	assert.Equal(t, 1, fake.calls)
}

func TestStoreDoesNotRetryUndecodableRead(t *testing.T) {
	fake := newFakeChain(t, 56)
	fake.responses[sel("balanceOf", "address")] = []byte{}
	store, _ := newTestStore(t, func(context.Context) (chain.Provider, error) { return fake, nil }, testContracts)

	require.NoError(t, store.Dispatch(SelectAccount{Account: alice}))
	require.NoError(t, store.Dispatch(Initialize{}))
	waitIdle(t, store)

	s := store.State()
	assert.Nil(t, s.AccountState)
	assert.Equal(t, 1, fake.calls)
	assert.Contains(t, s.Error, `decode "balance"`)
}

func TestAccountReadStopsOnNetworkSwitch(t *testing.T) {
	slot := chain.NewSlot()
	mainnet := newFakeChain(t, 1)
	mainnet.failFirst = 1
	bsc := newFakeChain(t, 56)
	bsc.responses[sel("decimals")] = packValue(t, "uint8", uint8(6))

	var once sync.Once
	mainnet.onCall = func() { once.Do(func() { slot.Replace(bsc, 56) }) }
	slot.Replace(mainnet, 1)

	meta := NewTokenMetaCache()
	registry, err := NewRegistry(&Env{
		Slot:      slot,
		Dial:      func(context.Context) (chain.Provider, error) { return nil, errors.New("not dialed") },
		Contracts: testContracts,
		Fetcher:   &retry.Fetcher{Schedule: retry.DefaultSchedule, Sleep: noSleep},
		TokenMeta: meta,
		Now:       fixedNow,
	})
	require.NoError(t, err)
	handler, err := registry.Lookup(QueryFindAccountState)
	require.NoError(t, err)

	_, err = handler(context.Background(), effect.HandlerContext[State]{Query: effect.Query{
		ID:      "read-1",
		Type:    QueryFindAccountState,
		Payload: AccountRequest{Account: alice, ChainID: 1},
	}})
	require.ErrorIs(t, err, chain.ErrChainMismatch)

	_, cached := meta.Get(1, testContracts.Token)
	assert.False(t, cached, "metadata of another chain must not be cached")
	assert.Equal(t, 1, mainnet.calls)
	assert.Zero(t, bsc.calls)
	assert.Equal(t, 1, mainnet.closed)
}

func TestNewRegistryValidatesEnv(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)

	_, err = NewRegistry(&Env{Slot: chain.NewSlot(), Dial: func(context.Context) (chain.Provider, error) { return nil, nil }})
	require.Error(t, err)

	registry, err := NewRegistry(&Env{
		Slot:      chain.NewSlot(),
		Dial:      func(context.Context) (chain.Provider, error) { return nil, nil },
		Contracts: testContracts,
	})
	require.NoError(t, err)
	assert.Equal(t, []effect.QueryType{
		QueryFindAccountState,
		QueryFindWeb3Instance,
		QueryLockTokens,
		QueryUnlockTokens,
	}, registry.Types())
}
