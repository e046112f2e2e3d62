package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNoSigner is returned by Transact on a read-only client.
	ErrNoSigner = errors.New("chain: no signing key configured")
	// ErrTxReverted is returned when a mined transaction has a failed status.
	ErrTxReverted = errors.New("chain: transaction reverted")
)

const defaultMineTimeout = 2 * time.Minute

// Provider is the connection every query handler reads through.
type Provider interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Transact(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
	Close()
}

// Client wraps go-ethereum RPC and implements Provider.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	signerHex   string
	key         *ecdsa.PrivateKey
	from        common.Address
	mineTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSigner enables Transact using the hex encoded private key.
func WithSigner(hexKey string) Option {
	return func(c *Client) {
		c.signerHex = hexKey
	}
}

// WithMineTimeout bounds how long Transact waits for a receipt.
func WithMineTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.mineTimeout = d
		}
	}
}

// SignerAddress returns the address controlled by the hex encoded private key.
func SignerAddress(hexKey string) (common.Address, error) {
	key, err := parseKey(hexKey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts ...Option) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		mineTimeout: defaultMineTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.signerHex != "" {
		key, err := parseKey(c.signerHex)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("signer key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
		c.signerHex = ""
	}
	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// Transact signs and sends a transaction calling to with data, then waits for
// it to be mined. Estimation failures usually carry the revert reason.
func (c *Client) Transact(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}

	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := c.ethClient.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := c.ethClient.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.ethClient.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	mineCtx, cancel := context.WithTimeout(ctx, c.mineTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(mineCtx, c.ethClient, signed)
	if err != nil {
		return signed.Hash(), fmt.Errorf("wait mined %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return signed.Hash(), fmt.Errorf("%w: %s", ErrTxReverted, signed.Hash().Hex())
	}
	return signed.Hash(), nil
}
