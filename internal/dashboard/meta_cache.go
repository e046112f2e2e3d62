package dashboard

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lockScope/internal/model"
)

// TokenMetaCache caches token metadata by chain and address. Metadata is
// immutable, so once cached it is never requested again.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[tokenKey]model.TokenMeta
}

type tokenKey struct {
	chainID uint64
	address common.Address
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[tokenKey]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(chainID uint64, address common.Address) (model.TokenMeta, bool) {
	if c == nil {
		return model.TokenMeta{}, false
	}
	c.mu.RLock()
	meta, ok := c.data[tokenKey{chainID, address}]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(chainID uint64, address common.Address, meta model.TokenMeta) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.data[tokenKey{chainID, address}] = meta
	c.mu.Unlock()
}
