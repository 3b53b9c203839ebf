// Package proverstate implements the Prover Discovery & Batch-State Cache
// (spec §4.8): per destination chain, the prover contract's address and
// its last known batch height, keyed by chain name + core contract address
// so the same cache instance can serve multiple deployments of one chain.
package proverstate

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Querier is the on-chain read surface the cache falls back to on a miss.
type Querier interface {
	GetSedaProver(ctx context.Context, coreAddress common.Address) (common.Address, error)
	GetLastBatchHeight(ctx context.Context, proverAddress common.Address) (uint64, error)
}

// Network identifies one destination chain deployment.
type Network struct {
	Name        string
	CoreAddress common.Address
}

func (n Network) key() string {
	return n.Name + "-" + n.CoreAddress.Hex()
}

type entry struct {
	prover      common.Address
	hasProver   bool
	batchHeight uint64
	hasBatch    bool
}

// Cache is the prover/batch-height cache. Safe for concurrent use.
type Cache struct {
	querier Querier

	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs a Cache backed by querier for on-chain reads on a miss.
func New(querier Querier) *Cache {
	return &Cache{querier: querier, entries: make(map[string]*entry)}
}

// Discover returns network's prover address, reading get_seda_prover() on a
// cache miss. A read failure returns the zero address and the error; the
// caller treats the destination chain as offline for this operation.
func (c *Cache) Discover(ctx context.Context, network Network) (common.Address, error) {
	c.mu.Lock()
	e, ok := c.entries[network.key()]
	if ok && e.hasProver {
		addr := e.prover
		c.mu.Unlock()
		return addr, nil
	}
	if !ok {
		e = &entry{}
		c.entries[network.key()] = e
	}
	c.mu.Unlock()

	prover, err := c.querier.GetSedaProver(ctx, network.CoreAddress)
	if err != nil {
		return common.Address{}, err
	}

	c.mu.Lock()
	e.prover = prover
	e.hasProver = true
	c.mu.Unlock()

	return prover, nil
}

// LastBatchHeight returns the prover's last batch height, reading
// get_last_batch_height() on a cache miss.
func (c *Cache) LastBatchHeight(ctx context.Context, network Network, prover common.Address) (uint64, error) {
	c.mu.Lock()
	e, ok := c.entries[network.key()]
	if ok && e.hasBatch {
		h := e.batchHeight
		c.mu.Unlock()
		return h, nil
	}
	if !ok {
		e = &entry{}
		c.entries[network.key()] = e
	}
	c.mu.Unlock()

	height, err := c.querier.GetLastBatchHeight(ctx, prover)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	e.batchHeight = height
	e.hasBatch = true
	c.mu.Unlock()

	return height, nil
}

// InvalidateBatchHeight drops the cached batch height for network, e.g.
// after posting a new batch successfully so the next read is fresh.
func (c *Cache) InvalidateBatchHeight(network Network) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[network.key()]; ok {
		e.hasBatch = false
	}
}

// Clear drops all cached entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Cached returns network's prover address without triggering a read.
func (c *Cache) Cached(network Network) (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[network.key()]
	if !ok || !e.hasProver {
		return common.Address{}, false
	}
	return e.prover, true
}
