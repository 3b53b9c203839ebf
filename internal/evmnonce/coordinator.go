// Package evmnonce implements the EVM Nonce Coordinator (spec §4.7): a
// per-(chain, account) pending-nonce table that serializes reservations,
// detects confirmation gaps, and escalates gas on stuck transactions.
// Grounded on the optimistic tx-nonce cache in the retrieved polygate
// nonce manager, generalized from a single in-process map into a
// chain-keyed, force-refreshing reservation queue per spec §4.7's
// stronger consistency requirements.
package evmnonce

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"cosmossdk.io/log"
)

// Strategy picks the initial nonce source for a never-seen account.
type Strategy int

const (
	// StrategyHybrid (aka PENDING) starts from the pending nonce, the
	// default per spec §4.7.
	StrategyHybrid Strategy = iota
	// StrategyLatest starts from the confirmed/latest nonce only.
	StrategyLatest
)

// Config holds the coordinator's tunables, all defaulted per spec §4.7.
type Config struct {
	Strategy               Strategy
	GapTolerance           uint64
	SyncInterval           time.Duration
	StuckTimeout           time.Duration
	MaxRetryCount          int
	MaxPendingTransactions int
	GasEscalationFactor    float64
	ReplacementBumpFactor  float64
}

// DefaultConfig returns the defaults spec §4.7 names.
func DefaultConfig() Config {
	return Config{
		Strategy:               StrategyHybrid,
		GapTolerance:           10,
		SyncInterval:           15 * time.Second,
		StuckTimeout:           5 * time.Minute,
		MaxRetryCount:          3,
		MaxPendingTransactions: 50,
		GasEscalationFactor:    1.2,
		ReplacementBumpFactor:  1.1,
	}
}

// Client is the chain-read surface the coordinator needs per chain name;
// callers register one per destination network (narrowed ethclient.Client).
type Client interface {
	NonceAt(ctx context.Context, account string) (uint64, error)
	PendingNonceAt(ctx context.Context, account string) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// PendingEvmTx is one outstanding nonce slot (spec §3).
type PendingEvmTx struct {
	Nonce       uint64
	Hash        string
	GasPrice    *big.Int
	FirstSeenTS time.Time
	RetryCount  int
	IsStuck     bool
}

// Reservation is the handle spec §4.7's reserve() hands back.
type Reservation struct {
	Nonce         uint64
	GasPrice      *big.Int
	IsReplacement bool

	coord   *Coordinator
	chain   string
	account string
}

// Confirm attaches a broadcast hash to the reservation's pending entry.
func (r *Reservation) Confirm(hash string) {
	r.coord.confirm(r.chain, r.account, r.Nonce, hash)
}

// Release drops the reservation's pending entry without confirming it.
func (r *Reservation) Release() {
	r.coord.release(r.chain, r.account, r.Nonce)
}

type acctKey struct {
	chain   string
	account string
}

// nonceTable is spec §3's per-(chain,account) NonceTable.
type nonceTable struct {
	mu              sync.Mutex
	confirmedNonce  uint64
	pendingNonce    uint64
	pendingByNonce  map[uint64]*PendingEvmTx
	highestReserved uint64
	initialized     bool
}

// Coordinator is the EVM Nonce Coordinator.
type Coordinator struct {
	logger  log.Logger
	cfg     Config
	clients map[string]Client

	mu       sync.Mutex
	accounts map[acctKey]*nonceTable

	stopC chan struct{}
	doneC chan struct{}
}

// New constructs a Coordinator. clients maps chain name to a Client able to
// read latest/pending nonces and suggested gas price for that chain.
func New(logger log.Logger, cfg Config, clients map[string]Client) *Coordinator {
	return &Coordinator{
		logger:   logger,
		cfg:      cfg,
		clients:  clients,
		accounts: make(map[acctKey]*nonceTable),
	}
}

// Start launches the periodic sync loop (spec §4.7, default 15s).
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.stopC != nil {
		c.mu.Unlock()
		return
	}
	c.stopC = make(chan struct{})
	c.doneC = make(chan struct{})
	c.mu.Unlock()

	go c.syncLoop(ctx)
}

// Stop halts the periodic sync loop.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	stopC := c.stopC
	doneC := c.doneC
	c.stopC = nil
	c.mu.Unlock()

	if stopC == nil {
		return
	}
	close(stopC)
	<-doneC
}

func (c *Coordinator) syncLoop(ctx context.Context) {
	defer close(c.doneC)

	ticker := time.NewTicker(c.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopC:
			return
		case <-ticker.C:
			c.syncAll(ctx)
		}
	}
}

func (c *Coordinator) syncAll(ctx context.Context) {
	c.mu.Lock()
	keys := make([]acctKey, 0, len(c.accounts))
	for k := range c.accounts {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.syncOne(ctx, k)
	}
}

// syncOne re-reads latest+pending, retires confirmed entries, and escalates
// stuck ones (spec §4.7 periodic sync).
func (c *Coordinator) syncOne(ctx context.Context, k acctKey) {
	client, ok := c.clients[k.chain]
	if !ok {
		return
	}
	latest, err := client.NonceAt(ctx, k.account)
	if err != nil {
		c.logger.Error("evmnonce sync failed to read latest", "chain", k.chain, "account", k.account, "error", err.Error())
		return
	}
	pending, err := client.PendingNonceAt(ctx, k.account)
	if err != nil {
		c.logger.Error("evmnonce sync failed to read pending", "chain", k.chain, "account", k.account, "error", err.Error())
		return
	}

	t := c.table(k)
	t.mu.Lock()
	defer t.mu.Unlock()

	t.confirmedNonce = latest
	t.pendingNonce = pending

	for nonce := range t.pendingByNonce {
		if nonce < latest {
			delete(t.pendingByNonce, nonce)
		}
	}

	now := time.Now()
	for _, tx := range t.pendingByNonce {
		if now.Sub(tx.FirstSeenTS) <= c.cfg.StuckTimeout {
			continue
		}
		tx.IsStuck = true
		if tx.RetryCount >= c.cfg.MaxRetryCount {
			continue
		}
		tx.RetryCount++
		tx.GasPrice = escalate(tx.GasPrice, c.cfg.GasEscalationFactor)
		c.logger.Warn("evmnonce escalated stuck tx",
			"chain", k.chain, "account", k.account, "nonce", tx.Nonce, "retry_count", tx.RetryCount)
	}
}

func (c *Coordinator) table(k acctKey) *nonceTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.accounts[k]
	if !ok {
		t = &nonceTable{pendingByNonce: make(map[uint64]*PendingEvmTx)}
		c.accounts[k] = t
	}
	return t
}

// Reserve assigns the next EVM nonce for (chain, account), serialized per
// spec §4.7: at most one reservation is decided at a time for a given key,
// because the account's table lock is held for the entire decision.
func (c *Coordinator) Reserve(ctx context.Context, chain, account string) (*Reservation, error) {
	client, ok := c.clients[chain]
	if !ok {
		return nil, fmt.Errorf("evmnonce: no client registered for chain %q", chain)
	}

	k := acctKey{chain: chain, account: account}
	t := c.table(k)

	t.mu.Lock()
	defer t.mu.Unlock()

	latest, err := client.NonceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("evmnonce: read latest nonce: %w", err)
	}
	pending, err := client.PendingNonceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("evmnonce: read pending nonce: %w", err)
	}

	if !t.initialized {
		t.initialized = true
		if pending > latest && pending-latest > c.cfg.GapTolerance {
			c.logger.Warn("evmnonce gap detected on first reservation",
				"chain", chain, "account", account, "latest", latest, "pending", pending)
		}
	}

	t.confirmedNonce = latest
	t.pendingNonce = pending

	for nonce := range t.pendingByNonce {
		if nonce < latest {
			delete(t.pendingByNonce, nonce)
		}
	}

	if len(t.pendingByNonce) >= c.cfg.MaxPendingTransactions {
		return nil, fmt.Errorf("evmnonce: %d pending transactions already outstanding for %s/%s", len(t.pendingByNonce), chain, account)
	}

	start := pending
	if c.cfg.Strategy == StrategyLatest {
		start = latest
	}

	next := start
	if t.highestReserved+1 > next {
		next = t.highestReserved + 1
	}
	for {
		if _, taken := t.pendingByNonce[next]; !taken {
			break
		}
		next++
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("evmnonce: suggest gas price: %w", err)
	}

	isReplacement := false
	if existing, ok := t.pendingByNonce[next]; ok {
		isReplacement = true
		gasPrice = maxBig(gasPrice, escalate(existing.GasPrice, c.cfg.ReplacementBumpFactor))
	}

	t.pendingByNonce[next] = &PendingEvmTx{
		Nonce:       next,
		GasPrice:    gasPrice,
		FirstSeenTS: time.Now(),
	}
	if next > t.highestReserved {
		t.highestReserved = next
	}

	return &Reservation{
		Nonce:         next,
		GasPrice:      gasPrice,
		IsReplacement: isReplacement,
		coord:         c,
		chain:         chain,
		account:       account,
	}, nil
}

// HandleFailure implements spec §4.7's handle_failure: drop the failed
// entry, force a fresh latest/pending read, and reserve again.
func (c *Coordinator) HandleFailure(ctx context.Context, chain, account string, failedNonce uint64, cause error) (*Reservation, error) {
	k := acctKey{chain: chain, account: account}
	t := c.table(k)

	t.mu.Lock()
	delete(t.pendingByNonce, failedNonce)
	// Lower the reservation high-water mark to the highest nonce still
	// outstanding, so the failed nonce can be handed out again.
	t.highestReserved = 0
	for n := range t.pendingByNonce {
		if n > t.highestReserved {
			t.highestReserved = n
		}
	}
	t.mu.Unlock()

	c.logger.Warn("evmnonce handling reservation failure",
		"chain", chain, "account", account, "failed_nonce", failedNonce, "error", causeString(cause))

	return c.Reserve(ctx, chain, account)
}

func (c *Coordinator) confirm(chain, account string, nonce uint64, hash string) {
	t := c.table(acctKey{chain: chain, account: account})
	t.mu.Lock()
	defer t.mu.Unlock()
	if tx, ok := t.pendingByNonce[nonce]; ok {
		tx.Hash = hash
	}
}

func (c *Coordinator) release(chain, account string, nonce uint64) {
	t := c.table(acctKey{chain: chain, account: account})
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pendingByNonce, nonce)
}

// Snapshot returns the known pending entries for (chain, account), sorted
// by nonce, for diagnostics and tests.
func (c *Coordinator) Snapshot(chain, account string) []PendingEvmTx {
	t := c.table(acctKey{chain: chain, account: account})
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PendingEvmTx, 0, len(t.pendingByNonce))
	for _, tx := range t.pendingByNonce {
		out = append(out, *tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out
}

func escalate(price *big.Int, factor float64) *big.Int {
	if price == nil {
		return nil
	}
	// Scale by the factor's shortest decimal form so that e.g. 1.2 multiplies
	// by exactly 6/5 rather than by its binary approximation.
	f, ok := new(big.Rat).SetString(strconv.FormatFloat(factor, 'g', -1, 64))
	if !ok {
		return new(big.Int).Set(price)
	}
	scaled := new(big.Rat).Mul(new(big.Rat).SetInt(price), f)
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

func maxBig(a, b *big.Int) *big.Int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func causeString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
