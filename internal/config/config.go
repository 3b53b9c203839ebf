// Package config loads the solver's configuration from environment
// variables per spec.md §6. See DESIGN.md for why this stays on the
// standard library rather than a flag/viper stack.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/sedaprotocol/seda-push-solver/internal/errs"
)

// GasPolicy selects legacy vs EIP-1559 gas pricing for a destination chain.
type GasPolicy int

const (
	GasPolicyLegacy GasPolicy = iota
	GasPolicyEIP1559
)

// EvmNetworkConfig is the static per-chain descriptor from spec §3.
type EvmNetworkConfig struct {
	Name                string
	RPCURL              string
	FallbackRPCURLs     []string
	ContractAddress     string
	ChainID             uint64
	GasLimit            uint64
	GasPolicy           GasPolicy
	GasPrice            uint64 // legacy
	MaxFeePerGas        uint64 // eip-1559
	MaxPriorityFeePerGas uint64 // eip-1559
	Enabled             bool
	FeeClaimThreshold   uint64
}

// SedaConfig holds SEDA-side settings.
type SedaConfig struct {
	Network                  string
	RPCEndpoint              string
	Mnemonic                 string
	OracleProgramIDs         []string
	DRTimeoutSeconds         int
	DRPollingIntervalSeconds int
}

// SchedulerConfig holds interval-scheduler settings.
type SchedulerConfig struct {
	IntervalMS int
	Continuous bool
	MaxRetries int
	Memo       string
}

// CosmosConfig holds sequence-coordinator settings.
type CosmosConfig struct {
	PostingTimeoutMS int
	MaxQueueSize     int
}

// NonceStrategy selects the EVM nonce coordinator's initialization source.
type NonceStrategy int

const (
	NonceStrategyPending NonceStrategy = iota
	NonceStrategyLatest
)

// Config is the solver's fully loaded configuration.
type Config struct {
	Seda          SedaConfig
	Scheduler     SchedulerConfig
	Cosmos        CosmosConfig
	EvmNetworks   []EvmNetworkConfig
	EvmPrivateKey string
	LogLevel      string
	LogFormat     string
	HealthAddr    string
	NonceStrategy NonceStrategy
}

// Load reads the process environment into a Config. The set of <PREFIX>
// chain names to look for (e.g. "BASE", "ARBITRUM") comes from EVM_NETWORKS
// (comma-separated), since env vars don't enumerate themselves.
func Load() (Config, error) {
	cfg := Config{
		Seda: SedaConfig{
			Network:                  getenvDefault("SEDA_NETWORK", "testnet"),
			RPCEndpoint:              os.Getenv("SEDA_RPC_ENDPOINT"),
			Mnemonic:                 os.Getenv("SEDA_MNEMONIC"),
			DRTimeoutSeconds:         getenvIntDefault("SEDA_DR_TIMEOUT_SECONDS", 60),
			DRPollingIntervalSeconds: getenvIntDefault("SEDA_DR_POLLING_INTERVAL_SECONDS", 3),
		},
		Scheduler: SchedulerConfig{
			IntervalMS: getenvIntDefault("SCHEDULER_INTERVAL_MS", 15000),
			Continuous: getenvBoolDefault("SCHEDULER_CONTINUOUS", true),
			MaxRetries: getenvIntDefault("SCHEDULER_MAX_RETRIES", 3),
			Memo:       getenvDefault("SCHEDULER_MEMO", "seda-push-solver"),
		},
		Cosmos: CosmosConfig{
			PostingTimeoutMS: getenvIntDefault("COSMOS_POSTING_TIMEOUT_MS", 20000),
			MaxQueueSize:     getenvIntDefault("COSMOS_MAX_QUEUE_SIZE", 1000),
		},
		EvmPrivateKey: os.Getenv("EVM_PRIVATE_KEY"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		LogFormat:     getenvDefault("LOG_FORMAT", "plain"),
		HealthAddr:    getenvDefault("HEALTH_ADDR", ":8080"),
	}

	if cfg.Seda.Mnemonic == "" {
		return Config{}, errorsmod.Wrap(errs.ErrConfig, "SEDA_MNEMONIC is required")
	}

	if ids := os.Getenv("SEDA_ORACLE_PROGRAM_IDS"); ids != "" {
		cfg.Seda.OracleProgramIDs = splitNonEmpty(ids)
	} else if id := os.Getenv("SEDA_ORACLE_PROGRAM_ID"); id != "" {
		cfg.Seda.OracleProgramIDs = []string{id}
	} else {
		return Config{}, errorsmod.Wrap(errs.ErrConfig, "SEDA_ORACLE_PROGRAM_ID or SEDA_ORACLE_PROGRAM_IDS is required")
	}

	switch strings.ToLower(os.Getenv("EVM_NONCE_STRATEGY")) {
	case "latest":
		cfg.NonceStrategy = NonceStrategyLatest
	default:
		cfg.NonceStrategy = NonceStrategyPending
	}

	names := splitNonEmpty(os.Getenv("EVM_NETWORKS"))
	for _, name := range names {
		netCfg, err := loadEvmNetwork(name)
		if err != nil {
			return Config{}, err
		}
		cfg.EvmNetworks = append(cfg.EvmNetworks, netCfg)
	}
	if len(cfg.EvmNetworks) == 0 {
		return Config{}, errorsmod.Wrap(errs.ErrConfig, "EVM_NETWORKS must name at least one destination chain")
	}

	return cfg, nil
}

func loadEvmNetwork(name string) (EvmNetworkConfig, error) {
	prefix := strings.ToUpper(name)

	rpcURL := os.Getenv(prefix + "_RPC_URL")
	if rpcURL == "" {
		return EvmNetworkConfig{}, errorsmod.Wrapf(errs.ErrConfig, "%s_RPC_URL is required", prefix)
	}
	contractAddr := os.Getenv(prefix + "_CONTRACT_ADDRESS")
	if contractAddr == "" {
		return EvmNetworkConfig{}, errorsmod.Wrapf(errs.ErrConfig, "%s_CONTRACT_ADDRESS is required", prefix)
	}
	chainID, err := getenvUint64(prefix + "_CHAIN_ID")
	if err != nil {
		return EvmNetworkConfig{}, errorsmod.Wrapf(errs.ErrConfig, "%s_CHAIN_ID: %s", prefix, err)
	}

	cfg := EvmNetworkConfig{
		Name:              name,
		RPCURL:            rpcURL,
		ContractAddress:   contractAddr,
		ChainID:           chainID,
		GasLimit:          getenvUint64Default(prefix+"_GAS_LIMIT", 3_000_000),
		Enabled:           getenvBoolDefault(prefix+"_ENABLED", true),
		FeeClaimThreshold: getenvUint64Default(prefix+"_FEE_CLAIM_THRESHOLD", 0),
	}

	maxFee := os.Getenv(prefix + "_MAX_FEE_PER_GAS")
	maxPriority := os.Getenv(prefix + "_MAX_PRIORITY_FEE_PER_GAS")
	if maxFee != "" || maxPriority != "" {
		cfg.GasPolicy = GasPolicyEIP1559
		cfg.MaxFeePerGas, _ = strconv.ParseUint(maxFee, 10, 64)
		cfg.MaxPriorityFeePerGas, _ = strconv.ParseUint(maxPriority, 10, 64)
	} else {
		cfg.GasPolicy = GasPolicyLegacy
		cfg.GasPrice = getenvUint64Default(prefix+"_GAS_PRICE", 0)
	}

	if fallbacks := os.Getenv(prefix + "_RPC_FALLBACKS"); fallbacks != "" {
		cfg.FallbackRPCURLs = splitNonEmpty(fallbacks)
	}

	return cfg, nil
}

func (c CosmosConfig) PostingTimeout() time.Duration {
	return time.Duration(c.PostingTimeoutMS) * time.Millisecond
}

func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMS) * time.Millisecond
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvUint64Default(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvUint64(key string) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	return strconv.ParseUint(v, 10, 64)
}

func getenvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
