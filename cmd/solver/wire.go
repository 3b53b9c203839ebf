package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/sedaprotocol/seda-push-solver/internal/abi"
	"github.com/sedaprotocol/seda-push-solver/internal/batchposter"
	"github.com/sedaprotocol/seda-push-solver/internal/completion"
	"github.com/sedaprotocol/seda-push-solver/internal/config"
	"github.com/sedaprotocol/seda-push-solver/internal/cosmoscoord"
	"github.com/sedaprotocol/seda-push-solver/internal/evmclient"
	"github.com/sedaprotocol/seda-push-solver/internal/evmnonce"
	"github.com/sedaprotocol/seda-push-solver/internal/fanout"
	"github.com/sedaprotocol/seda-push-solver/internal/health"
	"github.com/sedaprotocol/seda-push-solver/internal/proverstate"
	"github.com/sedaprotocol/seda-push-solver/internal/resultposter"
	"github.com/sedaprotocol/seda-push-solver/internal/scheduler"
	"github.com/sedaprotocol/seda-push-solver/internal/sedaclient"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
	"github.com/sedaprotocol/seda-push-solver/internal/stats"
	"github.com/sedaprotocol/seda-push-solver/internal/task"
)

// registryCleanupInterval and registryCleanupHorizon bound the task
// registry's memory growth: terminal tasks older than the horizon are
// swept off on every tick of the interval.
const (
	registryCleanupInterval = time.Hour
	registryCleanupHorizon  = 24 * time.Hour
)

// Solver holds every wired component for the lifetime of one run.
type Solver struct {
	logger     log.Logger
	cfg        config.Config
	seda       *sedaclient.Client
	sequencer  *cosmoscoord.Coordinator
	scheduler  *scheduler.Scheduler
	executor   *task.Executor
	registry   *task.Registry
	completion *completion.Handler
	health     *health.Server
	outcomeC   chan task.Outcome
}

// NewSolver wires C1-C19 from cfg.
func NewSolver(ctx context.Context, logger log.Logger, cfg config.Config) (*Solver, error) {
	sedaCli, err := sedaclient.New(sedaclient.Config{
		ChainID:             networkChainID(cfg.Seda.Network),
		RPCEndpoint:         cfg.Seda.RPCEndpoint,
		Mnemonic:            cfg.Seda.Mnemonic,
		Bech32AddrPrefix:    "seda",
		GasAdjustment:       1.5,
		DataResultQueryPath: "/seda.tally.v1.Query/DataResult",
		BatchQueryPath:      "/seda.batching.v1.Query/Batch",
		ProofQueryPath:      "/seda.batching.v1.Query/ValidatorProof",
	}, logger, buildSubmitMsg, decodeDataResult, decodeBatch, decodeValidatorProof)
	if err != nil {
		return nil, fmt.Errorf("dial seda client: %w", err)
	}

	sequencer := cosmoscoord.New(logger, cfg.Cosmos.MaxQueueSize, cfg.Cosmos.PostingTimeout())
	sequencer.Initialize(ctx, sedaCli)
	sequencer.Start(ctx)

	st := stats.New()

	nonceClients := make(map[string]evmnonce.Client)
	nonceCoord := evmnonce.New(logger, nonceConfig(cfg), nonceClients)

	batchPoster := batchposter.New(logger, sedaCli, batchposter.DefaultConfig())

	var destinations []fanout.Destination
	pauseCheckers := make(map[string]batchposter.PausedFunc)
	for _, netCfg := range cfg.EvmNetworks {
		if !netCfg.Enabled {
			continue
		}
		client, err := evmclient.Dial(ctx, logger, netCfg.RPCURL, cfg.EvmPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("dial evm network %s: %w", netCfg.Name, err)
		}
		nonceClients[netCfg.Name] = client

		cache := proverstate.New(fanout.NewQuerier(client))
		resultPoster := resultposter.New(logger, client, nonceCoord, resultposter.DefaultConfig())

		network := proverstate.Network{
			Name:        netCfg.Name,
			CoreAddress: common.HexToAddress(netCfg.ContractAddress),
		}
		destinations = append(destinations, fanout.Destination{
			Name:         netCfg.Name,
			Enabled:      netCfg.Enabled,
			Network:      network,
			Account:      client.From().Hex(),
			Client:       client,
			NonceCoord:   nonceCoord,
			ProverCache:  cache,
			BatchPoster:  batchPoster,
			ResultPoster: resultPoster,
		})
		pauseCheckers[netCfg.Name] = proverPausedFunc(client, cache, network)
	}
	nonceCoord.Start(ctx)
	batchPoster.StartPauseCheckLoop(ctx, pauseCheckers)

	fanoutCoord := fanout.New(logger, sedaCli, st, destinations)
	completionHandler := completion.New(logger, st, fanoutCoord)

	registry := task.NewRegistry()
	outcomeC := make(chan task.Outcome, 64)
	executor := task.New(logger, registry, sequencer, sedaCli, st, task.Config{
		PostingTimeout:        cfg.Cosmos.PostingTimeout(),
		OracleTimeout:         secondsToDuration(cfg.Seda.DRTimeoutSeconds),
		OraclePollingInterval: secondsToDuration(cfg.Seda.DRPollingIntervalSeconds),
		SubmitRetries:         cfg.Scheduler.MaxRetries,
		SubmitRetryDelay:      0,
	}, outcomeC)

	var sched *scheduler.Scheduler
	sched = scheduler.New(logger, scheduler.Config{
		Interval:   cfg.Scheduler.Interval(),
		Continuous: cfg.Scheduler.Continuous,
	}, func(taskID string) {
		dr := buildDataRequest(cfg.Seda, cfg.Scheduler, sched.Stats().TicksFired)
		registry.Register(taskID)
		go executor.Run(ctx, taskID, dr)
	})

	healthSrv := health.New(logger, cfg.HealthAddr, func() bool { return sched.Ready() })

	return &Solver{
		logger:     logger,
		cfg:        cfg,
		seda:       sedaCli,
		sequencer:  sequencer,
		scheduler:  sched,
		executor:   executor,
		registry:   registry,
		completion: completionHandler,
		health:     healthSrv,
		outcomeC:   outcomeC,
	}, nil
}

// Run starts the scheduler, completion handler and registry cleanup loop,
// and blocks until ctx is cancelled, then stops everything in reverse order.
func (s *Solver) Run(ctx context.Context) error {
	go s.completion.Run(ctx, s.outcomeC)
	go s.runRegistryCleanup(ctx)
	s.scheduler.Start()

	err := s.health.Run(ctx)

	s.scheduler.Stop()
	s.sequencer.Stop()

	return err
}

// runRegistryCleanup periodically sweeps terminal tasks older than
// registryCleanupHorizon out of the registry, so a long-running process
// doesn't grow it without bound (spec §4.4).
func (s *Solver) runRegistryCleanup(ctx context.Context) {
	ticker := time.NewTicker(registryCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.registry.CleanupOlderThan(registryCleanupHorizon); removed > 0 {
				s.logger.Info("task registry cleanup", "removed", removed)
			}
		}
	}
}

// proverPausedFunc builds a batchposter.PausedFunc for one destination
// network: discover its prover contract through the same cache the fan-out
// coordinator uses, then read its paused() view function.
func proverPausedFunc(client *evmclient.Client, cache *proverstate.Cache, network proverstate.Network) batchposter.PausedFunc {
	return func(ctx context.Context) (bool, error) {
		addr, err := cache.Discover(ctx, network)
		if err != nil {
			return false, err
		}
		prover := client.Contract(addr, abi.Secp256k1ProverV1)
		var out []any
		if err := prover.Call(ctx, &out, "paused"); err != nil {
			return false, err
		}
		paused, _ := out[0].(bool)
		return paused, nil
	}
}

func nonceConfig(cfg config.Config) evmnonce.Config {
	nc := evmnonce.DefaultConfig()
	if cfg.NonceStrategy == config.NonceStrategyLatest {
		nc.Strategy = evmnonce.StrategyLatest
	}
	return nc
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// buildSubmitMsg constructs the chain message carrying dr. SEDA's own
// submission message type is outside the retrieved corpus (spec §1 scopes
// the SEDA RPC/signing collaborator out), so this is the one seam left for
// the real message type to be dropped into.
func buildSubmitMsg(dr sedatypes.DataRequest, memo []byte, sender sdk.AccAddress) (sdk.Msg, error) {
	return nil, fmt.Errorf("sedaclient: data request submission message type not wired")
}

func decodeDataResult(raw []byte) (*sedatypes.DataResult, error) {
	return nil, fmt.Errorf("sedaclient: data result decoding not wired")
}

func decodeBatch(raw []byte) (*sedatypes.Batch, error) {
	return nil, fmt.Errorf("sedaclient: signed batch decoding not wired")
}

func decodeValidatorProof(raw []byte) ([][32]byte, error) {
	return nil, fmt.Errorf("sedaclient: validator proof decoding not wired")
}

// buildDataRequest assembles one DataRequest from configuration, rotating
// round-robin through the configured oracle program ids per tick.
func buildDataRequest(seda config.SedaConfig, sch config.SchedulerConfig, tick uint64) sedatypes.DataRequest {
	programID := seda.OracleProgramIDs[int(tick)%len(seda.OracleProgramIDs)]
	id := programIDHash(programID)

	return sedatypes.DataRequest{
		Version:           "0.1",
		ExecProgramID:     id,
		TallyProgramID:    id,
		Memo:              []byte(sch.Memo),
		ReplicationFactor: 1,
	}
}

// programIDHash derives a 32-byte program id from its configured string:
// hex-decodes it directly if it's already 32 bytes of hex, else falls back
// to a SHA-256 digest of the raw string.
func programIDHash(programID string) [32]byte {
	if decoded, err := hex.DecodeString(trimHexPrefix(programID)); err == nil && len(decoded) == 32 {
		var out [32]byte
		copy(out[:], decoded)
		return out
	}
	return sha256.Sum256([]byte(programID))
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// networkChainID maps SEDA_NETWORK to its chain id, per the network names
// spec §6 enumerates.
func networkChainID(network string) string {
	switch network {
	case "mainnet":
		return "seda-1"
	case "local":
		return "seda-local"
	default:
		return "seda-testnet"
	}
}
