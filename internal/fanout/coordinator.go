// Package fanout implements the EVM Fan-out Coordinator (spec §4.11):
// given one completed oracle result with consensus=true, exit_code=0, push
// it to every enabled destination chain in parallel, via C8 (prover
// discovery), C9 (batch posting) and C10 (result posting).
package fanout

import (
	"context"
	"errors"
	"sync"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sedaprotocol/seda-push-solver/internal/abi"
	"github.com/sedaprotocol/seda-push-solver/internal/batchposter"
	"github.com/sedaprotocol/seda-push-solver/internal/evmclient"
	"github.com/sedaprotocol/seda-push-solver/internal/evmnonce"
	"github.com/sedaprotocol/seda-push-solver/internal/proverstate"
	"github.com/sedaprotocol/seda-push-solver/internal/resultposter"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
	"github.com/sedaprotocol/seda-push-solver/internal/stats"
)

// ProofFetcher fetches the merkle proof tying a result to a signed batch,
// via the SEDA client adapter (C16).
type ProofFetcher interface {
	GetValidatorProof(ctx context.Context, drID [32]byte, batchHeight uint64) ([][32]byte, error)
}

// Destination is one enabled EVM network the coordinator fans results out
// to, with every per-chain collaborator it needs already wired.
type Destination struct {
	Name         string
	Enabled      bool
	Network      proverstate.Network
	Account      string
	Client       *evmclient.Client
	NonceCoord   *evmnonce.Coordinator
	ProverCache  *proverstate.Cache
	BatchPoster  *batchposter.Poster
	ResultPoster *resultposter.Poster
}

// Coordinator drives the per-destination fan-out routine concurrently.
type Coordinator struct {
	logger       log.Logger
	seda         ProofFetcher
	stats        *stats.Stats
	destinations []Destination
}

// New constructs a Coordinator over destinations.
func New(logger log.Logger, seda ProofFetcher, st *stats.Stats, destinations []Destination) *Coordinator {
	return &Coordinator{logger: logger, seda: seda, stats: st, destinations: destinations}
}

// Dispatch fans result out to every enabled destination concurrently;
// failure on one destination never cancels the others (spec §4.11).
func (c *Coordinator) Dispatch(ctx context.Context, result sedatypes.DataResult) {
	var wg sync.WaitGroup
	for _, dest := range c.destinations {
		if !dest.Enabled {
			continue
		}
		wg.Add(1)
		go func(d Destination) {
			defer wg.Done()
			if err := c.fanoutOne(ctx, d, result); err != nil {
				c.stats.IncFanoutFailed()
				c.logger.Error("fanout failed", "destination", d.Name, "dr_id", result.DrID, "error", err.Error())
				return
			}
			c.stats.IncFanoutSuccess()
			c.logger.Info("fanout succeeded", "destination", d.Name, "dr_id", result.DrID)
		}(dest)
	}
	wg.Wait()
}

func (c *Coordinator) fanoutOne(ctx context.Context, dest Destination, result sedatypes.DataResult) error {
	proverAddr, err := dest.ProverCache.Discover(ctx, dest.Network)
	if err != nil {
		return err
	}

	lastHeight, err := dest.ProverCache.LastBatchHeight(ctx, dest.Network, proverAddr)
	if err != nil {
		return err
	}

	if lastHeight < result.BatchAssignment {
		proverContract := dest.Client.Contract(proverAddr, abi.Secp256k1ProverV1)
		reserve := func(rctx context.Context) (*evmnonce.Reservation, error) {
			return dest.NonceCoord.Reserve(rctx, dest.Name, dest.Account)
		}
		state, err := dest.BatchPoster.Post(ctx, batchposter.QueueEntry{
			Network:      dest.Name,
			TargetHeight: result.BatchAssignment,
		}, proverContract, reserve, lastHeight)
		if err != nil && state != batchposter.StatePosted {
			return err
		}
		dest.ProverCache.InvalidateBatchHeight(dest.Network)
	}

	proof, err := c.seda.GetValidatorProof(ctx, result.DrID, result.BatchAssignment)
	if err != nil {
		return err
	}

	coreContract := dest.Client.Contract(dest.Network.CoreAddress, abi.SedaCore)
	_, err = dest.ResultPoster.Post(ctx, dest.Name, dest.Account, coreContract, result, result.BatchAssignment, proof)
	if errors.Is(err, resultposter.ErrResultAlreadyExists) {
		return nil
	}
	return err
}

// querierAdapter lets proverstate.Cache read through the EVM client
// without proverstate importing evmclient directly.
type querierAdapter struct {
	client *evmclient.Client
}

// NewQuerier wraps client as a proverstate.Querier.
func NewQuerier(client *evmclient.Client) proverstate.Querier {
	return querierAdapter{client: client}
}

func (q querierAdapter) GetSedaProver(ctx context.Context, coreAddress common.Address) (common.Address, error) {
	core := q.client.Contract(coreAddress, abi.SedaCore)
	var out []any
	if err := core.Call(ctx, &out, "getSedaProver"); err != nil {
		return common.Address{}, err
	}
	addr, _ := out[0].(common.Address)
	return addr, nil
}

func (q querierAdapter) GetLastBatchHeight(ctx context.Context, proverAddress common.Address) (uint64, error) {
	prover := q.client.Contract(proverAddress, abi.Prover)
	var out []any
	if err := prover.Call(ctx, &out, "getLastBatchHeight"); err != nil {
		return 0, err
	}
	height, _ := out[0].(uint64)
	return height, nil
}
