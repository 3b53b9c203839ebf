package resultposter

import (
	"context"
	"errors"
	"strings"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sedaprotocol/seda-push-solver/internal/evmclient"
	"github.com/sedaprotocol/seda-push-solver/internal/evmnonce"
	"github.com/sedaprotocol/seda-push-solver/internal/retry"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

// ErrResultAlreadyExists marks a result as already posted; the caller
// treats this as a terminal success-equivalent drop.
var ErrResultAlreadyExists = errors.New("resultposter: result already exists")

// ErrInvalidResultTimestamp marks a result as unpostable; terminal drop.
var ErrInvalidResultTimestamp = errors.New("resultposter: invalid result timestamp")

// ErrPaused indicates the destination contract is paused.
var ErrPaused = errors.New("resultposter: destination contract paused")

// Config bounds retries, per spec §4.10.
type Config struct {
	MaxTransactionRetries int
	RetryDelay            time.Duration
	ReceiptWait           evmclient.WaitReceiptOptions
}

// DefaultConfig matches spec §4.10's 3-retry default.
func DefaultConfig() Config {
	return Config{
		MaxTransactionRetries: 3,
		RetryDelay:            2 * time.Second,
		ReceiptWait:           evmclient.WaitReceiptOptions{MaxRetries: 5, Delay: 2 * time.Second},
	}
}

// Poster submits serialized DataResults to a destination chain's
// ISedaCore contract.
type Poster struct {
	logger     log.Logger
	client     *evmclient.Client
	nonceCoord *evmnonce.Coordinator
	cfg        Config
}

// New constructs a Poster.
func New(logger log.Logger, client *evmclient.Client, nonceCoord *evmnonce.Coordinator, cfg Config) *Poster {
	return &Poster{logger: logger, client: client, nonceCoord: nonceCoord, cfg: cfg}
}

// Post submits result to core for destination chain/account, after an
// optional hasResult pre-check (spec §4.10). A non-nil error other than
// the three sentinel drop errors means the caller should retry with a
// bounded counter, per spec's per-result FIFO ticker.
func (p *Poster) Post(ctx context.Context, chain, account string, core *evmclient.Contract, result sedatypes.DataResult, targetBatchHeight uint64, proof [][32]byte) (*types.Receipt, error) {
	if exists, ok := p.checkHasResult(ctx, core, result.DrID); ok && exists {
		return nil, ErrResultAlreadyExists
	}

	encoded, err := Serialize(result)
	if err != nil {
		return nil, err
	}

	res, err := p.nonceCoord.Reserve(ctx, chain, account)
	if err != nil {
		return nil, err
	}

	submit := retry.Run(ctx, func(rctx context.Context, attempt int) (*types.Transaction, error) {
		return core.Send(rctx, res, "postResult", encoded, targetBatchHeight, proof)
	}, retry.Options{MaxRetries: p.cfg.MaxTransactionRetries, Delay: p.cfg.RetryDelay})

	if !submit.Ok {
		classified := p.classify(chain, submit.LastError)
		if errors.Is(classified, errNonceMismatch) {
			retryRes, recoverErr := p.nonceCoord.HandleFailure(ctx, chain, account, res.Nonce, submit.LastError)
			if recoverErr != nil {
				return nil, recoverErr
			}
			submit = retry.Run(ctx, func(rctx context.Context, attempt int) (*types.Transaction, error) {
				return core.Send(rctx, retryRes, "postResult", encoded, targetBatchHeight, proof)
			}, retry.Options{MaxRetries: p.cfg.MaxTransactionRetries, Delay: p.cfg.RetryDelay})
			if !submit.Ok {
				return nil, submit.LastError
			}
		} else {
			return nil, classified
		}
	}

	return p.client.WaitReceipt(ctx, submit.Value.Hash(), p.cfg.ReceiptWait)
}

var errNonceMismatch = errors.New("resultposter: nonce mismatch")

// classify maps ABI-item substrings in a submission error to a sentinel,
// per spec §4.10.
func (p *Poster) classify(chain string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "InvalidResultTimestamp"):
		return ErrInvalidResultTimestamp
	case strings.Contains(msg, "ResultAlreadyExists"):
		return ErrResultAlreadyExists
	case strings.Contains(msg, "EnforcedPause"):
		return ErrPaused
	case strings.Contains(msg, "nonce"):
		return errNonceMismatch
	default:
		return err
	}
}

func (p *Poster) checkHasResult(ctx context.Context, core *evmclient.Contract, drID [32]byte) (exists bool, checked bool) {
	var out []any
	if err := core.Call(ctx, &out, "hasResult", drID); err != nil {
		return false, false
	}
	if len(out) == 0 {
		return false, false
	}
	exists, ok := out[0].(bool)
	return exists, ok
}
