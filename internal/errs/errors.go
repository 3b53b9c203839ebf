// Package errs centralizes the error taxonomy the solver classifies RPC
// failures into (spec §7). Errors are registered with cosmossdk.io/errors so
// callers can compare kinds with errorsmod.IsOf instead of string matching
// once a failure has been classified.
package errs

import (
	"strings"

	errorsmod "cosmossdk.io/errors"
)

const codespace = "solver"

var (
	ErrConfig                  = errorsmod.Register(codespace, 1, "config error")
	ErrSequenceMismatch        = errorsmod.Register(codespace, 2, "account sequence mismatch")
	ErrDataRequestAlreadyExists = errorsmod.Register(codespace, 3, "data request already exists")
	ErrOracleTimeout           = errorsmod.Register(codespace, 4, "oracle result timeout")
	ErrContractPaused          = errorsmod.Register(codespace, 5, "contract paused")
	ErrNonceUsed               = errorsmod.Register(codespace, 6, "nonce already used")
	ErrBatchConsensusNotReached = errorsmod.Register(codespace, 7, "batch consensus not reached")
	ErrBatchAlreadyExists      = errorsmod.Register(codespace, 8, "batch already exists")
	ErrInvalidResultTimestamp  = errorsmod.Register(codespace, 9, "invalid result timestamp")
	ErrResultAlreadyExists     = errorsmod.Register(codespace, 10, "result already exists")
	ErrTransientRPC            = errorsmod.Register(codespace, 11, "transient rpc error")
	ErrMaxRetriesExceeded      = errorsmod.Register(codespace, 12, "max retries exceeded")
	ErrQueueFull               = errorsmod.Register(codespace, 13, "queue full")
	ErrCancelled               = errorsmod.Register(codespace, 14, "cancelled")
)

// sequenceSubstrings are the fixed set of substrings spec §4.3 requires
// classification to be centralized on. Keep this the single place that maps
// raw RPC error text to a taxonomy kind.
var sequenceSubstrings = []string{
	"account sequence mismatch",
	"incorrect account sequence",
	"sequence number",
	"nonce too low",
	"sequence too low",
}

const duplicateDRSubstring = "DataRequestAlreadyExists"

// ClassifyCosmosSubmit maps a raw Cosmos submission error to a taxonomy kind.
// Returns nil if err is nil.
func ClassifyCosmosSubmit(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if containsAny(msg, sequenceSubstrings) {
		return errorsmod.Wrap(ErrSequenceMismatch, msg)
	}
	if contains(msg, duplicateDRSubstring) {
		return errorsmod.Wrap(ErrDataRequestAlreadyExists, msg)
	}
	return errorsmod.Wrap(ErrTransientRPC, msg)
}

// evmSubstrings maps ABI-bound revert reasons to taxonomy kinds for EVM
// write calls (batch posting, result posting), per spec §7/§4.9/§4.10.
var evmSubstrings = []struct {
	substr string
	kind   *errorsmod.Error
}{
	{"ConsensusNotReached", ErrBatchConsensusNotReached},
	{"BatchAlreadyExists", ErrBatchAlreadyExists},
	{"EnforcedPause", ErrContractPaused},
	{"InvalidResultTimestamp", ErrInvalidResultTimestamp},
	{"ResultAlreadyExists", ErrResultAlreadyExists},
	{"nonce too low", ErrNonceUsed},
	{"replacement transaction underpriced", ErrNonceUsed},
	{"nonce has already been used", ErrNonceUsed},
}

// ClassifyEvmError maps a raw EVM RPC/revert error to a taxonomy kind.
func ClassifyEvmError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, m := range evmSubstrings {
		if contains(msg, m.substr) {
			return errorsmod.Wrap(m.kind, msg)
		}
	}
	return errorsmod.Wrap(ErrTransientRPC, msg)
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if contains(s, sub) {
			return true
		}
	}
	return false
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
