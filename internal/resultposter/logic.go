// Package resultposter implements the Result Poster (spec §4.10):
// serializes a finalized DataResult for a destination chain and submits it
// through ISedaCore.postResult, reserving its nonce through C7 and
// retrying writes through C1.
package resultposter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

// resultTupleArgs mirrors the DataResult fields ISedaCore.postResult expects
// packed into its opaque `result` bytes parameter (spec §4.10's
// serialization step): dr_id as bytes32, byte fields hex-prefixed by the
// ABI encoder itself, block_height/gas_used at their required integer
// widths, payback_address and seda_payload as bytes.
var resultTupleArgs abi.Arguments

func init() {
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	stringTy, _ := abi.NewType("string", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)
	uint8Ty, _ := abi.NewType("uint8", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	uint64Ty, _ := abi.NewType("uint64", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)

	resultTupleArgs = abi.Arguments{
		{Type: bytes32Ty},  // dr_id
		{Type: stringTy},   // version
		{Type: boolTy},     // consensus
		{Type: uint8Ty},    // exit_code
		{Type: bytesTy},    // result payload
		{Type: uint64Ty},   // block_height
		{Type: uint64Ty},   // block_timestamp
		{Type: uint256Ty},  // gas_used
		{Type: bytesTy},    // payback_address
		{Type: bytesTy},    // seda_payload
	}
}

// Serialize ABI-encodes dr into the bytes blob ISedaCore.postResult's
// `result` parameter expects.
func Serialize(dr sedatypes.DataResult) ([]byte, error) {
	gasUsed := dr.GasUsed.BigInt()
	if gasUsed == nil {
		gasUsed = big.NewInt(0)
	}
	return resultTupleArgs.Pack(
		dr.DrID,
		dr.Version,
		dr.Consensus,
		dr.ExitCode,
		dr.Result,
		dr.BlockHeight,
		dr.BlockTimestamp,
		gasUsed,
		dr.PaybackAddress,
		dr.SedaPayload,
	)
}
