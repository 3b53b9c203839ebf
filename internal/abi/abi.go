// Package abi holds the destination-chain contract interfaces the solver
// calls (spec §6): ISedaCore, IProver, Secp256k1ProverV1, SedaFeeManager.
// Bindings are hand-assembled with go-ethereum's accounts/abi rather than
// codegen'd, grounded on the retrieved optimism batch-submitter snippet's
// abi.JSON + abi.ABI.Methods[...] pattern.
package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// sedaCoreJSON covers the subset of ISedaCore the solver calls (spec §6):
// postRequest, postResult, getPendingRequests, getResult, getSedaProver,
// hasResult.
const sedaCoreJSON = `[
	{"type":"function","name":"postRequest","stateMutability":"nonpayable",
	 "inputs":[{"name":"inputs","type":"bytes"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"postResult","stateMutability":"nonpayable",
	 "inputs":[{"name":"result","type":"bytes"},{"name":"batchHeight","type":"uint64"},{"name":"proof","type":"bytes32[]"}],
	 "outputs":[]},
	{"type":"function","name":"getPendingRequests","stateMutability":"view",
	 "inputs":[{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],
	 "outputs":[{"name":"","type":"bytes[]"}]},
	{"type":"function","name":"getResult","stateMutability":"view",
	 "inputs":[{"name":"drId","type":"bytes32"}],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"getSedaProver","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"hasResult","stateMutability":"view",
	 "inputs":[{"name":"drId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}
]`

// proverJSON covers IProver: getLastBatchHeight, getFeeManager.
const proverJSON = `[
	{"type":"function","name":"getLastBatchHeight","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"getFeeManager","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// secp256k1ProverV1JSON covers Secp256k1ProverV1: postBatch, paused. The
// EvmBatch tuple matches spec §6 exactly: (batchHeight, blockHeight,
// validatorsRoot, resultsRoot, provingMetadata), provingMetadata a
// 32-zero-byte field.
const secp256k1ProverV1JSON = `[
	{"type":"function","name":"postBatch","stateMutability":"nonpayable",
	 "inputs":[
	   {"name":"batch","type":"tuple","components":[
	     {"name":"batchHeight","type":"uint64"},
	     {"name":"blockHeight","type":"uint64"},
	     {"name":"validatorsRoot","type":"bytes32"},
	     {"name":"resultsRoot","type":"bytes32"},
	     {"name":"provingMetadata","type":"bytes32"}
	   ]},
	   {"name":"signatures","type":"bytes[]"},
	   {"name":"validatorProofs","type":"bytes[]"}
	 ],"outputs":[]},
	{"type":"function","name":"paused","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bool"}]}
]`

// sedaFeeManagerJSON covers SedaFeeManager: withdrawFees, getPendingFees.
const sedaFeeManagerJSON = `[
	{"type":"function","name":"withdrawFees","stateMutability":"nonpayable",
	 "inputs":[],"outputs":[]},
	{"type":"function","name":"getPendingFees","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// EvmBatch mirrors the Solidity tuple postBatch expects.
type EvmBatch struct {
	BatchHeight     uint64
	BlockHeight     uint64
	ValidatorsRoot  [32]byte
	ResultsRoot     [32]byte
	ProvingMetadata [32]byte
}

var (
	// SedaCore is the parsed ISedaCore ABI.
	SedaCore abi.ABI
	// Prover is the parsed IProver ABI.
	Prover abi.ABI
	// Secp256k1ProverV1 is the parsed Secp256k1ProverV1 ABI.
	Secp256k1ProverV1 abi.ABI
	// SedaFeeManager is the parsed SedaFeeManager ABI.
	SedaFeeManager abi.ABI
)

func init() {
	SedaCore = mustParse(sedaCoreJSON)
	Prover = mustParse(proverJSON)
	Secp256k1ProverV1 = mustParse(secp256k1ProverV1JSON)
	SedaFeeManager = mustParse(sedaFeeManagerJSON)
}

func mustParse(rawJSON string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(rawJSON))
	if err != nil {
		panic("abi: invalid contract ABI: " + err.Error())
	}
	return parsed
}
