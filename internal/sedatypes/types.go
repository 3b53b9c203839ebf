// Package sedatypes holds the SEDA-side data model from spec.md §3:
// DataRequest, DataResult, and the signed Batch that attests results.
package sedatypes

import sdkmath "cosmossdk.io/math"

// DataRequest is a unit of oracle work, carried verbatim from configuration
// except for the memo, which the cosmos sequence coordinator stamps per
// attempt (see internal/memo).
type DataRequest struct {
	Version          string
	ExecProgramID    [32]byte
	TallyProgramID   [32]byte
	ExecInputs       []byte
	TallyInputs      []byte
	ConsensusFilter  []byte
	Memo             []byte
	ReplicationFactor uint16
	GasPrice         sdkmath.Int
	ExecGasLimit     uint64
	TallyGasLimit    uint64
	PaybackAddress   []byte
	RequestFee       sdkmath.Int
	ResultFee        sdkmath.Int
	BatchFee         sdkmath.Int
}

// DataResult is produced by the oracle once a DataRequest finalizes.
type DataResult struct {
	DrID            [32]byte
	Version         string
	Consensus       bool
	ExitCode        uint8
	Result          []byte
	BlockHeight     uint64
	BlockTimestamp  uint64
	GasUsed         sdkmath.Int
	PaybackAddress  []byte
	SedaPayload     []byte
	BatchAssignment uint64
}

// Secp256k1Signature is one validator's signature over a batch, plus the
// merkle proof tying it to the validator set root.
type Secp256k1Signature struct {
	ValidatorAddress      []byte
	EthAddress            [20]byte
	PublicKey             []byte
	VotingPowerPercentage uint32
	Signature             []byte
	MerkleProof           [][]byte
}

// Batch is a collection of finalized data results signed by the SEDA
// validator set.
type Batch struct {
	BatchNumber         uint64
	BlockHeight         uint64
	DataResultRoot      [32]byte
	ValidatorRoot       [32]byte
	Secp256k1Signatures []Secp256k1Signature
}

// ConsensusPercentageDenominator and Numerator define the two-thirds
// threshold from spec §4.9: 66,666,666 / 100,000,000.
const (
	ConsensusPercentageNumerator   = 66_666_666
	ConsensusPercentageDenominator = 100_000_000
)
