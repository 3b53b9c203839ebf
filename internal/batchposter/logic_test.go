package batchposter

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

func mustKey(t *testing.T) ([]byte, [20]byte) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.FromECDSAPub(&priv.PublicKey)
	return pub, crypto.PubkeyToAddress(priv.PublicKey)
}

func TestSelectSignaturesKeepsMatchingValidators(t *testing.T) {
	pub1, addr1 := mustKey(t)
	pub2, addr2 := mustKey(t)

	known := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), EthAddress: addr1, VotingPowerPercentage: 40_000_000},
			{ValidatorAddress: []byte("v2"), EthAddress: addr2, VotingPowerPercentage: 40_000_000},
		},
	}
	newBatch := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), PublicKey: pub1, EthAddress: addr1, Signature: []byte("sig1")},
			{ValidatorAddress: []byte("v2"), PublicKey: pub2, EthAddress: addr2, Signature: []byte("sig2")},
		},
	}

	kept, err := SelectSignatures(newBatch, known)
	require.NoError(t, err)
	require.Len(t, kept, 2)
}

func TestSelectSignaturesDropsRotatedKeys(t *testing.T) {
	pub1, addr1 := mustKey(t)
	_, rotatedAddr := mustKey(t)

	known := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), EthAddress: rotatedAddr, VotingPowerPercentage: 100_000_000},
		},
	}
	newBatch := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), PublicKey: pub1, EthAddress: addr1, Signature: []byte("sig1")},
		},
	}

	_, err := SelectSignatures(newBatch, known)
	require.Error(t, err)
	var consensusErr *ErrBatchConsensusNotReached
	require.ErrorAs(t, err, &consensusErr)
}

func TestSelectSignaturesDropsUnmatchedValidators(t *testing.T) {
	_, addr1 := mustKey(t)
	pub2, addr2 := mustKey(t)

	known := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), EthAddress: addr1, VotingPowerPercentage: 100_000_000},
		},
	}
	newBatch := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v2"), PublicKey: pub2, EthAddress: addr2, Signature: []byte("sig2")},
		},
	}

	_, err := SelectSignatures(newBatch, known)
	require.Error(t, err)
}

func TestSelectSignaturesErrorsBelowConsensusThreshold(t *testing.T) {
	pub1, addr1 := mustKey(t)

	known := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), EthAddress: addr1, VotingPowerPercentage: 50_000_000},
		},
	}
	newBatch := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), PublicKey: pub1, EthAddress: addr1, Signature: []byte("sig1")},
		},
	}

	_, err := SelectSignatures(newBatch, known)
	require.Error(t, err)
}

func TestSelectSignaturesSortsByEthAddressHex(t *testing.T) {
	pub1, addr1 := mustKey(t)
	pub2, addr2 := mustKey(t)

	known := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), EthAddress: addr1, VotingPowerPercentage: 50_000_000},
			{ValidatorAddress: []byte("v2"), EthAddress: addr2, VotingPowerPercentage: 50_000_000},
		},
	}
	newBatch := sedatypes.Batch{
		Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), PublicKey: pub1, EthAddress: addr1, Signature: []byte("sig1")},
			{ValidatorAddress: []byte("v2"), PublicKey: pub2, EthAddress: addr2, Signature: []byte("sig2")},
		},
	}

	kept, err := SelectSignatures(newBatch, known)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	require.True(t, ethHex(kept[0].EthAddress) <= ethHex(kept[1].EthAddress))
}

func TestRecoveryHeightBinarySearches(t *testing.T) {
	require.Equal(t, uint64(150), RecoveryHeight(100, 200))
	require.Equal(t, uint64(100), RecoveryHeight(100, 100))
	require.Equal(t, uint64(100), RecoveryHeight(100, 50))
}
