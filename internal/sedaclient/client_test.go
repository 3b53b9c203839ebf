package sedaclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultQueryDataEchoesDrID(t *testing.T) {
	require.Equal(t, []byte("dr-abc"), resultQueryData("dr-abc"))
}

func TestBatchQueryDataEncodesHeight(t *testing.T) {
	require.Equal(t, []byte("42"), batchQueryData(42))
}

func TestProofQueryDataConcatenatesDrIDAndHeight(t *testing.T) {
	var drID [32]byte
	drID[0] = 0xAB
	drID[31] = 0xCD

	got := proofQueryData(drID, 7)

	require.Equal(t, drID[:], got[:32])
	require.Equal(t, "-7", string(got[32:]))
}

func TestProofQueryDataDiffersOnHeight(t *testing.T) {
	var drID [32]byte
	require.NotEqual(t, proofQueryData(drID, 1), proofQueryData(drID, 2))
}
