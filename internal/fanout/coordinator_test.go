package fanout

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
	"github.com/sedaprotocol/seda-push-solver/internal/stats"
)

type fakeProofFetcher struct{}

func (fakeProofFetcher) GetValidatorProof(ctx context.Context, drID [32]byte, batchHeight uint64) ([][32]byte, error) {
	return nil, nil
}

func TestDispatchWithNoDestinationsIsANoOp(t *testing.T) {
	st := stats.New()
	c := New(log.NewNopLogger(), fakeProofFetcher{}, st, nil)

	c.Dispatch(context.Background(), sedatypes.DataResult{Consensus: true})

	snap := st.Snapshot()
	require.Equal(t, uint64(0), snap.TotalFanoutSuccess)
	require.Equal(t, uint64(0), snap.TotalFanoutFailed)
}

func TestDispatchSkipsDisabledDestinations(t *testing.T) {
	st := stats.New()
	c := New(log.NewNopLogger(), fakeProofFetcher{}, st, []Destination{
		{Name: "disabled-chain", Enabled: false},
	})

	c.Dispatch(context.Background(), sedatypes.DataResult{Consensus: true})

	snap := st.Snapshot()
	require.Equal(t, uint64(0), snap.TotalFanoutSuccess)
	require.Equal(t, uint64(0), snap.TotalFanoutFailed)
}
