package housekeeping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/madara-go/karl/pkg/kfrag"
	"github.com/madara-go/karl/pkg/kstore"
)

func TestRegisterReassemblySweepRunsPeriodically(t *testing.T) {
	reasm := kfrag.NewReassembler(time.Millisecond, 1<<20)
	reasm.Add("node-a", kfrag.Fragment{MessageID: 1, Total: 2, Index: 0, Payload: []byte("a")}, time.Now())
	require.Equal(t, 1, reasm.Pending())

	require.NoError(t, Start())
	defer Stop()

	require.NoError(t, RegisterReassemblySweep(reasm, 20*time.Millisecond))

	require.Eventually(t, func() bool {
		return reasm.Pending() == 0
	}, 500*time.Millisecond, 10*time.Millisecond)
}

func TestRegisterCheckpointRotationWritesFile(t *testing.T) {
	store := kstore.New()
	path := t.TempDir() + "/checkpoint.bin"

	require.NoError(t, Start())
	defer Stop()

	require.NoError(t, RegisterCheckpointRotation(store, "node-a", path, 20*time.Millisecond))

	require.Eventually(t, func() bool {
		_, _, err := store.LoadContext(path)
		return err == nil
	}, 500*time.Millisecond, 10*time.Millisecond)
}
