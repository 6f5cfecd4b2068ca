package kfacade

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madara-go/karl/pkg/karl"
	"github.com/madara-go/karl/pkg/krecord"
)

func TestSetGetRoundTrip(t *testing.T) {
	a := New(karl.Settings{})
	a.Set("x", krecord.NewInteger(42))
	assert.EqualValues(t, 42, a.Get("x").ToInteger())
}

func TestGetRefStaysValidUntilErase(t *testing.T) {
	a := New(karl.Settings{})
	ref := a.GetRef("y")
	ref.Set(krecord.NewInteger(1))
	assert.EqualValues(t, 1, a.Get("y").ToInteger())

	a.Store().Erase("y")
	assert.True(t, ref.Get().IsEmpty())
}

func TestEvaluateCompilesAndRuns(t *testing.T) {
	a := New(karl.Settings{})
	a.Set("x", krecord.NewInteger(2))
	result, err := a.Evaluate("x + 3")
	require.NoError(t, err)
	assert.EqualValues(t, 5, result.ToInteger())
}

func TestWaitReturnsImmediatelyWhenAlreadyTrue(t *testing.T) {
	a := New(karl.Settings{PollFrequencyHz: 10, MaxWaitSeconds: 1})
	a.Set("ready", krecord.NewInteger(1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, ok := a.Wait(ctx, "ready")
	assert.True(t, ok)
	assert.EqualValues(t, 1, result.ToInteger())
}

func TestWaitTimesOutWhenNeverTrue(t *testing.T) {
	a := New(karl.Settings{PollFrequencyHz: 50, MaxWaitSeconds: 0.1})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, ok := a.Wait(ctx, "never_set")
	assert.False(t, ok)
}

func TestSendModifiedsWithoutTransportDrainsSilently(t *testing.T) {
	a := New(karl.Settings{})
	a.Set("alpha", krecord.NewInteger(1))
	n, err := a.SendModifieds(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, a.Store().ApplyModified().Globals)
}

func TestReadFileMissingLeavesRecordEmptyAndReturnsStatus(t *testing.T) {
	a := New(karl.Settings{})
	a.Set("payload", krecord.NewInteger(9))
	status, err := a.ReadFile("payload", filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Equal(t, 1, status)
	assert.Error(t, err)
	assert.True(t, a.Get("payload").IsEmpty())
}

func TestReadFileWriteFileRoundTrip(t *testing.T) {
	a := New(karl.Settings{})
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	status, err := a.ReadFile("blob", path)
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, []byte("hello"), a.Get("blob").Bytes())

	outPath := filepath.Join(t.TempDir(), "out.bin")
	status, err = a.WriteFile("blob", outPath)
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestSaveLoadContextRoundTrip(t *testing.T) {
	a := New(karl.Settings{})
	a.Set("k", krecord.NewString("v"))
	path := filepath.Join(t.TempDir(), "checkpoint.bin")
	require.NoError(t, a.SaveContext(path, "node-a"))

	b := New(karl.Settings{})
	originator, _, err := b.LoadContext(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", originator)
	assert.Equal(t, "v", b.Get("k").ToString(","))
}
