package carrier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUdpSendReceiveRoundTrip(t *testing.T) {
	recv, err := NewUdp([]string{"127.0.0.1:0"})
	require.NoError(t, err)
	defer recv.Close()

	send, err := NewUdp([]string{"127.0.0.1:0", recv.LocalID()})
	require.NoError(t, err)
	defer send.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := recv.Receive(ctx)
	require.NoError(t, err)

	n, err := send.Send(ctx, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	select {
	case dg := <-ch:
		require.Equal(t, []byte("hello"), dg.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestUdpRequiresAtLeastBindAddress(t *testing.T) {
	_, err := NewUdp(nil)
	require.Error(t, err)
}
