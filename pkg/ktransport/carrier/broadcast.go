package carrier

import (
	"context"
	"fmt"
	"net"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/ktransport"
	"golang.org/x/sys/unix"
)

// Broadcast sends to one broadcast address with SO_BROADCAST set on
// the underlying socket, per §4.6.
type Broadcast struct {
	conn *net.UDPConn
	dest *net.UDPAddr
}

// NewBroadcast binds a UDP socket on dest's port on all local
// interfaces, enables
// SO_BROADCAST, and targets dest (ipv4:port) on Send.
func NewBroadcast(dest string) (*Broadcast, error) {
	addr, err := net.ResolveUDPAddr("udp4", dest)
	if err != nil {
		return nil, fmt.Errorf("carrier: resolve broadcast address %s: %w", dest, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: addr.Port})
	if err != nil {
		return nil, fmt.Errorf("carrier: listen udp for broadcast: %w", err)
	}

	if err := setBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("carrier: enable SO_BROADCAST: %w", err)
	}

	return &Broadcast{conn: conn, dest: addr}, nil
}

func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

func (b *Broadcast) Send(ctx context.Context, buf []byte) (int, error) {
	n, err := b.conn.WriteToUDP(buf, b.dest)
	if err != nil {
		return -1, fmt.Errorf("carrier: broadcast send: %w", err)
	}
	return n, nil
}

func (b *Broadcast) Receive(ctx context.Context) (<-chan ktransport.Datagram, error) {
	out := make(chan ktransport.Datagram, 64)
	go func() {
		defer close(out)
		buf := make([]byte, 65536)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			b.conn.SetReadDeadline(deadline())
			n, from, err := b.conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				select {
				case <-ctx.Done():
					return
				default:
					krlog.Warnf("carrier: broadcast read failed: %v", err)
					continue
				}
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case out <- ktransport.Datagram{Data: data, Endpoint: from.String()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Broadcast) LocalID() string { return b.conn.LocalAddr().String() }

func (b *Broadcast) Close() error { return b.conn.Close() }
