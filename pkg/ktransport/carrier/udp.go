// Package carrier implements the §4.6 Carrier variants: Udp,
// Multicast, Broadcast, Registry, and the NATS addition from the
// domain stack.
package carrier

import (
	"context"
	"fmt"
	"net"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/ktransport"
)

// Udp sends to an explicit list of unicast peers; per §4.6 the first
// host in the list is the local bind address.
type Udp struct {
	conn  *net.UDPConn
	peers []*net.UDPAddr
}

// NewUdp binds to hosts[0] and resolves the remaining entries as send
// destinations.
func NewUdp(hosts []string) (*Udp, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("carrier: udp requires at least a bind address")
	}
	bindAddr, err := net.ResolveUDPAddr("udp4", hosts[0])
	if err != nil {
		return nil, fmt.Errorf("carrier: resolve bind %s: %w", hosts[0], err)
	}
	conn, err := net.ListenUDP("udp4", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("carrier: listen udp %s: %w", hosts[0], err)
	}

	peers := make([]*net.UDPAddr, 0, len(hosts)-1)
	for _, h := range hosts[1:] {
		addr, err := net.ResolveUDPAddr("udp4", h)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("carrier: resolve peer %s: %w", h, err)
		}
		peers = append(peers, addr)
	}
	return &Udp{conn: conn, peers: peers}, nil
}

func (u *Udp) Send(ctx context.Context, buf []byte) (int, error) {
	sent := 0
	var firstErr error
	for _, peer := range u.peers {
		n, err := u.conn.WriteToUDP(buf, peer)
		if err != nil {
			krlog.Warnf("carrier: udp send to %s failed: %v", peer, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent += n
	}
	if sent == 0 && firstErr != nil {
		return -1, firstErr
	}
	return sent, nil
}

func (u *Udp) Receive(ctx context.Context) (<-chan ktransport.Datagram, error) {
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
			u.conn.SetReadDeadline(deadline())
			n, from, err := u.conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				select {
				case <-ctx.Done():
					return
				default:
					krlog.Warnf("carrier: udp read failed: %v", err)
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

func (u *Udp) LocalID() string { return u.conn.LocalAddr().String() }

func (u *Udp) Close() error { return u.conn.Close() }
