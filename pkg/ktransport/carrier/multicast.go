package carrier

import (
	"context"
	"fmt"
	"net"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/ktransport"
)

// Multicast sends and receives on one multicast group address. §4.6
// also has participant_rebroadcast_ttl govern the socket's multicast
// TTL; the standard library's net package has no portable knob for
// that (it would need golang.org/x/net/ipv4, which nothing in the
// example pack imports — see DESIGN.md), so Multicast only applies
// participant_rebroadcast_ttl at the application level, same as every
// other carrier.
type Multicast struct {
	group     *net.UDPAddr
	send      *net.UDPConn
	recv      *net.UDPConn
	localAddr string
}

// NewMulticast joins the multicast group named by group (ipv4:port).
func NewMulticast(group string) (*Multicast, error) {
	addr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, fmt.Errorf("carrier: resolve multicast group %s: %w", group, err)
	}

	recv, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("carrier: join multicast group %s: %w", group, err)
	}

	send, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("carrier: open multicast send socket: %w", err)
	}

	return &Multicast{group: addr, send: send, recv: recv, localAddr: send.LocalAddr().String()}, nil
}

func (m *Multicast) Send(ctx context.Context, buf []byte) (int, error) {
	n, err := m.send.WriteToUDP(buf, m.group)
	if err != nil {
		return -1, fmt.Errorf("carrier: multicast send: %w", err)
	}
	return n, nil
}

func (m *Multicast) Receive(ctx context.Context) (<-chan ktransport.Datagram, error) {
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
			m.recv.SetReadDeadline(deadline())
			n, from, err := m.recv.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				select {
				case <-ctx.Done():
					return
				default:
					krlog.Warnf("carrier: multicast read failed: %v", err)
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

func (m *Multicast) LocalID() string { return m.localAddr }

func (m *Multicast) Close() error {
	m.send.Close()
	return m.recv.Close()
}
