package carrier

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/internal/trust"
	"github.com/madara-go/karl/pkg/krecord"
	"github.com/madara-go/karl/pkg/kstore"
	"github.com/madara-go/karl/pkg/ktransport"
)

// RegistryEndpointsName is the shared map variable §6.1 names:
// `domain.<name>.endpoints`, a comma-joined list of `ipv4:port`
// entries the registry server publishes and registry clients read.
func RegistryEndpointsName(domain string) string {
	return domain + ".registry.endpoints"
}

// Registry is a thin wrapper over Udp (§9 "Registry carrier ...
// specify it as a thin wrapper over Udp plus a shared endpoint map"):
// a client announces its bind address into the shared store variable
// and learns its peer set the same way; a server just republishes the
// union of everything it has seen. An empty/absent map is "no peers
// yet" rather than an error, resolving §9's registry-restart open
// question.
type Registry struct {
	isServer bool
	self     string
	domain   string
	store    *kstore.Store
	bind     *net.UDPConn

	mu    sync.RWMutex
	peers map[string]struct{}

	resendEvery  int
	sendFailures int

	originator string
	issuer     *trust.Issuer
}

// tokenTTL bounds how long a registry announcement is trusted before
// the announcing peer must re-issue it alongside its next announce().
const tokenTTL = 5 * time.Minute

// EnableTrust turns on signed endpoint announcements: announce()
// starts appending a token asserting originator, refreshPeers drops
// any entry whose token does not verify under issuer, and a server
// stops adding the bare source addresses it hears from, rather than
// trusting whatever address appears in the shared map.
// Both client and server sides of a domain must share the same
// Issuer key for this to be useful.
func (r *Registry) EnableTrust(originator string, issuer *trust.Issuer) {
	r.originator = originator
	r.issuer = issuer
}

// NewRegistryClient binds bindAddr, announces it into the shared
// registry-endpoints variable; every Send rebuilds its peer list from
// that variable.
func NewRegistryClient(domain, bindAddr string, store *kstore.Store) (*Registry, error) {
	r, err := newRegistry(domain, bindAddr, store, false)
	if err != nil {
		return nil, err
	}
	r.announce()
	return r, nil
}

// NewRegistryServer binds bindAddr and maintains the shared registry
// map: while trust is not enabled it adds the source address of every
// inbound datagram to the map; with trust enabled it only relays
// whatever the store already holds.
func NewRegistryServer(domain, bindAddr string, store *kstore.Store) (*Registry, error) {
	return newRegistry(domain, bindAddr, store, true)
}

func newRegistry(domain, bindAddr string, store *kstore.Store, isServer bool) (*Registry, error) {
	addr, err := net.ResolveUDPAddr("udp4", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("carrier: resolve registry bind %s: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("carrier: listen udp for registry: %w", err)
	}
	return &Registry{
		isServer:    isServer,
		self:        conn.LocalAddr().String(),
		domain:      domain,
		store:       store,
		bind:        conn,
		peers:       make(map[string]struct{}),
		resendEvery: 10,
	}, nil
}

// announce publishes this endpoint's entry into the shared map. When
// EnableTrust has been called, the entry carries "endpoint@token"
// instead of a bare endpoint, so verifying peers can tell a genuine
// announcement from an address someone else merely wrote in.
func (r *Registry) announce() {
	name := RegistryEndpointsName(r.domain)
	cur := r.store.Get(name).ToString(",")
	entries := splitNonEmpty(cur)

	self := r.self
	if r.issuer != nil {
		tok, err := r.issuer.Issue(r.originator, tokenTTL)
		if err != nil {
			krlog.Warnf("carrier: registry: issue trust token: %v", err)
		} else {
			self = r.self + "@" + tok
		}
	}

	found := false
	for i, e := range entries {
		if endpointOf(e) == r.self {
			entries[i] = self
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, self)
	}
	r.store.Set(name, krecord.NewString(strings.Join(entries, ",")))
}

// endpointOf strips an optional "@token" suffix, returning the bare
// "ipv4:port" endpoint.
func endpointOf(entry string) string {
	if i := strings.IndexByte(entry, '@'); i >= 0 {
		return entry[:i]
	}
	return entry
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// refreshPeers rebuilds the known-peer set from the shared map. With
// trust enabled, an entry whose token fails to verify is dropped
// rather than resolved into a peer address (§7 "filter-buffer
// mismatch"-style silent drop, applied here to an untrusted peer
// assertion instead of a malformed packet).
func (r *Registry) refreshPeers() []*net.UDPAddr {
	name := RegistryEndpointsName(r.domain)
	entries := splitNonEmpty(r.store.Get(name).ToString(","))

	r.mu.Lock()
	r.peers = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		endpoint := endpointOf(e)
		if endpoint == r.self {
			continue
		}
		if r.issuer != nil {
			i := strings.IndexByte(e, '@')
			if i < 0 {
				krlog.Debugf("carrier: registry: dropping untrusted endpoint %s (no token)", endpoint)
				continue
			}
			if _, err := r.issuer.Verify(e[i+1:]); err != nil {
				krlog.Debugf("carrier: registry: dropping endpoint %s: %v", endpoint, err)
				continue
			}
		}
		r.peers[endpoint] = struct{}{}
	}
	r.mu.Unlock()

	out := make([]*net.UDPAddr, 0, len(entries))
	for e := range r.peers {
		if addr, err := net.ResolveUDPAddr("udp4", e); err == nil {
			out = append(out, addr)
		}
	}
	return out
}

func (r *Registry) Send(ctx context.Context, buf []byte) (int, error) {
	peers := r.refreshPeers()
	if len(peers) == 0 {
		r.sendFailures++
		if r.sendFailures%r.resendEvery == 0 {
			krlog.Warnf("carrier: registry %s has no known peers yet, re-announcing", r.domain)
			r.announce()
		}
		return 0, nil
	}

	sent := 0
	var firstErr error
	for _, peer := range peers {
		n, err := r.bind.WriteToUDP(buf, peer)
		if err != nil {
			krlog.Warnf("carrier: registry send to %s failed: %v", peer, err)
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

func (r *Registry) Receive(ctx context.Context) (<-chan ktransport.Datagram, error) {
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
			r.bind.SetReadDeadline(deadline())
			n, from, err := r.bind.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				select {
				case <-ctx.Done():
					return
				default:
					krlog.Warnf("carrier: registry read failed: %v", err)
					continue
				}
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			if r.isServer && r.issuer == nil {
				r.learnEndpoint(from.String())
			}
			select {
			case out <- ktransport.Datagram{Data: data, Endpoint: from.String()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// learnEndpoint adds a newly seen client endpoint to the shared map,
// as a registry server does when it hears from a not-yet-known client.
func (r *Registry) learnEndpoint(endpoint string) {
	name := RegistryEndpointsName(r.domain)
	entries := splitNonEmpty(r.store.Get(name).ToString(","))
	for _, e := range entries {
		if e == endpoint {
			return
		}
	}
	entries = append(entries, endpoint)
	r.store.Set(name, krecord.NewString(strings.Join(entries, ",")))
}

func (r *Registry) LocalID() string { return r.self }

func (r *Registry) Close() error { return r.bind.Close() }
