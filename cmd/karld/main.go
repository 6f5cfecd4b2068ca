// Command karld is a thin host process for the karl library: it
// loads a Settings file, wires a carrier and an Agent together, and
// runs until signaled. It is deliberately not a CLI front-end for
// the KaRL language itself (out of scope) — it exists so the library
// packages have a runnable integration harness, the same role
// cmd/cc-backend plays for the teacher's library packages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/madara-go/karl/internal/config"
	"github.com/madara-go/karl/internal/housekeeping"
	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/internal/trust"
	"github.com/madara-go/karl/pkg/karl"
	"github.com/madara-go/karl/pkg/kfacade"
	"github.com/madara-go/karl/pkg/kstore"
	"github.com/madara-go/karl/pkg/ktransport"
	"github.com/madara-go/karl/pkg/ktransport/carrier"
	"github.com/madara-go/karl/pkg/ktransport/metrics"
)

func main() {
	var flagConfigFile, flagMetricsAddr string
	flag.StringVar(&flagConfigFile, "config", "./karld.json", "Overwrite the built-in defaults with `config.json`")
	flag.StringVar(&flagMetricsAddr, "metrics-addr", "", "If non-empty, serve Prometheus metrics at this `address` (e.g. :9090)")
	flag.Parse()

	if err := config.InitFile(flagConfigFile); err != nil {
		krlog.Fatalf("karld: %v", err)
	}
	settings := config.Keys

	agent := kfacade.New(karl.Settings{
		PollFrequencyHz: settings.PollFrequencyHz,
		MaxWaitSeconds:  settings.MaxWaitSeconds,
	})

	car, err := newCarrier(settings, agent.Store())
	if err != nil {
		krlog.Fatalf("karld: carrier: %v", err)
	}

	if car != nil {
		transport := ktransport.New(settings.Transport, settings.Originator, agent.Store(), car)
		if flagMetricsAddr != "" {
			collector := metrics.NewCollector()
			transport.SetMetrics(collector)
			go serveMetrics(flagMetricsAddr, collector)
		}
		agent.AttachTransport(transport)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := agent.Start(ctx); err != nil {
		krlog.Fatalf("karld: start: %v", err)
	}

	if settings.CheckpointPath != "" {
		if _, _, err := agent.LoadContext(settings.CheckpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			krlog.Warnf("karld: load checkpoint %s: %v", settings.CheckpointPath, err)
		}
	}

	if err := housekeeping.Start(); err != nil {
		krlog.Fatalf("karld: housekeeping: %v", err)
	}
	if agent.Transport() != nil {
		if err := housekeeping.RegisterReassemblySweep(agent.Transport().Reassembler(), 10*time.Second); err != nil {
			krlog.Warnf("karld: register reassembly sweep: %v", err)
		}
	}
	if settings.CheckpointPath != "" {
		if err := housekeeping.RegisterCheckpointRotation(agent.Store(), settings.Originator, settings.CheckpointPath, time.Minute); err != nil {
			krlog.Warnf("karld: register checkpoint rotation: %v", err)
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	krlog.Infof("karld: running as %q on domain %q", settings.Originator, settings.Domain)
	<-sigs

	krlog.Info("karld: shutting down")
	housekeeping.Stop()
	agent.Stop()
	cancel()

	if settings.CheckpointPath != "" {
		if err := agent.SaveContext(settings.CheckpointPath, settings.Originator); err != nil {
			krlog.Warnf("karld: save checkpoint %s: %v", settings.CheckpointPath, err)
		}
	}
	krlog.Info("karld: shutdown complete")
}

func newCarrier(s config.Settings, store *kstore.Store) (ktransport.Carrier, error) {
	t := s.Transport
	switch t.Type {
	case ktransport.None:
		return nil, nil
	case ktransport.Multicast:
		if len(t.Hosts) == 0 {
			return nil, fmt.Errorf("multicast carrier requires transport.hosts[0]")
		}
		return carrier.NewMulticast(t.Hosts[0])
	case ktransport.Broadcast:
		if len(t.Hosts) == 0 {
			return nil, fmt.Errorf("broadcast carrier requires transport.hosts[0]")
		}
		return carrier.NewBroadcast(t.Hosts[0])
	case ktransport.Udp:
		return carrier.NewUdp(t.Hosts)
	case ktransport.Nats:
		if len(t.Hosts) == 0 {
			return nil, fmt.Errorf("nats carrier requires transport.hosts[0]")
		}
		return carrier.NewNats(t.Hosts[0], s.Domain, "", "", "")
	case ktransport.RegistryClient:
		if len(t.Hosts) == 0 {
			return nil, fmt.Errorf("registry-client carrier requires transport.hosts[0] (local bind address)")
		}
		reg, err := carrier.NewRegistryClient(s.Domain, t.Hosts[0], store)
		if err != nil {
			return nil, err
		}
		enableRegistryTrust(reg, s)
		return reg, nil
	case ktransport.RegistryServer:
		if len(t.Hosts) == 0 {
			return nil, fmt.Errorf("registry-server carrier requires transport.hosts[0] (local bind address)")
		}
		reg, err := carrier.NewRegistryServer(s.Domain, t.Hosts[0], store)
		if err != nil {
			return nil, err
		}
		enableRegistryTrust(reg, s)
		return reg, nil
	default:
		return nil, fmt.Errorf("karld: unknown carrier type %q", t.Type)
	}
}

// enableRegistryTrust turns on signed endpoint announcements when the
// operator configured a shared trust-key; a registry with no trust
// key falls back to the plain address-matching of §4.6's
// trusted_peers/banned_peers.
func enableRegistryTrust(reg *carrier.Registry, s config.Settings) {
	if s.TrustKey == "" {
		return
	}
	issuer, err := trust.NewIssuer([]byte(s.TrustKey))
	if err != nil {
		krlog.Warnf("karld: registry trust disabled: %v", err)
		return
	}
	reg.EnableTrust(s.Originator, issuer)
}

func serveMetrics(addr string, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	krlog.Infof("karld: metrics listening at %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		krlog.Errorf("karld: metrics server: %v", err)
	}
}
