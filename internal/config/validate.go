package config

import (
	"fmt"

	"github.com/madara-go/karl/pkg/ktransport"
)

// Validate rejects settings combinations that would otherwise fail
// silently or surface as a confusing error deep inside ktransport or
// kstore (§7's "IO error"/"transport error" kinds are runtime
// failures; this is the configuration-time equivalent, replacing the
// jsonschema validation the domain stack table declines to wire —
// see DESIGN.md). Grounded on the teacher's internal/config
// Init→Validate step, which rejects an incomplete ProgramConfig before
// any subsystem starts.
func Validate(s *Settings) error {
	switch s.Transport.Type {
	case ktransport.None, ktransport.Multicast, ktransport.Broadcast, ktransport.Udp,
		ktransport.RegistryServer, ktransport.RegistryClient, ktransport.Nats:
	default:
		return fmt.Errorf("config: unknown transport type %q", s.Transport.Type)
	}

	if s.Transport.Type != ktransport.None && len(s.Transport.Hosts) == 0 {
		return fmt.Errorf("config: transport.hosts must be non-empty for type %q", s.Transport.Type)
	}

	if s.Transport.ReadThreads < 0 {
		return fmt.Errorf("config: transport.read-threads must be >= 0")
	}
	if s.Transport.QueueLength <= 0 {
		return fmt.Errorf("config: transport.queue-length must be positive")
	}
	if s.Transport.MaxFragmentSize <= 0 {
		return fmt.Errorf("config: transport.max-fragment-size must be positive")
	}

	switch s.Transport.PacketDropType {
	case "", ktransport.Probabilistic, ktransport.Deterministic:
	default:
		return fmt.Errorf("config: unknown packet-drop-type %q", s.Transport.PacketDropType)
	}
	if s.Transport.PacketDropRate < 0 || s.Transport.PacketDropRate > 1 {
		return fmt.Errorf("config: transport.packet-drop-rate must be within [0,1]")
	}

	switch s.CheckpointFormat {
	case "", CheckpointBinary, CheckpointAvro, CheckpointKarl:
	default:
		return fmt.Errorf("config: unknown checkpoint-format %q", s.CheckpointFormat)
	}

	if s.PollFrequencyHz < 0 {
		return fmt.Errorf("config: poll-frequency-hz must be >= 0")
	}
	if s.MaxWaitSeconds < 0 {
		return fmt.Errorf("config: max-wait-seconds must be >= 0")
	}

	return nil
}
