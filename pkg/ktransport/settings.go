// Package ktransport implements the carrier-neutral transport
// pipeline of spec §4.6: send/receive, loop suppression, TTL-based
// rebroadcast, bandwidth and drop policies, over a pluggable Carrier.
package ktransport

// CarrierType selects the underlying network carrier (§4.6, §6.1).
type CarrierType string

const (
	None             CarrierType = "none"
	Multicast        CarrierType = "multicast"
	Broadcast        CarrierType = "broadcast"
	Udp              CarrierType = "udp"
	RegistryServer   CarrierType = "registry-server"
	RegistryClient   CarrierType = "registry-client"
	Nats             CarrierType = "nats"
)

// Reliability is semantic-only (§4.6): it documents the caller's
// intent but does not itself change carrier selection.
type Reliability string

const (
	BestEffort Reliability = "best-effort"
	Reliable   Reliability = "reliable"
)

// PacketDropType selects how PacketDropRate is interpreted (§4.6).
type PacketDropType string

const (
	Probabilistic PacketDropType = "probabilistic"
	Deterministic PacketDropType = "deterministic"
)

// Settings enumerates every configurable knob of §4.6, decoded from
// the process-wide config file by internal/config.
type Settings struct {
	Type  CarrierType `json:"type"`
	Hosts []string    `json:"hosts"`
	ID    int         `json:"id"`

	Domain string `json:"domain"`

	QueueLength     int     `json:"queue-length"`
	ReadThreads     int     `json:"read-threads"`
	ReadThreadHertz float64 `json:"read-thread-hertz"`

	MaxFragmentSize int   `json:"max-fragment-size"`
	SlackTimeMillis int64 `json:"slack-time-millis"`
	ResendAttempts  int   `json:"resend-attempts"`

	Reliability               Reliability `json:"reliability"`
	SendReducedMessageHeader  bool        `json:"send-reduced-message-header"`
	RebroadcastTTL            uint8       `json:"rebroadcast-ttl"`
	ParticipantRebroadcastTTL uint8       `json:"participant-rebroadcast-ttl"`

	MaxSendBandwidth  int64 `json:"max-send-bandwidth"`
	MaxTotalBandwidth int64 `json:"max-total-bandwidth"`
	DeadlineSeconds   int64 `json:"deadline-seconds"`

	PacketDropRate  float64        `json:"packet-drop-rate"`
	PacketDropType  PacketDropType `json:"packet-drop-type"`
	PacketDropBurst int            `json:"packet-drop-burst"`

	TrustedPeers []string `json:"trusted-peers"`
	BannedPeers  []string `json:"banned-peers"`

	FragmentTTLSeconds      int64 `json:"fragment-ttl-seconds"`
	FragmentBudgetBytes     int   `json:"fragment-budget-bytes"`

	Registry string `json:"registry"`
}
