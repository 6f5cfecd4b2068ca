package ktransport

import "math/rand"

// packetDropper implements §4.6's packet_drop_rate/packet_drop_type/
// packet_drop_burst policy: a synthetic loss injector used to exercise
// deadline/retry behavior in tests without a lossy carrier.
type packetDropper struct {
	rate     float64
	kind     PacketDropType
	burst    int
	inBurst  int
	detCount int
}

func newPacketDropper(s Settings) *packetDropper {
	return &packetDropper{rate: s.PacketDropRate, kind: s.PacketDropType, burst: s.PacketDropBurst}
}

// Drop reports whether the next packet should be silently discarded.
func (d *packetDropper) Drop() bool {
	if d.rate <= 0 {
		return false
	}
	if d.inBurst > 0 {
		d.inBurst--
		return true
	}

	var hit bool
	switch d.kind {
	case Deterministic:
		d.detCount++
		period := int(1 / d.rate)
		if period <= 0 {
			period = 1
		}
		hit = d.detCount%period == 0
	default: // Probabilistic
		hit = rand.Float64() < d.rate
	}

	if hit && d.burst > 1 {
		d.inBurst = d.burst - 1
	}
	return hit
}
