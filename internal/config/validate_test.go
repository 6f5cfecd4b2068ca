package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/madara-go/karl/pkg/ktransport"
)

func validSettings() Settings {
	return Settings{
		Originator: "node-a",
		Domain:     "karl",
		Transport: ktransport.Settings{
			Type:            ktransport.Multicast,
			Hosts:           []string{"239.255.0.1:4150"},
			QueueLength:     1024,
			MaxFragmentSize: 1024,
		},
		CheckpointFormat: CheckpointBinary,
		PollFrequencyHz:  10,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	s := validSettings()
	assert.NoError(t, Validate(&s))
}

func TestValidateRejectsUnknownTransportType(t *testing.T) {
	s := validSettings()
	s.Transport.Type = "bogus"
	assert.Error(t, Validate(&s))
}

func TestValidateRejectsEmptyHostsForActiveCarrier(t *testing.T) {
	s := validSettings()
	s.Transport.Hosts = nil
	assert.Error(t, Validate(&s))
}

func TestValidateAllowsEmptyHostsForNone(t *testing.T) {
	s := validSettings()
	s.Transport.Type = ktransport.None
	s.Transport.Hosts = nil
	assert.NoError(t, Validate(&s))
}

func TestValidateRejectsOutOfRangeDropRate(t *testing.T) {
	s := validSettings()
	s.Transport.PacketDropRate = 1.5
	assert.Error(t, Validate(&s))
}

func TestValidateRejectsUnknownCheckpointFormat(t *testing.T) {
	s := validSettings()
	s.CheckpointFormat = "bogus"
	assert.Error(t, Validate(&s))
}

func TestValidateRejectsNegativePollFrequency(t *testing.T) {
	s := validSettings()
	s.PollFrequencyHz = -1
	assert.Error(t, Validate(&s))
}
