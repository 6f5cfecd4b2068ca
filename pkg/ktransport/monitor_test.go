package ktransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandwidthMonitorUnlimitedWhenNegative(t *testing.T) {
	m := newBandwidthMonitor()
	assert.True(t, m.Allow(1<<30, -1))
}

func TestBandwidthMonitorEnforcesWindowLimit(t *testing.T) {
	m := newBandwidthMonitor()
	assert.True(t, m.Allow(50, 100))
	m.Record(50)
	assert.True(t, m.Allow(50, 100))
	m.Record(50)
	assert.False(t, m.Allow(1, 100))
}
