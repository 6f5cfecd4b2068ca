package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madara-go/karl/pkg/ktransport"
)

func TestExpandEnvBothDelimiterStyles(t *testing.T) {
	require.NoError(t, os.Setenv("KARL_TEST_VAR", "value"))
	defer os.Unsetenv("KARL_TEST_VAR")

	assert.Equal(t, "value-value", ExpandEnv("$(KARL_TEST_VAR)-${KARL_TEST_VAR}"))
}

func TestExpandEnvLeavesUnmatchedDelimitersAlone(t *testing.T) {
	assert.Equal(t, "$(unterminated", ExpandEnv("$(unterminated"))
	assert.Equal(t, "$plain", ExpandEnv("$plain"))
}

func TestExpandEnvUnsetVariableBecomesEmpty(t *testing.T) {
	os.Unsetenv("KARL_TEST_UNSET_VAR")
	assert.Equal(t, "[]", ExpandEnv("[$(KARL_TEST_UNSET_VAR)]"))
}

func TestInitEmptyConfigKeepsDefaults(t *testing.T) {
	Keys = Settings{Originator: "", Domain: "karl", LogLevel: "info", Transport: ktransport.Settings{
		Type: ktransport.Multicast, Hosts: []string{"239.255.0.1:4150"}, QueueLength: 1024, MaxFragmentSize: 1024,
	}}
	require.NoError(t, Init(nil))
	assert.Equal(t, "karl", Keys.Domain)
}

func TestInitRejectsUnknownFields(t *testing.T) {
	Keys = Settings{Transport: ktransport.Settings{Type: ktransport.Multicast, Hosts: []string{"h"}, QueueLength: 1, MaxFragmentSize: 1}}
	err := Init([]byte(`{"not-a-real-field": true}`))
	assert.Error(t, err)
}

func TestInitRunsValidate(t *testing.T) {
	Keys = Settings{Transport: ktransport.Settings{Type: ktransport.Multicast, Hosts: []string{"h"}, QueueLength: 1, MaxFragmentSize: 1}}
	err := Init([]byte(`{"transport":{"type":"bogus"}}`))
	assert.Error(t, err)
}
