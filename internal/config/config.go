// Package config decodes the process-wide Settings object (§6.4) from
// a JSON file, the way the teacher's internal/config/config.go decodes
// its ProgramConfig: a package-level Keys default, overwritten field by
// field by whatever the caller's config file supplies.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/ktransport"
)

// CheckpointFormat names one of the store's whole-snapshot encodings
// (§6.5 plus the Avro alternative wired in from the domain stack).
// Validate accepts these values; karld and its housekeeping rotation
// always read and write the binary format regardless of the setting.
type CheckpointFormat string

const (
	CheckpointBinary CheckpointFormat = "binary"
	CheckpointAvro   CheckpointFormat = "avro"
	CheckpointKarl   CheckpointFormat = "karl"
)

// Settings is the structured configuration object named in §6.4: it
// carries transport settings, checkpoint/evaluator knobs, and the
// paths the facade's save/load context operations use by default.
type Settings struct {
	Originator string `json:"originator"`
	Domain     string `json:"domain"`

	Transport ktransport.Settings `json:"transport"`

	CheckpointFormat CheckpointFormat `json:"checkpoint-format"`
	CheckpointPath   string           `json:"checkpoint-path"`

	PollFrequencyHz float64 `json:"poll-frequency-hz"`
	MaxWaitSeconds  float64 `json:"max-wait-seconds"`

	LogLevel string `json:"log-level"`

	// TrustKey, if non-empty, enables signed peer-trust tokens on a
	// registry-server/registry-client transport (internal/trust): the
	// shared HS256 secret every process in the domain must agree on.
	TrustKey string `json:"trust-key"`
}

// Keys holds the global configuration loaded via Init, pre-populated
// with the defaults a bare `karld` process should run with (multicast
// on group 239.255.0.1:4150, no checkpointing, the binary checkpoint
// format).
var Keys = Settings{
	Originator: "",
	Domain:     "karl",
	Transport: ktransport.Settings{
		Type:                    ktransport.Multicast,
		Hosts:                   []string{"239.255.0.1:4150"},
		QueueLength:             1 << 20,
		ReadThreads:             1,
		MaxFragmentSize:         60000,
		ResendAttempts:          3,
		Reliability:             ktransport.BestEffort,
		RebroadcastTTL:          0,
		ParticipantRebroadcastTTL: 3,
		MaxSendBandwidth:        -1,
		MaxTotalBandwidth:       -1,
		DeadlineSeconds:         0,
	},
	CheckpointFormat: CheckpointBinary,
	PollFrequencyHz:  10,
	MaxWaitSeconds:   0,
	LogLevel:         "info",
}

// Init reads rawConfig as JSON over Keys's defaults, expanding
// `$(VAR)`/`${VAR}` references in every string-valued field first
// (§6.4). An empty/missing file is not an error — Keys keeps its
// built-in defaults, mirroring the teacher's Init tolerating a missing
// flagConfigFile.
func Init(rawConfig []byte) error {
	if len(rawConfig) == 0 {
		return nil
	}
	expanded := ExpandEnv(string(rawConfig))

	dec := json.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(&Keys); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	krlog.SetLevel(Keys.LogLevel)
	return nil
}

// InitFile reads path and calls Init with its contents. A nonexistent
// path is tolerated exactly like Init's empty-input case.
func InitFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return Init(raw)
}

// ExpandEnv replaces every `$(VAR)` or `${VAR}` reference in s with
// the value of the named environment variable (empty if unset),
// matching §6.4's environment-variable expansion in string contexts.
// Unlike os.Expand, both delimiter styles are accepted side by side
// since the spec documents both.
func ExpandEnv(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		open := s[i+1]
		var close byte
		switch open {
		case '(':
			close = ')'
		case '{':
			close = '}'
		default:
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(s[i+2:], close)
		if end < 0 {
			b.WriteByte(c)
			continue
		}
		name := s[i+2 : i+2+end]
		b.WriteString(os.Getenv(name))
		i += 2 + end
	}
	return b.String()
}
