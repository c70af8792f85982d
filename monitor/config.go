package monitor

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// PeerConfig names one AFD_MON_CONFIG peer entry: the remote AFD instance
// this Monitor supervises a child for.
type PeerConfig struct {
	Alias string
	Host  string
	Port  int

	// LogCapabilities lists the log types this peer advertised support
	// for; GotLogCapabilities(pos) updates this and restarts the peer's
	// log-fetch child against the new set (spec.md §4.9).
	LogCapabilities []string

	// Group, when non-empty, names the summary group this peer reports
	// into — "every second (when there are group peers): recompute group
	// summaries" (spec.md §4.9).
	Group string
}

// Config is the AFD_MON_CONFIG file: rescan/retry cadence plus the peer
// list, decoded with the same github.com/BurntSushi/toml package the
// worker's job descriptor uses (SPEC_FULL.md §3).
type Config struct {
	RescanSeconds int `toml:"rescan_seconds"`
	RetrySeconds  int `toml:"retry_seconds"`

	Peers []PeerConfig `toml:"peer"`
}

// RescanTime and RetryInterval give Config's raw seconds fields as
// time.Duration, defaulting to spec.md's conventional values when unset.
func (c Config) RescanTime() time.Duration {
	if c.RescanSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RescanSeconds) * time.Second
}

func (c Config) RetryInterval() time.Duration {
	if c.RetrySeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RetrySeconds) * time.Second
}

// LoadConfig reads and decodes path (the file named by AFD_MON_CONFIG).
func LoadConfig(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("monitor: decode config %s: %w", path, err)
	}
	return c, nil
}
