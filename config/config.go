// Package config loads the process configuration for cmd/tkoprobe: a
// package-private newConfig(data string) parses raw TOML, and
// NewConfigWithFile(path) reads the file and delegates to it.
// DefaultConfig fills in whatever newConfig leaves zero.
package config

import (
	"io/ioutil"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/juju/errors"

	"github.com/Hamster601/tkotracker/pkg/logs"
)

// Config is the full process configuration.
type Config struct {
	// TkoThreshold is the number of accumulated soft failures required
	// before a destination enters soft TKO. DefaultConfig replaces 0 with
	// 5; DESIGN.md describes how a tracker behaves at threshold 0.
	TkoThreshold uint64 `toml:"tko_threshold"`

	// ExporterAddr is the bind address the Prometheus exporter listens
	// on. DefaultConfig replaces an empty value with ":9595".
	ExporterAddr string `toml:"exporter_addr"`

	// MachineID seeds the identity token allocator; see identity.NewAllocator.
	MachineID uint16 `toml:"machine_id"`

	// Maxprocs is the configured GOMAXPROCS value; DefaultConfig replaces
	// a value <= 0 with twice runtime.NumCPU(). cmd/tkoprobe does not
	// apply it to the runtime.
	Maxprocs int `toml:"maxprocs"`

	LoggerConfig *logs.Config `toml:"logger"`
}

// newConfig parses a Config out of raw TOML data.
func newConfig(data string) (*Config, error) {
	var c Config
	if _, err := toml.Decode(data, &c); err != nil {
		return nil, errors.Annotate(err, "decode config")
	}
	return DefaultConfig(&c), nil
}

// NewConfigWithFile reads path and parses it as a Config.
func NewConfigWithFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "read config file")
	}
	return newConfig(string(data))
}

// DefaultConfig fills in the fields NewConfigWithFile leaves zero.
func DefaultConfig(c *Config) *Config {
	if c.TkoThreshold == 0 {
		c.TkoThreshold = 5
	}
	if c.ExporterAddr == "" {
		c.ExporterAddr = ":9595"
	}
	if c.Maxprocs <= 0 {
		c.Maxprocs = runtime.NumCPU() * 2
	}
	return c
}
