package cmd

import (
	"bytes"
	"errors"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kelly-sim/kelly-sim/sim"
)

// LoadConfig reads a YAML scenario on top of sim.DefaultConfig().
// Uses strict field checking: typos must cause errors.
func LoadConfig(path string) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, pkgerrors.Wrapf(err, "reading config %s", path)
	}
	return decodeConfig(data, cfg)
}

func decodeConfig(data []byte, cfg sim.Config) (sim.Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, pkgerrors.Wrap(err, "parsing config YAML")
	}
	return cfg, nil
}
