package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig holds defaults for any flag not given on the command line,
// per SPEC_FULL.md §6.1. Every field is optional; a zero value supplies
// no default, so the flag's own default applies, and a required flag
// must then be given on the command line.
type fileConfig struct {
	Lib            string `yaml:"lib"`
	Client         string `yaml:"client"`
	Model          string `yaml:"model"`
	Out            string `yaml:"out"`
	NoCompress     bool   `yaml:"noCompress"`
	StrictCompress bool   `yaml:"strictCompress"`
	TestMode       bool   `yaml:"testMode"`
	LogLevel       string `yaml:"logLevel"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("noregrets: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("noregrets: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// fillDefault returns override if it is non-empty, else fallback.
func fillDefault(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
