package authflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every variable read by [LoadConfigFromEnv], for example
// AUTHFLOW_GATEWAY_BASE_URL or AUTHFLOW_TIMEOUT_INTERACTIVE.
const EnvPrefix = "AUTHFLOW_"

// LoadConfigFromEnv overlays AUTHFLOW_* environment variables on [DefaultConfig] and
// validates the result. Unset variables keep their defaults.
func LoadConfigFromEnv() (Config, error) {
	return loadConfigFromEnv(nil)
}

func loadConfigFromEnv(environ map[string]string) (Config, error) {
	cfg := defaultConfig()
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("authflow: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML document from path over [DefaultConfig] and validates the
// result. Keys absent from the file keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("authflow: read config: %w", err)
	}
	return decodeConfig(bytes.NewReader(raw))
}

func decodeConfig(r io.Reader) (Config, error) {
	cfg := defaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("authflow: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
