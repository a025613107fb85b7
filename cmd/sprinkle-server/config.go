package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sprinkle-app/sprinkle-go/pkg/zklogin"
	"gopkg.in/yaml.v3"
)

// Duration makes time.Duration parseable from yaml ("2h", "90m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the declarative part of the server setup. Secrets (master seed,
// sealing key, prover credential) come from the environment, never from this
// file.
type Config struct {
	ListenAddr      string                  `yaml:"listen_addr"`
	FullnodeURL     string                  `yaml:"fullnode_url"`
	ProverURL       string                  `yaml:"prover_url"`
	PackageID       string                  `yaml:"package_id"`
	SessionTTL      Duration                `yaml:"session_ttl"`
	InsecureCookies bool                    `yaml:"insecure_cookies"`
	Provider        *zklogin.ProviderConfig `yaml:"provider"`
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{
		ListenAddr:  ":8080",
		FullnodeURL: "https://fullnode.testnet.sui.io:443",
		SessionTTL:  Duration(2 * time.Hour),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}
	if config.Provider == nil {
		return nil, fmt.Errorf("config has no provider section")
	}
	if config.ProverURL == "" {
		return nil, fmt.Errorf("config has no prover_url")
	}
	return config, nil
}
