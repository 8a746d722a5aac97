// Package config loads and validates the connector's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	Chain   ChainConfig   `mapstructure:"chain"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Backoff BackoffConfig `mapstructure:"backoff"`
	Storage StorageConfig `mapstructure:"storage"`
	Gateway GatewayConfig `mapstructure:"gateway"`
}

type ChainConfig struct {
	RPCURL     string `mapstructure:"rpc_url"`
	WSURL      string `mapstructure:"ws_url"`
	ProgramID  string `mapstructure:"program_id"`
	Commitment string `mapstructure:"commitment"`
}

type EngineConfig struct {
	SignaturesPageSize    int `mapstructure:"signatures_page_size"`
	CatchupBufferCapacity int `mapstructure:"catchup_buffer_capacity"`
	LiveBufferCapacity    int `mapstructure:"live_buffer_capacity"`
	ListenerQueueCapacity int `mapstructure:"listener_queue_capacity"`
}

type BackoffConfig struct {
	Initial time.Duration `mapstructure:"initial"`
	Max     time.Duration `mapstructure:"max"`
	Factor  float64       `mapstructure:"factor"`
	Jitter  float64       `mapstructure:"jitter"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // memory | disk
	Path    string `mapstructure:"path"`
}

type GatewayConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// DaemonDir resolves the daemon home under a base directory (typically the
// user's home). An empty base is refused rather than silently producing a
// relative ".w3b2d".
func DaemonDir(base string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("home base directory must not be empty")
	}
	return filepath.Join(base, ".w3b2d"), nil
}

// DefaultPath is the config file location inside a daemon home.
func DefaultPath(daemonDir string) string {
	return filepath.Join(daemonDir, "config.toml")
}

// ProgramKey parses the configured program id.
func (c *Config) ProgramKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.Chain.ProgramID)
}

func LoadFile(path string) (*Config, error) {
	if st, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", os.ErrNotExist, path)
		}
		return nil, fmt.Errorf("stat config file: %w", err)
	} else if st.IsDir() {
		return nil, fmt.Errorf("config path is a directory: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.commitment", "confirmed")
	v.SetDefault("engine.signatures_page_size", 1000)
	v.SetDefault("engine.catchup_buffer_capacity", 1024)
	v.SetDefault("engine.live_buffer_capacity", 1024)
	v.SetDefault("engine.listener_queue_capacity", 256)
	v.SetDefault("backoff.initial", 500*time.Millisecond)
	v.SetDefault("backoff.max", 30*time.Second)
	v.SetDefault("backoff.factor", 2.0)
	v.SetDefault("backoff.jitter", 0.1)
	v.SetDefault("storage.backend", "disk")
	v.SetDefault("storage.path", "cursors.db")
	v.SetDefault("gateway.listen_addr", "127.0.0.1:8790")
}

func (c *Config) validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.WSURL == "" {
		return fmt.Errorf("chain.ws_url is required")
	}
	if c.Chain.ProgramID == "" {
		return fmt.Errorf("chain.program_id is required")
	}
	if _, err := c.ProgramKey(); err != nil {
		return fmt.Errorf("chain.program_id is not a valid public key: %w", err)
	}
	switch c.Chain.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("chain.commitment must be processed, confirmed or finalized")
	}
	switch c.Storage.Backend {
	case "memory":
	case "disk":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the disk backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or disk")
	}
	if c.Backoff.Factor < 1 {
		return fmt.Errorf("backoff.factor must be >= 1")
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		return fmt.Errorf("backoff.jitter must be within [0, 1]")
	}
	return nil
}

func WriteDefaultFile(path string) error {
	defaultConfig := []byte(`# W3B2 Connector Configuration

[chain]
rpc_url = "http://localhost:8899"
ws_url = "ws://localhost:8900"
# Replace with the deployed program id.
program_id = "11111111111111111111111111111111"
commitment = "confirmed"

[engine]
signatures_page_size = 1000
catchup_buffer_capacity = 1024
live_buffer_capacity = 1024
listener_queue_capacity = 256

[backoff]
initial = "500ms"
max = "30s"
factor = 2.0
jitter = 0.1

[storage]
backend = "disk"
path = "cursors.db"

[gateway]
listen_addr = "127.0.0.1:8790"
`)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
