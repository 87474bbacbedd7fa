// Package config loads the server/client settings file, following the
// teacher's init-time load + explicit Reload()/verify() pattern
// (moto/config/setting.go), extended to accept either JSON or TOML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cppla/computesrv/protocol"
)

// Credential is one accepted username/password pair.
type Credential = protocol.Credential

// CacheConfig bounds the result cache (§4.E).
type CacheConfig struct {
	MaxCost int `json:"maxCost" toml:"max_cost"`
}

// PlannerConfig holds the chunk planner tunables (§4.D step 2). They are
// loaded and defaulted here but not read by the executor, which plans
// with its own MaxChunkCount/MinChunkSize constants.
type PlannerConfig struct {
	MaxChunkCount int `json:"maxChunkCount" toml:"max_chunk_count"`
	MinChunkSize  int `json:"minChunkSize" toml:"min_chunk_size"`
}

// LogConfig configures the zap/lumberjack logger (utils.Logger).
type LogConfig struct {
	Level string `json:"level" toml:"level"`
	Path  string `json:"path" toml:"path"`
}

// AuditConfig optionally enables the sqlx/sqlite task audit trail.
type AuditConfig struct {
	Path string `json:"path" toml:"path"`
}

// MetricsConfig optionally enables the VictoriaMetrics /metrics endpoint.
type MetricsConfig struct {
	Listen string `json:"listen" toml:"listen"`
}

// ServerConfig is the top-level settings document.
type ServerConfig struct {
	Listen           string        `json:"listen" toml:"listen"`
	Transport        string        `json:"transport" toml:"transport"` // "tcp" (default) or "quic"
	Credentials      []Credential  `json:"credentials" toml:"credentials"`
	AllowListEnabled bool          `json:"allowListEnabled" toml:"allow_list_enabled"`
	AllowList        []string      `json:"allowList" toml:"allow_list"`
	Cache            CacheConfig   `json:"cache" toml:"cache"`
	Planner          PlannerConfig `json:"planner" toml:"planner"`
	Log              LogConfig     `json:"log" toml:"log"`
	Audit            AuditConfig   `json:"audit" toml:"audit"`
	Metrics          MetricsConfig `json:"metrics" toml:"metrics"`
}

// GlobalCfg points to the configuration currently in effect.
var GlobalCfg *ServerConfig

func init() {
	path := os.Getenv("COMPUTESRV_CONFIG")
	if path == "" {
		path = "config/setting.json"
	}
	cfg, err := load(path)
	if err != nil {
		fmt.Printf("failed to load %s: %s\n", path, err.Error())
		cfg = &ServerConfig{}
	}
	applyDefaults(cfg)
	GlobalCfg = cfg
}

// Reload loads settings from path, applying defaults and validation,
// and swaps them in as GlobalCfg on success.
func Reload(path string) error {
	cfg, err := load(path)
	if err != nil {
		return err
	}
	applyDefaults(cfg)
	if err := verify(cfg); err != nil {
		return err
	}
	GlobalCfg = cfg
	return nil
}

func load(path string) (*ServerConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(buf, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := json.Unmarshal(buf, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *ServerConfig) {
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.Cache.MaxCost <= 0 {
		cfg.Cache.MaxCost = 16 * 1024 * 1024
	}
	if cfg.Planner.MaxChunkCount <= 0 {
		cfg.Planner.MaxChunkCount = 100
	}
	if cfg.Planner.MinChunkSize <= 0 {
		cfg.Planner.MinChunkSize = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = "computesrv.log"
	}
}

func verify(cfg *ServerConfig) error {
	if cfg.Listen == "" {
		return fmt.Errorf("config: empty listen address")
	}
	if len(cfg.Credentials) == 0 {
		fmt.Printf("config: no credentials configured, no client will be able to authenticate\n")
	}
	switch cfg.Transport {
	case "tcp", "quic":
	default:
		return fmt.Errorf("config: unknown transport %q", cfg.Transport)
	}
	return nil
}
