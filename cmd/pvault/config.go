package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	StoreRoot     string `json:"store_root"`      //nolint:tagliatelle // snake_case for config file
	AppName       string `json:"app_name"`        //nolint:tagliatelle // snake_case for config file
	MaxPerSession int64  `json:"max_per_session"` //nolint:tagliatelle // snake_case for config file
}

// ConfigFileName is the default config file name.
const ConfigFileName = ".pvault.json"

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StoreRoot:     ".",
		AppName:       "pvault",
		MaxPerSession: 10 << 20,
	}
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Config file (.pvault.json in workDir, or an explicit path)
// 3. CLI overrides, applied by the caller.
func LoadConfig(workDir, configPath string) (Config, error) {
	cfg := DefaultConfig()

	cfgFile := configPath
	mustExist := configPath != ""

	if cfgFile == "" {
		cfgFile = filepath.Join(workDir, ConfigFileName)
	} else if !filepath.IsAbs(cfgFile) {
		cfgFile = filepath.Join(workDir, cfgFile)
	}

	data, err := os.ReadFile(cfgFile) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("reading config file %s: %w", cfgFile, err)
	}

	fileCfg, err := parseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", cfgFile, err)
	}

	return mergeConfig(cfg, fileCfg), nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.StoreRoot != "" {
		base.StoreRoot = overlay.StoreRoot
	}

	if overlay.AppName != "" {
		base.AppName = overlay.AppName
	}

	if overlay.MaxPerSession > 0 {
		base.MaxPerSession = overlay.MaxPerSession
	}

	return base
}
