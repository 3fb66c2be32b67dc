package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "FOUNDRY",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := l.getDefaults()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	// Apply environment overrides
	l.applyEnvOverrides(cfg)

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"*"},
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Deploy: DeployConfig{
			StackPrefix:   "foundry-stack",
			PollInterval:  3 * time.Second,
			HoldOpenDelay: 2 * time.Second,
			KeyPairs:      true,
		},
		Store: StoreConfig{
			Directory: "generations",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	// Use secure file reading with validation
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	// Validate JSON depth to prevent DoS
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	// Unmarshal into map
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	// Convert duration strings
	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	// Marshal the base config to JSON then to map
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	// Deep merge the maps
	mergedMap := l.deepMergeMaps(baseMap, override)

	// Convert back to Config
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	// Copy base values
	for k, v := range base {
		result[k] = v
	}

	// Override with values from override map
	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		// Otherwise, override takes precedence
		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	deploy, ok := data["deploy"].(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"poll_interval", "hold_open_delay"} {
		if raw, ok := deploy[key].(string); ok {
			if d, err := time.ParseDuration(raw); err == nil {
				deploy[key] = d.Nanoseconds()
			}
		}
	}
}

// envValue reads one override variable, dropping values that fail
// basic validation.
func (l *Loader) envValue(name string) string {
	key := l.envPrefix + "_" + name
	val := os.Getenv(key)
	if val == "" {
		return ""
	}
	if err := validateEnvVar(key, val); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: ignoring %s: %v\n", key, err)
		return ""
	}
	return val
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := l.envValue("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := l.envValue("SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val := l.envValue("SERVER_CORS_ORIGINS"); val != "" {
		cfg.Server.CORSOrigins = strings.Split(val, ",")
	}

	// AWS overrides
	if val := l.envValue("AWS_REGION"); val != "" {
		cfg.AWS.Region = val
	}
	if val := l.envValue("AWS_PROFILE"); val != "" {
		cfg.AWS.Profile = val
	}

	// Deploy overrides
	if val := l.envValue("DEPLOY_STACK_PREFIX"); val != "" {
		cfg.Deploy.StackPrefix = val
	}
	if val := l.envValue("DEPLOY_POLL_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Deploy.PollInterval = d
		}
	}
	if val := l.envValue("DEPLOY_HOLD_OPEN_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Deploy.HoldOpenDelay = d
		}
	}
	if val := l.envValue("DEPLOY_KEY_PAIRS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Deploy.KeyPairs = enabled
		}
	}

	// Store overrides
	if val := l.envValue("STORE_DIR"); val != "" {
		cfg.Store.Directory = val
	}

	// Metrics overrides
	if val := l.envValue("METRICS_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if val := l.envValue("METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = port
		}
	}

	// Logging overrides
	if val := l.envValue("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := l.envValue("LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}
