package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Config is the complete service configuration. Sections map onto the
// subsystems the binary wires: the HTTP gateway, AWS clients, the
// deploy pipeline, the generation store, the metrics server and
// logging.
type Config struct {
	Server  ServerConfig  `json:"server"`
	AWS     AWSConfig     `json:"aws"`
	Deploy  DeployConfig  `json:"deploy"`
	Store   StoreConfig   `json:"store"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig defines the HTTP gateway listener.
type ServerConfig struct {
	Host        string   `json:"host,omitempty"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

// AWSConfig selects the account context the service operates in.
type AWSConfig struct {
	Region  string `json:"region"`
	Profile string `json:"profile,omitempty"`
}

// DeployConfig tunes the deploy pipeline and the tracking hub.
type DeployConfig struct {
	StackPrefix   string        `json:"stack_prefix"`
	PollInterval  time.Duration `json:"poll_interval"`
	HoldOpenDelay time.Duration `json:"hold_open_delay"`
	KeyPairs      bool          `json:"key_pairs"`
}

// StoreConfig locates the generation record store.
type StoreConfig struct {
	Directory string `json:"directory"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path,omitempty"`
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate before updating
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		// Fallback to shallow copy if marshaling fails
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		// Fallback to shallow copy if unmarshaling fails
		copied := *c
		return &copied
	}

	return &clone
}

// Stack name prefixes become CloudFormation stack names, which must
// start with a letter and contain only letters, digits and hyphens.
var stackPrefixPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.AWS.Region == "" {
		return errors.New("aws.region is required")
	}

	if c.Deploy.StackPrefix == "" {
		return errors.New("deploy.stack_prefix is required")
	}
	if !stackPrefixPattern.MatchString(c.Deploy.StackPrefix) {
		return fmt.Errorf(
			"deploy.stack_prefix %q is not a valid stack name prefix (must start with a letter, letters/digits/hyphens only)",
			c.Deploy.StackPrefix,
		)
	}
	if c.Deploy.PollInterval <= 0 {
		return errors.New("deploy.poll_interval must be positive")
	}
	if c.Deploy.HoldOpenDelay < 0 {
		return errors.New("deploy.hold_open_delay cannot be negative")
	}

	if c.Store.Directory == "" {
		return errors.New("store.directory is required")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics.port %d collides with server.port", c.Metrics.Port)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q invalid (debug, info, warn, error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q invalid (json, text)", c.Logging.Format)
	}

	return nil
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// UnmarshalJSON implements custom JSON unmarshaling for Config so the
// deploy durations accept both "3s" strings and nanosecond numbers.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		Deploy struct {
			StackPrefix   string `json:"stack_prefix"`
			PollInterval  any    `json:"poll_interval"`
			HoldOpenDelay any    `json:"hold_open_delay"`
			KeyPairs      *bool  `json:"key_pairs"`
		} `json:"deploy"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Deploy.StackPrefix = aux.Deploy.StackPrefix
	if aux.Deploy.KeyPairs != nil {
		c.Deploy.KeyPairs = *aux.Deploy.KeyPairs
	}

	pollInterval, err := parseDurationValue(aux.Deploy.PollInterval)
	if err != nil {
		return fmt.Errorf("deploy.poll_interval: %w", err)
	}
	c.Deploy.PollInterval = pollInterval

	holdOpen, err := parseDurationValue(aux.Deploy.HoldOpenDelay)
	if err != nil {
		return fmt.Errorf("deploy.hold_open_delay: %w", err)
	}
	c.Deploy.HoldOpenDelay = holdOpen

	return nil
}

// parseDurationValue accepts a duration string, a numeric nanosecond
// count, or nil (zero).
func parseDurationValue(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		return time.ParseDuration(val)
	case float64:
		return time.Duration(val), nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}
