package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration, loaded from an optional YAML
// file and overridable per field with REFLEX_* environment variables.
type Config struct {
	// Root is the watched project directory.
	Root string `yaml:"root"`
	// APIDir is the route module directory relative to Root.
	APIDir string `yaml:"api_dir"`
	// APIPrefix is the URL prefix route files map under.
	APIPrefix string `yaml:"api_prefix"`

	ListenAddr     string   `yaml:"listen_addr"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	DebounceMS      int `yaml:"debounce_ms"`
	ReloadTimeoutMS int `yaml:"reload_timeout_ms"`
	MaxRetries      int `yaml:"max_retries"`

	// ConfigFiles are basenames whose change reloads every route.
	ConfigFiles []string `yaml:"config_files"`

	LogLevel string `yaml:"log_level"`

	// StateTTLSeconds is the default expiry for state entries. Zero
	// keeps entries forever.
	StateTTLSeconds int `yaml:"state_ttl_seconds"`

	NotificationReplay   int `yaml:"notification_replay"`
	ConnectionsPerMinute int `yaml:"connections_per_minute"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Root:               ".",
		APIDir:             "pages/api",
		APIPrefix:          "/api",
		ListenAddr:         "127.0.0.1:8787",
		DebounceMS:         200,
		ReloadTimeoutMS:    10000,
		MaxRetries:         2,
		ConfigFiles:        []string{"next.config.js", "next.config.mjs", "package.json", "tsconfig.json"},
		LogLevel:           "info",
		NotificationReplay: 16,
	}
}

// Load reads path when it exists, layers environment overrides on
// top, and normalizes the result. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	config := Default()

	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(payload, &config); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&config)
	normalize(&config)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate rejects configurations the runtime cannot honor.
func (config Config) Validate() error {
	if config.Root == "" {
		return fmt.Errorf("root must not be empty")
	}
	if config.APIDir == "" {
		return fmt.Errorf("api_dir must not be empty")
	}
	if !strings.HasPrefix(config.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with /: %q", config.APIPrefix)
	}
	if config.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if config.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must not be negative")
	}
	if config.ReloadTimeoutMS <= 0 {
		return fmt.Errorf("reload_timeout_ms must be positive")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// Debounce converts the millisecond setting to a duration.
func (config Config) Debounce() time.Duration {
	return time.Duration(config.DebounceMS) * time.Millisecond
}

func (config Config) ReloadTimeout() time.Duration {
	return time.Duration(config.ReloadTimeoutMS) * time.Millisecond
}

func (config Config) StateTTL() time.Duration {
	return time.Duration(config.StateTTLSeconds) * time.Second
}

func applyEnvOverrides(config *Config) {
	setString := func(key string, target *string) {
		if value, ok := os.LookupEnv(key); ok {
			*target = strings.TrimSpace(value)
		}
	}
	setInt := func(key string, target *int) {
		value, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return
		}
		*target = parsed
	}
	setList := func(key string, target *[]string) {
		value, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*target = items
	}

	setString("REFLEX_ROOT", &config.Root)
	setString("REFLEX_API_DIR", &config.APIDir)
	setString("REFLEX_API_PREFIX", &config.APIPrefix)
	setString("REFLEX_LISTEN_ADDR", &config.ListenAddr)
	setString("REFLEX_AUTH_TOKEN", &config.AuthToken)
	setList("REFLEX_ALLOWED_ORIGINS", &config.AllowedOrigins)
	setInt("REFLEX_DEBOUNCE_MS", &config.DebounceMS)
	setInt("REFLEX_RELOAD_TIMEOUT_MS", &config.ReloadTimeoutMS)
	setInt("REFLEX_MAX_RETRIES", &config.MaxRetries)
	setList("REFLEX_CONFIG_FILES", &config.ConfigFiles)
	setString("REFLEX_LOG_LEVEL", &config.LogLevel)
	setInt("REFLEX_STATE_TTL_SECONDS", &config.StateTTLSeconds)
}

func normalize(config *Config) {
	defaults := Default()

	config.Root = strings.TrimSpace(config.Root)
	if config.Root == "" {
		config.Root = defaults.Root
	}
	config.APIDir = strings.Trim(strings.TrimSpace(config.APIDir), "/")
	if config.APIDir == "" {
		config.APIDir = defaults.APIDir
	}
	config.APIPrefix = strings.TrimSpace(config.APIPrefix)
	if config.APIPrefix == "" {
		config.APIPrefix = defaults.APIPrefix
	}
	config.APIPrefix = "/" + strings.Trim(config.APIPrefix, "/")
	if config.ListenAddr == "" {
		config.ListenAddr = defaults.ListenAddr
	}
	if config.ReloadTimeoutMS == 0 {
		config.ReloadTimeoutMS = defaults.ReloadTimeoutMS
	}
	if len(config.ConfigFiles) == 0 {
		config.ConfigFiles = defaults.ConfigFiles
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
}
