package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Providers that can serve runs
const (
	ProviderEcho   = "echo"
	ProviderScript = "script"
	ProviderADK    = "adk"
)

// Config holds the application configuration
type Config struct {
	Port         string
	AppName      string
	Provider     string
	ScriptPath   string
	GoogleAPIKey string
	Model        string
	RunTimeout   time.Duration
	Heartbeat    time.Duration
	StateTTL     time.Duration
	CORSOrigin   string
	LogLevel     string
	LogFormat    string
}

// Keys read from viper. Environment variables use the AGUI_ prefix, for example
// AGUI_RUN_TIMEOUT; port, app_name and google_api_key also accept the bare names.
const (
	KeyPort         = "port"
	KeyAppName      = "app_name"
	KeyProvider     = "provider"
	KeyScriptPath   = "script_path"
	KeyGoogleAPIKey = "google_api_key"
	KeyModel        = "model"
	KeyRunTimeout   = "run_timeout"
	KeyHeartbeat    = "heartbeat"
	KeyStateTTL     = "state_ttl"
	KeyCORSOrigin   = "cors_origin"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
)

// Defaults installs the default values on v
func Defaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8000")
	v.SetDefault(KeyAppName, "agui-stream")
	v.SetDefault(KeyProvider, ProviderEcho)
	v.SetDefault(KeyModel, "gemini-2.5-flash")
	v.SetDefault(KeyRunTimeout, 60*time.Second)
	v.SetDefault(KeyHeartbeat, 15*time.Second)
	v.SetDefault(KeyStateTTL, time.Hour)
	v.SetDefault(KeyCORSOrigin, "*")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Bind wires environment lookups into v
func Bind(v *viper.Viper) error {
	v.SetEnvPrefix("AGUI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, env := range map[string][]string{
		KeyPort:         {"AGUI_PORT", "PORT"},
		KeyAppName:      {"AGUI_APP_NAME", "APP_NAME"},
		KeyGoogleAPIKey: {"AGUI_GOOGLE_API_KEY", "GOOGLE_API_KEY"},
	} {
		if err := v.BindEnv(append([]string{key}, env...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from v, reading the config file when one is set
func Load(v *viper.Viper) (*Config, error) {
	Defaults(v)
	if err := Bind(v); err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:         v.GetString(KeyPort),
		AppName:      v.GetString(KeyAppName),
		Provider:     strings.ToLower(v.GetString(KeyProvider)),
		ScriptPath:   v.GetString(KeyScriptPath),
		GoogleAPIKey: v.GetString(KeyGoogleAPIKey),
		Model:        v.GetString(KeyModel),
		RunTimeout:   v.GetDuration(KeyRunTimeout),
		Heartbeat:    v.GetDuration(KeyHeartbeat),
		StateTTL:     v.GetDuration(KeyStateTTL),
		CORSOrigin:   v.GetString(KeyCORSOrigin),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected provider has what it needs
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	switch c.Provider {
	case ProviderEcho:
	case ProviderScript:
		if c.ScriptPath == "" {
			return errors.New("script_path is required for the script provider")
		}
	case ProviderADK:
		if c.GoogleAPIKey == "" {
			return errors.New("GOOGLE_API_KEY environment variable is required for the adk provider")
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.RunTimeout < 0 || c.Heartbeat < 0 || c.StateTTL < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
