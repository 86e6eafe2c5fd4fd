// Package config provides configuration types, defaults, and persistence for erwt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zjrosen/erwt/internal/log"
	"github.com/zjrosen/erwt/internal/tracing"
)

// Built-in channel names served by the host.
const (
	ChannelPing        = "app:ping"
	ChannelPong        = "app:pong"
	ChannelTempSet     = "temp:set"
	ChannelTempGet     = "temp:get"
	ChannelTempValue   = "temp:value"
	ChannelFileWrite   = "file:write"
	ChannelFileRead    = "file:read"
	ChannelFileContent = "file:content"
	ChannelXMLConvert  = "xml:convert"
	ChannelXMLJSON     = "xml:json"
	ChannelError       = "app:error"
	ChannelUserData    = "userdata:changed"
	ChannelLog         = "app:log"
)

// Config holds all application configuration.
type Config struct {
	AppName     string          `mapstructure:"app_name"`
	UserDataDir string          `mapstructure:"user_data_dir"`
	Debug       bool            `mapstructure:"debug"`
	Log         LogConfig       `mapstructure:"log"`
	IPC         IPCConfig       `mapstructure:"ipc"`
	Temp        TempConfig      `mapstructure:"temp"`
	Watch       WatchConfig     `mapstructure:"watch"`
	XML         XMLConfig       `mapstructure:"xml"`
	Tracing     tracing.Config  `mapstructure:"tracing"`
	Flags       map[string]bool `mapstructure:"flags"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// File defaults to <user data dir>/erwt.log when empty.
	File string `mapstructure:"file"`
}

// IPCConfig holds the renderer allow-lists and the optional remote transport.
type IPCConfig struct {
	SendChannels    []string `mapstructure:"send_channels"`
	ReceiveChannels []string `mapstructure:"receive_channels"`
	// RemoteURL, when set, also connects a socket.io client with the same allow-lists.
	RemoteURL       string `mapstructure:"remote_url"`
	RemoteNamespace string `mapstructure:"remote_namespace"`
}

// TempConfig configures the scratch store. Zero TTL means no expiry.
type TempConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// WatchConfig configures user data change notifications.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// XMLConfig configures XML conversion.
type XMLConfig struct {
	KeepWhitespace bool `mapstructure:"keep_whitespace"`
	// CacheTTL caches file conversions in the scratch store. Zero disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DefaultSendChannels are the renderer-to-main channels the built-in handlers serve.
func DefaultSendChannels() []string {
	return []string{ChannelPing, ChannelTempSet, ChannelTempGet, ChannelFileWrite, ChannelFileRead, ChannelXMLConvert}
}

// DefaultReceiveChannels are the main-to-renderer channels the host emits on.
func DefaultReceiveChannels() []string {
	return []string{ChannelPong, ChannelTempValue, ChannelFileContent, ChannelXMLJSON, ChannelError, ChannelUserData, ChannelLog}
}

// DefaultTracesFilePath returns <user config dir>/erwt/traces/traces.jsonl, or
// an empty string if the config dir is unavailable.
func DefaultTracesFilePath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "erwt", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()
	return Config{
		AppName: "erwt",
		Log: LogConfig{
			Level: "info",
		},
		IPC: IPCConfig{
			SendChannels:    DefaultSendChannels(),
			ReceiveChannels: DefaultReceiveChannels(),
			RemoteNamespace: "/",
		},
		Temp: TempConfig{
			DefaultTTL:      0,
			CleanupInterval: 10 * time.Minute,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		XML: XMLConfig{
			CacheTTL: time.Minute,
		},
		Tracing: tr,
		Flags:   map[string]bool{},
	}
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return fmt.Errorf("app_name is required")
	}
	if c.Log.Level != "" && !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if err := ValidateIPC(c.IPC); err != nil {
		return err
	}
	if c.Temp.DefaultTTL < 0 || c.Temp.CleanupInterval < 0 {
		return fmt.Errorf("temp durations must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if c.XML.CacheTTL < 0 {
		return fmt.Errorf("xml.cache_ttl must not be negative")
	}
	return ValidateTracing(c.Tracing)
}

// ValidateIPC rejects empty or duplicated channel names.
func ValidateIPC(ipc IPCConfig) error {
	for list, names := range map[string][]string{
		"ipc.send_channels":    ipc.SendChannels,
		"ipc.receive_channels": ipc.ReceiveChannels,
	} {
		seen := make(map[string]struct{}, len(names))
		for i, name := range names {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("%s[%d]: channel name is required", list, i)
			}
			if _, dup := seen[name]; dup {
				return fmt.Errorf("%s: duplicate channel %q", list, name)
			}
			seen[name] = struct{}{}
		}
	}
	if ipc.RemoteURL != "" && !strings.Contains(ipc.RemoteURL, "://") {
		return fmt.Errorf("ipc.remote_url must include a scheme, got %q", ipc.RemoteURL)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	if tc.Exporter != "" && !slices.Contains([]string{"none", "file", "stdout", "otlp"}, tc.Exporter) {
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}

	// Only validate path requirements when tracing is enabled
	if tc.Enabled {
		if tc.Exporter == "file" && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# erwt configuration

app_name: erwt

# Directory for persisted files and error.log.
# Defaults to $ERWT_USER_DATA, then <user config dir>/<app_name>.
# user_data_dir: /path/to/data

debug: false

log:
  level: info   # debug, info, warn, error
  # file: /path/to/erwt.log

# Channels the renderer bridge may use.
ipc:
  send_channels:
    - app:ping
    - temp:set
    - temp:get
    - file:write
    - file:read
    - xml:convert
  receive_channels:
    - app:pong
    - temp:value
    - file:content
    - xml:json
    - app:error
    - userdata:changed
    - app:log
  # remote_url: http://localhost:3000
  # remote_namespace: /

temp:
  default_ttl: 0s          # 0 keeps values until removed
  cleanup_interval: 10m

watch:
  enabled: true
  debounce: 500ms

xml:
  keep_whitespace: false
  cache_ttl: 1m

# Tracing (disabled by default)
# tracing:
#   enabled: true
#   exporter: file          # none, file, stdout, otlp
#   file_path: ~/.config/erwt/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0

# Feature flags
# flags:
#   list-events: true
#   forward-logs: true
#   trace-deliveries: true
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	if err := writeFileAtomic(configPath, []byte(DefaultConfigTemplate())); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return err
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
