// Package config provides the configuration schema and loader for the
// audioscribe transcription server.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variable overrides. The environment surface matches the
// container deployment conventions (HOST, PORT, ENGINE_TYPE, MODEL_ID, ...).
package config

import "log/slog"

// LogLevel controls log verbosity for the audioscribe server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to the corresponding [slog.Level]. Unrecognised values map
// to [slog.LevelInfo].
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure for audioscribe.
// It is typically produced by [Load].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
}

// ServerConfig holds network, limits, and logging settings.
type ServerConfig struct {
	// Host is the interface the server binds to.
	Host string `yaml:"host"`

	// Port is the TCP port the server listens on.
	Port int `yaml:"port"`

	// MaxQueueSize bounds the transcription admission queue.
	MaxQueueSize int `yaml:"max_queue_size"`

	// MaxUploadSizeMB is the per-file upload limit in mebibytes.
	MaxUploadSizeMB int64 `yaml:"max_upload_size_mb"`

	// AllowedOrigins lists CORS origins permitted to call the API.
	// Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// EngineConfig selects the inference backend and its startup model.
type EngineConfig struct {
	// Type selects the backend family: "funasr" or "mlx".
	Type string `yaml:"type"`

	// ModelID overrides the engine-specific default model when non-empty.
	// Takes precedence over the per-runtime model ids below.
	ModelID string `yaml:"model_id"`

	// FunASR configures the FunASR runtime.
	FunASR RuntimeConfig `yaml:"funasr"`

	// MLX configures the MLX runtime.
	MLX RuntimeConfig `yaml:"mlx"`
}

// RuntimeConfig describes one sidecar inference runtime.
type RuntimeConfig struct {
	// ModelID is the default model loaded when Engine.ModelID is empty.
	ModelID string `yaml:"model_id"`

	// Command is the sidecar process invocation. The literal "{model}"
	// argument is replaced with the model id at start. Empty means the
	// runtime is managed externally and only BaseURL is used.
	Command []string `yaml:"command"`

	// BaseURL is the runtime's loopback HTTP endpoint.
	BaseURL string `yaml:"base_url"`

	// UseITN enables inverse text normalisation. Honoured by the FunASR
	// runtime only.
	UseITN bool `yaml:"use_itn"`
}

// Default returns the built-in configuration, matching the documented
// environment defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            50070,
			MaxQueueSize:    50,
			MaxUploadSizeMB: 200,
			LogLevel:        LogInfo,
		},
		Engine: EngineConfig{
			Type: "funasr",
			FunASR: RuntimeConfig{
				ModelID: "iic/SenseVoiceSmall",
				BaseURL: "http://127.0.0.1:50071",
				UseITN:  true,
			},
			MLX: RuntimeConfig{
				ModelID: "mlx-community/VibeVoice-ASR-4bit",
				BaseURL: "http://127.0.0.1:50072",
			},
		},
	}
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// MaxUploadBytes returns the upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadSizeMB * 1024 * 1024
}

// StartupModelID resolves the model id the selected engine loads at boot:
// the explicit override when set, otherwise the engine-specific default.
func (e EngineConfig) StartupModelID() string {
	if e.ModelID != "" {
		return e.ModelID
	}
	if e.Type == "mlx" {
		return e.MLX.ModelID
	}
	return e.FunASR.ModelID
}
