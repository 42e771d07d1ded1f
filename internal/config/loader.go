package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/audioscribe/internal/model"
)

// Load builds the effective configuration: built-in defaults, overlaid with
// the YAML file at path (skipped when path is empty), overlaid with
// environment variables, then validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. Environment variables are not applied. Useful in
// tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Unset variables leave
// the existing value untouched.
func applyEnv(cfg *Config) error {
	var errs []error

	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: PORT %q is not an integer", v))
		} else {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("MAX_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: MAX_QUEUE_SIZE %q is not an integer", v))
		} else {
			cfg.Server.MaxQueueSize = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_SIZE_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: MAX_UPLOAD_SIZE_MB %q is not an integer", v))
		} else {
			cfg.Server.MaxUploadSizeMB = n
		}
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv("ENGINE_TYPE"); v != "" {
		cfg.Engine.Type = v
	}
	if v := os.Getenv("MODEL_ID"); v != "" {
		cfg.Engine.ModelID = v
	}
	if v := os.Getenv("FUNASR_MODEL_ID"); v != "" {
		cfg.Engine.FunASR.ModelID = v
	}
	if v := os.Getenv("MLX_MODEL_ID"); v != "" {
		cfg.Engine.MLX.ModelID = v
	}

	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Host != "" {
		if ip := net.ParseIP(cfg.Server.Host); ip == nil && strings.ContainsAny(cfg.Server.Host, ":/ ") {
			errs = append(errs, fmt.Errorf("server.host %q is not a valid host", cfg.Server.Host))
		}
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port))
	}
	if cfg.Server.MaxQueueSize < 1 {
		errs = append(errs, fmt.Errorf("server.max_queue_size %d must be at least 1", cfg.Server.MaxQueueSize))
	}
	if cfg.Server.MaxUploadSizeMB < 1 {
		errs = append(errs, fmt.Errorf("server.max_upload_size_mb %d must be at least 1", cfg.Server.MaxUploadSizeMB))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !model.EngineType(cfg.Engine.Type).IsValid() {
		errs = append(errs, fmt.Errorf("engine.type %q is invalid; valid values: funasr, mlx", cfg.Engine.Type))
	}

	return errors.Join(errs...)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
