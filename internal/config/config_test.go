package config

import (
	"log/slog"
	"strings"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Port != 50070 {
		t.Errorf("default port = %d, want 50070", cfg.Server.Port)
	}
	if cfg.Server.MaxQueueSize != 50 {
		t.Errorf("default queue size = %d, want 50", cfg.Server.MaxQueueSize)
	}
	if cfg.Server.MaxUploadSizeMB != 200 {
		t.Errorf("default upload limit = %d MB, want 200", cfg.Server.MaxUploadSizeMB)
	}
	if cfg.Engine.Type != "funasr" {
		t.Errorf("default engine = %q, want funasr", cfg.Engine.Type)
	}
}

func TestLogLevel_Level(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want slog.Level
	}{
		{LogDebug, slog.LevelDebug},
		{LogInfo, slog.LevelInfo},
		{LogWarn, slog.LevelWarn},
		{LogError, slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := tc.in.Level(); got != tc.want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestStartupModelID(t *testing.T) {
	tests := []struct {
		name   string
		engine EngineConfig
		want   string
	}{
		{
			name:   "funasr default",
			engine: EngineConfig{Type: "funasr", FunASR: RuntimeConfig{ModelID: "iic/SenseVoiceSmall"}},
			want:   "iic/SenseVoiceSmall",
		},
		{
			name:   "mlx default",
			engine: EngineConfig{Type: "mlx", MLX: RuntimeConfig{ModelID: "mlx-community/VibeVoice-ASR-4bit"}},
			want:   "mlx-community/VibeVoice-ASR-4bit",
		},
		{
			name: "override wins",
			engine: EngineConfig{
				Type:   "mlx",
				ModelID: "custom/model",
				MLX:    RuntimeConfig{ModelID: "mlx-community/VibeVoice-ASR-4bit"},
			},
			want: "custom/model",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.engine.StartupModelID(); got != tc.want {
				t.Errorf("StartupModelID() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoadFromReader_OverridesDefaults(t *testing.T) {
	yml := `
server:
  port: 9000
  max_queue_size: 8
  log_level: debug
engine:
  type: mlx
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.MaxQueueSize != 8 {
		t.Errorf("max_queue_size = %d, want 8", cfg.Server.MaxQueueSize)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Engine.Type != "mlx" {
		t.Errorf("engine.type = %q, want mlx", cfg.Engine.Type)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want default 0.0.0.0", cfg.Server.Host)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	yml := `
server:
  prot: 9000
`
	if _, err := LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.Port != 50070 {
		t.Errorf("port = %d, want default 50070", cfg.Server.Port)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            0,
			MaxQueueSize:    0,
			MaxUploadSizeMB: 0,
			LogLevel:        "loud",
		},
		Engine: EngineConfig{Type: "whisper"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"server.port", "server.max_queue_size", "server.max_upload_size_mb", "server.log_level", "engine.type"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("MAX_QUEUE_SIZE", "2")
	t.Setenv("ENGINE_TYPE", "mlx")
	t.Setenv("MODEL_ID", "mlx-community/custom")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123", cfg.Server.Port)
	}
	if cfg.Server.MaxQueueSize != 2 {
		t.Errorf("max_queue_size = %d, want 2", cfg.Server.MaxQueueSize)
	}
	if cfg.Engine.Type != "mlx" {
		t.Errorf("engine.type = %q, want mlx", cfg.Engine.Type)
	}
	if cfg.Engine.StartupModelID() != "mlx-community/custom" {
		t.Errorf("startup model = %q, want mlx-community/custom", cfg.Engine.StartupModelID())
	}
	wantOrigins := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.AllowedOrigins) != len(wantOrigins) {
		t.Fatalf("allowed origins = %v, want %v", cfg.Server.AllowedOrigins, wantOrigins)
	}
	for i, o := range wantOrigins {
		if cfg.Server.AllowedOrigins[i] != o {
			t.Errorf("origin[%d] = %q, want %q", i, cfg.Server.AllowedOrigins[i], o)
		}
	}
	if cfg.Server.LogLevel != LogWarn {
		t.Errorf("log_level = %q, want warn", cfg.Server.LogLevel)
	}
}

func TestLoad_BadEnvInteger(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-integer PORT, got nil")
	}
}

func TestAddrAndUploadBytes(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 50070, MaxUploadSizeMB: 2}
	if got := s.Addr(); got != "127.0.0.1:50070" {
		t.Errorf("Addr() = %q, want 127.0.0.1:50070", got)
	}
	if got := s.MaxUploadBytes(); got != 2*1024*1024 {
		t.Errorf("MaxUploadBytes() = %d, want %d", got, 2*1024*1024)
	}
}
