package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() of missing explicit file expected error")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, DriverSQLite)
	}
	if cfg.DebounceMs != 2000 {
		t.Errorf("DebounceMs = %d, want 2000", cfg.DebounceMs)
	}
	if cfg.DashboardPort != 8484 {
		t.Errorf("DashboardPort = %d, want 8484", cfg.DashboardPort)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codelab.yaml")
	content := `user_id: u1
workspace: /tmp/ws
store_driver: postgres
postgres_dsn: postgres://localhost/codelab
debounce_ms: 500
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", cfg.UserID)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("StoreDriver = %q, want postgres", cfg.StoreDriver)
	}
	if cfg.DebounceInterval() != 500*time.Millisecond {
		t.Errorf("DebounceInterval() = %v, want 500ms", cfg.DebounceInterval())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CODELAB_USER_ID", "env-user")
	t.Setenv("CODELAB_DEBOUNCE_MS", "750")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UserID != "env-user" {
		t.Errorf("UserID = %q, want env-user", cfg.UserID)
	}
	if cfg.DebounceMs != 750 {
		t.Errorf("DebounceMs = %d, want 750", cfg.DebounceMs)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		UserID:      "u1",
		StoreDriver: DriverSQLite,
		SQLitePath:  "answers.db",
		DebounceMs:  2000,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid sqlite", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing user", mutate: func(c *Config) { c.UserID = "" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "mysql" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.SQLitePath = "" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) {
			c.StoreDriver = DriverPostgres
			c.PostgresDSN = ""
		}, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.StoreDriver = DriverPostgres
			c.PostgresDSN = "postgres://localhost/codelab"
		}, wantErr: false},
		{name: "zero debounce", mutate: func(c *Config) { c.DebounceMs = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger_Stderr(t *testing.T) {
	cfg := &Config{}
	logger, closer := NewLogger(cfg, "[test] ")
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
	if closer != nil {
		t.Error("stderr logger should not need closing")
	}
}

func TestNewLogger_File(t *testing.T) {
	cfg := &Config{LogFile: filepath.Join(t.TempDir(), "codelab.log")}
	logger, closer := NewLogger(cfg, "[test] ")
	if closer == nil {
		t.Fatal("file logger should return a closer")
	}
	defer closer.Close()

	logger.Println("hello")
	if _, err := os.Stat(cfg.LogFile); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
