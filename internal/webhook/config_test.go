package webhook

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 3002 || cfg.RepoPath != "/workspace" || cfg.GitBranch != "main" || cfg.Secret != "your-webhook-secret" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Debug || cfg.RestartCommand != "" || len(cfg.TouchPaths) != 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(mapLookup(map[string]string{
		"WEBHOOK_PORT":        "4000",
		"WEBHOOK_SECRET":      "s3cr3t",
		"REPO_PATH":           "/srv/app",
		"TOUCH_PATHS":         "src/index.js, nodemon.json,,",
		"GIT_BRANCH":          "develop",
		"NODEMON_RESTART_CMD": "npm run restart",
		"DEBUG":               "true",
		"COUNTERHOOK_HOST":    "127.0.0.1",
		"COUNTERHOOK_DB_PATH": "/tmp/d.db",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	want := Config{
		Port:           4000,
		Host:           "127.0.0.1",
		Secret:         "s3cr3t",
		RepoPath:       "/srv/app",
		TouchPaths:     []string{"src/index.js", "nodemon.json"},
		GitBranch:      "develop",
		RestartCommand: "npm run restart",
		Debug:          true,
		HistoryDB:      "/tmp/d.db",
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("ApplyEnv() = %+v, want %+v", cfg, want)
	}
}

func TestApplyEnv_Debug(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"false", false},
		{"1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			if err := cfg.ApplyEnv(mapLookup(map[string]string{"DEBUG": tt.value})); err != nil {
				t.Fatal(err)
			}
			if cfg.Debug != tt.want {
				t.Errorf("DEBUG=%q gave Debug=%v, want %v", tt.value, cfg.Debug, tt.want)
			}
		})
	}
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(mapLookup(map[string]string{"WEBHOOK_PORT": "abc"})); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestParseTouchPaths(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a.js", []string{"a.js"}},
		{"a.js,b.js", []string{"a.js", "b.js"}},
		{" a.js , ,b.js,", []string{"a.js", "b.js"}},
	}

	for _, tt := range tests {
		if got := ParseTouchPaths(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseTouchPaths(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counterhook.yaml")
	content := `
port: 4100
repo_path: /srv/demo
touch_paths:
  - packages/backend/src/index.js
git_branch: "*"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Port != 4100 || cfg.RepoPath != "/srv/demo" || cfg.GitBranch != AnyBranch {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.TouchPaths) != 1 || cfg.TouchPaths[0] != "packages/backend/src/index.js" {
		t.Errorf("TouchPaths = %v", cfg.TouchPaths)
	}
	// keys absent from the file keep their defaults
	if cfg.Secret != DefaultSecret || cfg.Host != DefaultHost {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadFile(path, &cfg); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"wildcard branch", func(c *Config) { c.GitBranch = "*" }, ""},
		{"nested branch", func(c *Config) { c.GitBranch = "feature/login" }, ""},
		{"port zero", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"empty repo", func(c *Config) { c.RepoPath = "" }, "repository path"},
		{"empty secret", func(c *Config) { c.Secret = "" }, "secret"},
		{"option injection", func(c *Config) { c.GitBranch = "--upload-pack=x" }, "invalid git branch"},
		{"traversal", func(c *Config) { c.GitBranch = "a/../b" }, "invalid git branch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepoPath = filepath.Join(t.TempDir(), "missing")

	warnings := cfg.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("expected placeholder secret and missing repo warnings, got %v", warnings)
	}

	cfg.RepoPath = t.TempDir()
	cfg.Secret = "Xk9#mP2$vL7@nQ4&wR8*tY3!zB6^cF1%"
	if warnings := cfg.Warnings(); len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}

func TestWatchesRef(t *testing.T) {
	tests := []struct {
		branch string
		ref    string
		want   bool
	}{
		{"main", "refs/heads/main", true},
		{"main", "refs/heads/develop", false},
		{"main", "refs/tags/main", false},
		{"main", "main", false},
		{"main", "", false},
		{"*", "refs/heads/anything", true},
		{"*", "refs/tags/v1.0.0", true},
		{"*", "", false},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.GitBranch = tt.branch
		if got := cfg.WatchesRef(tt.ref); got != tt.want {
			t.Errorf("branch %q WatchesRef(%q) = %v, want %v", tt.branch, tt.ref, got, tt.want)
		}
	}
}

func TestSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	snap := cfg.Snapshot()

	if snap.TouchPaths == nil {
		t.Error("TouchPaths should be an empty list, not null")
	}
	if snap.Port != cfg.Port || snap.RepoPath != cfg.RepoPath || snap.GitBranch != cfg.GitBranch {
		t.Errorf("Snapshot() = %+v", snap)
	}
}
