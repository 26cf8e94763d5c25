package webhook

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"counterhook/internal/security"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort      = 3002
	DefaultHost      = "0.0.0.0"
	DefaultSecret    = "your-webhook-secret"
	DefaultRepoPath  = "/workspace"
	DefaultGitBranch = "main"

	// AnyBranch makes every push eligible for a pull.
	AnyBranch = "*"

	// ConfigFileName is looked up by the CLI when no --config is given.
	ConfigFileName = "counterhook.yaml"
)

// Config is the receiver configuration. It is resolved once at startup
// from defaults, an optional YAML file and the environment, in that order.
type Config struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	Secret         string   `yaml:"secret"`
	RepoPath       string   `yaml:"repo_path"`
	TouchPaths     []string `yaml:"touch_paths"`
	GitBranch      string   `yaml:"git_branch"`
	RestartCommand string   `yaml:"restart_command"`
	Debug          bool     `yaml:"debug"`
	HistoryDB      string   `yaml:"history_db"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Port:      DefaultPort,
		Host:      DefaultHost,
		Secret:    DefaultSecret,
		RepoPath:  DefaultRepoPath,
		GitBranch: DefaultGitBranch,
		HistoryDB: "./deliveries.db",
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// ApplyEnv overrides cfg with the environment variables understood by the
// receiver. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("WEBHOOK_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WEBHOOK_PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("COUNTERHOOK_HOST"); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup("WEBHOOK_SECRET"); ok && v != "" {
		c.Secret = v
	}
	if v, ok := lookup("REPO_PATH"); ok && v != "" {
		c.RepoPath = v
	}
	if v, ok := lookup("TOUCH_PATHS"); ok {
		c.TouchPaths = ParseTouchPaths(v)
	}
	if v, ok := lookup("GIT_BRANCH"); ok && v != "" {
		c.GitBranch = v
	}
	if v, ok := lookup("NODEMON_RESTART_CMD"); ok {
		c.RestartCommand = v
	}
	if v, ok := lookup("DEBUG"); ok {
		c.Debug = v == "true"
	}
	if v, ok := lookup("COUNTERHOOK_DB_PATH"); ok && v != "" {
		c.HistoryDB = v
	}
	return nil
}

// ParseTouchPaths splits a comma-separated list, dropping empty entries.
func ParseTouchPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if c.RepoPath == "" {
		return fmt.Errorf("repository path is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	if c.GitBranch != AnyBranch {
		if err := security.ValidateBranchName(c.GitBranch); err != nil {
			return fmt.Errorf("invalid git branch: %w", err)
		}
	}
	return nil
}

// Warnings lists problems that do not stop the receiver from starting.
func (c *Config) Warnings() []string {
	var warnings []string
	if err := security.ValidateSecret(c.Secret); err != nil {
		warnings = append(warnings, fmt.Sprintf("weak webhook secret: %v", err))
	}
	if info, err := os.Stat(c.RepoPath); err != nil || !info.IsDir() {
		warnings = append(warnings, fmt.Sprintf("repository path %s is not a directory", c.RepoPath))
	}
	return warnings
}

// WatchesRef reports whether a push to ref should trigger a pull.
func (c *Config) WatchesRef(ref string) bool {
	if ref == "" {
		return false
	}
	return c.GitBranch == AnyBranch || ref == "refs/heads/"+c.GitBranch
}

// Snapshot is the configuration as reported by GET /health. The secret is
// never included.
type Snapshot struct {
	Port              int      `json:"port"`
	RepoPath          string   `json:"repoPath"`
	GitBranch         string   `json:"gitBranch"`
	TouchPaths        []string `json:"touchPaths"`
	NodemonRestartCmd string   `json:"nodemonRestartCmd"`
	Debug             bool     `json:"debug"`
}

// Snapshot returns the public view of the configuration.
func (c *Config) Snapshot() Snapshot {
	touchPaths := c.TouchPaths
	if touchPaths == nil {
		touchPaths = []string{}
	}
	return Snapshot{
		Port:              c.Port,
		RepoPath:          c.RepoPath,
		GitBranch:         c.GitBranch,
		TouchPaths:        touchPaths,
		NodemonRestartCmd: c.RestartCommand,
		Debug:             c.Debug,
	}
}
