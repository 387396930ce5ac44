// Package server holds process configuration and runs the HTTP listeners.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	"orca-agent-backend/logging"
)

// Config is the resolved process configuration
type Config struct {
	Port               int
	ProxyPort          int
	WorkspaceRoot      string
	Environment        string
	GrazieToken        string
	GrazieBaseURL      string
	AgentProxyURL      string
	MaxConcurrentTasks int
	TaskQueueDepth     int
	AgentTimeout       time.Duration
	GitTimeout         time.Duration
	SimulationDelay    time.Duration
	GitForcePush       bool
	GitAuthorName      string
	GitAuthorEmail     string
	CORSAllowedOrigins []string
	ContainerName      string
	LogLevel           string
	LogFormat          string
}

// Current is set by InitConfig
var Current = DefaultConfig()

func DefaultConfig() Config {
	return Config{
		Port:               8001,
		ProxyPort:          8090,
		WorkspaceRoot:      "/workspace/agent-workspace",
		Environment:        "PREPROD",
		MaxConcurrentTasks: 4,
		TaskQueueDepth:     16,
		AgentTimeout:       30 * time.Minute,
		GitTimeout:         5 * time.Minute,
		SimulationDelay:    2 * time.Second,
		GitForcePush:       true,
		GitAuthorName:      "Orca Agent",
		GitAuthorEmail:     "agent@orca.local",
		CORSAllowedOrigins: []string{"*"},
		ContainerName:      "agent",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// fileConfig mirrors Config in the TOML file. Unset keys keep their defaults.
type fileConfig struct {
	Port               int      `toml:"port"`
	ProxyPort          int      `toml:"grazie_proxy_port"`
	WorkspaceRoot      string   `toml:"workspace_root"`
	Environment        string   `toml:"grazie_environment"`
	GrazieToken        string   `toml:"grazie_api_token"`
	GrazieBaseURL      string   `toml:"grazie_base_url"`
	AgentProxyURL      string   `toml:"agent_proxy_url"`
	MaxConcurrentTasks int      `toml:"max_concurrent_tasks"`
	TaskQueueDepth     *int     `toml:"task_queue_depth"`
	AgentTimeout       string   `toml:"agent_timeout"`
	GitTimeout         string   `toml:"git_timeout"`
	SimulationDelay    string   `toml:"simulation_delay"`
	GitForcePush       *bool    `toml:"git_force_push"`
	GitAuthorName      string   `toml:"git_author_name"`
	GitAuthorEmail     string   `toml:"git_author_email"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ContainerName      string   `toml:"container_name"`
	LogLevel           string   `toml:"log_level"`
	LogFormat          string   `toml:"log_format"`
}

// LoadConfig resolves defaults, then the TOML file at path (if any), then
// environment variables. Later sources win.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// InitConfig loads the configuration into Current and applies its logging settings
func InitConfig(path string) error {
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	Current = cfg
	logging.Configure(cfg.LogLevel, cfg.LogFormat)

	logging.NewLogger("server").WithFields(logrus.Fields{
		"workspace":      cfg.WorkspaceRoot,
		"environment":    cfg.Environment,
		"grazie_token":   cfg.GrazieToken != "",
		"max_concurrent": cfg.MaxConcurrentTasks,
		"config_file":    path,
	}).Info("Configuration loaded")
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setInt(&cfg.Port, fc.Port)
	setInt(&cfg.ProxyPort, fc.ProxyPort)
	setString(&cfg.WorkspaceRoot, fc.WorkspaceRoot)
	setString(&cfg.Environment, fc.Environment)
	setString(&cfg.GrazieToken, fc.GrazieToken)
	setString(&cfg.GrazieBaseURL, fc.GrazieBaseURL)
	setString(&cfg.AgentProxyURL, fc.AgentProxyURL)
	setInt(&cfg.MaxConcurrentTasks, fc.MaxConcurrentTasks)
	if fc.TaskQueueDepth != nil {
		cfg.TaskQueueDepth = *fc.TaskQueueDepth
	}
	if fc.GitForcePush != nil {
		cfg.GitForcePush = *fc.GitForcePush
	}
	setString(&cfg.GitAuthorName, fc.GitAuthorName)
	setString(&cfg.GitAuthorEmail, fc.GitAuthorEmail)
	if len(fc.CORSAllowedOrigins) > 0 {
		cfg.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}
	setString(&cfg.ContainerName, fc.ContainerName)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)

	for key, pair := range map[string]struct {
		raw    string
		target *time.Duration
	}{
		"agent_timeout":    {fc.AgentTimeout, &cfg.AgentTimeout},
		"git_timeout":      {fc.GitTimeout, &cfg.GitTimeout},
		"simulation_delay": {fc.SimulationDelay, &cfg.SimulationDelay},
	} {
		if pair.raw == "" {
			continue
		}
		d, err := time.ParseDuration(pair.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", key, path, err)
		}
		*pair.target = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []string
	intVar := func(key string, target *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", key, v))
				return
			}
			*target = n
		}
	}
	durationVar := func(key string, target *time.Duration) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not a duration", key, v))
				return
			}
			*target = d
		}
	}
	boolVar := func(key string, target *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not a boolean", key, v))
				return
			}
			*target = b
		}
	}

	intVar("PORT", &cfg.Port)
	intVar("GRAZIE_PROXY_PORT", &cfg.ProxyPort)
	setString(&cfg.WorkspaceRoot, os.Getenv("WORKSPACE_ROOT"))
	setString(&cfg.Environment, os.Getenv("GRAZIE_ENVIRONMENT"))
	setString(&cfg.GrazieToken, os.Getenv("GRAZIE_API_TOKEN"))
	setString(&cfg.GrazieBaseURL, os.Getenv("GRAZIE_BASE_URL"))
	setString(&cfg.AgentProxyURL, os.Getenv("AGENT_PROXY_URL"))
	intVar("MAX_CONCURRENT_TASKS", &cfg.MaxConcurrentTasks)
	intVar("TASK_QUEUE_DEPTH", &cfg.TaskQueueDepth)
	durationVar("AGENT_TIMEOUT", &cfg.AgentTimeout)
	durationVar("GIT_TIMEOUT", &cfg.GitTimeout)
	durationVar("SIMULATION_DELAY", &cfg.SimulationDelay)
	boolVar("GIT_FORCE_PUSH", &cfg.GitForcePush)
	setString(&cfg.GitAuthorName, os.Getenv("GIT_AUTHOR_NAME"))
	setString(&cfg.GitAuthorEmail, os.Getenv("GIT_AUTHOR_EMAIL"))
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	setString(&cfg.ContainerName, os.Getenv("CONTAINER_NAME"))
	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.LogFormat, os.Getenv("LOG_FORMAT"))

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setString(target *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*target = v
	}
}

func setInt(target *int, v int) {
	if v != 0 {
		*target = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
