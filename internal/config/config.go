package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web       WebConfig             `yaml:"web"`
	NATS      NATSConfig            `yaml:"nats"`
	Store     StoreConfig           `yaml:"store"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
	Vault     VaultConfig           `yaml:"vault"`
	Swarm     SwarmConfig           `yaml:"swarm"`
	Roles     map[string]RoleConfig `yaml:"roles"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Token   string `yaml:"token"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

type SwarmConfig struct {
	// GlobalTimeout bounds a single query run regardless of the query's own
	// time limit.
	GlobalTimeout time.Duration `yaml:"global_timeout"`
}

// RoleConfig describes how one responder role's collaborator is constructed.
// APIKey may hold a "secret:<name>" reference resolved through the vault.
type RoleConfig struct {
	Description     string        `yaml:"description"`
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	Retries         int           `yaml:"retries"`
	SourceThreshold float64       `yaml:"source_threshold"`
	APIKey          string        `yaml:"api_key"`
}

func defaults() Config {
	return Config{
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/quorum.db",
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
		Swarm: SwarmConfig{
			GlobalTimeout: 10 * time.Minute,
		},
		Roles: map[string]RoleConfig{
			"master": {
				Description:     "Synthesizes peer findings into the final verdict",
				Model:           "gpt-4",
				Temperature:     0.5,
				MaxTokens:       3000,
				Timeout:         120 * time.Second,
				Retries:         3,
				SourceThreshold: 0.6,
			},
			"search": {
				Description:     "Gathers and validates external evidence",
				Model:           "gpt-4",
				Temperature:     0.3,
				MaxTokens:       2000,
				Timeout:         45 * time.Second,
				Retries:         3,
				SourceThreshold: 0.6,
			},
			"innovation": {
				Description:     "Explores novel, first-principles angles",
				Model:           "gpt-4",
				Temperature:     0.8,
				MaxTokens:       2500,
				Timeout:         60 * time.Second,
				Retries:         3,
				SourceThreshold: 0.6,
			},
			"analysis": {
				Description:     "Probes the question with critical inquiry",
				Model:           "gpt-4",
				Temperature:     0.7,
				MaxTokens:       2000,
				Timeout:         45 * time.Second,
				Retries:         3,
				SourceThreshold: 0.6,
			},
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("QUORUM_CONFIG")
	if path == "" {
		path = "config/quorum.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	fillRoleDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QUORUM_WEB_TOKEN"); v != "" {
		cfg.Web.Token = v
	}
	if v := os.Getenv("QUORUM_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("QUORUM_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("QUORUM_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("QUORUM_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
}

// fillRoleDefaults backfills zero fields on configured roles so a partial
// YAML role section does not wipe the built-in timeouts and budgets.
func fillRoleDefaults(cfg *Config) {
	base := defaults().Roles
	if cfg.Roles == nil {
		cfg.Roles = make(map[string]RoleConfig, len(base))
	}
	for name, rc := range cfg.Roles {
		def, ok := base[name]
		if !ok {
			continue
		}
		if rc.Model == "" {
			rc.Model = def.Model
		}
		if rc.Temperature == 0 {
			rc.Temperature = def.Temperature
		}
		if rc.MaxTokens == 0 {
			rc.MaxTokens = def.MaxTokens
		}
		if rc.Timeout == 0 {
			rc.Timeout = def.Timeout
		}
		if rc.Retries == 0 {
			rc.Retries = def.Retries
		}
		if rc.SourceThreshold == 0 {
			rc.SourceThreshold = def.SourceThreshold
		}
		cfg.Roles[name] = rc
	}
	for name, def := range base {
		if _, ok := cfg.Roles[name]; !ok {
			cfg.Roles[name] = def
		}
	}
}
