package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Store     StoreConfig    `yaml:"store"`
	Files     FilesConfig    `yaml:"files"`
	Resolver  ResolverConfig `yaml:"resolver"`
	Search    SearchConfig   `yaml:"search"`
	Market    MarketConfig   `yaml:"market"`
	Watchlist []string       `yaml:"watchlist"`
	LLM       LLMConfig      `yaml:"llm"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type StoreConfig struct {
	Sqlite SqliteConfig `yaml:"sqlite"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type FilesConfig struct {
	BaseDir      string `yaml:"base_dir"`
	MaxFileBytes int64  `yaml:"max_file_bytes"`
}

type ResolverConfig struct {
	AliasesCSV string `yaml:"aliases_csv"`
}

type SearchConfig struct {
	Engine    string `yaml:"engine"`
	IndexPath string `yaml:"index_path"`
}

type MarketConfig struct {
	Provider          string `yaml:"provider"`
	PollIntervalSec   int    `yaml:"poll_interval_sec"`
	MinRefreshSec     int    `yaml:"min_refresh_sec"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	TimeoutMs         int    `yaml:"timeout_ms"`
}

type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TimeoutMs   int     `yaml:"timeout_ms"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Store: StoreConfig{
			Sqlite: SqliteConfig{Path: "data/assistant.db"},
		},
		Files: FilesConfig{
			BaseDir:      "data/files",
			MaxFileBytes: 100 * 1024,
		},
		Search: SearchConfig{
			Engine:    "memory",
			IndexPath: "data/search.bleve",
		},
		Market: MarketConfig{
			Provider:          "auto",
			PollIntervalSec:   300,
			MinRefreshSec:     15,
			RequestsPerMinute: 60,
			TimeoutMs:         30000,
		},
		Watchlist: []string{"RELIANCE.NS", "TCS.NS", "INFY.NS", "AAPL"},
		LLM: LLMConfig{
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			TimeoutMs:   30000,
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Store.Sqlite.Path = v
	}
	if v := os.Getenv("FILES_BASE_DIR"); v != "" {
		cfg.Files.BaseDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	return nil
}
