// ABOUTME: Run configuration: defaults, optional YAML file, .env, and environment overrides.
// ABOUTME: Environment variables win over the file; the file wins over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the pipeline and its collaborators need to run.
type Config struct {
	// AI model configuration
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	AnalystModel   string `yaml:"analyst_model"`
	InterviewModel string `yaml:"interview_model"`
	WriterModel    string `yaml:"writer_model"`

	// Retrieval configuration
	TavilyAPIKey     string `yaml:"tavily_api_key"`
	TavilyBaseURL    string `yaml:"tavily_base_url"`
	WikipediaBaseURL string `yaml:"wikipedia_base_url"`
	MaxSearchResults int    `yaml:"max_search_results"`

	// Market and trading configuration
	PolymarketAPIKey string `yaml:"polymarket_api_key"`
	GammaBaseURL     string `yaml:"gamma_base_url"`
	ClobBaseURL      string `yaml:"clob_base_url"`
	OrderSize        string `yaml:"order_size"`

	// Pipeline shape
	AnalystCount int `yaml:"analyst_count"`
	MaxTurns     int `yaml:"max_turns"`

	// Run history
	DatabasePath string `yaml:"database_path"`
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	return &Config{
		AnalystModel:     "gpt-4o",
		InterviewModel:   "gpt-4o-mini",
		WriterModel:      "gpt-4o",
		MaxSearchResults: 3,
		OrderSize:        "10",
		AnalystCount:     3,
		MaxTurns:         2,
		DatabasePath:     "conclave.db",
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then .env, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()
	cfg.loadFromEnv()

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("OPENAI_BASE_URL"); val != "" {
		c.OpenAIBaseURL = val
	}
	if val := os.Getenv("ANALYST_MODEL"); val != "" {
		c.AnalystModel = val
	}
	if val := os.Getenv("INTERVIEW_MODEL"); val != "" {
		c.InterviewModel = val
	}
	if val := os.Getenv("WRITER_MODEL"); val != "" {
		c.WriterModel = val
	}
	if val := os.Getenv("TAVILY_API_KEY"); val != "" {
		c.TavilyAPIKey = val
	}
	if val := os.Getenv("TAVILY_BASE_URL"); val != "" {
		c.TavilyBaseURL = val
	}
	if val := os.Getenv("WIKIPEDIA_BASE_URL"); val != "" {
		c.WikipediaBaseURL = val
	}
	if val := os.Getenv("POLYMARKET_API_KEY"); val != "" {
		c.PolymarketAPIKey = val
	}
	if val := os.Getenv("GAMMA_BASE_URL"); val != "" {
		c.GammaBaseURL = val
	}
	if val := os.Getenv("CLOB_BASE_URL"); val != "" {
		c.ClobBaseURL = val
	}
	if val := os.Getenv("ORDER_SIZE"); val != "" {
		c.OrderSize = val
	}
	if val := os.Getenv("DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("ANALYST_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.AnalystCount = n
		}
	}
	if val := os.Getenv("MAX_TURNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxTurns = n
		}
	}
	if val := os.Getenv("MAX_SEARCH_RESULTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxSearchResults = n
		}
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.AnalystCount < 1 {
		return fmt.Errorf("analyst_count must be at least 1, got %d", c.AnalystCount)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative, got %d", c.MaxTurns)
	}
	return nil
}
