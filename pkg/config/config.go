package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database  DatabaseConfig
	Neo4j     Neo4jConfig
	OpenAI    OpenAIConfig
	Ollama    OllamaConfig
	Anthropic AnthropicConfig
	Redis     RedisConfig
	Graph     GraphConfig
	Logging   LoggingConfig
}

type DatabaseConfig struct {
	Path string
}

type Neo4jConfig struct {
	URI        string
	Username   string
	Password   string
	Database   string
	TimeoutSec int
}

// OpenAIConfig drives the hosted embedding space.
type OpenAIConfig struct {
	APIKey         string
	EmbeddingModel string
	EmbeddingDim   int
	TimeoutSec     int
}

// OllamaConfig drives the local embedding space through the
// OpenAI-compatible endpoint.
type OllamaConfig struct {
	BaseURL        string
	EmbeddingModel string
	EmbeddingDim   int
	TimeoutSec     int
}

type AnthropicConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int
	TimeoutSec int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type GraphConfig struct {
	// Pagerank and community ids are written by a separate batch job; past
	// this age they are reported as stale rather than trusted.
	PagerankMaxAgeHours int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/semops")

	viper.SetEnvPrefix("SEMOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("database.path", "./data/curator.db")

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")
	viper.SetDefault("neo4j.timeoutSec", 10)

	viper.SetDefault("openai.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("openai.embeddingDim", 1536)
	viper.SetDefault("openai.timeoutSec", 15)

	viper.SetDefault("ollama.baseURL", "http://localhost:11434")
	viper.SetDefault("ollama.embeddingModel", "nomic-embed-text")
	viper.SetDefault("ollama.embeddingDim", 768)
	viper.SetDefault("ollama.timeoutSec", 30)

	viper.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	viper.SetDefault("anthropic.maxTokens", 1024)
	viper.SetDefault("anthropic.timeoutSec", 60)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("graph.pagerankMaxAgeHours", 24)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

// Validate rejects configurations that would fail mid-batch. Credentials are
// only required for the tiers that will actually run.
func (c *Config) Validate(needVector, needGraph, needLLM bool) error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if needVector && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.apiKey is required for the vector tier (SEMOPS_OPENAI_APIKEY)")
	}
	if needVector && c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.baseURL is required for the vector tier")
	}
	if needGraph && c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri is required for the graph tier")
	}
	if needLLM && c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.apiKey is required for the llm tier (SEMOPS_ANTHROPIC_APIKEY)")
	}
	return nil
}

func (c Neo4jConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c OllamaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c AnthropicConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}
