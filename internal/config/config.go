// Package config loads and holds the application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration populated by Init.
var Conf Config

// Config mirrors the layout of configs/config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Router        RouterConfig        `mapstructure:"router"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Index         IndexConfig         `mapstructure:"index"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Corpus        CorpusConfig        `mapstructure:"corpus"`
	Evaluation    EvaluationConfig    `mapstructure:"evaluation"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// AdminToken guards /api/v1/admin. Empty disables the admin routes.
	AdminToken string `mapstructure:"admin_token"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig configures the completion API used for generation, explanation and chat.
type LLMConfig struct {
	APIKey       string              `mapstructure:"api_key"`
	BaseURL      string              `mapstructure:"base_url"`
	Model        string              `mapstructure:"model"`
	Timeout      time.Duration       `mapstructure:"timeout"`
	PacingDelay  time.Duration       `mapstructure:"pacing_delay"`
	Generation   LLMGenerationConfig `mapstructure:"generation"`
	SystemPrompt LLMPromptConfig     `mapstructure:"system_prompt"`
}

// LLMGenerationConfig holds sampling parameters sent with every completion request.
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig overrides the built-in system role text per intent. Empty keeps the default.
type LLMPromptConfig struct {
	Generate string `mapstructure:"generate"`
	Explain  string `mapstructure:"explain"`
	Chat     string `mapstructure:"chat"`
}

// RouterConfig configures the intent classifier call.
type RouterConfig struct {
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PacingDelay time.Duration `mapstructure:"pacing_delay"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// EmbeddingConfig configures the embedding provider.
// Provider is "openai" (any OpenAI-compatible endpoint) or "hashing" (local, offline).
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// IndexConfig configures the knowledge vector index.
// Backend is "sqlite" (default), "mysql" or "elasticsearch".
type IndexConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	ESIndex string `mapstructure:"es_index"`
	TopK    int    `mapstructure:"top_k"`
}

// MemoryConfig configures short- and long-term conversation memory.
type MemoryConfig struct {
	Store           string        `mapstructure:"store"` // "redis" or "memory"
	Dir             string        `mapstructure:"dir"`
	RecallK         int           `mapstructure:"recall_k"`
	ShortTermTurns  int           `mapstructure:"short_term_turns"`
	TranscriptTurns int           `mapstructure:"transcript_turns"`
	TTL             time.Duration `mapstructure:"ttl"`
}

// CorpusConfig points at the files produced by the corpus builder.
type CorpusConfig struct {
	CSVPath         string `mapstructure:"csv_path"`
	GroundTruthPath string `mapstructure:"ground_truth_path"`
}

// EvaluationConfig configures the offline retrieval evaluation.
type EvaluationConfig struct {
	K                int    `mapstructure:"k"`
	ReportFile       string `mapstructure:"report_file"`
	CodeparrotSample int    `mapstructure:"codeparrot_sample"`
	Seed             int64  `mapstructure:"seed"`
	Concurrency      int    `mapstructure:"concurrency"`
}

// DatabaseConfig holds external database connections.
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig is used when index.backend is "mysql".
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds the Redis connection used for short-term memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ElasticsearchConfig holds the Elasticsearch connection for the elasticsearch index backend.
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// KafkaConfig configures the audit topic. An empty Brokers disables publishing.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig configures where evaluation reports are uploaded. An empty Endpoint disables uploads.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "deepseek/deepseek-r1:free")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.pacing_delay", 2*time.Second)
	v.SetDefault("llm.generation.temperature", 0.2)
	v.SetDefault("llm.generation.max_tokens", 512)

	v.SetDefault("router.model", "deepseek/deepseek-r1")
	v.SetDefault("router.timeout", 20*time.Second)
	v.SetDefault("router.pacing_delay", 2*time.Second)
	v.SetDefault("router.temperature", 0.2)
	v.SetDefault("router.max_tokens", 256)

	v.SetDefault("embedding.provider", "hashing")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.batch_size", 64)

	v.SetDefault("index.backend", "sqlite")
	v.SetDefault("index.dir", "data/index/embeddings")
	v.SetDefault("index.es_index", "code_examples")
	v.SetDefault("index.top_k", 8)

	v.SetDefault("memory.store", "memory")
	v.SetDefault("memory.dir", "data/index/memory")
	v.SetDefault("memory.recall_k", 5)
	v.SetDefault("memory.short_term_turns", 4)
	v.SetDefault("memory.transcript_turns", 8)
	v.SetDefault("memory.ttl", 7*24*time.Hour)

	v.SetDefault("corpus.csv_path", "data/knowledge_base/combined_rag_corpus.csv")
	v.SetDefault("corpus.ground_truth_path", "data/knowledge_base/ground_truth_ids_for_task.json")

	v.SetDefault("evaluation.k", 1)
	v.SetDefault("evaluation.report_file", "rag_evaluation_report.csv")
	v.SetDefault("evaluation.codeparrot_sample", 1000)
	v.SetDefault("evaluation.seed", 42)
	v.SetDefault("evaluation.concurrency", 4)

	v.SetDefault("kafka.topic", "codehelp-turns")
	v.SetDefault("minio.bucket_name", "codehelp-reports")
}

// Load reads the YAML file at configPath (if it exists), applies defaults and
// environment overrides, and returns the result.
func Load(configPath string) (Config, error) {
	// a missing .env is fine, the environment is used as-is
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENROUTER_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("failed to bind llm api key env: %w", err)
	}

	if configPath != "" && fileExists(configPath) {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Init loads configPath into Conf and panics on failure.
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
