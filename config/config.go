package config

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	FedEx    FedExConfig    `yaml:"fedex"`
	KasTrack KasTrackConfig `yaml:"kastrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	CarrierPayloadsTopic  string `yaml:"carrier_payloads_topic"`
	TrackingIngestedTopic string `yaml:"tracking_ingested_topic"`
	SubmitTopic           string `yaml:"submit_topic"`
	OutcomesTopic         string `yaml:"outcomes_topic"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Namespace string `yaml:"namespace"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig points at a Supabase storage bucket. Image routes are
// disabled when URL is empty.
type StorageConfig struct {
	SupabaseURL    string `yaml:"supabase_url"`
	ServiceRoleKey string `yaml:"service_role_key"`
	Bucket         string `yaml:"bucket"`
}

type FedExConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	// UseFake swaps the FedEx API for a deterministic local generator.
	UseFake bool `yaml:"use_fake"`
}

type KasTrackConfig struct {
	HTTPAddr              string `yaml:"http_addr"`
	WorkerHTTPAddr        string `yaml:"worker_http_addr"`
	KafkaConsumerGroup    string `yaml:"kafka_consumer_group"`
	WorkerConsumerGroup   string `yaml:"worker_consumer_group"`
	RecordCacheTTLSeconds int    `yaml:"record_cache_ttl_seconds"`

	WorkerConcurrency        int            `yaml:"worker_concurrency"`
	WorkerRateLimitPerMinute int            `yaml:"worker_rate_limit_per_minute"`
	WorkerCarrierRateLimits  map[string]int `yaml:"worker_carrier_rate_limits"`
	WorkerSwaggerPath        string         `yaml:"worker_swagger_path"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.applyEnv(os.Getenv)
	return &config, nil
}

// Secrets usually come from the environment (or .env) rather than the file.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Database.Password, "DATABASE_PASSWORD")
	set(&c.FedEx.BaseURL, "FEDEX_BASE_URL")
	set(&c.FedEx.APIKey, "FEDEX_API_KEY")
	set(&c.FedEx.SecretKey, "FEDEX_SECRET_KEY")
	set(&c.Storage.SupabaseURL, "SUPABASE_URL")
	set(&c.Storage.ServiceRoleKey, "SUPABASE_SERVICE_ROLE_KEY")
	set(&c.Storage.Bucket, "SUPABASE_BUCKET")
}
