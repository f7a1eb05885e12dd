package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Database
	DatabaseType     string // postgresql | sqlite
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ResumeEnabled bool
	ResumeTTL     time.Duration

	// Events
	EventSink    string // none | kafka | sqs
	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopic   string
	SQSQueueName string

	// Artifact archive
	ArchiveBackend string // none | s3 | gcs
	ArchiveBucket  string
	ArchivePrefix  string
	GCSToken       string

	// Pipeline
	Workers        int
	BatchSize      int
	Strict         bool
	TagMappingPath string
	QueryConfig    string
	RunRetention   time.Duration

	// Export
	SaveDir            string
	ExportFormat       string
	ReconstructCommand string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 0),

		DatabaseType:     getEnv("DATABASE_TYPE", "postgresql"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "dcmw"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "dcmw"),
		PostgresDB:       getEnv("POSTGRES_DB", "dcmw"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "dcmw.db"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		ResumeEnabled: getBoolEnv("IMPORT_RESUME", false),
		ResumeTTL:     getDuration("IMPORT_RESUME_TTL", 7*24*time.Hour),

		EventSink:    getEnv("EVENT_SINK", "none"),
		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "dcmw"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "dcmw.events"),
		SQSQueueName: getEnv("SQS_QUEUE_NAME", "dcmw-events"),

		ArchiveBackend: getEnv("ARCHIVE_BACKEND", "none"),
		ArchiveBucket:  getEnv("ARCHIVE_BUCKET", ""),
		ArchivePrefix:  getEnv("ARCHIVE_PREFIX", ""),
		GCSToken:       getEnv("GCS_ACCESS_TOKEN", ""),

		Workers:        getIntEnv("WORKERS", 4),
		BatchSize:      getIntEnv("BATCH_SIZE", 32),
		Strict:         getBoolEnv("STRICT", false),
		TagMappingPath: getEnv("TAG_MAPPING_PATH", ""),
		QueryConfig:    getEnv("QUERY_CONFIG_PATH", ""),
		RunRetention:   getDuration("RUN_RETENTION", 0),

		SaveDir:            getEnv("SAVE_DIR", "./export"),
		ExportFormat:       getEnv("EXPORT_FORMAT", "nrrd"),
		ReconstructCommand: getEnv("RECONSTRUCT_COMMAND", "dcm2vol"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
