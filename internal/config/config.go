package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB      DBConfig
	JWT     JWTConfig
	Server  ServerConfig
	Quota   QuotaConfig
	Storage StorageConfig
	MinIO   MinIOConfig
	Queue   QueueConfig
}

type DBConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
	SSLMode  string
}

type JWTConfig struct {
	// PublicKeyPath points at the PEM file published by the authentication
	// authority. The service only ever verifies, never signs.
	PublicKeyPath string `validate:"required"`
	Algorithm     string `validate:"required"`
}

type ServerConfig struct {
	Port string `validate:"required"`
}

type QuotaConfig struct {
	MaxFileBytes int64 `validate:"gt=0"`
	MaxUserBytes int64 `validate:"gt=0"`
}

type StorageConfig struct {
	// Backend selects where raw file bytes live: "database" keeps them in a
	// blob table committed with the metadata, "minio" puts them in an object
	// store.
	Backend string `validate:"oneof=database minio"`
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type QueueConfig struct {
	// Host empty means the user-update consumer stays disabled.
	Host     string
	Port     string
	Username string
	Password string
	Exchange string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "filedepot"),
			Password: getEnv("DB_PASSWORD", "filedepot_secret"),
			Name:     getEnv("DB_NAME", "filedepot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			PublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "config/jwt-signature-rsa-public.pem"),
			Algorithm:     getEnv("JWT_ALGORITHM", "RS512"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Quota: QuotaConfig{
			MaxFileBytes: getEnvAsInt64("QUOTA_MAX_FILE_BYTES", 128*1024*1024),
			MaxUserBytes: getEnvAsInt64("QUOTA_MAX_USER_BYTES", 1024*1024*1024),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "database"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "filedepot"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "filedepot_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "filedepot"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Queue: QueueConfig{
			Host:     getEnv("USER_UPDATE_QUEUE_HOST", ""),
			Port:     getEnv("USER_UPDATE_QUEUE_PORT", "5672"),
			Username: getEnv("USER_UPDATE_QUEUE_USERNAME", ""),
			Password: getEnv("USER_UPDATE_QUEUE_PASSWORD", ""),
			Exchange: getEnv("USER_UPDATE_QUEUE_EXCHANGE_NAME", "user_update"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
