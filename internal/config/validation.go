package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus the rules that
// cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			first := validationErrors[0]
			return fmt.Errorf("config: field %s failed rule %q", first.Namespace(), first.Tag())
		}
		return err
	}

	if cfg.Quota.MaxFileBytes > cfg.Quota.MaxUserBytes {
		return fmt.Errorf("config: per-file limit (%d) exceeds per-user limit (%d)", cfg.Quota.MaxFileBytes, cfg.Quota.MaxUserBytes)
	}

	if cfg.Storage.Backend == "minio" {
		if cfg.MinIO.Endpoint == "" || cfg.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio backend selected but endpoint or bucket is missing")
		}
	}

	return nil
}
