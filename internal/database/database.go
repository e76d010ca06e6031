package database

import (
	"fmt"

	"github.com/filedepot/backend/internal/config"
	"github.com/filedepot/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	// Every service operation runs inside one transaction; serializable
	// isolation makes the id-collision and sibling-name races fail cleanly
	// instead of interleaving.
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s default_transaction_isolation=serializable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Models lists every persisted entity in migration order. The handler test
// suite migrates the same set against sqlite.
func Models() []interface{} {
	return []interface{}{
		&models.StorageUser{},
		&models.ContactEdge{},
		&models.Directory{},
		&models.File{},
		&models.Share{},
		&models.FileBlob{},
	}
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}

	// A share points at exactly one target.
	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'share_target_check'
  ) THEN
    ALTER TABLE shares
    ADD CONSTRAINT share_target_check
    CHECK (
      (target_file_id IS NOT NULL AND target_directory_id IS NULL)
      OR
      (target_file_id IS NULL AND target_directory_id IS NOT NULL)
    );
  END IF;
END $$;`

	return db.Exec(constraint).Error
}
