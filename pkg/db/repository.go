// pkg/db/repository.go
package db

import (
	"fmt"
	"strconv"

	"github.com/smith3v/study-tracker/pkg/config"
	"github.com/smith3v/study-tracker/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Export DB variable
var DB *gorm.DB

func InitDB(cfg config.DatabaseConfig) error {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		logger.Error("unsupported database driver", "driver", cfg.Driver, "error", err)
		return err
	}
	gormLogger, gormErr := newGormLogger(config.AppConfig.Logging.GormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", config.AppConfig.Logging.GormLevel, "error", gormErr)
	}
	DB, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.Driver, "error", err)
		return err
	}
	return Migrate(DB)
}

// Migrate brings the schema of gdb up to date.
func Migrate(gdb *gorm.DB) error {
	if err := migrateSessionSequences(gdb); err != nil {
		logger.Error("failed to migrate session sequences", "error", err)
		return err
	}
	if err := gdb.AutoMigrate(Models()...); err != nil {
		logger.Error("failed to auto-migrate database", "error", err)
		return err
	}
	return nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		dsn := "host=" + cfg.Host +
			" user=" + cfg.User +
			" password=" + cfg.Password +
			" dbname=" + cfg.DBName +
			" port=" + strconv.Itoa(cfg.Port) +
			" sslmode=" + cfg.SSLMode
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

// migrateSessionSequences numbers session rows created before sessions
// carried a sequence, oldest first per user. It must run before AutoMigrate
// adds the unique (user_id, sequence) index.
func migrateSessionSequences(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	migrator := gdb.Migrator()
	if !migrator.HasTable(&SessionRecord{}) || migrator.HasColumn(&SessionRecord{}, "Sequence") {
		return nil
	}
	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Migrator().AddColumn(&SessionRecord{}, "Sequence"); err != nil {
			return err
		}
		var rows []SessionRecord
		if err := tx.Select("id", "user_id").
			Order("user_id ASC, ended_at ASC, id ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		next := make(map[uint]int)
		for _, row := range rows {
			next[row.UserID]++
			if err := tx.Model(&SessionRecord{}).
				Where("id = ?", row.ID).
				Update("sequence", next[row.UserID]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
