package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Token           string  `env:"TOKEN,required"`
	DatabasePath    string  `env:"DATABASE_PATH"     envDefault:"db.sqlite"`
	BackupDir       string  `env:"BACKUP_DIR"        envDefault:"backups"`
	WinningScore    int     `env:"WINNING_SCORE"     envDefault:"1000"`
	DefaultLocation string  `env:"DEFAULT_LOCATION"  envDefault:"TableTop"`
	AdminIDs        []int64 `env:"ADMIN_IDS"         envSeparator:","`
	HistoryPageSize int     `env:"HISTORY_PAGE_SIZE" envDefault:"10"`
	WebhookURL      string  `env:"URL"`
	WebhookPort     int     `env:"WEBHOOK_PORT"      envDefault:"8080"`
	WebhookSecret   string  `env:"WEBHOOK_SECRET"    envDefault:"secret"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.WinningScore <= 0 {
		return Config{}, fmt.Errorf("WINNING_SCORE must be positive, got %d", cfg.WinningScore)
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 10
	}
	return cfg, nil
}

func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
