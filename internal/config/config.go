package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// Store is the part of the configuration every binary touching the ledger
// database needs.
type Store struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ledger.transactions"`

	OpenBankingRatePerSec float64 `env:"OPEN_BANKING_RATE_PER_SEC" envDefault:"2"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

type Config struct {
	Store

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"30m"`
	Port      int           `env:"PORT" envDefault:"8080"`

	TallySigningSecret string `env:"TALLY_SIGNING_SECRET"`

	SyncEnabled  bool          `env:"SYNC_ENABLED" envDefault:"true"`
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"15m"`
}

// Load reads the dotenv file named by ENV_FILE (default .env) into the
// process environment, then parses the environment. Variables already set
// take precedence over the file.
func Load() (*Config, error) {
	if err := loadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("config.Load: SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// LoadStore is Load for tools that never serve HTTP, so JWT_SECRET and the
// server keys are not required.
func LoadStore() (*Store, error) {
	if err := loadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		return nil, fmt.Errorf("config.LoadStore: %w", err)
	}
	st, err := env.ParseAs[Store]()
	if err != nil {
		return nil, fmt.Errorf("config.LoadStore: %w", err)
	}
	if err := st.validate(); err != nil {
		return nil, fmt.Errorf("config.LoadStore: %w", err)
	}
	return &st, nil
}

func (s Store) validate() error {
	if s.OpenBankingRatePerSec <= 0 {
		return errors.New("OPEN_BANKING_RATE_PER_SEC must be positive")
	}
	return nil
}

func loadEnvFile(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	err := godotenv.Load(defaultEnvFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
