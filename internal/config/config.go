package config

import (
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SearchCacheTTL  time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"5m"`
	SearchMinLength int           `envconfig:"SEARCH_MIN_LENGTH" default:"3"`

	ExportDir         string `envconfig:"EXPORT_DIR" default:"facturas"`
	ExportPDFCompress bool   `envconfig:"EXPORT_PDF_COMPRESS" default:"true"`
	MarketName        string `envconfig:"MARKET_NAME" default:"EL MEXIQUENSE MARKET"`
	MarketTitle       string `envconfig:"MARKET_TITLE" default:"Sistema de Facturación"`
	InvoiceFooter     string `envconfig:"INVOICE_FOOTER" default:"Gracias por su compra"`
	DefaultCustomer   string `envconfig:"DEFAULT_CUSTOMER" default:"Cliente General"`

	UploadMaxBytes int64 `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads a .env file when one exists, then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	cfg.DefaultCustomer = strings.TrimSpace(cfg.DefaultCustomer)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SearchMinLength < 1 {
		return errors.Errorf("SEARCH_MIN_LENGTH must be at least 1, got %d", c.SearchMinLength)
	}
	if c.SearchCacheTTL <= 0 {
		return errors.Errorf("SEARCH_CACHE_TTL must be positive, got %s", c.SearchCacheTTL)
	}
	if c.UploadMaxBytes < 1 {
		return errors.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}
	if strings.TrimSpace(c.ExportDir) == "" {
		return errors.New("EXPORT_DIR must not be blank")
	}
	if c.DefaultCustomer == "" {
		return errors.New("DEFAULT_CUSTOMER must not be blank")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
