package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	OCR       OCRConfig
	Reconcile ReconcileConfig
	Logging   LoggingConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine            string // tesseract | remote
	TesseractBin      string
	Lang              string
	TessdataDir       string
	PDFToPPMBin       string
	DPI               int
	MaxPages          int
	MinImageDimension int
	PageTimeout       time.Duration
	RemoteURL         string
	RemoteToken       string
	RemoteTimeout     time.Duration
}

// ReconcileConfig holds the history windows and duplicate threshold.
type ReconcileConfig struct {
	DuplicateWindow    time.Duration
	AnomalyLookback    time.Duration
	DuplicateThreshold float64
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
}

const (
	OCREngineTesseract = "tesseract"
	OCREngineRemote    = "remote"
)

var defaults = map[string]any{
	"DB_URL":                "file:expenses.db",
	"DB_MAX_CONNS":          20,
	"DB_MIN_CONNS":          5,
	"DB_MAX_CONN_LIFETIME":  30 * time.Minute,
	"DB_MAX_CONN_IDLE_TIME": 5 * time.Minute,
	"DB_DIAL_TIMEOUT":       3 * time.Second,
	"HTTP_ADDR":             ":8080",
	"GRPC_ADDR":             ":9090",
	"OCR_ENGINE":            OCREngineTesseract,
	"TESSERACT_BIN":         "tesseract",
	"TESSERACT_LANG":        "eng",
	"TESSDATA_PREFIX":       "",
	"PDFTOPPM_BIN":          "pdftoppm",
	"PDF_DPI":               300,
	"OCR_MAX_PAGES":         10,
	"MIN_IMAGE_DIMENSION":   1000,
	"OCR_PAGE_TIMEOUT":      60 * time.Second,
	"OCR_REMOTE_URL":        "",
	"OCR_REMOTE_TOKEN":      "",
	"OCR_REMOTE_TIMEOUT":    30 * time.Second,
	"DUPLICATE_WINDOW":      30 * 24 * time.Hour,
	"ANOMALY_LOOKBACK":      90 * 24 * time.Hour,
	"DUPLICATE_THRESHOLD":   0.8,
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "text",
}

// NewViper returns a viper instance with defaults set and environment lookup on.
// Keys are the environment variable names; a YAML file may use the same keys in lower case.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from environment variables and an optional config file.
func LoadConfig(configFile string) (*Config, error) {
	v := NewViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
	}
	return FromViper(v), nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             v.GetString("DB_URL"),
			MaxConns:        v.GetInt32("DB_MAX_CONNS"),
			MinConns:        v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime: v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime: v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			DialTimeout:     v.GetDuration("DB_DIAL_TIMEOUT"),
		},
		Server: ServerConfig{
			HTTPAddr: v.GetString("HTTP_ADDR"),
			GRPCAddr: v.GetString("GRPC_ADDR"),
		},
		OCR: OCRConfig{
			Engine:            strings.ToLower(v.GetString("OCR_ENGINE")),
			TesseractBin:      v.GetString("TESSERACT_BIN"),
			Lang:              v.GetString("TESSERACT_LANG"),
			TessdataDir:       v.GetString("TESSDATA_PREFIX"),
			PDFToPPMBin:       v.GetString("PDFTOPPM_BIN"),
			DPI:               v.GetInt("PDF_DPI"),
			MaxPages:          v.GetInt("OCR_MAX_PAGES"),
			MinImageDimension: v.GetInt("MIN_IMAGE_DIMENSION"),
			PageTimeout:       v.GetDuration("OCR_PAGE_TIMEOUT"),
			RemoteURL:         v.GetString("OCR_REMOTE_URL"),
			RemoteToken:       v.GetString("OCR_REMOTE_TOKEN"),
			RemoteTimeout:     v.GetDuration("OCR_REMOTE_TIMEOUT"),
		},
		Reconcile: ReconcileConfig{
			DuplicateWindow:    v.GetDuration("DUPLICATE_WINDOW"),
			AnomalyLookback:    v.GetDuration("ANOMALY_LOOKBACK"),
			DuplicateThreshold: v.GetFloat64("DUPLICATE_THRESHOLD"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case OCREngineTesseract:
	case OCREngineRemote:
		if c.OCR.RemoteURL == "" {
			return NewAppError("CONFIG_ERROR", "OCR_REMOTE_URL is required for the remote engine", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR_ENGINE %q", c.OCR.Engine), ErrInvalidInput)
	}
	if c.OCR.DPI < 300 {
		return NewAppError("CONFIG_ERROR", "PDF_DPI must be at least 300", ErrInvalidInput)
	}
	if c.Reconcile.DuplicateWindow <= 0 || c.Reconcile.AnomalyLookback <= 0 {
		return NewAppError("CONFIG_ERROR", "DUPLICATE_WINDOW and ANOMALY_LOOKBACK must be positive", ErrInvalidInput)
	}
	if c.Reconcile.DuplicateThreshold <= 0 || c.Reconcile.DuplicateThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "DUPLICATE_THRESHOLD must be in (0, 1]", ErrInvalidInput)
	}
	return nil
}
