package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port              int      `yaml:"port"`
		ReadHeaderTimeout Duration `yaml:"readHeaderTimeout"`
		ReadTimeout       Duration `yaml:"readTimeout"`
		WriteTimeout      Duration `yaml:"writeTimeout"`
		IdleTimeout       Duration `yaml:"idleTimeout"`
		ShutdownTimeout   Duration `yaml:"shutdownTimeout"`
		RequestTimeout    Duration `yaml:"requestTimeout"` // every route except the direct upload
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres | mysql
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Uploads struct {
		KeyPrefix            string   `yaml:"keyPrefix"`
		UploadURLExpiry      Duration `yaml:"uploadUrlExpiry"`
		DownloadURLExpiry    Duration `yaml:"downloadUrlExpiry"`
		MaxDirectUploadBytes int64    `yaml:"maxDirectUploadBytes"`
		MaxMultipartParts    int      `yaml:"maxMultipartParts"`
		DirectUploadTimeout  Duration `yaml:"directUploadTimeout"` // replaces server read/write deadlines on POST /test-results
	} `yaml:"uploads"`

	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Duration reads "1h", "15m" style strings from YAML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// Load baca file config.yaml, lalu .env dan environment variable
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + env only
	default:
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when a key is absent.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadHeaderTimeout = Duration{10 * time.Second}
	c.Server.ReadTimeout = Duration{15 * time.Second}
	c.Server.WriteTimeout = Duration{60 * time.Second}
	c.Server.IdleTimeout = Duration{60 * time.Second}
	c.Server.ShutdownTimeout = Duration{10 * time.Second}
	c.Server.RequestTimeout = Duration{30 * time.Second}

	c.Database.Driver = "postgres"
	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.SSLMode = "disable"

	c.Minio.Region = "us-east-1"
	c.Minio.BucketName = "test-results"

	c.Uploads.KeyPrefix = "test-recordings"
	c.Uploads.UploadURLExpiry = Duration{time.Hour}
	c.Uploads.DownloadURLExpiry = Duration{15 * time.Minute}
	c.Uploads.MaxDirectUploadBytes = 500 << 20
	c.Uploads.MaxMultipartParts = 10000
	c.Uploads.DirectUploadTimeout = Duration{30 * time.Minute}

	c.RateLimit.RequestsPerSecond = 10
	c.RateLimit.Burst = 20

	c.Logging.Level = "info"
	c.Logging.MaxSizeMB = 10
	c.Logging.MaxBackups = 3
	c.Logging.MaxAgeDays = 7
	return &c
}

func (c *Config) applyEnv() {
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Minio.BucketName, "MINIO_BUCKET")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setInt(&c.Server.Port, "PORT")
	setString(&c.Logging.Level, "LOG_LEVEL")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or mysql, got %q", c.Database.Driver))
	}
	if c.Minio.Endpoint == "" {
		errs = append(errs, errors.New("minio.endpoint is required"))
	}
	if c.Minio.BucketName == "" {
		errs = append(errs, errors.New("minio.bucketName is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwtSecret must be at least 16 characters"))
	}
	if c.Uploads.UploadURLExpiry.Duration <= 0 || c.Uploads.UploadURLExpiry.Duration > 7*24*time.Hour {
		errs = append(errs, errors.New("uploads.uploadUrlExpiry must be between 1s and 7 days"))
	}
	if c.Uploads.DownloadURLExpiry.Duration <= 0 || c.Uploads.DownloadURLExpiry.Duration > 7*24*time.Hour {
		errs = append(errs, errors.New("uploads.downloadUrlExpiry must be between 1s and 7 days"))
	}
	if c.Uploads.DirectUploadTimeout.Duration < 0 {
		errs = append(errs, errors.New("uploads.directUploadTimeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
