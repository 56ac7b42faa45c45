package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS    NATSConfig    `yaml:"nats"`
	MinIO   MinIOConfig   `yaml:"minio"`
	Matcher MatcherConfig `yaml:"matcher"`
	Capture CaptureConfig `yaml:"capture"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// MatcherConfig mirrors fpmatch.Config (spec §3/§4.8); it is the
// YAML/env-configurable surface over the core's verifier thresholds.
type MatcherConfig struct {
	NNThreshold          float64 `yaml:"nn_threshold"`
	OrientationThreshold float64 `yaml:"orientation_threshold"`
	PixelCorrThreshold   float64 `yaml:"pixel_corr_threshold"`
	TTAVoteThreshold     float64 `yaml:"tta_vote_threshold"`
	MinAgreeingTemplates int     `yaml:"min_agreeing_templates"`
	UseOrientationCheck  *bool   `yaml:"use_orientation_check"`
	UseTTA               *bool   `yaml:"use_tta"`
	UsePixelCorrelation  *bool   `yaml:"use_pixel_correlation"`
	WeightsPath          string  `yaml:"weights_path"`
}

// CaptureConfig holds the enroll stage count and the debug-image flag
// supplemented from original_source's driver. Both are loaded and defaulted
// here, but no other package reads them: enroll sessions use
// fpmatch.EnrollStages and no code dumps debug images.
type CaptureConfig struct {
	EnrollStages int  `yaml:"enroll_stages"`
	DebugImages  bool `yaml:"debug_images"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func boolPtr(b bool) *bool { return &b }

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Matcher.NNThreshold == 0 {
		cfg.Matcher.NNThreshold = 0.20
	}
	if cfg.Matcher.OrientationThreshold == 0 {
		cfg.Matcher.OrientationThreshold = 35
	}
	if cfg.Matcher.PixelCorrThreshold == 0 {
		cfg.Matcher.PixelCorrThreshold = 0.01
	}
	if cfg.Matcher.TTAVoteThreshold == 0 {
		cfg.Matcher.TTAVoteThreshold = 0.75
	}
	if cfg.Matcher.MinAgreeingTemplates == 0 {
		cfg.Matcher.MinAgreeingTemplates = 3
	}
	if cfg.Matcher.UseOrientationCheck == nil {
		cfg.Matcher.UseOrientationCheck = boolPtr(true)
	}
	if cfg.Matcher.UseTTA == nil {
		cfg.Matcher.UseTTA = boolPtr(true)
	}
	if cfg.Matcher.UsePixelCorrelation == nil {
		cfg.Matcher.UsePixelCorrelation = boolPtr(true)
	}
	if cfg.Matcher.WeightsPath == "" {
		cfg.Matcher.WeightsPath = "/etc/ft9362/weights.bin"
	}
	if cfg.Capture.EnrollStages == 0 {
		cfg.Capture.EnrollStages = 15
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FT_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FT_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FT_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FT_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FT_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FT_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FT_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FT_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FT_MATCHER_WEIGHTS_PATH"); v != "" {
		cfg.Matcher.WeightsPath = v
	}
	if v := os.Getenv("FT_MATCHER_NN_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matcher.NNThreshold = f
		}
	}
	// FP_DEBUG_IMAGES matches original_source/driver/focaltech-0752.c's
	// debug-dump env var name directly (spec.md §6 "Debug flag").
	if v := os.Getenv("FP_DEBUG_IMAGES"); v != "" {
		cfg.Capture.DebugImages = v != "0" && v != "false"
	}
}

// Bool reports whether a toggle pointer is set and true. MatcherConfig keeps
// plain fields (not importing fpmatch) so config stays a leaf package;
// internal/capture.ConfigFromYAML does the conversion to fpmatch.Config.
func (m MatcherConfig) Bool(ptr *bool) bool {
	return ptr != nil && *ptr
}
