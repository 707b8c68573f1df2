package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Stream      StreamConfig      `yaml:"stream"`
	Cameras     []CameraConfig    `yaml:"cameras"`
	Detection   DetectionConfig   `yaml:"detection"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	APIKey      string `yaml:"api_key"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StreamConfig controls the bounded logs shared between pipeline stages.
type StreamConfig struct {
	MaxLen       int64         `yaml:"max_len"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type CameraConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DetectionConfig holds the fall heuristic thresholds and the per-track
// history windows.
type DetectionConfig struct {
	VelocitySampleInterval time.Duration `yaml:"velocity_sample_interval"`
	ShoulderWindow         time.Duration `yaml:"shoulder_window"`
	HistoryTTL             time.Duration `yaml:"history_ttl"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval"`
	MinSamples             int           `yaml:"min_samples"`
	MinPeakVelocity        float64       `yaml:"min_peak_velocity"`
	PeakRatio              float64       `yaml:"peak_ratio"`
	DropRatio              float64       `yaml:"drop_ratio"`
	AngleThreshold         float64       `yaml:"angle_threshold"`
	ShoulderDrop           float64       `yaml:"shoulder_drop"`
	MaxLatchedIDs          int           `yaml:"max_latched_ids"`
}

type DiagnosticsConfig struct {
	Backend       string        `yaml:"backend"` // file, minio, none
	Dir           string        `yaml:"dir"`
	FlushInterval time.Duration `yaml:"flush_interval"`
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

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// CameraIDs returns the configured camera identifiers in file order.
func (c *Config) CameraIDs() []string {
	ids := make([]string, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		ids = append(ids, cam.ID)
	}
	return ids
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

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Cameras))
	for i, cam := range cfg.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera %d: missing id", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera %s: duplicate id", cam.ID)
		}
		seen[cam.ID] = true
	}
	switch cfg.Diagnostics.Backend {
	case "file", "minio", "none":
	default:
		return fmt.Errorf("diagnostics backend %q: must be file, minio or none", cfg.Diagnostics.Backend)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8082
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Stream.MaxLen == 0 {
		cfg.Stream.MaxLen = 100
	}
	if cfg.Stream.PollInterval == 0 {
		cfg.Stream.PollInterval = 10 * time.Millisecond
	}

	d := &cfg.Detection
	if d.VelocitySampleInterval == 0 {
		d.VelocitySampleInterval = time.Second
	}
	if d.ShoulderWindow == 0 {
		d.ShoulderWindow = 2 * time.Second
	}
	if d.HistoryTTL == 0 {
		d.HistoryTTL = 30 * time.Second
	}
	if d.CleanupInterval == 0 {
		d.CleanupInterval = 10 * time.Second
	}
	if d.MinSamples == 0 {
		d.MinSamples = 3
	}
	if d.MinPeakVelocity == 0 {
		d.MinPeakVelocity = 200
	}
	if d.PeakRatio == 0 {
		d.PeakRatio = 0.75
	}
	if d.DropRatio == 0 {
		d.DropRatio = 0.25
	}
	if d.AngleThreshold == 0 {
		d.AngleThreshold = 50
	}
	if d.ShoulderDrop == 0 {
		d.ShoulderDrop = 20
	}

	if cfg.Diagnostics.Backend == "" {
		cfg.Diagnostics.Backend = "file"
	}
	if cfg.Diagnostics.Dir == "" {
		cfg.Diagnostics.Dir = "."
	}
	if cfg.Diagnostics.FlushInterval == 0 {
		cfg.Diagnostics.FlushInterval = time.Second
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "falls"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FALL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FALL_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FALL_REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("FALL_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("FALL_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FALL_STREAM_MAXLEN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Stream.MaxLen = n
		}
	}
	if v := os.Getenv("FALL_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.PollInterval = d
		}
	}
	// Comma separated camera ids replace the configured list.
	if v := os.Getenv("FALL_CAMERAS"); v != "" {
		cfg.Cameras = cfg.Cameras[:0]
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Cameras = append(cfg.Cameras, CameraConfig{ID: id})
			}
		}
	}
	if v := os.Getenv("FALL_DIAGNOSTICS_BACKEND"); v != "" {
		cfg.Diagnostics.Backend = v
	}
	if v := os.Getenv("FALL_DIAGNOSTICS_DIR"); v != "" {
		cfg.Diagnostics.Dir = v
	}
	if v := os.Getenv("FALL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FALL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FALL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FALL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FALL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FALL_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FALL_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FALL_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FALL_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FALL_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FALL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
