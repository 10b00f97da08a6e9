package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/RowanDark/scrdec/internal/env"
)

// Config captures the scrdec configuration resolved from defaults, optional
// files, and environment overrides.
type Config struct {
	OutputDir   string       `yaml:"output_dir" toml:"output_dir"`
	StorePath   string       `yaml:"store_path" toml:"store_path"`
	ZipPassword string       `yaml:"zip_password" toml:"zip_password"`
	Lookback    int          `yaml:"lookback" toml:"lookback"`
	Workers     int          `yaml:"workers" toml:"workers"`
	LogLevel    string       `yaml:"log_level" toml:"log_level"`
	LogFormat   string       `yaml:"log_format" toml:"log_format"`
	Server      ServerConfig `yaml:"server" toml:"server"`
}

// ServerConfig controls the gRPC decode service and its metrics listener.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr" toml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
	AuthToken   string `yaml:"auth_token" toml:"auth_token"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OutputDir:   "out",
		StorePath:   "",
		ZipPassword: "infected",
		Lookback:    30,
		Workers:     4,
		LogLevel:    "info",
		LogFormat:   "console",
		Server: ServerConfig{
			ListenAddr:  "127.0.0.1:50061",
			MetricsAddr: "127.0.0.1:9461",
			AuthToken:   "",
		},
	}
}

// Load resolves the configuration using defaults, configuration files, and
// environment overrides. Files are applied in this order, later ones winning:
//  1. ~/.scrdec/config.toml (TOML)
//  2. ./scrdec.yml (YAML)
//  3. extra, when non-empty (format chosen by extension)
//
// Environment variables prefixed with SCRDEC_ have the highest precedence.
func Load(extra ...string) (Config, error) {
	cfg := Default()

	if err := loadHomeConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLocalConfig(&cfg); err != nil {
		return Config{}, err
	}
	for _, path := range extra {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := loadExplicit(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects values that would make the decoder misbehave.
func (c Config) Validate() error {
	if c.Lookback < 0 {
		return fmt.Errorf("lookback must not be negative, got %d", c.Lookback)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log_format %q", c.LogFormat)
	}
	return nil
}

func loadHomeConfig(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("determine home directory: %w", err)
	}
	return loadOptional(cfg, filepath.Join(home, ".scrdec", "config.toml"), "toml")
}

func loadLocalConfig(cfg *Config) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	return loadOptional(cfg, filepath.Join(wd, "scrdec.yml"), "yaml")
}

func loadExplicit(cfg *Config, path string) error {
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data, format); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadOptional(cfg *Config, path, format string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data, format); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// fileConfig mirrors Config with pointers so absent keys leave the current
// value untouched.
type fileConfig struct {
	OutputDir   *string           `yaml:"output_dir" toml:"output_dir"`
	StorePath   *string           `yaml:"store_path" toml:"store_path"`
	ZipPassword *string           `yaml:"zip_password" toml:"zip_password"`
	Lookback    *int              `yaml:"lookback" toml:"lookback"`
	Workers     *int              `yaml:"workers" toml:"workers"`
	LogLevel    *string           `yaml:"log_level" toml:"log_level"`
	LogFormat   *string           `yaml:"log_format" toml:"log_format"`
	Server      *fileServerConfig `yaml:"server" toml:"server"`
}

type fileServerConfig struct {
	ListenAddr  *string `yaml:"listen_addr" toml:"listen_addr"`
	MetricsAddr *string `yaml:"metrics_addr" toml:"metrics_addr"`
	AuthToken   *string `yaml:"auth_token" toml:"auth_token"`
}

func applyFileConfig(cfg *Config, data []byte, format string) error {
	var fc fileConfig
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	case "toml":
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	setString(&cfg.OutputDir, fc.OutputDir)
	setString(&cfg.StorePath, fc.StorePath)
	if fc.ZipPassword != nil {
		// Passwords keep surrounding whitespace.
		cfg.ZipPassword = *fc.ZipPassword
	}
	if fc.Lookback != nil {
		cfg.Lookback = *fc.Lookback
	}
	if fc.Workers != nil {
		cfg.Workers = *fc.Workers
	}
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	if fc.Server != nil {
		setString(&cfg.Server.ListenAddr, fc.Server.ListenAddr)
		setString(&cfg.Server.MetricsAddr, fc.Server.MetricsAddr)
		setString(&cfg.Server.AuthToken, fc.Server.AuthToken)
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func applyEnvOverrides(cfg *Config) error {
	if val := strings.TrimSpace(os.Getenv("SCRDEC_LISTEN_ADDR")); val != "" {
		cfg.Server.ListenAddr = val
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_METRICS_ADDR")); val != "" {
		cfg.Server.MetricsAddr = val
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_AUTH_TOKEN")); val != "" {
		cfg.Server.AuthToken = val
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_OUT")); val != "" {
		cfg.OutputDir = val
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_STORE_PATH")); val != "" {
		cfg.StorePath = val
	}
	if val, ok := env.Lookup("SCRDEC_ZIP_PASSWORD", "MALWARE_PASSWORD"); ok && val != "" {
		cfg.ZipPassword = val
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_LOOKBACK")); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("SCRDEC_LOOKBACK: %w", err)
		}
		cfg.Lookback = parsed
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_WORKERS")); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("SCRDEC_WORKERS: %w", err)
		}
		cfg.Workers = parsed
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_LOG_LEVEL")); val != "" {
		cfg.LogLevel = val
	}
	if val := strings.TrimSpace(os.Getenv("SCRDEC_LOG_FORMAT")); val != "" {
		cfg.LogFormat = val
	}
	return nil
}
