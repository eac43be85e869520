// Package config loads kickstart settings from a YAML file, an optional .env
// file and KICKSTART_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/kickstart/internal/utils"
)

const (
	FileName  = "kickstart.yaml"
	EnvPrefix = "KICKSTART_"
)

// DefaultMaxSize caps the artifact size a remote may announce.
const DefaultMaxSize int64 = 4 << 30

var ErrNoBaseURL = errors.New("config: base_url is required")

type Config struct {
	BaseURL        string
	InstallDir     string
	Executable     string
	MarkerDir      string
	AlwaysUpdate   bool
	Debug          bool
	AWSProfile     string
	WelcomeMessage string
	Download       DownloadConfig
	HTTP           utils.HTTPClientConfig
	Exclusion      ExclusionConfig
	Launch         LaunchConfig
}

type DownloadConfig struct {
	ChunkSize      int64
	Concurrency    int
	MaxRetries     int
	BackoffBase    time.Duration
	SampleInterval time.Duration
	RateLimit      int64 // bytes per second, 0 disables
	MaxSize        int64 // largest artifact size accepted from the remote
}

type ExclusionConfig struct {
	Enabled bool
	Prompt  string
	Command []string
}

type LaunchConfig struct {
	Args        []string
	Elevated    bool
	ElevateWith []string
}

// TargetPath is where the installed executable lives.
func (c Config) TargetPath() string {
	return filepath.Join(c.InstallDir, c.Executable)
}

func Default() Config {
	installDir := "kickstart"
	if home, err := os.UserHomeDir(); err == nil {
		installDir = filepath.Join(home, ".kickstart")
	}
	return Config{
		InstallDir:     installDir,
		Executable:     "app",
		AWSProfile:     "default",
		WelcomeMessage: "Welcome! The application will now be downloaded and started.",
		Download: DownloadConfig{
			ChunkSize:      2 * 1024 * 1024,
			Concurrency:    16,
			MaxRetries:     5,
			BackoffBase:    500 * time.Millisecond,
			SampleInterval: 100 * time.Millisecond,
			MaxSize:        DefaultMaxSize,
		},
		HTTP: utils.HTTPClientConfig{
			Timeout:   3 * time.Minute,
			KATimeout: 90 * time.Second,
			UserAgent: utils.ToolUserAgent,
			Headers:   map[string]string{},
		},
		Exclusion: ExclusionConfig{
			Prompt: "Add the install directory to the security scanner exclusion list?",
		},
	}
}

type yamlConfig struct {
	BaseURL        string        `yaml:"base_url"`
	InstallDir     string        `yaml:"install_dir"`
	Executable     string        `yaml:"executable"`
	MarkerDir      string        `yaml:"marker_dir"`
	AlwaysUpdate   bool          `yaml:"always_update"`
	Debug          bool          `yaml:"debug"`
	AWSProfile     string        `yaml:"aws_profile"`
	WelcomeMessage string        `yaml:"welcome_message"`
	Download       yamlDownload  `yaml:"download"`
	HTTP           yamlHTTP      `yaml:"http"`
	Exclusion      yamlExclusion `yaml:"exclusion"`
	Launch         yamlLaunch    `yaml:"launch"`
}

type yamlDownload struct {
	ChunkSize      string `yaml:"chunk_size"`
	Concurrency    int    `yaml:"concurrency"`
	MaxRetries     *int   `yaml:"max_retries"`
	BackoffBase    string `yaml:"backoff_base"`
	SampleInterval string `yaml:"sample_interval"`
	RateLimit      string `yaml:"rate_limit"`
	MaxSize        string `yaml:"max_size"`
}

type yamlHTTP struct {
	Timeout          string   `yaml:"timeout"`
	KeepAliveTimeout string   `yaml:"keep_alive_timeout"`
	UserAgent        string   `yaml:"user_agent"`
	Proxy            string   `yaml:"proxy"`
	Headers          []string `yaml:"headers"`
}

type yamlExclusion struct {
	Enabled bool     `yaml:"enabled"`
	Prompt  string   `yaml:"prompt"`
	Command []string `yaml:"command"`
}

type yamlLaunch struct {
	Args        []string `yaml:"args"`
	Elevated    bool     `yaml:"elevated"`
	ElevateWith []string `yaml:"elevate_with"`
}

// Load resolves the config file, applies the .env file and environment
// overrides, and validates the result. The resolved config is returned
// alongside any validation error.
func Load() (Config, error) {
	// a missing .env is fine, a broken one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := Locate(); path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.fillDerived()
	return cfg, cfg.Validate()
}

// Locate returns the first existing config file candidate, or "".
func Locate() string {
	if path, ok := os.LookupEnv(EnvPrefix + "CONFIG"); ok && path != "" {
		return path
	}
	candidates := []string{FileName}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), FileName))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	cfg.BaseURL = yc.BaseURL
	if yc.InstallDir != "" {
		cfg.InstallDir = yc.InstallDir
	}
	if yc.Executable != "" {
		cfg.Executable = yc.Executable
	}
	cfg.MarkerDir = yc.MarkerDir
	cfg.AlwaysUpdate = yc.AlwaysUpdate
	cfg.Debug = yc.Debug
	if yc.AWSProfile != "" {
		cfg.AWSProfile = yc.AWSProfile
	}
	if yc.WelcomeMessage != "" {
		cfg.WelcomeMessage = yc.WelcomeMessage
	}

	if yc.Download.ChunkSize != "" {
		size, err := utils.ParseBytes(yc.Download.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse download.chunk_size: %w", err)
		}
		cfg.Download.ChunkSize = size
	}
	if yc.Download.Concurrency != 0 {
		cfg.Download.Concurrency = yc.Download.Concurrency
	}
	if yc.Download.MaxRetries != nil {
		cfg.Download.MaxRetries = *yc.Download.MaxRetries
	}
	if err := parseDuration(yc.Download.BackoffBase, "download.backoff_base", &cfg.Download.BackoffBase); err != nil {
		return Config{}, err
	}
	if err := parseDuration(yc.Download.SampleInterval, "download.sample_interval", &cfg.Download.SampleInterval); err != nil {
		return Config{}, err
	}
	if yc.Download.RateLimit != "" {
		limit, err := utils.ParseBytes(yc.Download.RateLimit)
		if err != nil {
			return Config{}, fmt.Errorf("parse download.rate_limit: %w", err)
		}
		cfg.Download.RateLimit = limit
	}
	if yc.Download.MaxSize != "" {
		size, err := utils.ParseBytes(yc.Download.MaxSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse download.max_size: %w", err)
		}
		cfg.Download.MaxSize = size
	}

	if err := parseDuration(yc.HTTP.Timeout, "http.timeout", &cfg.HTTP.Timeout); err != nil {
		return Config{}, err
	}
	if err := parseDuration(yc.HTTP.KeepAliveTimeout, "http.keep_alive_timeout", &cfg.HTTP.KATimeout); err != nil {
		return Config{}, err
	}
	if yc.HTTP.UserAgent != "" {
		cfg.HTTP.UserAgent = yc.HTTP.UserAgent
	}
	cfg.HTTP.ProxyURL = yc.HTTP.Proxy
	cfg.HTTP.Headers = utils.ParseHeaderArgs(yc.HTTP.Headers)

	cfg.Exclusion.Enabled = yc.Exclusion.Enabled
	if yc.Exclusion.Prompt != "" {
		cfg.Exclusion.Prompt = yc.Exclusion.Prompt
	}
	cfg.Exclusion.Command = yc.Exclusion.Command

	cfg.Launch = LaunchConfig{
		Args:        yc.Launch.Args,
		Elevated:    yc.Launch.Elevated,
		ElevateWith: yc.Launch.ElevateWith,
	}
	return cfg, nil
}

func parseDuration(value, key string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "BASE_URL"); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := lookup(EnvPrefix + "INSTALL_DIR"); ok && v != "" {
		cfg.InstallDir = v
	}
	if v, ok := lookup(EnvPrefix + "EXECUTABLE"); ok && v != "" {
		cfg.Executable = v
	}
	if v, ok := lookup(EnvPrefix + "DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sDEBUG: %w", EnvPrefix, err)
		}
		cfg.Debug = debug
	}
	if v, ok := lookup(EnvPrefix + "CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sCONCURRENCY: %w", EnvPrefix, err)
		}
		cfg.Download.Concurrency = n
	}
	if v, ok := lookup(EnvPrefix + "CHUNK_SIZE"); ok && v != "" {
		size, err := utils.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse %sCHUNK_SIZE: %w", EnvPrefix, err)
		}
		cfg.Download.ChunkSize = size
	}
	return nil
}

func (c *Config) fillDerived() {
	if c.MarkerDir == "" {
		c.MarkerDir = filepath.Join(c.InstallDir, ".welcomed")
	}
	c.HTTP.HighThreadMode = c.Download.Concurrency > 5
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrNoBaseURL
	}
	if c.Executable == "" || filepath.Base(c.Executable) != c.Executable {
		return fmt.Errorf("config: executable must be a plain file name, got %q", c.Executable)
	}
	if c.Download.ChunkSize <= 0 {
		return fmt.Errorf("config: download.chunk_size must be positive, got %d", c.Download.ChunkSize)
	}
	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("config: download.concurrency must be positive, got %d", c.Download.Concurrency)
	}
	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("config: download.max_retries must not be negative, got %d", c.Download.MaxRetries)
	}
	if c.Download.MaxSize <= 0 {
		return fmt.Errorf("config: download.max_size must be positive, got %d", c.Download.MaxSize)
	}
	if c.Download.SampleInterval <= 0 {
		return fmt.Errorf("config: download.sample_interval must be positive, got %s", c.Download.SampleInterval)
	}
	if c.Exclusion.Enabled && len(c.Exclusion.Command) == 0 {
		return errors.New("config: exclusion.command is required when exclusion is enabled")
	}
	return nil
}
