package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NEWSHARVEST_OUTPUT_DIR.
const EnvPrefix = "NEWSHARVEST"

// Setting keys
const (
	KeySourcesFile     = "sources_file"
	KeyOutputDir       = "output_dir"
	KeyHistoryDSN      = "history_dsn"
	KeySeenDSN         = "seen_dsn"
	KeyNotifyFile      = "notify_file"
	KeyUserAgent       = "user_agent"
	KeyFetchTimeout    = "fetch_timeout"
	KeyRequestDelay    = "request_delay"
	KeyMaxBodyBytes    = "max_body_bytes"
	KeyRespectRobots   = "respect_robots"
	KeySkipSeen        = "skip_seen"
	KeyKeepHTML        = "keep_html"
	KeyMaxArticles     = "max_articles"
	KeyMaxContentChars = "max_content_chars"
	KeyRetryForbidden  = "retry_forbidden"
	KeyLogLevel        = "log_level"
	KeyAPIAddr         = "api_addr"
)

// Settings is the runtime configuration shared by the CLI and API server.
type Settings struct {
	SourcesFile     string
	OutputDir       string
	HistoryDSN      string
	SeenDSN         string
	NotifyFile      string
	UserAgent       string
	FetchTimeout    time.Duration
	RequestDelay    time.Duration
	MaxBodyBytes    int64
	RespectRobots   bool
	SkipSeen        bool
	KeepHTML        bool
	MaxArticles     int
	MaxContentChars int
	RetryForbidden  bool
	LogLevel        string
	APIAddr         string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeySourcesFile, "sources.json")
	v.SetDefault(KeyOutputDir, "data")
	v.SetDefault(KeyHistoryDSN, "")
	v.SetDefault(KeySeenDSN, "")
	v.SetDefault(KeyNotifyFile, "")
	v.SetDefault(KeyUserAgent, "")
	v.SetDefault(KeyFetchTimeout, "30s")
	v.SetDefault(KeyRequestDelay, "0s")
	v.SetDefault(KeyMaxBodyBytes, 10<<20)
	v.SetDefault(KeyRespectRobots, false)
	v.SetDefault(KeySkipSeen, false)
	v.SetDefault(KeyKeepHTML, false)
	v.SetDefault(KeyMaxArticles, 10)
	v.SetDefault(KeyMaxContentChars, 5000)
	v.SetDefault(KeyRetryForbidden, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyAPIAddr, ":8080")
}

// LoadSettings builds Settings from defaults, an optional settings file
// (YAML, JSON or TOML, by extension), an optional dotenv file and
// NEWSHARVEST_* environment variables, in increasing priority. Missing
// dotenv files are ignored; a named settings file must exist.
func LoadSettings(configFile, envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	fetchTimeout, err := ParseDuration(v.Get(KeyFetchTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyFetchTimeout, err)
	}
	requestDelay, err := ParseDuration(v.Get(KeyRequestDelay))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyRequestDelay, err)
	}

	s := &Settings{
		SourcesFile:     v.GetString(KeySourcesFile),
		OutputDir:       v.GetString(KeyOutputDir),
		HistoryDSN:      v.GetString(KeyHistoryDSN),
		SeenDSN:         v.GetString(KeySeenDSN),
		NotifyFile:      v.GetString(KeyNotifyFile),
		UserAgent:       v.GetString(KeyUserAgent),
		FetchTimeout:    fetchTimeout,
		RequestDelay:    requestDelay,
		MaxBodyBytes:    v.GetInt64(KeyMaxBodyBytes),
		RespectRobots:   v.GetBool(KeyRespectRobots),
		SkipSeen:        v.GetBool(KeySkipSeen),
		KeepHTML:        v.GetBool(KeyKeepHTML),
		MaxArticles:     v.GetInt(KeyMaxArticles),
		MaxContentChars: v.GetInt(KeyMaxContentChars),
		RetryForbidden:  v.GetBool(KeyRetryForbidden),
		LogLevel:        v.GetString(KeyLogLevel),
		APIAddr:         v.GetString(KeyAPIAddr),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects settings that cannot drive a run.
func (s *Settings) Validate() error {
	switch {
	case strings.TrimSpace(s.OutputDir) == "":
		return errors.New("output_dir must not be empty")
	case s.FetchTimeout <= 0:
		return errors.New("fetch_timeout must be positive")
	case s.RequestDelay < 0:
		return errors.New("request_delay must not be negative")
	case s.MaxBodyBytes <= 0:
		return errors.New("max_body_bytes must be positive")
	case s.MaxArticles <= 0:
		return errors.New("max_articles must be positive")
	case s.MaxContentChars <= 0:
		return errors.New("max_content_chars must be positive")
	}
	return nil
}
