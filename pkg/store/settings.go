package store

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Runtime setting keys. Each can be set in .levelreq.yaml or through a
// LEVELREQ_ prefixed environment variable.
const (
	KeyPath           = "path"
	KeyEndpoint       = "endpoint"
	KeyReportEndpoint = "report_endpoint"
	KeySite           = "site"
	KeyPollInterval   = "poll_interval"
	KeyTimeout        = "timeout"
	KeyLogLevel       = "log_level"
	KeyLogJSON        = "log_json"
)

// Default runtime values.
const (
	DefaultPath           = "~/.levelreq"
	DefaultSite           = "https://hwgdreqs.rf.gd"
	DefaultEndpoint       = DefaultSite + "/api.php"
	DefaultReportEndpoint = DefaultSite + "/fuck-it.php"
	DefaultPollInterval   = 3 * time.Second
	DefaultTimeout        = 5 * time.Second
	MaxTimeout            = 10 * time.Second
	DefaultLogLevel       = "info"
)

// Settings are the runtime options of the tool itself, as opposed to the
// streamer's config document kept inside the data directory.
type Settings struct {
	Path           string
	Endpoint       string
	ReportEndpoint string
	Site           string
	PollInterval   time.Duration
	Timeout        time.Duration
	LogLevel       string
	LogJSON        bool
}

// BasePath is the expanded data directory.
func (s *Settings) BasePath() string {
	return s.Path
}

// SetDefaults registers the runtime defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPath, DefaultPath)
	v.SetDefault(KeyEndpoint, DefaultEndpoint)
	v.SetDefault(KeyReportEndpoint, DefaultReportEndpoint)
	v.SetDefault(KeySite, DefaultSite)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogJSON, false)
}

// LoadSettings reads .levelreq.yaml from LEVELREQ_CONFIG_PATH (when set) or
// the working directory, overlaid by LEVELREQ_* environment variables and any
// flags bound on the global viper instance.
func LoadSettings() (*Settings, error) {
	v := viper.GetViper()
	SetDefaults(v)
	v.SetConfigName(".levelreq") // .yaml is implicit
	v.SetEnvPrefix("LEVELREQ")
	v.AutomaticEnv()

	if override := os.Getenv("LEVELREQ_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("store: read settings file: %w", err)
		}
	}
	return SettingsFrom(v)
}

// SettingsFrom extracts Settings from an already configured viper instance.
func SettingsFrom(v *viper.Viper) (*Settings, error) {
	path, err := homedir.Expand(strings.TrimSpace(v.GetString(KeyPath)))
	if err != nil {
		return nil, fmt.Errorf("store: expand %s: %w", KeyPath, err)
	}
	s := &Settings{
		Path:           path,
		Endpoint:       strings.TrimSpace(v.GetString(KeyEndpoint)),
		ReportEndpoint: strings.TrimSpace(v.GetString(KeyReportEndpoint)),
		Site:           strings.TrimRight(strings.TrimSpace(v.GetString(KeySite)), "/"),
		PollInterval:   v.GetDuration(KeyPollInterval),
		Timeout:        v.GetDuration(KeyTimeout),
		LogLevel:       v.GetString(KeyLogLevel),
		LogJSON:        v.GetBool(KeyLogJSON),
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Timeout > MaxTimeout {
		s.Timeout = MaxTimeout
	}
	return s, nil
}
