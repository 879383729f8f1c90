// Package settings loads devapi configuration from a YAML file and the
// process environment.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/devapi/pkg/util"
)

// Environment variables. The NETCONF_* names are shared by both device
// protocols and are re-read on every request.
const (
	EnvHost       = "NETCONF_HOST"
	EnvPort       = "NETCONF_PORT"
	EnvUsername   = "NETCONF_USERNAME"
	EnvPassword   = "NETCONF_PASSWORD"
	EnvSecret     = "NETCONF_SECRET"
	EnvTimeout    = "NETCONF_TIMEOUT"
	EnvKnownHosts = "DEVAPI_KNOWN_HOSTS"

	EnvDryRun    = "DRY_RUN"
	EnvListen    = "DEVAPI_LISTEN"
	EnvLogLevel  = "DEVAPI_LOG_LEVEL"
	EnvRedisAddr = "DEVAPI_REDIS_ADDR"
	EnvAuditLog  = "DEVAPI_AUDIT_LOG"
)

// Defaults
const (
	DefaultListen         = ":8000"
	DefaultLogLevel       = "info"
	DefaultSSHPort        = 22
	DefaultTimeoutSeconds = 100
	DefaultLockTTLSeconds = 120
	DefaultAuditMaxSizeMB = 10
	DefaultAuditBackups   = 10
)

// Settings holds the full process configuration
type Settings struct {
	Server ServerSettings `yaml:"server"`
	Device DeviceSettings `yaml:"device"`
	Lock   LockSettings   `yaml:"lock"`
	Audit  AuditSettings  `yaml:"audit"`
}

// ServerSettings configures the HTTP listener and process-wide behavior
type ServerSettings struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	JSONLogs bool   `yaml:"json_logs"`

	// DryRun is the initial dry-run state; it can be toggled at runtime.
	DryRun bool `yaml:"dry_run"`
}

// DeviceSettings holds the managed device's address and credentials
type DeviceSettings struct {
	Host           string `yaml:"host"`
	SSHPort        int    `yaml:"ssh_port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Secret         string `yaml:"secret,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	KnownHostsFile string `yaml:"known_hosts_file,omitempty"`
}

// LockSettings configures the optional Redis device lock
type LockSettings struct {
	RedisAddr  string `yaml:"redis_addr,omitempty"`
	RedisDB    int    `yaml:"redis_db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// AuditSettings configures the audit log
type AuditSettings struct {
	Path       string `yaml:"path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Timeout returns the device timeout as a duration
func (d *DeviceSettings) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Defaults returns settings populated with default values
func Defaults() *Settings {
	return &Settings{
		Server: ServerSettings{
			Listen:   DefaultListen,
			LogLevel: DefaultLogLevel,
		},
		Device: DeviceSettings{
			SSHPort:        DefaultSSHPort,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Lock: LockSettings{
			TTLSeconds: DefaultLockTTLSeconds,
		},
		Audit: AuditSettings{
			MaxSizeMB:  DefaultAuditMaxSizeMB,
			MaxBackups: DefaultAuditBackups,
		},
	}
}

// Load reads settings from path (optional) and applies environment overrides
func Load(path string) (*Settings, error) {
	s, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFrom reads settings from a specific YAML file. An empty path or a
// missing file yields the defaults.
func LoadFrom(path string) (*Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	return s, nil
}

// LookupFunc has the signature of os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides settings with any environment variables that are set.
func (s *Settings) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return util.NewConfigurationError(key, fmt.Sprintf("must be an integer, got %q", v))
		}
		*dst = n
		return nil
	}

	str(EnvHost, &s.Device.Host)
	str(EnvUsername, &s.Device.Username)
	str(EnvPassword, &s.Device.Password)
	str(EnvSecret, &s.Device.Secret)
	str(EnvKnownHosts, &s.Device.KnownHostsFile)
	str(EnvListen, &s.Server.Listen)
	str(EnvLogLevel, &s.Server.LogLevel)
	str(EnvRedisAddr, &s.Lock.RedisAddr)
	str(EnvAuditLog, &s.Audit.Path)

	if err := num(EnvPort, &s.Device.SSHPort); err != nil {
		return err
	}
	if err := num(EnvTimeout, &s.Device.TimeoutSeconds); err != nil {
		return err
	}

	if v, ok := lookup(EnvDryRun); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return util.NewConfigurationError(EnvDryRun, fmt.Sprintf("must be a boolean, got %q", v))
		}
		s.Server.DryRun = b
	}

	return nil
}
