// Package config loads connection and import-run parameters with
// github.com/spf13/viper, the way the teacher's am package composes
// defaults, a config file, and prefixed environment variables — with
// explicit CLI flags given the highest precedence (spec.md §6).
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/transport"
)

// UpdateMode is the task-import update strategy. Only Create is legal
// (spec.md §1 Non-goals: "no differential import").
type UpdateMode string

const (
	UpdateModeCreate UpdateMode = "create"
	UpdateModeUpdate UpdateMode = "update"
)

// Connection holds everything config.Load reads toward building a
// transport.Config: host/ports/proxy/secure plus credential material.
type Connection struct {
	Host               string
	EnginePort         int
	RepositoryPort     int
	VirtualProxyPrefix string
	Secure             bool
	SchemaVersion      string

	ClientCertPath string
	ClientKeyPath  string
	RootCertPath   string
	BearerToken    string
}

// ImportRun holds the task-import run parameters not tied to the source
// file itself (those are plain cobra flags on task-import directly).
type ImportRun struct {
	SleepAppUploadMs int
	LimitImportCount int
	DryRun           bool
	UpdateMode       UpdateMode
}

// Config is the fully decoded, validated configuration for one CLI
// invocation.
type Config struct {
	Connection Connection
	Import     ImportRun
}

// Load builds a viper instance from defaults, an optional config file,
// and QCTRLQ_-prefixed environment variables, then reads each key into a
// Config. configFile may be empty; when non-empty it must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configFile)
		}
	}

	cfg := &Config{
		Connection: Connection{
			Host:               v.GetString("connection.host"),
			EnginePort:         v.GetInt("connection.engine_port"),
			RepositoryPort:     v.GetInt("connection.repository_port"),
			VirtualProxyPrefix: v.GetString("connection.virtual_proxy_prefix"),
			Secure:             v.GetBool("connection.secure"),
			SchemaVersion:      v.GetString("connection.schema_version"),
			ClientCertPath:     v.GetString("connection.client_cert_path"),
			ClientKeyPath:      v.GetString("connection.client_key_path"),
			RootCertPath:       v.GetString("connection.root_cert_path"),
			BearerToken:        v.GetString("connection.bearer_token"),
		},
		Import: ImportRun{
			SleepAppUploadMs: v.GetInt("import.sleep_app_upload_ms"),
			LimitImportCount: v.GetInt("import.limit_import_count"),
			DryRun:           v.GetBool("import.dry_run"),
			UpdateMode:       UpdateMode(v.GetString("import.update_mode")),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.engine_port", transport.DefaultEnginePort)
	v.SetDefault("connection.repository_port", transport.DefaultRepositoryPort)
	v.SetDefault("connection.secure", true)
	v.SetDefault("connection.schema_version", "12.612.0")

	v.SetDefault("import.sleep_app_upload_ms", 1000)
	v.SetDefault("import.limit_import_count", 0)
	v.SetDefault("import.dry_run", false)
	v.SetDefault("import.update_mode", string(UpdateModeCreate))
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("QCTRLQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// TransportConfig builds and validates the transport.Config implied by c,
// applying the mutually-exclusive certificate/bearer rule and port
// defaults (spec.md §7: Configuration errors are fatal before any network
// I/O).
func (c *Config) TransportConfig() (*transport.Config, error) {
	tc := &transport.Config{
		Host:               c.Connection.Host,
		EnginePort:         c.Connection.EnginePort,
		RepositoryPort:     c.Connection.RepositoryPort,
		VirtualProxyPrefix: c.Connection.VirtualProxyPrefix,
		Secure:             c.Connection.Secure,
		SchemaVersion:      c.Connection.SchemaVersion,
	}

	switch {
	case c.Connection.BearerToken != "":
		tc.Bearer = &transport.BearerCredentials{Token: c.Connection.BearerToken}
	case c.Connection.ClientCertPath != "" || c.Connection.ClientKeyPath != "" || c.Connection.RootCertPath != "":
		tc.Cert = &transport.CertCredentials{
			ClientCertPath: c.Connection.ClientCertPath,
			ClientKeyPath:  c.Connection.ClientKeyPath,
			RootCertPath:   c.Connection.RootCertPath,
		}
	}

	if err := tc.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating connection configuration")
	}
	if err := requireReadable(c.Connection.ClientCertPath, c.Connection.ClientKeyPath, c.Connection.RootCertPath); err != nil {
		return nil, err
	}
	return tc, nil
}

func requireReadable(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return errors.Wrapf(err, "certificate file %s is not readable", p)
		}
	}
	return nil
}

// ValidateImportRun enforces the Configuration-class checks that must
// fail before any network I/O: update-mode must be "create" (spec.md §1
// Non-goals, "no differential import... fail fast... before any network
// I/O").
func (r ImportRun) ValidateImportRun() error {
	if r.UpdateMode != UpdateModeCreate {
		return errors.Newf("update-mode %q is not supported; only %q is legal", r.UpdateMode, UpdateModeCreate)
	}
	if r.LimitImportCount < 0 {
		return errors.Newf("limit-import-count must be >= 0, got %d", r.LimitImportCount)
	}
	if r.SleepAppUploadMs < 0 {
		return errors.Newf("sleep-app-upload must be >= 0, got %d", r.SleepAppUploadMs)
	}
	return nil
}

// EnvFile resolves a config file path the way the teacher resolves
// project config: prefer an explicit path, otherwise a "ctrlq.toml" in
// the current directory if present.
func EnvFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(cwd, "ctrlq.toml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}
