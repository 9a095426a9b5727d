// Package config provides Viper-based configuration loading for the battle server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// StoreConfig selects the battle store implementation.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameServerConfig holds the battle gRPC service settings.
type GameServerConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GameServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.GRPCHost, g.GRPCPort)
}

// WatchConfig holds the websocket watch listener settings.
type WatchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// WriteTimeout bounds each push to a watcher.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (w WatchConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// BattleConfig holds rule and scheduling settings.
type BattleConfig struct {
	// MovesDir is the directory of YAML move definitions.
	MovesDir string `mapstructure:"moves_dir"`
	// TurnDuration is the decision window of each turn.
	TurnDuration time.Duration `mapstructure:"turn_duration"`
	// SweepInterval is how often overdue deadlines are scanned.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// DeadlineExtension is how far an overdue deadline is pushed.
	DeadlineExtension time.Duration `mapstructure:"deadline_extension"`
	// LogDraws logs every RNG draw at debug level.
	LogDraws                     bool `mapstructure:"log_draws"`
	InfiltratorBypassesSafeguard bool `mapstructure:"infiltrator_bypasses_safeguard"`
}

// TelemetryConfig holds OpenTelemetry trace export settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP/HTTP collector "host:port".
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	GameServer GameServerConfig `mapstructure:"gameserver"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Battle     BattleConfig     `mapstructure:"battle"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStore(c.Store); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Store.Backend == BackendPostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateGameServer(c.GameServer); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Watch.Enabled {
		if err := validateWatch(c.Watch); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateBattle(c.Battle); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Telemetry.Enabled {
		if err := validateTelemetry(c.Telemetry); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validateStore(s StoreConfig) error {
	if s.Backend != BackendMemory && s.Backend != BackendPostgres {
		return fmt.Errorf("store.backend must be one of [memory, postgres], got %q", s.Backend)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.GRPCHost == "" {
		errs = append(errs, "gameserver.grpc_host must not be empty")
	}
	if !validPort(g.GRPCPort) {
		errs = append(errs, fmt.Sprintf("gameserver.grpc_port must be 1-65535, got %d", g.GRPCPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWatch(w WatchConfig) error {
	var errs []string
	if !validPort(w.Port) {
		errs = append(errs, fmt.Sprintf("watch.port must be 1-65535, got %d", w.Port))
	}
	if w.WriteTimeout <= 0 {
		errs = append(errs, "watch.write_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBattle(b BattleConfig) error {
	var errs []string
	if b.MovesDir == "" {
		errs = append(errs, "battle.moves_dir must not be empty")
	}
	if b.TurnDuration <= 0 {
		errs = append(errs, fmt.Sprintf("battle.turn_duration must be positive, got %s", b.TurnDuration))
	}
	if b.SweepInterval <= 0 {
		errs = append(errs, fmt.Sprintf("battle.sweep_interval must be positive, got %s", b.SweepInterval))
	}
	if b.DeadlineExtension <= 0 {
		errs = append(errs, fmt.Sprintf("battle.deadline_extension must be positive, got %s", b.DeadlineExtension))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTelemetry(t TelemetryConfig) error {
	var errs []string
	if t.Endpoint == "" {
		errs = append(errs, "telemetry.endpoint must not be empty")
	}
	if t.ServiceName == "" {
		errs = append(errs, "telemetry.service_name must not be empty")
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be within [0, 1], got %g", t.SampleRatio))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// DUEL_BATTLE_TURN_DURATION overrides battle.turn_duration
	v.SetEnvPrefix("DUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("store.backend", BackendMemory)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "duel")
	v.SetDefault("database.password", "duel")
	v.SetDefault("database.name", "duel")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("gameserver.grpc_host", "127.0.0.1")
	v.SetDefault("gameserver.grpc_port", 50051)

	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.host", "0.0.0.0")
	v.SetDefault("watch.port", 8081)
	v.SetDefault("watch.write_timeout", "10s")

	v.SetDefault("battle.moves_dir", "content/moves")
	v.SetDefault("battle.turn_duration", "45s")
	v.SetDefault("battle.sweep_interval", "5s")
	v.SetDefault("battle.deadline_extension", "30s")
	v.SetDefault("battle.log_draws", false)
	v.SetDefault("battle.infiltrator_bypasses_safeguard", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "duel-battleserver")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}
