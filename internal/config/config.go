// Package config provides Viper-based configuration loading for the battle engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/battlecore/internal/game/dice"
)

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

// BattleConfig holds combat resolution settings.
type BattleConfig struct {
	// PresentationTimeout bounds each wait for an action animation; 0 waits indefinitely.
	PresentationTimeout time.Duration `mapstructure:"presentation_timeout"`
	// DamageVariance is the dice expression added to base damage.
	DamageVariance string `mapstructure:"damage_variance"`
	// AutoAdvanceWaves advances to the next wave as soon as the current one is cleared.
	AutoAdvanceWaves bool `mapstructure:"auto_advance_waves"`
	// TeamStrategy and EnemyStrategy name the default target strategy per side:
	// "lowest_hp", "most_effective", "random" or "script:<hook>".
	TeamStrategy  string `mapstructure:"team_strategy"`
	EnemyStrategy string `mapstructure:"enemy_strategy"`
	// Seed selects a deterministic randomness source; 0 uses crypto/rand.
	Seed int64 `mapstructure:"seed"`
	// ScriptInstructionLimit caps Lua opcodes per strategy hook call; 0 uses the default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
	// MaxRounds stops a simulated battle that has not ended after this many rounds.
	MaxRounds int `mapstructure:"max_rounds"`
}

// ContentConfig locates the static content the engine loads at startup.
type ContentConfig struct {
	SpeciesDir     string `mapstructure:"species_dir"`
	AbilitiesDir   string `mapstructure:"abilities_dir"`
	EncountersDir  string `mapstructure:"encounters_dir"`
	EvolutionsFile string `mapstructure:"evolutions_file"`
	// ScriptsDir holds Lua target strategies; empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Content  ContentConfig  `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBattle(c.Battle); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
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

func validateBattle(b BattleConfig) error {
	var errs []string
	if b.PresentationTimeout < 0 {
		errs = append(errs, "battle.presentation_timeout must not be negative")
	}
	if expr, err := dice.Parse(b.DamageVariance); err != nil {
		errs = append(errs, fmt.Sprintf("battle.damage_variance: %v", err))
	} else if lo, _ := expr.Bounds(); lo < 0 {
		errs = append(errs, fmt.Sprintf("battle.damage_variance %q can roll below zero", b.DamageVariance))
	}
	for key, name := range map[string]string{"battle.team_strategy": b.TeamStrategy, "battle.enemy_strategy": b.EnemyStrategy} {
		if !validStrategy(name) {
			errs = append(errs, fmt.Sprintf("%s must be one of [lowest_hp, most_effective, random, script:<hook>], got %q", key, name))
		}
	}
	if b.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("battle.script_instruction_limit must be >= 0, got %d", b.ScriptInstructionLimit))
	}
	if b.MaxRounds < 1 {
		errs = append(errs, fmt.Sprintf("battle.max_rounds must be >= 1, got %d", b.MaxRounds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validStrategy(name string) bool {
	switch name {
	case "lowest_hp", "most_effective", "random":
		return true
	}
	return strings.HasPrefix(name, "script:") && len(name) > len("script:")
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.SpeciesDir == "" {
		errs = append(errs, "content.species_dir must not be empty")
	}
	if c.AbilitiesDir == "" {
		errs = append(errs, "content.abilities_dir must not be empty")
	}
	if c.EncountersDir == "" {
		errs = append(errs, "content.encounters_dir must not be empty")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
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

	// Environment variable overrides with BATTLE_ prefix
	v.SetEnvPrefix("BATTLE")
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

// Defaults returns a Viper instance holding only the default configuration.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "battle")
	v.SetDefault("database.password", "battle")
	v.SetDefault("database.name", "battle")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("battle.presentation_timeout", "5s")
	v.SetDefault("battle.damage_variance", "1d5-1")
	v.SetDefault("battle.auto_advance_waves", true)
	v.SetDefault("battle.team_strategy", "most_effective")
	v.SetDefault("battle.enemy_strategy", "random")
	v.SetDefault("battle.seed", 0)
	v.SetDefault("battle.script_instruction_limit", 0)
	v.SetDefault("battle.max_rounds", 200)

	v.SetDefault("content.species_dir", "content/species")
	v.SetDefault("content.abilities_dir", "content/abilities")
	v.SetDefault("content.encounters_dir", "content/encounters")
	v.SetDefault("content.evolutions_file", "content/evolutions.yaml")
	v.SetDefault("content.scripts_dir", "content/scripts")
}
