package config

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"discord-indexer/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingToken is returned when no bot token is configured anywhere.
var ErrMissingToken = errors.New("DISCORD_TOKEN is not set; check .env or config.yaml")

// ErrMissingGuild is returned when no guild ID is configured.
var ErrMissingGuild = errors.New("discord.guild_id is not set")

// setDefaults registers the defaults of every key, which also lets
// AutomaticEnv pick up keys that appear in no config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("indexing.allowed_categories", []string{})
	v.SetDefault("indexing.exclude", []string{})
	v.SetDefault("indexing.batch_size", 100)
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.state_file", "")
	v.SetDefault("paths.db_path", "")
	v.SetDefault("logging.admin_channel_id", "")
	v.SetDefault("schedule.cron", "")
	v.SetDefault("schedule.run_at_startup", true)
	v.SetDefault("schedule.keep_runs_days", 30)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// LoadConfig loads configuration from several sources:
// 1. .env (environment variables, optional)
// 2. config.yaml in the working directory (optional)
// 3. config/indexing.json, merged on top (optional)
// Environment variables override file values; "discord.token" is read from
// DISCORD_TOKEN and so on.
func LoadConfig() (*models.IndexerConfig, error) {
	// 1. Load .env if present.
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found, skipping.")
	}

	v := newViper()

	// 2. Base configuration.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
		}
		log.Printf("config.yaml not found, using environment variables and defaults.")
	}

	// 3. Optional indexing overrides kept next to the other JSON configs.
	v.SetConfigName("indexing")
	v.SetConfigType("json")
	v.AddConfigPath("./config")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to merge config/indexing.json: %w", err)
		}
	}

	return decode(v)
}

// decode turns a populated viper instance into a validated IndexerConfig.
func decode(v *viper.Viper) (*models.IndexerConfig, error) {
	var cfg models.IndexerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Lists may come from the environment as space separated strings.
	cfg.Indexing.AllowedCategories = v.GetStringSlice("indexing.allowed_categories")
	cfg.Indexing.Exclude = v.GetStringSlice("indexing.exclude")

	if cfg.Indexing.BatchSize <= 0 {
		cfg.Indexing.BatchSize = 100
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "data"
	}
	if cfg.Paths.StateFile == "" {
		cfg.Paths.StateFile = filepath.Join(cfg.Paths.DataDir, "fetch_state.json")
	}
	if cfg.Paths.DBPath == "" {
		cfg.Paths.DBPath = filepath.Join(cfg.Paths.DataDir, "indexer.db")
	}

	if cfg.Discord.Token == "" {
		return &cfg, ErrMissingToken
	}
	if cfg.Discord.GuildID == "" {
		return &cfg, ErrMissingGuild
	}
	return &cfg, nil
}
