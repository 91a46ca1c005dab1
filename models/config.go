package models

// IndexerConfig is the fully resolved configuration of one indexer process.
// It is built once at startup by config.LoadConfig and handed to every
// component that needs it.
type IndexerConfig struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Indexing IndexingConfig `mapstructure:"indexing"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// DiscordConfig holds the credentials and the guild to archive.
type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	GuildID string `mapstructure:"guild_id"`
}

// IndexingConfig controls which conversations are archived and how output is batched.
type IndexingConfig struct {
	AllowedCategories []string `mapstructure:"allowed_categories"` // "" selects uncategorized channels
	Exclude           []string `mapstructure:"exclude"`            // conversation IDs never archived
	BatchSize         int      `mapstructure:"batch_size"`
}

// PathsConfig locates the knowledge base and the indexer's own state.
type PathsConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	StateFile string `mapstructure:"state_file"`
	DBPath    string `mapstructure:"db_path"`
}

// LoggingConfig configures where log lines are mirrored.
type LoggingConfig struct {
	AdminChannelID string `mapstructure:"admin_channel_id"`
}

// ScheduleConfig enables the long-running cron mode.
type ScheduleConfig struct {
	Cron         string `mapstructure:"cron"` // empty means run once and exit
	RunAtStartup bool   `mapstructure:"run_at_startup"`
	KeepRunsDays int    `mapstructure:"keep_runs_days"`
}

// Scheduled reports whether the indexer should stay connected and run on a cron spec.
func (c IndexerConfig) Scheduled() bool {
	return c.Schedule.Cron != ""
}
