package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"discord-indexer/database"
	"discord-indexer/models"
	"discord-indexer/scanner"
	"discord-indexer/source"
	"discord-indexer/utils"

	"github.com/bwmarrin/discordgo"
)

// Bot owns the Discord session and everything one archive run needs.
type Bot struct {
	Session  *discordgo.Session
	Config   *models.IndexerConfig
	Cursors  *database.CursorStore
	DB       *database.IndexDB
	Archiver *scanner.Archiver
}

// NewBot creates the session and the archive pipeline. Nothing talks to
// Discord until Start.
func NewBot(cfg *models.IndexerConfig) (*Bot, error) {
	if cfg.Discord.Token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	cursors := database.NewCursorStore(cfg.Paths.StateFile)
	cursors.Load()
	log.Printf("Loaded %d cursors from %s", cursors.Len(), cfg.Paths.StateFile)

	opts := scanner.Options{
		Root:              cfg.Paths.DataDir,
		AllowedCategories: cfg.Indexing.AllowedCategories,
		BatchSize:         cfg.Indexing.BatchSize,
	}

	db, err := database.InitDB(cfg.Paths.DBPath)
	if err != nil {
		// The exclusion list and run ledger are optional; archiving still works without them.
		log.Printf("Warning: running without index database: %v", err)
		db = nil
	} else {
		for _, id := range cfg.Indexing.Exclude {
			if err := db.AddExclusion(id, "config"); err != nil {
				log.Printf("Warning: %v", err)
			}
		}
		opts.Exclusions = db
		opts.Ledger = db
	}

	src := source.NewDiscordSource(dg, cfg.Discord.GuildID)

	return &Bot{
		Session:  dg,
		Config:   cfg,
		Cursors:  cursors,
		DB:       db,
		Archiver: scanner.NewArchiver(src, cursors, opts),
	}, nil
}

// Start opens the gateway connection and waits until Discord reports ready.
func (b *Bot) Start(ctx context.Context) error {
	ready := make(chan struct{})
	remove := b.Session.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as: %v (ID: %v)", r.User.Username, r.User.ID)
		close(ready)
	})

	if err := b.Session.Open(); err != nil {
		remove()
		return fmt.Errorf("error opening connection: %w", err)
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	utils.InitLogger(b.Session, b.Config.Logging.AdminChannelID)
	return nil
}

// RunOnce performs a single archive pass.
func (b *Bot) RunOnce(ctx context.Context) (models.RunSummary, error) {
	return b.Archiver.Run(ctx)
}

// Stop saves pending state and closes the session and database.
func (b *Bot) Stop() {
	if b.Cursors.Dirty() {
		if err := b.Cursors.Save(); err != nil {
			log.Printf("Failed to save state: %v", err)
		}
	}
	utils.CloseLogger()
	if b.Session != nil {
		b.Session.Close()
	}
	if err := b.DB.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}
	fmt.Println("Bot stopped gracefully.")
}

// Run is the main entry point: connect, archive once or on a schedule, and
// disconnect. Configuration and connection failures are returned before
// any traversal starts.
func Run(ctx context.Context, cfg *models.IndexerConfig) error {
	b, err := NewBot(cfg)
	if err != nil {
		return fmt.Errorf("error initializing bot: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		b.Stop()
		return fmt.Errorf("error starting bot: %w", err)
	}
	defer b.Stop()

	if cfg.Scheduled() {
		return b.RunScheduled(ctx)
	}

	summary, err := b.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if summary.Updated == 0 {
		log.Println("No new messages.")
	}
	return err
}
