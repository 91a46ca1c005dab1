package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"discord-indexer/utils"

	"github.com/robfig/cron/v3"
)

// Scheduler runs archive passes on a cron spec. A pass that is still
// running when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	c       *cron.Cron
	run     func(ctx context.Context)
	ctx     context.Context
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewScheduler prepares a scheduler that calls run on every tick of spec.
func NewScheduler(ctx context.Context, spec string, run func(ctx context.Context)) (*Scheduler, error) {
	s := &Scheduler{c: cron.New(), run: run, ctx: ctx}
	if _, err := s.c.AddFunc(spec, s.Trigger); err != nil {
		return nil, fmt.Errorf("could not set up cron job %q: %w", spec, err)
	}
	return s, nil
}

// Trigger runs a pass on the calling goroutine unless one is already in
// flight or the scheduler's context is done.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if s.running {
		s.mu.Unlock()
		log.Println("Previous archive run still in progress, skipping this tick.")
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()
	s.run(s.ctx)
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
	log.Println("Archive runs scheduled.")
}

// Stop stops the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	s.wg.Wait()
	log.Println("Scheduler stopped.")
}

// RunScheduled keeps the session open and archives on the configured cron
// spec until ctx is cancelled.
func (b *Bot) RunScheduled(ctx context.Context) error {
	sched, err := NewScheduler(ctx, b.Config.Schedule.Cron, func(ctx context.Context) {
		log.Println("Running scheduled archive...")
		summary, err := b.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			utils.Error("Scheduler", "Run", err.Error())
		} else if summary.Updated > 0 {
			utils.Info("Scheduler", "Run", fmt.Sprintf("%d new messages in %d conversations", summary.Messages, summary.Updated))
		}
		if b.DB != nil {
			if _, err := b.DB.PruneRuns(b.Config.Schedule.KeepRunsDays); err != nil {
				utils.Warn("Scheduler", "PruneRuns", err.Error())
			}
		}
	})
	if err != nil {
		return err
	}

	sched.Start()
	log.Printf("Archive scheduled with spec %q", b.Config.Schedule.Cron)

	// Perform an initial run on startup based on config.
	if b.Config.Schedule.RunAtStartup {
		go sched.Trigger()
	} else {
		log.Println("Skipping initial run on startup as per configuration.")
	}

	<-ctx.Done()
	sched.Stop()
	return nil
}
