package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reminderTimeout = 30 * time.Second

// Reminder sends every allowed user their evening suggestion on a cron schedule
type Reminder struct {
	bot    *Bot
	logger *zap.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.Mutex
	isRunning bool
}

// ParseSchedule validates a five-field cron spec
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule '%s': %w", spec, err)
	}
	return schedule, nil
}

// NewReminder creates a stopped reminder
func NewReminder(b *Bot, logger *zap.Logger) *Reminder {
	return &Reminder{
		bot:    b,
		logger: logger,
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start schedules the reminder
func (r *Reminder) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return nil
	}

	schedule, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	r.entryID = r.cron.Schedule(schedule, cron.FuncJob(r.RunNow))
	r.cron.Start()
	r.isRunning = true

	r.logger.Info("Evening reminder scheduled",
		zap.String("schedule", spec),
		zap.Time("next_run", schedule.Next(time.Now())),
	)
	return nil
}

// Stop waits for a running reminder to finish and stops the schedule
func (r *Reminder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return
	}

	ctx := r.cron.Stop()
	<-ctx.Done()
	r.isRunning = false

	r.logger.Info("Evening reminder stopped")
}

// RunNow sends the reminder to every allowed user
func (r *Reminder) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderTimeout)
	defer cancel()

	sent := 0
	for userID := range r.bot.allowedUsers {
		if r.remind(ctx, userID) {
			sent++
		}
	}
	r.logger.Info("Evening reminders sent",
		zap.Int("sent", sent),
		zap.Int("users", len(r.bot.allowedUsers)),
	)
}

// remind sends one user their suggestion; users without one are skipped
func (r *Reminder) remind(ctx context.Context, userID int64) bool {
	state, err := r.bot.session(ctx, userID)
	if err != nil {
		r.logger.Error("Failed to load session for reminder",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		return false
	}

	if state.Suggestion() == nil {
		return false
	}

	// Private chats share the user's id
	r.bot.reply(userID, "🌙 It's almost bedtime!")
	r.bot.showTonight(userID, state)
	return true
}
