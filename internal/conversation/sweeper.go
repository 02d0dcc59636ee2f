package conversation

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hyperjump/atrbot/pkg/utils"
	"go.uber.org/zap"
)

// Sweeper periodically closes idle sessions.
type Sweeper struct {
	scheduler *gocron.Scheduler
	logger    *zap.Logger
}

// NewSweeper schedules ExpireIdle on sessions every interval.
func NewSweeper(sessions *Sessions, idle, interval time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if idle <= 0 || interval <= 0 {
		return nil, fmt.Errorf("idle timeout and interval must be positive")
	}
	logger = utils.OrNop(logger)
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(interval).Tag("session-sweeper").Do(func() {
		if _, err := sessions.ExpireIdle(time.Now(), idle); err != nil {
			logger.Error("failed to persist idle sessions", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule session sweeper: %w", err)
	}
	return &Sweeper{scheduler: s, logger: logger}, nil
}

// Start runs the sweeper in the background.
func (s *Sweeper) Start() {
	s.scheduler.StartAsync()
}

// Stop halts the sweeper.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}
