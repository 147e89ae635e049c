package rl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/janosik-trading/janosik/store"
)

// TrainingLog records completed runs. Implemented by the Postgres store.
type TrainingLog interface {
	LogTraining(ctx context.Context, run store.TrainingRun) error
	TrainingHistory(ctx context.Context, limit int) ([]store.TrainingRun, error)
}

// Scheduler triggers the trainer on a fixed interval and logs each run.
type Scheduler struct {
	interval time.Duration
	trainer  Trainer
	log      TrainingLog
	logger   *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	episode int
}

func NewScheduler(interval time.Duration, trainer Trainer, log TrainingLog, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		trainer:  trainer,
		log:      log,
		logger:   logger,
	}
}

// Start begins the retrain loop. The episode counter resumes from the
// last logged run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	history, err := s.log.TrainingHistory(ctx, 1)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		s.episode = history[0].Episode
	}

	s.wg.Add(1)
	go s.run()

	s.logger.Info("retrain scheduler started", "interval", s.interval, "last_episode", s.episode)
	return nil
}

// Stop shuts the scheduler down, waiting for an in-flight run.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("retrain scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// RunOnce executes a single training episode and records it.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	res, err := s.trainer.Train(ctx)
	if err != nil {
		return err
	}

	s.episode++
	run := store.TrainingRun{
		Episode:      s.episode,
		Reward:       res.Reward,
		TotalProfit:  res.TotalProfit,
		ModelVersion: res.ModelVersion,
		Time:         time.Now().UTC(),
	}
	if err := s.log.LogTraining(ctx, run); err != nil {
		return err
	}

	s.logger.Info("training run recorded",
		"episode", run.Episode,
		"reward", run.Reward,
		"model_version", run.ModelVersion,
	)
	return nil
}

func (s *Scheduler) runOnce() {
	if err := s.RunOnce(s.ctx); err != nil {
		s.logger.Error("training run failed", "error", err)
	}
}
