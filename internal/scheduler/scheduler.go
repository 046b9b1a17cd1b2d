package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"COTSentinel/internal/notifier"
	"COTSentinel/internal/service"
)

// Sender delivers formatted messages.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the weekly refresh and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Service  *service.Service
	Notifier Sender
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler. tn may be nil when delivery is disabled.
func NewScheduler(ctx context.Context, svc *service.Service, tn Sender) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Service:  svc,
		Notifier: tn,
		Ctx:      ctx,
	}
}

// RegisterAll registers the weekly task.
func (s *Scheduler) RegisterAll(weeklyCron string) error {
	if _, err := s.Cron.AddFunc(weeklyCron, s.weeklyTask); err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunWeeklyNow executes the weekly task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunWeeklyNow() {
	s.weeklyTask()
}

func (s *Scheduler) weeklyTask() {
	log.Info().Msg("running weekly task")
	snap, err := s.Service.Refresh(s.Ctx)
	if err != nil {
		log.Error().Err(err).Msg("weekly refresh")
		s.trySend(notifier.FormatError("weekly refresh failed", err))
		return
	}
	s.trySend(notifier.FormatLatestSignals(snap.RunAt, snap.Results, snap.Failures))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// "/backtest@SomeBot EURUSD" in group chats
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	args := fields[1:]

	switch cmd {
	case "/signals":
		snap := s.Service.Latest()
		if snap == nil {
			var err error
			if snap, err = s.Service.Refresh(s.Ctx); err != nil {
				return notifier.FormatError("refresh failed", err)
			}
		}
		return notifier.FormatLatestSignals(snap.RunAt, snap.Results, snap.Failures)
	case "/refresh":
		s.weeklyTask()
		return ""
	case "/backtest":
		if len(args) == 0 {
			return "Usage: /backtest PAIR"
		}
		res, err := s.Service.Backtest(s.Ctx, args[0], s.Service.Filter)
		if err != nil {
			return notifier.FormatError("backtest "+args[0], err)
		}
		return notifier.FormatBacktest(res)
	case "/explain":
		if len(args) == 0 {
			return "Usage: /explain PAIR"
		}
		p, err := s.Service.Pair(args[0])
		if err != nil {
			return notifier.FormatError("explain", err)
		}
		v, bs, qs, err := s.Service.Explain(s.Ctx, p.Name)
		if err != nil {
			return notifier.FormatError("explain "+p.Name, err)
		}
		return notifier.FormatExplain(p.Name, v, bs, qs)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		log.Debug().Msg("notifier disabled, message dropped")
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
