package sched

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"client-manager-bot/internal/domain"
	infraredis "client-manager-bot/internal/infra/redis"
	"client-manager-bot/internal/usecase"
)

const (
	noticeLockKey = "sched_lock:expiry_notices"
	noticeLockTTL = 5 * time.Minute
	runTimeout    = 2 * time.Minute
)

// NoticeWorker runs the daily expiry-notice sweep on a cron schedule. The
// redis lock keeps concurrent instances from double-sending; a delivery that
// failed is not marked and gets retried on the next run.
type NoticeWorker struct {
	sched   gocron.Scheduler
	notifUC usecase.NotificationUseCase
	locker  infraredis.Locker
	log     *zerolog.Logger
}

// NewNoticeWorker schedules the sweep with the given cron expression, e.g.
// "0 9 * * *" for every day at 09:00. locker may be nil in single-instance
// deployments.
func NewNoticeWorker(cronExpr string, notifUC usecase.NotificationUseCase, locker infraredis.Locker, logger *zerolog.Logger) (*NoticeWorker, error) {
	compLog := logger.With().Str("component", "NoticeWorker").Logger()

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	w := &NoticeWorker{
		sched:   s,
		notifUC: notifUC,
		locker:  locker,
		log:     &compLog,
	}
	if _, err := s.NewJob(gocron.CronJob(cronExpr, false), gocron.NewTask(w.run)); err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins the schedule; it returns immediately.
func (w *NoticeWorker) Start() {
	w.sched.Start()
	w.log.Info().Msg("notice worker started")
}

// Stop shuts the scheduler down and waits for a running job to finish.
func (w *NoticeWorker) Stop() {
	if err := w.sched.Shutdown(); err != nil {
		w.log.Error().Err(err).Msg("scheduler shutdown")
	}
}

func (w *NoticeWorker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, noticeLockKey, noticeLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				w.log.Debug().Msg("another instance holds the sweep lock")
				return
			}
			w.log.Error().Err(err).Msg("acquire sweep lock")
			return
		}
		defer func() {
			if err := w.locker.Unlock(ctx, noticeLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("release sweep lock")
			}
		}()
	}

	sent, err := w.notifUC.SendDueNotices(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("expiry notice sweep failed")
		return
	}
	if sent > 0 {
		w.log.Info().Int("count", sent).Msg("expiry notices sent")
	}
}
