package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"subtrack/internal/config"
	"subtrack/internal/logger"
	"subtrack/internal/notify"
	"subtrack/internal/repository"
	"subtrack/internal/scheduler"
	"subtrack/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}

	attachments, err := storage.NewAttachmentStore(
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		lg.Fatalw("object store init failed", "error", err)
	}

	users := repository.NewUserRepository(db)
	requests := repository.NewRequestRepository(db)

	bot := notify.NewTelegramSender(cfg.TelegramAPIBase, cfg.TelegramToken)
	gate := notify.NewGate(cfg.NotifySendDelay)
	if err := bot.Verify(context.Background()); err != nil {
		lg.Warnw("bot verify failed, reminders proceed after the gate delay", "error", err)
	} else {
		gate.MarkReady()
	}
	notifier := notify.NewService(users, bot, gate, lg)

	jobs := scheduler.NewJobs(requests, notifier, attachments, cfg.RenewalRemindDay, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runOnce := func(now time.Time) {
		if sent, err := jobs.RemindRenewals(ctx, now); err != nil {
			lg.Errorw("renewal reminders failed", "error", err)
		} else {
			lg.Infow("renewal reminders done", "sent", sent)
		}
		if err := jobs.Backup(ctx, now); err != nil {
			lg.Errorw("backup failed", "error", err)
		}
	}

	lg.Infow("worker starting", "interval", cfg.WorkerInterval)
	runOnce(time.Now())

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runOnce(now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	lg.Infow("shutting down", "signal", sig.String())
	cancel()
}
