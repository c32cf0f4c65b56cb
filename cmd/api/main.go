package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"subtrack/internal/auth"
	"subtrack/internal/config"
	"subtrack/internal/httpserver"
	"subtrack/internal/httpserver/handlers"
	"subtrack/internal/logger"
	"subtrack/internal/models"
	"subtrack/internal/notify"
	"subtrack/internal/repository"
	"subtrack/internal/storage"
	"subtrack/internal/vault"
	"subtrack/internal/workflow"
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
	if err := db.AutoMigrate(
		&models.User{}, &models.Department{}, &models.Request{},
		&models.RequestComment{}, &models.AuditLog{}, &models.Session{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaultAdmin(db, lg)

	cipher, err := vault.New(cfg.VaultKeyHex)
	if err != nil {
		lg.Fatalw("vault key invalid", "error", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pending := notify.NewPendingStore(rdb, cfg.PendingTTL)

	attachments, err := storage.NewAttachmentStore(
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		lg.Fatalw("object store init failed", "error", err)
	}

	users := repository.NewUserRepository(db)
	departments := repository.NewDepartmentRepository(db)
	requests := repository.NewRequestRepository(db)
	audit := repository.NewAuditRepository(db)
	comments := repository.NewCommentRepository(db)

	bot := notify.NewTelegramSender(cfg.TelegramAPIBase, cfg.TelegramToken)
	gate := notify.NewGate(cfg.NotifySendDelay)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := bot.Verify(ctx); err != nil {
			lg.Warnw("bot verify failed, sends proceed after the gate delay", "error", err)
			return
		}
		gate.MarkReady()
		lg.Infow("bot verified")
	}()
	notifier := notify.NewService(users, bot, gate, lg)

	wf := workflow.NewService(requests, departments, comments, audit, notifier, cipher, lg)

	deps := handlers.Deps{
		Users:       users,
		Departments: departments,
		Requests:    requests,
		Audit:       audit,
		Workflow:    wf,
		Pending:     pending,
		Bot:         bot,
		Attachments: attachments,
		Lg:          lg,
	}
	router := httpserver.NewRouter(db, deps, cfg.TelegramWebhookSecret)

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		log.Fatal(err)
	}
}

func seedDefaultAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, _ := auth.HashPassword("changeme")
	u := models.User{
		Email:        strings.ToLower("admin@subtrack.local"),
		PasswordHash: hash,
		FullName:     "Default Admin",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Warnw("admin seed failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", u.Email)
}
