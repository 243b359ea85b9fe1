package main

import (
	"fmt"

	"github.com/Fi44er/community_payments/config"
	"github.com/Fi44er/community_payments/db"
	"github.com/Fi44er/community_payments/internal/bot"
	"github.com/Fi44er/community_payments/internal/notify"
	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/internal/repository"
	"github.com/Fi44er/community_payments/internal/service"
	"github.com/Fi44er/community_payments/utils"
	"gorm.io/gorm"
)

type app struct {
	cfg        config.Config
	logger     *utils.Logger
	db         *gorm.DB
	hub        *notify.Hub
	dispatcher *notify.Dispatcher
	service    *service.Service
}

func loadConfig(path string) (config.Config, *utils.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, utils.InitLogger(cfg.LogLevel, cfg.LogFormat), nil
}

func newApp(configPath string) (*app, error) {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	database, err := db.ConnectDb(cfg.DB_URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repo := repository.NewRepository(database, logger)

	var email notify.EmailSender = notify.NewLogSender(logger)
	if cfg.SendgridAPIKey != "" {
		email = notify.NewSendGridSender(cfg.SendgridAPIKey, cfg.MailFromName, cfg.MailFromEmail)
	}

	hub := notify.NewHub(cfg.Origins(), logger)
	dispatcher := notify.NewDispatcher(repo, email, hub, cfg.AppBaseURL, logger)

	var alerter service.Alerter
	if cfg.TelegramBotToken != "" && cfg.AdminChatID != 0 {
		adminBot, err := bot.NewBot(cfg.TelegramBotToken, cfg.AdminChatID, logger)
		if err != nil {
			logger.WithError(err).Warn("Admin alerts disabled")
		} else {
			alerter = adminBot
		}
	}

	provider := paystack.NewClient(cfg.PaystackSecretKey, cfg.PaystackBaseURL, cfg.ProviderTimeout)
	svc := service.NewService(repo, provider, dispatcher, alerter, &cfg, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         database,
		hub:        hub,
		dispatcher: dispatcher,
		service:    svc,
	}, nil
}
