package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-link-bot/internal/api"
	"social-link-bot/internal/bot/commands"
	"social-link-bot/internal/cache"
	"social-link-bot/internal/config"
	"social-link-bot/internal/db"
	"social-link-bot/internal/events"
	"social-link-bot/internal/httpresp"
	"social-link-bot/internal/linkedin"
	"social-link-bot/internal/linking"
	"social-link-bot/internal/logger"
	"social-link-bot/internal/metrics"
	"social-link-bot/internal/models"
	"social-link-bot/internal/telegram"
	"social-link-bot/internal/utils"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped")
	}
	log.Info().Msg("Bot stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	m := metrics.New()

	database, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from DB")
		}
	}()

	sealer, err := utils.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}

	publisher, err := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka producer")
		}
	}()

	b, err := gotgbot.NewBot(cfg.TelegramToken, &gotgbot.BotOpts{
		BotClient: &gotgbot.BaseBotClient{
			Client: http.Client{},
			DefaultRequestOpts: &gotgbot.RequestOpts{
				Timeout: cfg.HTTPTimeout,
				APIURL:  cfg.TelegramAPIURL,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	oauth := linkedin.NewOAuth(linkedin.Config{
		ClientID:     cfg.LinkedInClientID,
		ClientSecret: cfg.LinkedInClientSecret,
		RedirectURL:  cfg.LinkedInRedirectURL,
		HTTPClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		Metrics:      m,
		Logger:       log,
	})

	stateCache := cache.New[string, models.PendingLink]()
	go stateCache.RunJanitor(ctx, time.Minute)

	linker := linking.NewService(linking.Deps{
		Auth:      oauth,
		States:    stateCache,
		Store:     database,
		Sealer:    sealer,
		Publisher: publisher,
		BaseState: cfg.LinkedInState,
		Metrics:   m,
		Logger:    log,
	})

	cmdHandler := commands.NewCommandHandler(linker)
	client := telegram.NewClient(b, telegram.Options{
		DefaultWebhookURL: cfg.TelegramWebhookURL,
		Metrics:           m,
		Logger:            log,
	}, cmdHandler.Commands()...)

	if res := client.RegisterCommands(ctx); res.IsFailure() {
		log.Warn().Err(res.Err()).Msg("Failed to register bot commands")
	}

	resp := httpresp.New(cfg.IsProduction(), log)
	tgController := api.NewTelegramController(client, api.TelegramControllerOpts{
		WebhookURL: cfg.TelegramWebhookURL,
		Secret:     cfg.TelegramWebhookSecret,
	}, resp, log)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.RouterDeps{
			Telegram: tgController,
			LinkedIn: api.NewLinkedInController(linker, client, resp, log),
			Metrics:  m.Handler(),
			Resp:     resp,
			Logger:   log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	switch cfg.TelegramUpdateMode {
	case config.ModePolling:
		poller := telegram.NewPoller(b, client, 30*time.Second, log)
		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("failed to start polling: %w", err)
		}
		defer func() {
			if err := poller.Stop(); err != nil {
				log.Error().Err(err).Msg("Failed to stop poller")
			}
		}()
	default:
		var opts *telegram.WebhookOptions
		if cfg.TelegramWebhookSecret != "" {
			opts = &telegram.WebhookOptions{SecretToken: cfg.TelegramWebhookSecret}
		}
		if res := client.SetWebhook(ctx, cfg.TelegramWebhookURL, opts); res.IsFailure() {
			log.Warn().Err(res.Err()).Msg("Failed to register webhook, use POST /api/telegram/setup-webhook to retry")
		}
	}

	log.Info().Str("username", b.User.Username).Str("mode", cfg.TelegramUpdateMode).Msg("Bot started")

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	tgController.Wait()
	return nil
}
