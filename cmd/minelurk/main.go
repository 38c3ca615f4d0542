package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	sloggger "github.com/minelurk/minelurk/cmd/minelurk/log"
	"github.com/minelurk/minelurk/internal/bot"
	"github.com/minelurk/minelurk/internal/config"
	"github.com/minelurk/minelurk/internal/event"
	"github.com/minelurk/minelurk/internal/remote/discord"
	ngrokremote "github.com/minelurk/minelurk/internal/remote/ngrok"
	"github.com/minelurk/minelurk/internal/remote/telegram"
	"github.com/minelurk/minelurk/internal/server"
	"golang.org/x/sync/errgroup"
)

var (
	buildID   string
	buildTime string
)

// wrapWithRecover wraps a function with panic recovery logic
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := debug.Stack()
				errMsg := fmt.Sprintf("panic recovered: %v\nStacktrace: %s", r, stackTrace)
				logger.Error(errMsg)
				sloggger.FlushLog()
			}
		}()
		return f()
	}
}

func main() {

	_ = buildID
	_ = buildTime

	err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err.Error())
		return
	}

	logger, err := sloggger.NewLogger(config.Minelurk.Debug.Log, config.Minelurk.LogSaveDirectory, "")
	if err != nil {
		log.Fatalf("Error starting logger: %s", err.Error())
	}
	defer sloggger.FlushAndClose()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fatal error detected, minelurk will close with the following error: %v\n Stacktrace: %s", r, debug.Stack())
			logger.Error(err.Error())
			sloggger.FlushAndClose()
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	eventListener := event.NewListener(logger)
	manager := bot.NewSupervisorManager(logger, eventListener)
	scheduler := bot.NewScheduler(manager, logger)
	go scheduler.Start()

	srv, err := server.New(logger, manager, scheduler)
	if err != nil {
		log.Fatalf("Error starting local server: %s", err.Error())
	}

	serverPort := config.Minelurk.ServerPort
	if serverPort <= 0 {
		serverPort = 8087
	}

	var ngrokTunnel *ngrokremote.Tunnel
	if config.Minelurk.Ngrok.Enabled {
		if config.Minelurk.Ngrok.Authtoken == "" && os.Getenv("NGROK_AUTHTOKEN") == "" {
			logger.Warn("ngrok enabled but no authtoken set; skipping tunnel start")
		} else {
			opts := ngrokremote.Options{
				LocalAddr:     fmt.Sprintf("http://localhost:%d", serverPort),
				Authtoken:     config.Minelurk.Ngrok.Authtoken,
				Region:        config.Minelurk.Ngrok.Region,
				Domain:        config.Minelurk.Ngrok.Domain,
				BasicAuthUser: config.Minelurk.Ngrok.BasicAuthUser,
				BasicAuthPass: config.Minelurk.Ngrok.BasicAuthPass,
				AnnounceURL:   config.Minelurk.Ngrok.SendURL,
			}
			tunnel, err := ngrokremote.Start(ctx, opts)
			if err != nil {
				logger.Error("ngrok tunnel failed to start", slog.Any("error", err))
			} else {
				logger.Info("ngrok tunnel established", slog.String("url", tunnel.URL()))
			}
			ngrokTunnel = tunnel
		}
	}

	// Discord Bot initialization
	if config.Minelurk.Discord.Enabled {
		discordBot, err := discord.NewBot(
			config.Minelurk.Discord.Token,
			config.Minelurk.Discord.ChannelID,
			manager,
			config.Minelurk.Discord.UseWebhook,
			config.Minelurk.Discord.WebhookURL,
		)
		if err != nil {
			logger.Error("Discord could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(discordBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			return discordBot.Start(ctx)
		}))
	}

	// Telegram Bot initialization
	if config.Minelurk.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(config.Minelurk.Telegram.Token, config.Minelurk.Telegram.ChatID, manager, logger)
		if err != nil {
			logger.Error("Telegram could not been initialized", slog.Any("error", err))
			return
		}
		defer telegramBot.Close()

		eventListener.Register(telegramBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			return telegramBot.Start(ctx)
		}))
	}

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return srv.Listen(serverPort)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return eventListener.Listen(ctx)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		<-ctx.Done()
		logger.Info("minelurk shutting down...")
		manager.StopAll()
		scheduler.Stop()
		err = srv.Stop()
		if err != nil {
			logger.Error("error stopping local server", slog.Any("error", err))
		}
		if ngrokTunnel != nil {
			if closeErr := ngrokTunnel.Close(); closeErr != nil {
				logger.Error("error stopping ngrok tunnel", slog.Any("error", closeErr))
			}
		}

		return err
	}))

	err = g.Wait()
	if err != nil {
		cancel()
		logger.Error("Error running minelurk", slog.Any("error", err))
		return
	}

	sloggger.FlushAndClose()
}
