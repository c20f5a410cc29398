package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/symbolmap/internal/api"
	"github.com/rewired-gh/symbolmap/internal/logger"
	"github.com/rewired-gh/symbolmap/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the map state over HTTP and optionally Telegram",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()

		// The view is fully initialized before any input source starts.
		v, err := env.loadView(ctx)
		if err != nil {
			return err
		}

		var bot *telegram.Client
		if cfg.Telegram.Enabled {
			bot, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
			if err != nil {
				return fmt.Errorf("failed to initialize Telegram client: %w", err)
			}
			logger.Info("Telegram client initialized successfully")
		} else {
			logger.Debug("Telegram commands disabled")
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv := api.NewServer(addr,
			api.NewRouter(v, api.Options{AllowedOrigins: cfg.Server.AllowedOrigins}),
			cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("Starting HTTP server on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server listen: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutdown signal received, cleaning up...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if bot != nil {
			g.Go(func() error {
				return bot.Run(gctx, v)
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("Service stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
