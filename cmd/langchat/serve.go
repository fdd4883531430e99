package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/server"
	"github.com/LangChat/ai-tutorials/internal/watcher"
	"github.com/LangChat/ai-tutorials/pkg/utils"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and watch the knowledge directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configPath, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			logger, err := utils.NewLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()
			logWarnings(logger, cfg)
			logger.Info("config loaded",
				zap.String("config_path", configPath),
				zap.Bool("debug", cfg.Debug),
				zap.Strings("settings", cfg.Summary()),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			components, err := initializeComponents(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer components.Close()

			watchSvc := watcher.New(&cfg.Watch, components.Indexer, watcher.WithLogger(logger))
			if err := watchSvc.Start(ctx); err != nil {
				return err
			}
			defer watchSvc.Stop()
			watchSvc.SyncExistingFiles()

			srv := server.NewServer(components.Services(), cfg, logger, server.WithWatch(watchSvc, configPath))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
