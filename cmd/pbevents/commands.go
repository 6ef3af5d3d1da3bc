package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/echoface/pbevents/internal/config"
	"github.com/echoface/pbevents/internal/server"
	"github.com/echoface/pbevents/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var confDir string

	root := &cobra.Command{
		Use:           "pbevents",
		Short:         "Header-bidding auction event bus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&confDir, "conf", "", "config directory holding <RUN_TYPE>.yaml (default: $CONFIG_PATH/conf or ./conf)")

	root.AddCommand(newServeCmd(&confDir), newCatalogCmd(&confDir))
	return root
}

// loadConfig falls back to built-in defaults when no config file exists and
// no directory was requested explicitly.
func loadConfig(confDir string) (*config.ServerConfig, error) {
	cfg, err := config.LoadConfig(confDir)
	if err == nil {
		return cfg, nil
	}
	if confDir == "" {
		fmt.Println("no config loaded, using defaults:", err)
		return config.NewDefaultConfig(), nil
	}
	return nil, err
}

func newServeCmd(confDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the event bus HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*confDir)
			if err != nil {
				return err
			}

			backend, lc := cfg.LoggerConfig()
			log, err := logger.New(backend, lc)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync(log) }()

			appCtx, err := server.NewAppContext(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("pbevents server starting", "addr", appCtx.HTTPServer.Addr, "run_type", cfg.RunType, "debug", cfg.Debug)
				if err := appCtx.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return appCtx.Shutdown(shutdownCtx)
		},
	}
}

func newCatalogCmd(confDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the recognized events and their id paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*confDir)
			if err != nil {
				return err
			}
			catalog := cfg.Catalog()
			paths := catalog.IDSources()

			names := catalog.Names()
			sort.Strings(names)
			out := cmd.OutOrStdout()
			for _, name := range names {
				if path, ok := paths[name]; ok {
					fmt.Fprintf(out, "%s\t%s\n", name, path)
					continue
				}
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
