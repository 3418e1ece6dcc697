package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mcpguard/mcpbridge/internal/api"
	"github.com/mcpguard/mcpbridge/internal/clientconfig"
	"github.com/mcpguard/mcpbridge/internal/config"
	"github.com/mcpguard/mcpbridge/internal/detection"
	"github.com/mcpguard/mcpbridge/internal/mcp"
	"github.com/mcpguard/mcpbridge/internal/state"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP endpoint and the OAuth state handoff store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), v, configFile)
		},
	}
	serveCmd.Flags().Int("port", 7071, "HTTP listen port")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().String("log-format", "text", "log format (text, json)")

	rootCmd := &cobra.Command{
		Use:          "mcpbridge",
		Short:        "MCP Bridge - a JSON-RPC MCP endpoint with a one-time OAuth state store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.BindFlags(v, cmd.Flags())
		},
		RunE: serveCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, toml or json)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd, newRegisterCmd())
	return rootCmd
}

func newRegisterCmd() *cobra.Command {
	var server clientconfig.Server

	cmd := &cobra.Command{
		Use:   "register [config files...]",
		Short: "Point local MCP client configurations at this server",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				userHome, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("failed to get user home directory: %w", err)
				}
				paths = clientconfig.DefaultPaths(userHome)
			}

			logger := newLogger("info", "text")
			modifiedFiles := clientconfig.RegisterAll(paths, server, logger)
			if len(modifiedFiles) == 0 {
				logger.Info("no MCP configuration files were found or modified")
				return nil
			}
			for _, file := range modifiedFiles {
				logger.Info("registered MCP server", "name", server.Name, "url", server.URL, "path", file)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server.Name, "name", "mcpbridge", "server entry name under mcpServers")
	cmd.Flags().StringVar(&server.URL, "url", "http://localhost:7071/mcp", "MCP endpoint URL")
	return cmd
}

func runServer(ctx context.Context, v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat).With("instance_id", cfg.InstanceID)
	slog.SetDefault(logger)

	var redactor *detection.Engine
	if cfg.RedactSecrets {
		redactor, err = detection.NewEngine(cfg.GitleaksConfig)
		if err != nil {
			return fmt.Errorf("failed to create detection engine: %w", err)
		}
	}

	registry, err := mcp.NewRegistryFromCatalog(mcp.Catalog(mcp.Info{
		ServerName: cfg.ServerName,
		TenantID:   cfg.TenantID,
		ClientID:   cfg.ClientID,
	}), cfg.Tools)
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}

	dispatcher := mcp.NewDispatcher(mcp.Options{
		Registry:        registry,
		ServerName:      cfg.ServerName,
		ServerVersion:   cfg.ServerVersion,
		ProtocolVersion: cfg.ProtocolVersion,
		Capabilities:    cfg.Capabilities,
		Redactor:        redactor,
		Logger:          logger.With("component", "mcp"),
	})
	states := state.NewStore(state.WithLogger(logger.With("component", "state")))

	router := mux.NewRouter()
	api.NewAPI(cfg, dispatcher, states, redactor, logger.With("component", "api")).Routes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting MCP bridge",
			"port", cfg.ServerPort,
			"tools", cfg.Tools,
			"redact_secrets", cfg.RedactSecrets,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		logger.Info("server shut down successfully")
		return nil
	})
	return g.Wait()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
