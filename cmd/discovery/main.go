// Package main provides the discovery CLI entry point.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/folioworks/discovery/internal/config"
	"github.com/folioworks/discovery/internal/engine"
	"github.com/folioworks/discovery/internal/logging"
	"github.com/folioworks/discovery/internal/search"
	"github.com/folioworks/discovery/internal/storage"
	"github.com/folioworks/discovery/internal/web"
)

// Version is set at build time via ldflags
var Version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Recommendation and consistency engine for creator portfolios",
	Long: `discovery runs the recommendation and cross-system consistency engine
of a creator-portfolio platform: it keeps the full-text search index,
content-similarity vectors, and analytics aggregates of each project
consistent with the authoritative record, and serves trending, similar,
and personalized project feeds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.Version = Version

	rootCmd.AddCommand(serveCmd, reindexCmd, recalcCmd, statsCmd, healthCmd)
}

// runtime bundles the wired components for one command invocation.
type runtime struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *storage.Store
	index  *search.Index
	engine *engine.Engine
}

func (rt *runtime) close() {
	rt.index.Close()
	rt.store.Close()
}

func setup() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	index, err := search.Open(cfg.IndexPath())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}

	return &runtime{
		cfg:    cfg,
		log:    log,
		store:  store,
		index:  index,
		engine: engine.New(store, index, log),
	}, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		server := web.NewServer(rt.engine, rt.log)

		addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
		rt.log.Info().Str("addr", addr).Msg("server starting")

		return http.ListenAndServe(addr, server.Handler())
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild search documents and embeddings for all published projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		stats, err := rt.engine.ReindexAll(rt.cfg.Reindex.BatchSize)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recompute aggregate engagement scores from the event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		return rt.engine.RecalculateEngagementScores()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and index document counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		stats, err := rt.engine.CollectStats()
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the store and search index",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.close()

		return printJSON(rt.engine.HealthCheck())
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
