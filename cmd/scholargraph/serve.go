package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/scholargraph/internal/api"
	"github.com/rohankatakam/scholargraph/internal/config"
	"github.com/rohankatakam/scholargraph/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var (
	openBrowser    bool
	healthInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the HTTP API on the configured host and port.

The database is not required at startup: a failed connectivity check is
logged and /api/db-test reports it. Without a usable LLM key the server
still starts and /api/ai-cypher answers with step "service_check".`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&openBrowser, "open", false, "open the welcome page in a browser once listening")
	serveCmd.Flags().DurationVar(&healthInterval, "health-interval", 30*time.Second, "Neo4j connectivity check interval (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := validate(config.ValidationContextServe); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, llmOptional)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	checkCtx, cancel := context.WithTimeout(ctx, cfg.Neo4j.ConnectTimeout)
	if err := a.neo4j.HealthCheck(checkCtx); err != nil {
		logger.WithError(err).Warn("Neo4j is not reachable yet; serving anyway")
	}
	cancel()

	router := api.NewRouter(logging.Component("http"), a.routerDeps())
	srv := api.NewServer(logging.Component("http"), cfg.HTTP, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if healthInterval > 0 {
		g.Go(func() error {
			return a.neo4j.WatchHealth(gctx, healthInterval)
		})
	}

	if openBrowser {
		url := welcomeURL(cfg.HTTP)
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-time.After(500 * time.Millisecond):
				if err := browser.OpenURL(url); err != nil {
					logger.WithError(err).Warnf("Could not open browser, visit %s", url)
				}
			}
			return nil
		})
	}

	logger.Infof("ScholarGraph listening on %s (prefix %s)", srv.Addr(), cfg.HTTP.Prefix)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// welcomeURL is the browsable address of the index page
func welcomeURL(h config.HTTPConfig) string {
	host := h.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/", host, h.Port)
}
