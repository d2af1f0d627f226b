package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/scholargraph/internal/config"
	"github.com/rohankatakam/scholargraph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scholargraph",
	Short: "ScholarGraph - research network graph API backed by Neo4j",
	Long: `ScholarGraph serves a scholar/paper/student knowledge graph stored in Neo4j.

It runs raw Cypher, projects the graph for ECharts force layouts, and turns
natural-language requests into Cypher through an LLM.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			if cfgFile != "" {
				return err
			}
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		logCfg := logging.Config{
			Level:      logging.ParseLevel(cfg.Log.Level),
			OutputFile: cfg.Log.File,
			JSONFormat: cfg.Log.Format == "json",
			Stdout:     os.Stderr,
		}
		if verbose {
			logCfg.Level = logging.DEBUG
			logCfg.AddSource = true
		}
		if err := logging.Initialize(logCfg); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .scholargraph/config.yaml or ./scholargraph.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`ScholarGraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cypherCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(keychainCmd)
}
