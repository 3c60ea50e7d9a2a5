package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rummy-engine/config"
	"rummy-engine/engine"
	"rummy-engine/logging"
	"rummy-engine/server"
)

const version = "0.1.0"

var (
	configPath  string
	addressFlag string
	discardFlag []string
	wildFlag    string
)

var rootCmd = &cobra.Command{
	Use:           "rummy-engine",
	Short:         "Rummy meld analyzer and action recommender",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the TCP command server",
	RunE:  runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [cards...]",
	Short: "Analyze a hand and print the JSON report",
	Args:  cobra.ArbitraryArgs,
	RunE:  runAnalyze,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rummy-engine v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	serveCmd.Flags().StringVar(&addressFlag, "address", "", "listen address (overrides config)")
	analyzeCmd.Flags().StringSliceVar(&discardFlag, "discard", nil, "discard pile, bottom to top")
	analyzeCmd.Flags().StringVar(&wildFlag, "wild", "", "wild card")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addressFlag != "" {
		cfg.Address = addressFlag
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sessionManager := engine.NewSessionManager(logger)
	tcpServer := server.NewTCPServer(cfg.Address, sessionManager, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Rummy engine starting", zap.String("address", cfg.Address), zap.String("version", version))
		errCh <- tcpServer.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
	}

	logger.Info("Shutting down...")
	tcpServer.Stop()
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	report, _ := engine.EvaluateHand(engine.EvaluateRequest{
		Hand:     args,
		Discard:  discardFlag,
		WildCard: wildFlag,
	}, time.Now())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
