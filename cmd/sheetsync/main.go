package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ratio1/sheetsync_sdk_go/internal/config"
	"github.com/Ratio1/sheetsync_sdk_go/internal/logger"
	"github.com/Ratio1/sheetsync_sdk_go/pkg/sheetsync"
)

// cliConfig is the file layout accepted by --config.
type cliConfig struct {
	Client   sheetsync.Settings `yaml:"client"`
	Logger   logger.Config      `yaml:"logger"`
	Password string             `yaml:"password" env:"SHEETSYNC_PASSWORD"`
	Timeout  time.Duration      `yaml:"timeout" env:"SHEETSYNC_TIMEOUT"`
}

func (c *cliConfig) setDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "warn"
	}
	c.Logger.SetDefaults()
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

var (
	configPath   string
	endpointFlag string
	strategyFlag string
	modeFlag     string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "sheetsync",
	Short: "Read and write HTML documents in a spreadsheet-backed content store",
	Long: `sheetsync talks to an action-based content endpoint (get, save, clear).
Every write is followed by a fresh read, and that read is what gets printed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "optional YAML config file")
	pf.StringVar(&endpointFlag, "endpoint", "", "endpoint URL (overrides SHEETSYNC_ENDPOINT)")
	pf.StringVar(&strategyFlag, "strategy", "", "transport strategy: direct-json, direct-form or script")
	pf.StringVar(&modeFlag, "mode", "", "runtime mode: auto, http or mock")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newGetCmd(), newSaveCmd(), newClearCmd(), newWrapCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sheetsync:", err)
		os.Exit(1)
	}
}

// session bundles what every remote command needs.
type session struct {
	client *sheetsync.Client
	log    logger.Logger
	cfg    *cliConfig
	mode   string
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) Close() {
	s.cancel()
	_ = s.log.Sync()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadWithDefaults[cliConfig](configPath, (*cliConfig).setDefaults)
	if err != nil {
		return nil, err
	}
	if endpointFlag != "" {
		cfg.Client.Endpoint = endpointFlag
	}
	if strategyFlag != "" {
		cfg.Client.Strategy = strategyFlag
	}
	if modeFlag != "" {
		cfg.Client.Mode = modeFlag
	}
	if verbose {
		cfg.Logger.Level = "debug"
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	client, mode, err := sheetsync.NewFromSettings(cfg.Client, sheetsync.WithLogger(log))
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	log.Debug("client ready",
		logger.String("mode", mode),
		logger.String("endpoint", client.Endpoint()),
		logger.String("strategy", client.Strategy().String()),
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	return &session{client: client, log: log, cfg: cfg, mode: mode, ctx: ctx, cancel: cancel}, nil
}
