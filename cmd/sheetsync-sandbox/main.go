package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Ratio1/sheetsync_sdk_go/internal/config"
	"github.com/Ratio1/sheetsync_sdk_go/internal/devseed"
	"github.com/Ratio1/sheetsync_sdk_go/internal/logger"
	"github.com/Ratio1/sheetsync_sdk_go/pkg/sheetstore"
)

const shutdownTimeout = 10 * time.Second

// sandboxConfig is read from --config and the environment. Flags win.
type sandboxConfig struct {
	Addr       string                 `yaml:"addr" env:"SHEETSYNC_SANDBOX_ADDR"`
	Seed       string                 `yaml:"seed" env:"SHEETSYNC_SANDBOX_SEED"`
	Password   string                 `yaml:"password" env:"SHEETSYNC_SANDBOX_PASSWORD"`
	DefaultKey string                 `yaml:"default_key" env:"SHEETSYNC_DEFAULT_KEY"`
	Latency    time.Duration          `yaml:"latency" env:"SHEETSYNC_SANDBOX_LATENCY"`
	Fail       string                 `yaml:"fail" env:"SHEETSYNC_SANDBOX_FAIL"`
	Redis      sheetstore.RedisConfig `yaml:"redis"`
	Logger     logger.Config          `yaml:"logger"`
}

func (c *sandboxConfig) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8787"
	}
	c.Logger.SetDefaults()
}

var (
	configPath string
	flagAddr   string
	flagSeed   string
	flagPass   string
	flagRedis  string
	flagDelay  time.Duration
	flagFail   string
)

var rootCmd = &cobra.Command{
	Use:   "sheetsync-sandbox",
	Short: "Local emulator of the spreadsheet content endpoint",
	Long: `Serves the get/save/clear action contract on / and /exec, backed by an
in-memory or Redis document store, with optional latency and failure injection.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithDefaults[sandboxConfig](configPath, (*sandboxConfig).setDefaults)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Addr = flagAddr
		}
		if flags.Changed("seed") {
			cfg.Seed = flagSeed
		}
		if flags.Changed("password") {
			cfg.Password = flagPass
		}
		if flags.Changed("redis") {
			cfg.Redis.Address = flagRedis
		}
		if flags.Changed("latency") {
			cfg.Latency = flagDelay
		}
		if flags.Changed("fail") {
			cfg.Fail = flagFail
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":8787", "listen address")
	rootCmd.Flags().StringVar(&flagSeed, "seed", "", "path to a JSON or YAML document seed")
	rootCmd.Flags().StringVar(&flagPass, "password", "", "password required for save and clear (plaintext or bcrypt hash)")
	rootCmd.Flags().StringVar(&flagRedis, "redis", "", "Redis address; documents stay in memory when empty")
	rootCmd.Flags().DurationVar(&flagDelay, "latency", 0, "artificial latency to inject per request")
	rootCmd.Flags().StringVar(&flagFail, "fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *sandboxConfig) error {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	failCfg, err := parseFailConfig(cfg.Fail)
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	store, closeStore, err := openStore(cfg.Redis)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Seed != "" {
		entries, err := devseed.LoadDocumentSeed(cfg.Seed)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := sheetstore.Seed(ctx, store, entries); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		log.Info("seed applied", logger.String("path", cfg.Seed), logger.Int("documents", len(entries)))
	}

	metrics := sheetstore.NewMetrics()
	engine := newEngine(sheetstore.NewHandler(sheetstore.HandlerConfig{
		Store:      store,
		Password:   cfg.Password,
		DefaultKey: cfg.DefaultKey,
		Logger:     log,
		Metrics:    metrics,
	}), store, metrics, log, cfg.Latency, failCfg)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	host := cfg.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	log.Info("sheetsync-sandbox listening",
		logger.String("addr", cfg.Addr),
		logger.Bool("redis", cfg.Redis.Address != ""),
		logger.Duration("latency", cfg.Latency),
	)
	fmt.Println()
	fmt.Println("export SHEETSYNC_MODE=http")
	fmt.Printf("export SHEETSYNC_ENDPOINT=http://%s/exec\n", host)
	fmt.Println()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg sheetstore.RedisConfig) (sheetstore.Store, func(), error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return sheetstore.NewMemoryStore(), func() {}, nil
	}
	rs, err := sheetstore.NewRedisStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis store: %w", err)
	}
	return rs, func() { _ = rs.Close() }, nil
}

// newEngine wires the endpoint behind logging and fault injection. /metrics
// and /health bypass fault injection.
func newEngine(
	h *sheetstore.Handler,
	store sheetstore.Store,
	metrics *sheetstore.Metrics,
	log logger.Logger,
	delay time.Duration,
	failCfg failConfig,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.GET("/health", func(c *gin.Context) {
		keys, err := store.Keys(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "documents": len(keys)})
	})

	api := engine.Group("", injectFaults(delay, failCfg, nil))
	h.Register(api)
	return engine
}
