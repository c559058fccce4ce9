package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/inspire-names/internal/config"
	"github.com/Sternrassler/inspire-names/pkg/cache"
	"github.com/Sternrassler/inspire-names/pkg/client"
	"github.com/Sternrassler/inspire-names/pkg/harvest"
	"github.com/Sternrassler/inspire-names/pkg/logging"
	"github.com/Sternrassler/inspire-names/pkg/metrics"
	"github.com/Sternrassler/inspire-names/pkg/pagination"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// optional; real environment variables win
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := 0
	if err := run(ctx, getEnv(config.EnvConfigPath, ""), os.Stderr, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "inspire-names: %v\n", err)
		code = 1
	}

	stop()
	os.Exit(code)
}

// run loads the configuration, performs one harvest and prints a summary to out.
func run(ctx context.Context, configPath string, logOutput, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty || isTerminal(logOutput),
		Output: logOutput,
	})

	if cfg.Metrics.Addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr, logger); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	inspire, err := client.New(clientConfig(cfg, redisClient))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer inspire.Close()

	h, err := harvest.New(inspire, harvestConfig(cfg))
	if err != nil {
		return fmt.Errorf("create harvester: %w", err)
	}

	result, err := h.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info().
		Str("run_id", result.RunID).
		Str("path", result.Output).
		Int("entries", result.Entries).
		Msg("Done")

	fmt.Fprintln(out, renderSummary(result))
	return nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// connectRedis returns a Redis client for the response cache, or nil when
// the cache is disabled or unreachable.
func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if !cfg.CacheEnabled() {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, running without cache")
		redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	if cfg.Redis.Purge {
		n, err := cache.NewManager(redisClient).Purge(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Cache purge incomplete")
		} else {
			logger.Info().Int("keys", n).Msg("Cache purged")
		}
	}

	return redisClient
}

func clientConfig(cfg *config.Config, redisClient *redis.Client) client.Config {
	cc := client.DefaultConfig(cfg.Inspire.UserAgent)
	cc.BaseURL = cfg.Inspire.BaseURL
	cc.Timeout = cfg.Timeout()
	cc.Redis = redisClient
	cc.CacheTTL = cfg.CacheTTL()
	cc.Retry.MaxAttempts = cfg.Inspire.MaxAttempts
	cc.Retry.InitialBackoff = cfg.InitialBackoff()
	return cc
}

func harvestConfig(cfg *config.Config) harvest.Config {
	hc := harvest.DefaultConfig(cfg.Output.Path)
	hc.PageSize = cfg.Inspire.PageSize
	hc.ExcludeIncomplete = cfg.Output.ExcludeIncomplete
	hc.Fetch = pagination.DefaultConfig()
	hc.Fetch.Delay = cfg.RequestDelay()
	hc.Fetch.MaxPages = cfg.Inspire.MaxPages
	return hc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
