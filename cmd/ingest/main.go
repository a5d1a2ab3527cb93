// Command ingest runs the stats acquisition pipeline: it loads the
// player index, then fetches biographies, game logs, rosters and the
// season schedule into Postgres.
//
// Usage:
//
//	ingest -task players -season 2023-24
//	ingest -task all -workers 10 -local
//
// Configuration comes from the environment (see pkg/config); flags
// override individual fields.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/courtsight/nba-stats-ingest/pkg/cache"
	"github.com/courtsight/nba-stats-ingest/pkg/config"
	"github.com/courtsight/nba-stats-ingest/pkg/fetch"
	"github.com/courtsight/nba-stats-ingest/pkg/logging"
	"github.com/courtsight/nba-stats-ingest/pkg/proxy"
	"github.com/courtsight/nba-stats-ingest/pkg/ratelimit"
	"github.com/courtsight/nba-stats-ingest/pkg/statsapi"
	"github.com/courtsight/nba-stats-ingest/pkg/store"
)

func main() {
	var (
		task    = flag.String("task", "all", "task to run: players, gamelogs, rosters, schedule, teamstats, all")
		season  = flag.String("season", fetch.CurrentSeason(), "season to acquire, e.g. 2023-24")
		local   = flag.Bool("local", false, "force direct calls, ignore configured proxies")
		viaOnly = flag.Bool("proxy", false, "require proxies, fail if none are configured")
		workers = flag.Int("workers", 0, "batch concurrency, 0 uses MAX_WORKERS")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *local {
		cfg.ForceLocal = true
		cfg.ForceProxy = false
	}
	if *viaOnly {
		cfg.ForceProxy = true
		cfg.ForceLocal = false
	}
	if *workers > 0 {
		cfg.MaxWorkers = *workers
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("ingest")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *task, *season, logger); err != nil {
		logger.Fatal().Err(err).Msg("Ingest failed")
	}
}

func run(ctx context.Context, cfg config.Config, task, season string, logger zerolog.Logger) error {
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer pg.Close()

	if err := pg.CreateTables(ctx); err != nil {
		return err
	}

	var (
		redisClient  *redis.Client
		cacheManager *cache.Manager
		snapshots    *proxy.SnapshotStore
	)
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The cache and snapshots are optional, the run proceeds
			// without them.
			logger.Warn().Err(err).Str("redis_url", cfg.RedisURL).Msg("Redis unavailable, caching disabled")
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheManager = cache.NewManager(redisClient)
		snapshots = proxy.NewSnapshotStore(redisClient)
	}

	proxies, err := buildProxyManager(ctx, cfg, snapshots, logger)
	if err != nil {
		return err
	}

	client, err := statsapi.New(statsapi.DefaultConfig(), proxies)
	if err != nil {
		return fmt.Errorf("create stats client: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitInterval)
	fetcher := fetch.NewFetcher(limiter, cfg.Retries)

	players := fetch.NewPlayerFetcher(client, fetcher, pg, cacheManager)
	teams := fetch.NewTeamFetcher(client, fetcher, pg)
	schedule := fetch.NewScheduleFetcher(client, fetcher, pg)

	if err := teams.SeedTeams(ctx); err != nil {
		return fmt.Errorf("seed teams: %w", err)
	}

	runErr := runTask(ctx, task, season, cfg.MaxWorkers, players, teams, schedule, logger)

	if proxies != nil && snapshots != nil {
		if err := snapshots.Save(ctx, proxies.Records()); err != nil {
			logger.Warn().Err(err).Msg("Proxy snapshot save failed")
		}
	}

	return runErr
}

// buildProxyManager assembles the pool, restoring persisted health
// stats when a snapshot store is available. Returns nil when the run
// is direct-only.
func buildProxyManager(ctx context.Context, cfg config.Config, snapshots *proxy.SnapshotStore, logger zerolog.Logger) (*proxy.Manager, error) {
	if cfg.ForceLocal || len(cfg.Proxies) == 0 {
		if cfg.ForceProxy {
			return nil, fmt.Errorf("proxies required but none configured")
		}
		logger.Info().Msg("Running with direct calls, no proxies")
		return nil, nil
	}

	manager, err := proxy.New(cfg.Proxies, proxy.Config{
		MaxFails:             cfg.MaxFails,
		ConsecutiveFailLimit: cfg.ConsecutiveFailLimit,
		Cooldown:             cfg.Cooldown,
		DailyCap:             cfg.DailyRequestCap,
	})
	if err != nil {
		return nil, fmt.Errorf("create proxy pool: %w", err)
	}

	if snapshots != nil {
		records, err := snapshots.Load(ctx, cfg.Proxies)
		if err != nil {
			logger.Warn().Err(err).Msg("Proxy snapshot load failed")
		} else if len(records) > 0 {
			manager.Restore(records)
			logger.Info().Int("records", len(records)).Msg("Proxy stats restored")
		}
	}

	logger.Info().Int("proxies", len(cfg.Proxies)).Msg("Proxy pool ready")
	return manager, nil
}

func runTask(ctx context.Context, task, season string, workers int,
	players *fetch.PlayerFetcher, teams *fetch.TeamFetcher, schedule *fetch.ScheduleFetcher,
	logger zerolog.Logger) error {

	switch task {
	case "players":
		return runPlayers(ctx, season, workers, players, logger)
	case "gamelogs":
		return runGameLogs(ctx, season, workers, players, logger)
	case "rosters":
		summary, err := teams.FetchRosters(ctx, season, workers)
		if err != nil {
			return err
		}
		logSummary(logger, "rosters", summary)
		return nil
	case "schedule":
		return schedule.FetchSchedule(ctx, season)
	case "teamstats":
		summary, err := teams.FetchAllTeamGameStats(ctx, season, workers)
		if err != nil {
			return err
		}
		logSummary(logger, "teamstats", summary)
		return nil
	case "all":
		if err := schedule.FetchSchedule(ctx, season); err != nil {
			return err
		}
		if summary, err := teams.FetchRosters(ctx, season, workers); err != nil {
			return err
		} else {
			logSummary(logger, "rosters", summary)
		}
		if summary, err := teams.FetchAllTeamGameStats(ctx, season, workers); err != nil {
			return err
		} else {
			logSummary(logger, "teamstats", summary)
		}
		if err := runPlayers(ctx, season, workers, players, logger); err != nil {
			return err
		}
		return runGameLogs(ctx, season, workers, players, logger)
	default:
		return fmt.Errorf("unknown task %q", task)
	}
}

func runPlayers(ctx context.Context, season string, workers int, players *fetch.PlayerFetcher, logger zerolog.Logger) error {
	ids, err := players.PlayerIndex(ctx, season)
	if err != nil {
		return fmt.Errorf("load player index: %w", err)
	}
	logSummary(logger, "players", players.FetchPlayers(ctx, ids, workers))
	return nil
}

func runGameLogs(ctx context.Context, season string, workers int, players *fetch.PlayerFetcher, logger zerolog.Logger) error {
	ids, err := players.PlayerIndex(ctx, season)
	if err != nil {
		return fmt.Errorf("load player index: %w", err)
	}
	logSummary(logger, "gamelogs", players.FetchGameLogsBatch(ctx, ids, season, workers))
	return nil
}

func logSummary(logger zerolog.Logger, task string, summary fetch.Summary) {
	event := logger.Info()
	if summary.Failed > 0 {
		event = logger.Warn().Interface("failed_ids", summary.FailedIDs)
	}
	event.
		Str("task", task).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("Task summary")
}
