package app

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codequest-edu/game-server/internal/config"
	"github.com/codequest-edu/game-server/internal/content"
	"github.com/codequest-edu/game-server/internal/db/repository"
	"github.com/codequest-edu/game-server/internal/game"
	"github.com/codequest-edu/game-server/internal/leaderboard"
	"github.com/codequest-edu/game-server/internal/logging"
	"github.com/codequest-edu/game-server/internal/reporting"
	"github.com/codequest-edu/game-server/internal/server"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	lbRefresher *leaderboard.Refresher
	bgCancels   []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	contentRepo := repository.NewContentRepository(pool)
	progressRepo := repository.NewProgressRepository(pool)
	authoringRepo := repository.NewAuthoringRepository(pool)
	leaderboardRepo := repository.NewLeaderboardRepository(pool)
	reportingRepo := repository.NewReportingRepository(pool)

	rules := rulesFromConfig(cfg.Game)

	seed := cfg.Game.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	picker := game.NewPicker(contentRepo, progressRepo, rng)
	sessions := game.NewSessionManager(progressRepo, rules)
	scorer := game.NewScorer(contentRepo, progressRepo, rules, nil)
	controller := game.NewController(contentRepo, progressRepo, picker, sessions, scorer, rules, logger, nil)

	contentSvc := content.NewService(authoringRepo, rng, logger, nil)
	reportingSvc := reporting.NewService(reportingRepo, logger)

	leaderboardSvc := leaderboard.NewService(leaderboardRepo, redisClient, logger, leaderboard.ServiceOptions{
		TopN:     cfg.Leaderboard.TopN,
		CacheTTL: cfg.Leaderboard.CacheTTL,
	})
	var lbRefresher *leaderboard.Refresher
	if cfg.Leaderboard.RefreshInterval > 0 {
		lbRefresher = leaderboard.NewRefresher(leaderboardSvc, cfg.Leaderboard.RefreshInterval, logger)
	}

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.Handlers{
		Game:        game.NewHTTPHandler(controller, logger),
		Content:     content.NewHTTPHandler(contentSvc, logger),
		Leaderboard: leaderboard.NewHTTPHandler(leaderboardSvc, logger),
		Reporting:   reporting.NewHTTPHandler(reportingSvc, logger),
	})

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redis:       redisClient,
		http:        apiServer,
		lbRefresher: lbRefresher,
		bgCancels:   make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.lbRefresher != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.lbRefresher.Run(bgCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("leaderboard refresher stopped")
			}
		}()
	}
}

func rulesFromConfig(g config.Game) game.Rules {
	rules := game.DefaultRules()
	if g.NormalThreshold > 0 {
		rules.DifficultyLowThreshold = g.NormalThreshold
	}
	if g.HardThreshold > 0 {
		rules.DifficultyHighThreshold = g.HardThreshold
	}
	if g.NormalLevelCount > 0 {
		rules.NormalLevelQuestionCount = g.NormalLevelCount
	}
	if g.BossCount > 0 {
		rules.BossLevelQuestionCount = g.BossCount
	}
	if g.BossPassCount > 0 {
		rules.BossPassThreshold = g.BossPassCount
	}
	return rules
}
