package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"game-server"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Game        Game
	Leaderboard Leaderboard
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Game groups the gameplay tuning knobs. Defaults match the shipped
// balance; operators can tighten or loosen them per environment.
type Game struct {
	NormalThreshold  int   `env:"GAME_NORMAL_THRESHOLD" envDefault:"20"`
	HardThreshold    int   `env:"GAME_HARD_THRESHOLD" envDefault:"65"`
	NormalLevelCount int   `env:"GAME_NORMAL_LEVEL_QUESTIONS" envDefault:"3"`
	BossCount        int   `env:"GAME_BOSS_QUESTIONS" envDefault:"10"`
	BossPassCount    int   `env:"GAME_BOSS_PASS_COUNT" envDefault:"5"`
	RandomSeed       int64 `env:"GAME_RANDOM_SEED" envDefault:"0"`
}

// Leaderboard governs cache freshness and page size.
type Leaderboard struct {
	CacheTTL        time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"5m"`
	TopN            int           `env:"LEADERBOARD_TOP" envDefault:"50"`
	RefreshInterval time.Duration `env:"LEADERBOARD_REFRESH_INTERVAL" envDefault:"5m"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
