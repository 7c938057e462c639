package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/codequest-edu/game-server/internal/config"
	"github.com/codequest-edu/game-server/internal/content"
	"github.com/codequest-edu/game-server/internal/game"
	"github.com/codequest-edu/game-server/internal/identity"
	"github.com/codequest-edu/game-server/internal/leaderboard"
	"github.com/codequest-edu/game-server/internal/reporting"
)

// Handlers bundles the per-feature HTTP handlers the server mounts.
type Handlers struct {
	Game        *game.HTTPHandler
	Content     *content.HTTPHandler
	Leaderboard *leaderboard.HTTPHandler
	Reporting   *reporting.HTTPHandler
}

// NewHTTPServer wires base routes (health, metrics) plus the gameplay API.
// Player-scoped routes require the gateway-injected identity header.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redis); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	// player registers a player-scoped route: identity middleware plus metrics.
	player := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, identity.Middleware(fn)))
	}
	// public registers a route with metrics only.
	public := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, fn))
	}

	if h.Game != nil {
		player("GET /v1/worlds/{world_id}/position", h.Game.HandlePosition)
		player("GET /v1/worlds/{world_id}/questions", h.Game.HandleQuestions)
		player("GET /v1/worlds/{world_id}/points", h.Game.HandlePoints)
		player("GET /v1/worlds/{world_id}/difficulty", h.Game.HandleDifficulty)
		player("POST /v1/answers", h.Game.HandleAnswers)
	}

	if h.Content != nil {
		player("POST /v1/custom-worlds", h.Content.HandleCreateWorld)
		player("POST /v1/custom-worlds/{world_id}/questions", h.Content.HandleAddQuestion)
		player("POST /v1/custom-worlds/{world_id}/assignments", h.Content.HandleCreateAssignment)
		public("GET /v1/custom-worlds/code/{access_code}", h.Content.HandleJoin)
	}

	if h.Leaderboard != nil {
		public("GET /v1/leaderboard", h.Leaderboard.HandleTop)
		public("GET /v1/leaderboard/users/{user_id}", h.Leaderboard.HandleRank)
	}

	if h.Reporting != nil {
		public("GET /v1/worlds/{world_id}/statistics", h.Reporting.HandleWorldStatistics)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	if err := redis.Ping(ctx).Err(); err != nil {
		return err
	}
	return nil
}
