package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"backend-fogtrek/internal/auth"
	"backend-fogtrek/internal/config"
	"backend-fogtrek/internal/db"
	"backend-fogtrek/internal/explore"
	"backend-fogtrek/internal/history"
	"backend-fogtrek/internal/stats"
	"backend-fogtrek/internal/stream"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Stream  *stream.Hub
	Explore *explore.Service
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	var querier db.Querier
	var store *history.Store
	if pool != nil {
		querier = pool
		store = history.NewStore(pool)
	}

	hub := stream.NewHub(redisClient)
	engine := stats.NewEngine(cfg.FogRadiusM)
	snapshots := history.NewSnapshotCache(redisClient)

	s := &Server{
		App:     app,
		Cfg:     cfg,
		DB:      pool,
		Redis:   redisClient,
		Stream:  hub,
		Explore: explore.NewService(engine, store, snapshots, hub),
	}

	registerRoutes(s, querier)
	return s
}

func registerRoutes(s *Server, querier db.Querier) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, querier))
	explore.RegisterRoutes(s.App.Group("/explore"), s.Explore, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
