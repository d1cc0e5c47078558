package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/buildcrew/internal/adapter/handler"
	"github.com/rl1809/buildcrew/internal/adapter/recipebook"
	"github.com/rl1809/buildcrew/internal/adapter/storage"
	"github.com/rl1809/buildcrew/internal/config"
	"github.com/rl1809/buildcrew/internal/core/resolver"
	"github.com/rl1809/buildcrew/internal/core/service"
	"github.com/rl1809/buildcrew/internal/port"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: MySQL when a DSN is configured, in-memory otherwise.
	var store port.DatabaseRepository
	var db *sql.DB
	if cfg.MySQL.DSN != "" {
		db, err = sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			logger.Error("open mysql", "error", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			logger.Error("ping mysql", "error", err)
			os.Exit(1)
		}
		store = storage.NewMySQLAdapter(db)
		logger.Info("connected to mysql")
	} else {
		store = storage.NewMemoryAdapter()
		logger.Warn("no mysql dsn configured, projects live in memory only")
	}

	// Resolver cache: Redis when an address is configured, in-process otherwise.
	var cache port.CacheRepository
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("ping redis", "error", err)
			os.Exit(1)
		}
		cache = storage.NewRedisCache(rdb)
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		cache = storage.NewMemoryCache(cfg.Resolver.CacheEntries, cfg.Resolver.CacheTTL.Std())
		logger.Info("resolver cache runs in process", "entries", cfg.Resolver.CacheEntries)
	}

	recipes, err := recipebook.NewFileRepository(cfg.Resolver.RecipeFile, logger)
	if err != nil {
		logger.Error("load recipe book", "path", cfg.Resolver.RecipeFile, "error", err)
		os.Exit(1)
	}
	defer recipes.Close()

	res := resolver.New(recipes, cache, cfg.Resolver.CacheTTL.Std(), logger)
	res.SetLimits(cfg.Resolver.DepthLimit, cfg.Resolver.MaxNodeBudget)

	projects := service.NewProjectService(store, res, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	handler.NewHTTPHandler(projects, res, logger).Register(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	logger.Info("stopped")
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
