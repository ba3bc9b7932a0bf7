package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vellum-cms/vellum/internal/contentmanager"
	corecfg "github.com/vellum-cms/vellum/internal/core/config"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/core/storage"
	"github.com/vellum-cms/vellum/internal/core/storage/memory"
	"github.com/vellum-cms/vellum/internal/core/storage/postgres"
	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/graphql"
	"github.com/vellum-cms/vellum/internal/history"
	"github.com/vellum-cms/vellum/internal/idempotency"
	"github.com/vellum-cms/vellum/internal/metrics"
	"github.com/vellum-cms/vellum/internal/migrations"
	"github.com/vellum-cms/vellum/internal/relation"
	"github.com/vellum-cms/vellum/internal/schema"
	schemaapi "github.com/vellum-cms/vellum/internal/schema/api"
	"github.com/vellum-cms/vellum/internal/schema/formats/yaml"
	schemaStorage "github.com/vellum-cms/vellum/internal/schema/storage"
	"github.com/vellum-cms/vellum/internal/server"
)

const mongoConnectTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "vellum.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 1. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Info("Loaded config", "database", cfg.Database.Type, "history", cfg.History.Store, "graphql", cfg.GraphQL.Enabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var healthChecks []server.Option

	// 2. Initialize Storage
	var (
		store storage.DocumentStore
		db    *sql.DB
	)
	switch cfg.Database.Type {
	case "postgres":
		db, err = postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}

		// 2.1. Run Database Migrations
		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}

		adapter, err := postgres.NewAdapter(db)
		if err != nil {
			slog.Error("Failed to initialize storage adapter", "error", err)
			os.Exit(1)
		}
		defer adapter.Close()
		store = adapter
		healthChecks = append(healthChecks, server.WithHealthCheck("database", server.PingFunc(db.PingContext)))
	default:
		slog.Warn("Using in-memory storage; documents are lost on restart")
		store = memory.New()
	}

	// 3. Initialize Schema Registry
	formats := schema.NewFormatRegistry()
	yamlCompiler := yaml.NewCompiler()
	formats.RegisterFormat(schema.FormatYaml, yamlCompiler)
	formats.RegisterFormat(schema.FormatJSON, yamlCompiler)

	registry, err := schema.Load(ctx, schemaStorage.NewFileSystemRepository(cfg.Schema.Path), formats)
	if err != nil {
		slog.Error("Failed to load schema registry", "path", cfg.Schema.Path, "error", err)
		os.Exit(1)
	}
	validator := schema.NewValidator()
	slog.Info("Schema registry frozen", "models", len(registry.List()), "content_types", len(registry.ContentTypes()))

	// 4. Initialize History Store
	var historyStore history.Store
	switch cfg.History.Store {
	case "postgres":
		pgHistory, err := history.NewPostgresStore(db)
		if err != nil {
			slog.Error("Failed to initialize history store", "error", err)
			os.Exit(1)
		}
		defer pgHistory.Close()
		historyStore = pgHistory
	case "mongo":
		client, err := history.ConnectMongo(ctx, cfg.History.MongoURI, mongoConnectTimeout)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer disconnectMongo(client)

		mongoHistory := history.NewMongoStore(client.Database(cfg.History.MongoDatabase).Collection(history.CollectionName))
		if err := mongoHistory.EnsureIndexes(ctx); err != nil {
			slog.Error("Failed to create history indexes", "error", err)
			os.Exit(1)
		}
		historyStore = mongoHistory
		healthChecks = append(healthChecks, server.WithHealthCheck("mongo", server.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		})))
	default:
		historyStore = history.NewMemoryStore()
	}

	// 5. Initialize Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	m.MustRegister(promRegistry)

	// 6. Initialize Domain Services
	limits := pagination.Limits{
		DefaultPageSize: cfg.Pagination.DefaultPageSize,
		MaxPageSize:     cfg.Pagination.MaxPageSize,
	}
	historySvc := history.NewService(registry, historyStore, cfg.Pagination.MaxPageSize)
	documentSvc := document.NewService(registry, validator, store, cfg.I18n.DefaultLocale, limits, document.WithHistory(historySvc))
	engine := relation.NewEngine(registry, store, documentSvc.Resolver(), limits, m)

	cmOpts := []contentmanager.Option{contentmanager.WithMaxBodySize(cfg.Server.MaxBodySizeMB)}

	// 6.1. Idempotency keys (Redis)
	if cfg.Idempotency.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("[Redis] Unreachable at startup; idempotency keys are not enforced until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		idemStore := idempotency.NewRedisStore(rdb, "vellum:idempotency:", cfg.IdempotencyTTL())
		cmOpts = append(cmOpts, contentmanager.WithMutationMiddleware(idempotency.Middleware(idemStore)))
		healthChecks = append(healthChecks, server.WithHealthCheck("redis", server.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})))
	}

	// 7. Initialize Server
	serverOpts := append([]server.Option{
		server.WithMiddleware(m.Middleware()),
		server.WithMetrics(promRegistry),
		server.WithMaxBodySize(cfg.Server.MaxBodySizeMB),
	}, healthChecks...)
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode, serverOpts...)

	schemaapi.NewService(registry, validator).RegisterRoutes(srv.Engine)
	contentmanager.NewService(registry, documentSvc, engine, historySvc, cfg.Pagination.MaxPageSize, cmOpts...).RegisterRoutes(srv.Engine)

	if cfg.GraphQL.Enabled {
		gqlSvc := graphql.NewService(registry, documentSvc, engine)
		// Schema generation errors are boot errors, not request errors.
		if _, err := gqlSvc.Schema(); err != nil {
			slog.Error("Failed to build GraphQL schema", "error", err)
			os.Exit(1)
		}
		gqlSvc.RegisterRoutes(srv.Engine, cfg.GraphQL.Path)
	}

	// 8. Start Services
	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func disconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		slog.Error("[Mongo] Disconnect failed", "error", err)
	}
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
