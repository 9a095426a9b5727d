// Package main provides the battle server binary: the gRPC BattleService,
// the websocket watch listener and the deadline sweeper over one store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/duel/internal/config"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/moves"
	"github.com/cory-johannsen/duel/internal/gameserver"
	"github.com/cory-johannsen/duel/internal/gameserver/battlev1"
	"github.com/cory-johannsen/duel/internal/observability"
	"github.com/cory-johannsen/duel/internal/resolution"
	"github.com/cory-johannsen/duel/internal/server"
	"github.com/cory-johannsen/duel/internal/storage/memory"
	"github.com/cory-johannsen/duel/internal/storage/postgres"
)

const version = "0.1.0"

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the configuration")
	stopTimeout := flag.Duration("stop-timeout", 15*time.Second, "graceful shutdown budget")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading %s: %v", *envFile, err)
	}

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "battleserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry, version)
	if err != nil {
		logger.Fatal("initializing tracing", zap.Error(err))
	}

	lifecycle := server.NewLifecycle(logger, *stopTimeout)
	lifecycle.OnShutdown(func(ctx context.Context) error { return shutdownTracing(ctx) })

	catalogStart := time.Now()
	registry, err := moves.LoadDirectory(cfg.Battle.MovesDir)
	if err != nil {
		logger.Fatal("loading moves", zap.Error(err))
	}
	catalog := moves.NewCache(registry, logger)
	logger.Info("move catalog loaded",
		zap.Int("count", registry.Len()),
		zap.Duration("elapsed", time.Since(catalogStart)),
	)

	store, err := openStore(ctx, cfg, logger, lifecycle)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}

	hub := gameserver.NewHub(logger, cfg.Watch.WriteTimeout)
	rules := battle.Rules{
		InfiltratorBypassesSafeguard: cfg.Battle.InfiltratorBypassesSafeguard,
		TurnDuration:                 cfg.Battle.TurnDuration,
	}
	resolver := resolution.NewResolver(store, catalog, rules, logger,
		resolution.WithNotifier(hub),
		resolution.WithDrawLogging(cfg.Battle.LogDraws),
	)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(gameserver.UnaryLogging(logger)))
	battlev1.RegisterBattleServiceServer(grpcServer, gameserver.NewBattleService(resolver, logger))

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func(context.Context) error {
			lis, err := net.Listen("tcp", cfg.GameServer.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GameServer.Addr(), err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: func(context.Context) {
			grpcServer.GracefulStop()
		},
	})

	if cfg.Watch.Enabled {
		httpServer := &http.Server{
			Addr:              cfg.Watch.Addr(),
			Handler:           hub.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		lifecycle.Add("watch", &server.FuncService{
			StartFn: func(context.Context) error {
				logger.Info("watch listener started", zap.String("addr", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			StopFn: func(ctx context.Context) {
				hub.Close()
				if err := httpServer.Shutdown(ctx); err != nil {
					logger.Warn("watch listener shutdown", zap.Error(err))
				}
			},
		})
	}

	sweeper := resolution.NewSweeper(store, cfg.Battle.SweepInterval, cfg.Battle.DeadlineExtension, logger)
	lifecycle.Add("sweeper", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			sweeper.Start(ctx)
			<-ctx.Done()
			return nil
		},
	})

	logger.Info("battle server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.GameServer.Addr()),
		zap.String("store", cfg.Store.Backend),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// openStore builds the configured store. A postgres pool is health-checked
// periodically and closed on shutdown.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger, lifecycle *server.Lifecycle) (resolution.Store, error) {
	if cfg.Store.Backend == config.BackendMemory {
		logger.Warn("using in-memory store; battles do not survive a restart")
		return memory.NewStore(), nil
	}

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres", zap.Duration("elapsed", time.Since(dbStart)))

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
	})
	lifecycle.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})
	return postgres.NewBattleStore(pool.DB()), nil
}
