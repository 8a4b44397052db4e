package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bcrosbie/namecache/internal/address"
	"github.com/bcrosbie/namecache/internal/authority"
	"github.com/bcrosbie/namecache/internal/config"
	"github.com/bcrosbie/namecache/internal/logging"
	"github.com/bcrosbie/namecache/internal/redact"
	"github.com/bcrosbie/namecache/internal/service"
	"github.com/bcrosbie/namecache/internal/store"
	grpcx "github.com/bcrosbie/namecache/internal/transport/grpc"
	httpx "github.com/bcrosbie/namecache/internal/transport/http"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	nameStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatal("store setup failed", zap.Error(err))
	}
	defer func() {
		if err := nameStore.Close(); err != nil {
			logger.Warn("store close warning", zap.Error(err))
		}
	}()

	if err := nameStore.Load(); err != nil {
		logger.Fatal("store initialization failed", zap.Error(err))
	}

	resolver, err := buildResolver(cfg, logger)
	if err != nil {
		logger.Fatal("authority setup failed", zap.Error(err))
	}

	addresses := address.NewChain(logger,
		address.NewHIP2(cfg.AuthorityTimeout),
		address.NewWalletTXT(cfg.WalletDNSServer, cfg.AuthorityTimeout),
	)

	cache := service.NewCacheService(nameStore, resolver, addresses, logger, service.Options{
		StoreDriver:        cfg.StoreDriver,
		ResolveConcurrency: cfg.ResolveConcurrency,
	})

	var httpServer *http.Server
	if strings.TrimSpace(cfg.HTTPAddr) != "" {
		httpServer = httpx.NewServer(cfg.HTTPAddr, cache, logger)
		go func() {
			logger.Info("HTTP API listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http serve failed", zap.Error(err))
			}
		}()
	}

	var grpcServer *grpc.Server
	if strings.TrimSpace(cfg.GRPCAddr) != "" {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen failed", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
		}
		grpcServer = newGRPCServer(cfg, cache, logger)
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if cfg.AuthToken == "" {
				logger.Warn("AUTH_TOKEN is not configured; gRPC methods are unauthenticated")
			}
			if err := grpcServer.Serve(listener); err != nil {
				logger.Fatal("grpc serve failed", zap.Error(err))
			}
		}()
	}

	logger.Info("namecache started",
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("store_source", redact.Source(storeSource(cfg))),
		zap.String("authority", redact.Source(cfg.AuthorityURL)),
		zap.Int("authority_retries", cfg.AuthorityRetries))

	waitForShutdown(logger, grpcServer, httpServer)
}

func newGRPCServer(cfg config.Config, cache *service.CacheService, logger *zap.Logger) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcx.RecoveryUnaryInterceptor(logger),
			grpcx.AuthUnaryInterceptor(cfg.AuthToken),
			grpcx.LoggingUnaryInterceptor(logger),
			grpcx.ErrorUnaryInterceptor(),
		),
	)
	grpcx.RegisterNameCacheServer(server, grpcx.NewNameCacheHandler(cache))

	healthService := health.NewServer()
	healthService.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthService)

	if cfg.EnableReflection {
		reflection.Register(server)
	}
	return server
}

func waitForShutdown(logger *zap.Logger, server *grpc.Server, httpServer *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received; draining servers")
	if server != nil {
		done := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("gRPC server stopped gracefully")
		case <-time.After(5 * time.Second):
			logger.Warn("graceful timeout reached; forcing stop")
			server.Stop()
		}
	}
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown warning", zap.Error(err))
		}
	}
}

func buildStore(cfg config.Config) (store.NameStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "", "sqlite":
		return store.NewSQLiteStore(cfg.DatabasePath)
	case "postgres":
		return store.NewPostgresStore(cfg.DatabaseURL)
	case "bolt":
		return store.NewBoltStore(cfg.DatabasePath)
	case "file":
		return store.NewFileStore(cfg.DataFile), nil
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q; expected sqlite|postgres|bolt|file", cfg.StoreDriver)
	}
}

func storeSource(cfg config.Config) string {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "postgres":
		return cfg.DatabaseURL
	case "file":
		return cfg.DataFile
	default:
		return cfg.DatabasePath
	}
}

func buildResolver(cfg config.Config, logger *zap.Logger) (authority.Resolver, error) {
	client, err := authority.NewClient(cfg.AuthorityURL, cfg.AuthorityTimeout)
	if err != nil {
		return nil, err
	}
	if cfg.AuthorityRetries <= 0 {
		return client, nil
	}
	return authority.NewRetrying(client, cfg.AuthorityRetries, logger), nil
}
